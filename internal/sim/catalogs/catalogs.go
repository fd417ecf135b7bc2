package catalogs

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"tilefactory.io/internal/sim/world/tile"
)

//go:embed defaults/*.json
var defaultFS embed.FS

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Catalogs is the immutable content shared by every layer of a world.
// It is built once at startup and never mutated afterwards.
type Catalogs struct {
	Terrain    TerrainCatalog
	Items      ItemCatalog
	Recipes    RecipeCatalog
	Structures StructureCatalog
}

type TerrainCatalog struct {
	Palette []string
	Index   map[string]tile.TerrainID
	Defs    []TerrainDef
	Digest  string
}

type TerrainDef struct {
	ID          string `json:"id"`
	Blend       bool   `json:"blend,omitempty"`
	AltTextures bool   `json:"alt_textures,omitempty"`
	Liquid      bool   `json:"liquid,omitempty"`
}

// ItemID indexes the item palette.
type ItemID uint16

const NoItem ItemID = 0xFFFF

type ItemCatalog struct {
	Palette []string
	Index   map[string]ItemID
	Defs    []ItemDef
	Digest  string
}

type ItemDef struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Fluid    bool   `json:"fluid,omitempty"`
}

type RecipeCatalog struct {
	ByID   map[string]*Recipe
	Digest string
}

type RecipeDef struct {
	RecipeID    string      `json:"recipe_id"`
	Inputs      []ItemCount `json:"inputs"`
	Outputs     []ItemCount `json:"outputs"`
	WorkSeconds float64     `json:"work_seconds"`
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type Stack struct {
	Item  ItemID
	Count int
}

type Recipe struct {
	ID          string
	Inputs      []Stack
	Outputs     []Stack
	WorkSeconds float64
}

type StructureCatalog struct {
	Palette []string
	ByID    map[string]*Schema
	ByIndex []*Schema
	Digest  string
}

type StructureDef struct {
	ID             string      `json:"id"`
	Kind           string      `json:"kind"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	Docks          []DockDef   `json:"docks,omitempty"`
	BuildCost      []ItemCount `json:"build_cost,omitempty"`
	Recipes        []string    `json:"recipes,omitempty"`
	Draggable      bool        `json:"draggable,omitempty"`
	Rotatable      bool        `json:"rotatable,omitempty"`
	Indestructible bool        `json:"indestructible,omitempty"`

	Speed         float64 `json:"speed,omitempty"`
	PowerDemand   float64 `json:"power_demand,omitempty"`
	PowerOffer    float64 `json:"power_offer,omitempty"`
	Capacity      float64 `json:"capacity,omitempty"`
	Priority      int     `json:"priority,omitempty"`
	DonorPriority int     `json:"donor_priority,omitempty"`
	InventorySize int     `json:"inventory_size,omitempty"`
	FuelItem      string  `json:"fuel_item,omitempty"`
	FuelSeconds   float64 `json:"fuel_seconds,omitempty"`
	FluidItem     string  `json:"fluid_item,omitempty"`
	FluidRate     int     `json:"fluid_rate,omitempty"`
	FluidCapacity int     `json:"fluid_capacity,omitempty"`
	Filter        string  `json:"filter,omitempty"`
}

type DockDef struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Dir    string `json:"dir"`
	Type   string `json:"type"`
	Filter string `json:"filter,omitempty"`
}

// Load reads terrain.json, items.json, recipes.json and structures.json from configDir.
func Load(configDir string) (*Catalogs, error) {
	return load(os.DirFS(configDir))
}

// Default builds the catalogs compiled into the binary.
func Default() (*Catalogs, error) {
	sub, err := fs.Sub(defaultFS, "defaults")
	if err != nil {
		return nil, err
	}
	return load(sub)
}

// MustDefault is Default for program start-up and tests; content errors are programmer errors.
func MustDefault() *Catalogs {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

func load(fsys fs.FS) (*Catalogs, error) {
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	var c Catalogs
	if err := loadTerrain(fsys, v, &c.Terrain); err != nil {
		return nil, err
	}
	if err := loadItems(fsys, v, &c.Items); err != nil {
		return nil, err
	}
	if err := loadRecipes(fsys, v, &c.Items, &c.Recipes); err != nil {
		return nil, err
	}
	if err := loadStructures(fsys, v, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type validator struct {
	schemas map[string]*jsonschema.Schema
}

func newValidator() (*validator, error) {
	names := []string{"terrain", "items", "recipes", "structures"}
	comp := jsonschema.NewCompiler()
	for _, n := range names {
		raw, err := schemaFS.ReadFile("schemas/" + n + ".schema.json")
		if err != nil {
			return nil, err
		}
		if err := comp.AddResource(n+".schema.json", bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", n, err)
		}
	}
	v := &validator{schemas: map[string]*jsonschema.Schema{}}
	for _, n := range names {
		s, err := comp.Compile(n + ".schema.json")
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", n, err)
		}
		v.schemas[n] = s
	}
	return v, nil
}

// decode validates raw against the named schema before unmarshalling into out.
func (v *validator) decode(name string, raw []byte, out any) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%s.json: %w", name, err)
	}
	if err := v.schemas[name].Validate(doc); err != nil {
		return fmt.Errorf("%s.json: %w", name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s.json: %w", name, err)
	}
	return nil
}

func loadTerrain(fsys fs.FS, v *validator, out *TerrainCatalog) error {
	raw, err := fs.ReadFile(fsys, "terrain.json")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	var defs []TerrainDef
	if err := v.decode("terrain", raw, &defs); err != nil {
		return err
	}
	// File order is the palette: ids are persisted in tile cells.
	if defs[0].ID != "EMPTY" {
		return fmt.Errorf("terrain.json: EMPTY must be the first entry, got %q", defs[0].ID)
	}
	out.Index = make(map[string]tile.TerrainID, len(defs))
	for i, d := range defs {
		if _, dup := out.Index[d.ID]; dup {
			return fmt.Errorf("terrain.json: duplicate id %q", d.ID)
		}
		out.Index[d.ID] = tile.TerrainID(i)
		out.Palette = append(out.Palette, d.ID)
	}
	out.Defs = defs
	return nil
}

func (c *TerrainCatalog) Def(id tile.TerrainID) (TerrainDef, bool) {
	if int(id) >= len(c.Defs) {
		return TerrainDef{}, false
	}
	return c.Defs[id], true
}

func loadItems(fsys fs.FS, v *validator, out *ItemCatalog) error {
	raw, err := fs.ReadFile(fsys, "items.json")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	var defs []ItemDef
	if err := v.decode("items", raw, &defs); err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, d := range defs {
		if seen[d.ID] {
			return fmt.Errorf("items.json: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	out.Defs = defs
	out.Index = make(map[string]ItemID, len(defs))
	for i, d := range defs {
		out.Index[d.ID] = ItemID(i)
		out.Palette = append(out.Palette, d.ID)
	}
	return nil
}

func (c *ItemCatalog) Name(id ItemID) string {
	if int(id) >= len(c.Palette) {
		return ""
	}
	return c.Palette[id]
}

func (c *ItemCatalog) Category(id ItemID) string {
	if int(id) >= len(c.Defs) {
		return ""
	}
	return c.Defs[id].Category
}

func (c *ItemCatalog) IsFluid(id ItemID) bool {
	return int(id) < len(c.Defs) && c.Defs[id].Fluid
}

func (c *ItemCatalog) hasCategory(cat string) bool {
	for _, d := range c.Defs {
		if d.Category == cat {
			return true
		}
	}
	return false
}

func (c *ItemCatalog) stacks(where string, in []ItemCount) ([]Stack, error) {
	out := make([]Stack, 0, len(in))
	for _, ic := range in {
		id, ok := c.Index[ic.Item]
		if !ok {
			return nil, fmt.Errorf("%s: unknown item %q", where, ic.Item)
		}
		out = append(out, Stack{Item: id, Count: ic.Count})
	}
	return out, nil
}

func loadRecipes(fsys fs.FS, v *validator, items *ItemCatalog, out *RecipeCatalog) error {
	raw, err := fs.ReadFile(fsys, "recipes.json")
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	var defs []RecipeDef
	if err := v.decode("recipes", raw, &defs); err != nil {
		return err
	}
	out.ByID = map[string]*Recipe{}
	for _, d := range defs {
		if _, dup := out.ByID[d.RecipeID]; dup {
			return fmt.Errorf("recipes.json: duplicate recipe_id %q", d.RecipeID)
		}
		where := "recipes.json " + d.RecipeID
		in, err := items.stacks(where, d.Inputs)
		if err != nil {
			return err
		}
		outStacks, err := items.stacks(where, d.Outputs)
		if err != nil {
			return err
		}
		out.ByID[d.RecipeID] = &Recipe{ID: d.RecipeID, Inputs: in, Outputs: outStacks, WorkSeconds: d.WorkSeconds}
	}
	return nil
}

func loadStructures(fsys fs.FS, v *validator, c *Catalogs) error {
	raw, err := fs.ReadFile(fsys, "structures.json")
	if err != nil {
		return err
	}
	out := &c.Structures
	out.Digest = sha256Hex(raw)
	var defs []StructureDef
	if err := v.decode("structures", raw, &defs); err != nil {
		return err
	}
	out.ByID = map[string]*Schema{}
	for _, d := range defs {
		if _, dup := out.ByID[d.ID]; dup {
			return fmt.Errorf("structures.json: duplicate id %q", d.ID)
		}
		s, err := newSchema(d, c)
		if err != nil {
			return fmt.Errorf("structures.json %s: %w", d.ID, err)
		}
		out.ByID[d.ID] = s
	}
	out.Palette = make([]string, 0, len(out.ByID))
	for id := range out.ByID {
		out.Palette = append(out.Palette, id)
	}
	sort.Strings(out.Palette)
	out.ByIndex = make([]*Schema, len(out.Palette))
	for i, id := range out.Palette {
		s := out.ByID[id]
		s.Index = uint16(i)
		out.ByIndex[i] = s
	}
	return nil
}

// Schema returns the structure schema with the given id.
func (c *Catalogs) Schema(id string) (*Schema, bool) {
	s, ok := c.Structures.ByID[id]
	return s, ok
}

// ItemFilter parses an item id or an item category.
func (c *Catalogs) ItemFilter(s string) (Filter, error) {
	if s == "" {
		return Filter{Item: NoItem}, nil
	}
	if id, ok := c.Items.Index[s]; ok {
		return Filter{Set: true, Item: id}, nil
	}
	if c.Items.hasCategory(s) {
		return Filter{Set: true, Item: NoItem, Category: s}, nil
	}
	return Filter{}, fmt.Errorf("filter %q matches no item or category", s)
}
