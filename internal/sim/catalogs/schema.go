package catalogs

import (
	"fmt"

	"tilefactory.io/internal/sim/world/kernel/model"
)

// Schema is the immutable type descriptor shared by every placed instance
// of a structure.
type Schema struct {
	Def   StructureDef
	Index uint16
	Kind  model.Kind

	Docks     []Dock
	Recipes   []*Recipe
	BuildCost []Stack
	Fuel      ItemID
	Fluid     ItemID
	Filter    Filter
}

// Dock is a connection point inside the unrotated footprint. Dir faces out
// of the structure; the dock's partner cell is the neighbour in that direction.
type Dock struct {
	X, Y   int
	Dir    model.Dir
	Type   model.DockType
	Filter Filter
}

// Filter restricts a dock or sorter to an item or an item category.
// An unset filter matches everything.
type Filter struct {
	Set      bool
	Item     ItemID
	Category string
}

func (f Filter) Matches(item ItemID, items *ItemCatalog) bool {
	if !f.Set {
		return true
	}
	if f.Item != NoItem {
		return f.Item == item
	}
	return items.Category(item) == f.Category
}

func (s *Schema) ID() string { return s.Def.ID }

func (s *Schema) Width() int  { return s.Def.Width }
func (s *Schema) Height() int { return s.Def.Height }

// HasPowerDock reports whether instances join a power network.
func (s *Schema) HasPowerDock() bool {
	if s.Kind.IsCable() || s.Kind == model.KindPowerNode {
		return true
	}
	for _, d := range s.Docks {
		if d.Type.IsPower() {
			return true
		}
	}
	return false
}

func parseDir(s string) (model.Dir, error) {
	switch s {
	case "N":
		return model.North, nil
	case "E":
		return model.East, nil
	case "S":
		return model.South, nil
	case "W":
		return model.West, nil
	}
	return model.DirNone, fmt.Errorf("bad dir %q", s)
}

func newSchema(d StructureDef, c *Catalogs) (*Schema, error) {
	kind, err := model.ParseKind(d.Kind)
	if err != nil {
		return nil, err
	}
	s := &Schema{Def: d, Kind: kind, Fuel: NoItem, Fluid: NoItem}

	if kind.IsBelt() || kind == model.KindRouter || kind == model.KindSorter || kind.IsCable() {
		if d.Width != 1 || d.Height != 1 {
			return nil, fmt.Errorf("%s must be 1x1", kind)
		}
	}
	if (kind.IsBelt() || kind == model.KindRouter || kind == model.KindSorter) && d.Speed <= 0 {
		return nil, fmt.Errorf("%s needs speed > 0", kind)
	}

	for i, dd := range d.Docks {
		if dd.X < 0 || dd.Y < 0 || dd.X >= d.Width || dd.Y >= d.Height {
			return nil, fmt.Errorf("dock %d at (%d,%d) outside %dx%d footprint", i, dd.X, dd.Y, d.Width, d.Height)
		}
		dir, err := parseDir(dd.Dir)
		if err != nil {
			return nil, fmt.Errorf("dock %d: %w", i, err)
		}
		if !onEdge(dd.X, dd.Y, dir, d.Width, d.Height) {
			return nil, fmt.Errorf("dock %d at (%d,%d) faces %s into its own footprint", i, dd.X, dd.Y, dd.Dir)
		}
		typ, err := model.ParseDockType(dd.Type)
		if err != nil {
			return nil, fmt.Errorf("dock %d: %w", i, err)
		}
		f, err := c.ItemFilter(dd.Filter)
		if err != nil {
			return nil, fmt.Errorf("dock %d: %w", i, err)
		}
		s.Docks = append(s.Docks, Dock{X: dd.X, Y: dd.Y, Dir: dir, Type: typ, Filter: f})
	}

	// Power only flows through docks; without one the structure never joins a network.
	if (d.PowerDemand > 0 || d.PowerOffer > 0 || kind == model.KindGenerator || kind == model.KindBattery) && !s.HasPowerDock() {
		return nil, fmt.Errorf("%s draws or offers power but has no power dock", kind)
	}

	for _, rid := range d.Recipes {
		r, ok := c.Recipes.ByID[rid]
		if !ok {
			return nil, fmt.Errorf("unknown recipe %q", rid)
		}
		s.Recipes = append(s.Recipes, r)
	}
	if kind == model.KindProducer && len(s.Recipes) == 0 {
		return nil, fmt.Errorf("producer without recipes")
	}

	if s.BuildCost, err = c.Items.stacks("build_cost", d.BuildCost); err != nil {
		return nil, err
	}
	if d.FuelItem != "" {
		id, ok := c.Items.Index[d.FuelItem]
		if !ok {
			return nil, fmt.Errorf("unknown fuel item %q", d.FuelItem)
		}
		if d.FuelSeconds <= 0 {
			return nil, fmt.Errorf("fuel_item needs fuel_seconds > 0")
		}
		s.Fuel = id
	}
	if d.FluidItem != "" {
		id, ok := c.Items.Index[d.FluidItem]
		if !ok || !c.Items.IsFluid(id) {
			return nil, fmt.Errorf("fluid_item %q is not a fluid", d.FluidItem)
		}
		s.Fluid = id
	}
	if s.Filter, err = c.ItemFilter(d.Filter); err != nil {
		return nil, err
	}
	switch kind {
	case model.KindBattery:
		if d.Capacity <= 0 {
			return nil, fmt.Errorf("battery needs capacity > 0")
		}
	case model.KindTank:
		if d.FluidCapacity <= 0 {
			return nil, fmt.Errorf("tank needs fluid_capacity > 0")
		}
	case model.KindPump:
		if s.Fluid == NoItem || d.FluidRate <= 0 {
			return nil, fmt.Errorf("pump needs fluid_item and fluid_rate")
		}
	}
	return s, nil
}

func onEdge(x, y int, dir model.Dir, w, h int) bool {
	nx, ny := x+dir.DX(), y+dir.DY()
	return nx < 0 || ny < 0 || nx >= w || ny >= h
}
