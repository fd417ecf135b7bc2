package world

import (
	"testing"

	"tilefactory.io/internal/sim/world/kernel/model"
	"tilefactory.io/internal/sim/world/tile"
)

func TestOutOfRangeQueriesReturnSentinels(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	for _, p := range [][2]int{{-1, 0}, {0, -1}, {64, 0}, {0, 64}} {
		if l.Tile(p[0], p[1]) != 0 || l.Meta(p[0], p[1]) != 0 {
			t.Fatalf("tile at %v not empty", p)
		}
		if l.StructureAt(p[0], p[1]) != nil || l.CableAt(p[0], p[1]) != nil {
			t.Fatalf("structure at %v", p)
		}
	}
	if l.SetTile(-1, 0, 1) {
		t.Fatalf("SetTile accepted an out-of-range cell")
	}
	if w.Layer(1) != nil || w.Layer(-1) != nil {
		t.Fatalf("missing layers resolved")
	}
	grass := w.cats.Terrain.Index["GRASS"]
	if got := l.Tile(40, 40); got != grass {
		t.Fatalf("untouched tile=%d want default %d", got, grass)
	}
}

func TestSetTileMarksChunkAndNeighboursDirty(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	stone := w.cats.Terrain.Index["STONE"]
	if !l.SetTile(20, 20, stone) {
		t.Fatalf("SetTile failed")
	}
	if l.Tile(20, 20) != stone {
		t.Fatalf("tile not written")
	}
	if !l.DirtySinceLastFrame().Empty() {
		t.Fatalf("edit visible before the tick reconciled it")
	}
	w.Step(1, 1)

	d := l.DirtySinceLastFrame()
	if !d.Kinds.Has(model.DirtyTerrain) {
		t.Fatalf("dirty kinds=%b", d.Kinds)
	}
	// Chunk (1,1) plus its four neighbours.
	for _, p := range [][2]int{{20, 20}, {20, 5}, {5, 20}, {40, 20}, {20, 40}} {
		if !d.Contains(p[0], p[1]) {
			t.Fatalf("dirty bounds %+v miss %v", d, p)
		}
	}
	if len(l.DirtyChunks()) != 5 {
		t.Fatalf("dirty chunks=%v", l.DirtyChunks())
	}
	f := w.Frame()
	if f.Tick != 0 || len(f.Layers) != 1 || len(f.Layers[0].Chunks) != 1 {
		t.Fatalf("frame=%+v", f)
	}
	if cf := f.Layers[0].Chunks[0]; cf.CX != 1 || cf.CY != 1 || tile.Cell(cf.Tiles[4*16+4]).Terrain() != stone {
		t.Fatalf("frame chunk=%d,%d", cf.CX, cf.CY)
	}

	w.Step(1, 1)
	if !l.DirtySinceLastFrame().Empty() {
		t.Fatalf("dirty bounds not cleared")
	}
}

func TestSetTileVariationIsSeeded(t *testing.T) {
	mut := func(c *WorldConfig) {
		c.TileSeed = 42
		c.AltTexturePermille = 500
		c.RotationPermille = 500
	}
	a, b := newTestWorld(t, mut), newTestWorld(t, mut)
	sand := a.cats.Terrain.Index["SAND"]
	varied := false
	for i := 0; i < 32; i++ {
		a.Layer(0).SetTile(i, 3, sand)
		b.Layer(0).SetTile(i, 3, sand)
		if a.Layer(0).Meta(i, 3) != b.Layer(0).Meta(i, 3) {
			t.Fatalf("cell %d differs between equally seeded worlds", i)
		}
		if a.Layer(0).Meta(i, 3)&(tile.FlagAltTexture|tile.FlagRot0|tile.FlagRot1) != 0 {
			varied = true
		}
	}
	if !varied {
		t.Fatalf("no variation rolled")
	}
}

func TestPlacementSetsAndRemovalClearsCollision(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	mustPlace(t, l, "FURNACE", 4, 4, North)

	for _, p := range [][2]int{{4, 4}, {5, 4}, {4, 5}, {5, 5}} {
		if l.Flags(p[0], p[1])&CollStructure == 0 {
			t.Fatalf("cell %v not flagged", p)
		}
		if s := l.StructureAt(p[0], p[1]); s == nil || s.X != 4 || s.Y != 4 {
			t.Fatalf("cell %v does not resolve to the furnace", p)
		}
	}
	if l.Flags(3, 5)&CollItemDock == 0 || l.Flags(6, 4)&CollItemDock == 0 {
		t.Fatalf("dock partner cells not flagged")
	}
	if _, ok := l.PlaceStructure("CHEST", 5, 5, North); ok {
		t.Fatalf("placed over the furnace")
	}
	if _, ok := l.PlaceStructure("CHEST", 63, 64, North); ok {
		t.Fatalf("placed out of range")
	}
	if _, ok := l.PlaceStructure("FURNACE", 63, 63, North); ok {
		t.Fatalf("placed a footprint hanging off the grid")
	}

	if _, ok := l.RemoveStructure(5, 5); !ok {
		t.Fatalf("remove failed")
	}
	for _, p := range [][2]int{{4, 4}, {5, 4}, {4, 5}, {5, 5}, {3, 5}, {6, 4}} {
		if f := l.Flags(p[0], p[1]); f != 0 {
			t.Fatalf("cell %v flags=%b after removal", p, f)
		}
	}
	if _, ok := l.RemoveStructure(5, 5); ok {
		t.Fatalf("removed twice")
	}
}

func TestSharedDockCellIsReferenceCounted(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	// Both chests point a dock at (3,2).
	mustPlace(t, l, "CHEST", 2, 2, North)
	mustPlace(t, l, "CHEST", 4, 2, North)
	chest := l.StructureAt(2, 2).Schema

	if l.CanPlace(chest, 3, 2, North, true) {
		t.Fatalf("strict placement allowed on a dock cell")
	}
	if !l.CanPlace(chest, 3, 2, North, false) {
		t.Fatalf("placement refused on a free cell")
	}

	l.RemoveStructure(2, 2)
	if l.Flags(3, 2)&CollItemDock == 0 {
		t.Fatalf("dock flag cleared while another dock still targets the cell")
	}
	l.RemoveStructure(4, 2)
	if l.Flags(3, 2) != 0 {
		t.Fatalf("dock flag left behind")
	}
}

func TestStrictDocksRefusesDockCells(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) { c.StrictDocks = true })
	l := w.Layer(0)
	mustPlace(t, l, "CHEST", 2, 2, North)
	mustPlace(t, l, "CHEST", 4, 2, North)

	if _, ok := l.PlaceStructure("CHEST", 3, 2, North); ok {
		t.Fatalf("placed over a dock cell with strict docks")
	}
	if _, ok := l.PlaceStructure("CHEST", 3, 6, North); !ok {
		t.Fatalf("placement on a free cell refused")
	}
}

func TestStrictDocksStillLoadsLenientLayouts(t *testing.T) {
	lenient := newTestWorld(t, nil)
	ll := lenient.Layer(0)
	mustPlace(t, ll, "CHEST", 2, 2, North)
	mustPlace(t, ll, "CHEST", 4, 2, North)
	mustPlace(t, ll, "CHEST", 3, 2, North)

	strict := newTestWorld(t, func(c *WorldConfig) { c.StrictDocks = true })
	if err := strict.ImportSnapshot(lenient.ExportSnapshot()); err != nil {
		t.Fatalf("import: %v", err)
	}
	if strict.Layer(0).StructureAt(3, 2) == nil {
		t.Fatalf("saved structure on a dock cell was dropped on load")
	}
}

func TestCablesLiveBesideStructures(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	mustPlace(t, l, "CABLE", 8, 8, North)
	if _, ok := l.PlaceStructure("CABLE", 8, 8, North); ok {
		t.Fatalf("two cables on one cell")
	}
	if _, ok := l.PlaceStructure("CHEST", 8, 8, North); ok {
		t.Fatalf("structure placed over a cable")
	}
	if l.CableAt(8, 8) == nil || l.StructureAt(8, 8) != nil {
		t.Fatalf("cable lookup mixed with structures")
	}
}

func TestMultiTileLookupAcrossChunkEdge(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	// Anchored in chunk (0,0), covering cells of chunks (1,0), (0,1) and (1,1).
	s := mustPlace(t, l, "ASSEMBLER", 15, 15, North)
	for _, p := range [][2]int{{15, 15}, {16, 15}, {15, 17}, {17, 17}} {
		if l.StructureAt(p[0], p[1]) != s {
			t.Fatalf("cell %v does not resolve to the assembler", p)
		}
	}
	if l.StructureAt(18, 18) != nil {
		t.Fatalf("cell past the footprint resolved")
	}
}

func TestRotateMovesDocks(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	s := mustPlace(t, l, "FURNACE", 4, 4, North)
	if !l.Rotate(4, 4, East) {
		t.Fatalf("rotate failed")
	}
	if s.Up != East {
		t.Fatalf("up=%s", s.Up)
	}
	if l.Flags(3, 5)&CollItemDock != 0 || l.Flags(6, 4)&CollItemDock != 0 {
		t.Fatalf("old dock cells still flagged")
	}
	if l.Flags(4, 3)&CollItemDock == 0 || l.Flags(5, 6)&CollItemDock == 0 {
		t.Fatalf("rotated dock cells not flagged")
	}
	ore := itemID(t, w, "IRON_ORE")
	if !s.b.CanAccept(ore, 4, 3, South) {
		t.Fatalf("rotated input dock refused ore from the north")
	}

	mustPlace(t, l, "BRIDGE", 10, 10, North)
	if l.Rotate(10, 10, East) {
		t.Fatalf("rotated a fixed schema")
	}
}

func TestRemovalRefundsItemsAndReturnsCost(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	chest := mustPlace(t, l, "CHEST", 2, 8, North)
	mustPlace(t, l, "CONVEYOR", 3, 8, East)
	ingot := itemID(t, w, "IRON_INGOT")
	chest.Inv.Add(ingot, 1)

	w.Step(1, 1)
	if chest.Inv.Total() != 0 || len(beltItems(l.StructureAt(3, 8))) != 1 {
		t.Fatalf("chest did not hand its item to the belt")
	}
	l.AddItemEntity(3, 8, ingot, w.layout.Edge(East), NoSource)

	res, ok := l.RemoveStructure(3, 8)
	if !ok {
		t.Fatalf("remove failed")
	}
	if res.Refunded != 1 || res.Dropped != 1 {
		t.Fatalf("refunded=%d dropped=%d", res.Refunded, res.Dropped)
	}
	if chest.Inv.Count(ingot) != 1 {
		t.Fatalf("item not returned to the chest")
	}
	if len(res.BuildCost) != 1 || res.BuildCost[0].Item != ingot || res.BuildCost[0].Count != 1 {
		t.Fatalf("build cost=%v", res.BuildCost)
	}
}

func TestIndestructibleRefusesRemoval(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	mustPlace(t, l, "HQ", 20, 20, North)
	if _, ok := l.RemoveStructure(21, 21); ok {
		t.Fatalf("HQ removed")
	}
	if l.StructureAt(22, 22) == nil {
		t.Fatalf("HQ gone")
	}
}

func TestHooksHearPlacementAndRemoval(t *testing.T) {
	var got []string
	w := newTestWorld(t, nil)
	w.hooks = Hooks{Sound: func(name string, layer, x, y int) {
		got = append(got, name)
	}}
	l := w.Layer(0)
	mustPlace(t, l, "CHEST", 1, 1, North)
	l.RemoveStructure(1, 1)
	if len(got) != 2 || got[0] != "place" || got[1] != "remove" {
		t.Fatalf("sounds=%v", got)
	}
}
