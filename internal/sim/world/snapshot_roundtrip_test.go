package world

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"tilefactory.io/internal/persistence/snapshot"
)

// buildFactory lays out a small base touching every behaviour that carries state.
func buildFactory(t *testing.T, w *World) {
	t.Helper()
	l := w.Layer(0)
	ore := itemID(t, w, "IRON_ORE")

	furnace := mustPlace(t, l, "FURNACE", 4, 4, North)
	furnace.Inv.Add(ore, 2)
	mustPlace(t, l, "CHEST", 6, 4, North)
	for x := 1; x <= 3; x++ {
		mustPlace(t, l, "CONVEYOR", x, 5, East)
		l.AddItemEntity(x, 5, ore, -1, NoSource)
	}

	mustPlace(t, l, "SOLAR_PANEL", 10, 10, North)
	for x := 10; x <= 12; x++ {
		mustPlace(t, l, "CABLE", x, 11, North)
	}
	mustPlace(t, l, "LAMP", 11, 10, North)
	smelter := mustPlace(t, l, "SMELTER", 12, 12, North)
	smelter.Inv.Add(ore, 4)

	mustPlace(t, l, "BATTERY", 20, 20, North)
	mustPlace(t, l, "SOLAR_PANEL", 20, 19, North)

	router := mustPlace(t, l, "ROUTER", 30, 30, North)
	mustPlace(t, l, "CONVEYOR", 30, 29, North)
	router.b.AcceptItem(ore, NoSource, North)

	mustPlace(t, l, "TANK", 10, 30, North)
	mustPlace(t, l, "PUMP", 9, 31, East)
	mustPlace(t, l, "CABLE", 8, 31, North)
	mustPlace(t, l, "SOLAR_PANEL", 8, 30, North)

	gen := mustPlace(t, l, "COAL_GENERATOR", 40, 10, North)
	gen.Inv.Add(itemID(t, w, "COAL"), 3)

	l.SetTile(1, 1, w.cats.Terrain.Index["STONE"])
}

func roundTrip(t *testing.T, snap snapshot.SnapshotV1, opts ...Option) *World {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snap.zst")
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	w2 := newTestWorld(t, func(c *WorldConfig) { c.Width, c.Height = 32, 32 })
	for _, o := range opts {
		o(w2)
	}
	if err := w2.ImportSnapshot(got); err != nil {
		t.Fatalf("import: %v", err)
	}
	return w2
}

func TestSnapshotExportImport_RoundTripDigest(t *testing.T) {
	w1 := newTestWorld(t, nil)
	buildFactory(t, w1)
	steps(w1, 7)

	snap := w1.ExportSnapshot()
	w2 := roundTrip(t, snap)

	if w2.Layer(0).Width != 64 || w2.Tick() != w1.Tick() {
		t.Fatalf("geometry not restored: width=%d tick=%d", w2.Layer(0).Width, w2.Tick())
	}
	if d1, d2 := w1.Digest(), w2.Digest(); d1 != d2 {
		t.Fatalf("digest mismatch after import:\n%s\n%s", d1, d2)
	}
	for i := 0; i < 30; i++ {
		w1.Step(1, 1)
		w2.Step(1, 1)
		if d1, d2 := w1.Digest(), w2.Digest(); d1 != d2 {
			t.Fatalf("tick %d: digests diverged", w1.Tick())
		}
	}
	if len(w1.Networks()) != len(w2.Networks()) {
		t.Fatalf("networks %d vs %d", len(w1.Networks()), len(w2.Networks()))
	}
}

func TestSnapshotExportAssignsWorldID(t *testing.T) {
	w := newTestWorld(t, func(c *WorldConfig) { c.ID = "" })
	snap := w.ExportSnapshot()
	if snap.Header.WorldID == "" || w.ID() != snap.Header.WorldID {
		t.Fatalf("world id=%q header=%q", w.ID(), snap.Header.WorldID)
	}
	if again := w.ExportSnapshot(); again.Header.WorldID != snap.Header.WorldID {
		t.Fatalf("world id changed between exports")
	}
}

func TestImportSkipsBadEntriesAndLogs(t *testing.T) {
	w1 := newTestWorld(t, nil)
	buildFactory(t, w1)
	steps(w1, 3)
	snap := w1.ExportSnapshot()

	cv := &snap.Layers[0].Chunks[0]
	cv.Structures = append(cv.Structures,
		snapshot.StructureV1{Type: "TELEPORTER", X: 50, Y: 50, Version: StructureVersion},
		snapshot.StructureV1{Type: "CHEST", X: 52, Y: 52, Version: StructureVersion + 1},
		snapshot.StructureV1{Type: "CHEST", X: 54, Y: 54, Version: StructureVersion, Rotation: 9},
	)
	// Point the parked item on the router's output belt at a structure that is not there.
	var belt *snapshot.StructureV1
	for ci := range snap.Layers[0].Chunks {
		for si, sv := range snap.Layers[0].Chunks[ci].Structures {
			if sv.X == 30 && sv.Y == 29 {
				belt = &snap.Layers[0].Chunks[ci].Structures[si]
			}
		}
	}
	if belt == nil || belt.Conveyor == nil || len(belt.Conveyor.Items) != 1 {
		t.Fatalf("router output belt not exported with its item")
	}
	belt.Conveyor.Items[0].Source = 63
	// Two more items in free slots with directions no belt can have.
	used := belt.Conveyor.Items[0].Slot
	belt.Conveyor.Items = append(belt.Conveyor.Items,
		snapshot.ItemV1{Item: "IRON_ORE", Slot: (used + 1) % 5, Dir: 7, Heading: int(DirNone)},
		snapshot.ItemV1{Item: "IRON_ORE", Slot: (used + 2) % 5, Dir: int(DirNone), Heading: 257},
	)
	// STONE renamed to something this build does not know.
	snap.TerrainPalette[w1.cats.Terrain.Index["STONE"]] = "LAVA"

	core, logs := observer.New(zap.WarnLevel)
	w2 := roundTrip(t, snap, WithLogger(zap.New(core)))

	for _, msg := range []string{
		"unknown structure type in snapshot, skipped",
		"unsupported structure version in snapshot, skipped",
		"bad rotation in snapshot, skipped",
		"unknown terrain in snapshot, using default",
	} {
		if logs.FilterMessage(msg).Len() != 1 {
			t.Fatalf("expected one %q log, got %d", msg, logs.FilterMessage(msg).Len())
		}
	}
	l := w2.Layer(0)
	for _, p := range [][2]int{{50, 50}, {52, 52}, {54, 54}} {
		if l.StructureAt(p[0], p[1]) != nil {
			t.Fatalf("bad entry at %v was loaded", p)
		}
	}
	if l.StructureAt(4, 4) == nil || l.CableAt(10, 11) == nil {
		t.Fatalf("good entries were not loaded")
	}
	if got := l.Tile(1, 1); got != w2.cats.Terrain.Index["GRASS"] {
		t.Fatalf("unknown terrain mapped to %d", got)
	}
	if got := logs.FilterMessage("bad belt item direction in snapshot, skipped").Len(); got != 2 {
		t.Fatalf("bad direction logs=%d want 2", got)
	}
	items := beltItems(l.StructureAt(30, 29))
	if len(items) != 1 || items[0].Source != NoSource {
		t.Fatalf("stale source reference kept or bad items loaded: %d items", len(items))
	}
}

func TestImportRemapsTerrainByName(t *testing.T) {
	w1 := newTestWorld(t, nil)
	stone := w1.cats.Terrain.Index["STONE"]
	sand := w1.cats.Terrain.Index["SAND"]
	w1.Layer(0).SetTile(1, 1, stone)
	snap := w1.ExportSnapshot()
	// An older build that stored SAND where this one stores STONE.
	snap.TerrainPalette[stone] = "SAND"

	w2 := roundTrip(t, snap)
	if got := w2.Layer(0).Tile(1, 1); got != sand {
		t.Fatalf("tile=%d want sand %d", got, sand)
	}
}

func TestImportRejectsUnusableSnapshots(t *testing.T) {
	w := newTestWorld(t, nil)
	snap := w.ExportSnapshot()

	bad := snap
	bad.Header.Version = snapshot.Version + 1
	if err := w.ImportSnapshot(bad); err == nil {
		t.Fatalf("newer version accepted")
	}
	bad = snap
	bad.Layers = nil
	if err := w.ImportSnapshot(bad); err == nil {
		t.Fatalf("snapshot without layers accepted")
	}
}
