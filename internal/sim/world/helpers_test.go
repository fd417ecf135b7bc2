package world

import (
	"testing"

	"tilefactory.io/internal/sim/catalogs"
)

func newTestWorld(t *testing.T, mut func(*WorldConfig)) *World {
	t.Helper()
	cats, err := catalogs.Default()
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	cfg := WorldConfig{
		ID:         "test",
		Layers:     1,
		Width:      64,
		Height:     64,
		ChunkSize:  16,
		TickRateHz: 20,
		GameSpeed:  1,
	}
	if mut != nil {
		mut(&cfg)
	}
	w, err := New(cfg, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func mustPlace(t *testing.T, l *Layer, id string, x, y int, up Dir) *Structure {
	t.Helper()
	s, ok := l.PlaceStructure(id, x, y, up)
	if !ok {
		t.Fatalf("place %s at (%d,%d) failed", id, x, y)
	}
	return s
}

func itemID(t *testing.T, w *World, name string) ItemID {
	t.Helper()
	id, ok := w.cats.Items.Index[name]
	if !ok {
		t.Fatalf("unknown item %s", name)
	}
	return id
}

func beltItems(s *Structure) []*Item {
	if s == nil || s.b == nil {
		return nil
	}
	h, ok := s.b.(itemHolder)
	if !ok {
		return nil
	}
	return h.items()
}

// countItems totals items riding belts and routers plus those held in inventories.
func countItems(w *World, item ItemID) int {
	n := 0
	for _, l := range w.layers {
		for _, s := range l.Structures() {
			for _, it := range beltItems(s) {
				if it.Item == item {
					n++
				}
			}
			if s.Inv != nil {
				n += s.Inv.Count(item)
			}
			if s.Out != nil {
				n += s.Out.Count(item)
			}
		}
	}
	return n
}

func steps(w *World, n int) {
	for i := 0; i < n; i++ {
		w.Step(1, 1)
	}
}
