package main

import (
	"os"
	"path/filepath"
	"testing"

	"tilefactory.io/internal/persistence/snapshot"
	"tilefactory.io/internal/sim/world"
)

func TestSummarizeSnapshotCountsContents(t *testing.T) {
	snap := snapshot.SnapshotV1{
		Header:    snapshot.Header{Version: snapshot.Version, WorldID: "w", Tick: 42},
		ChunkSize: 16,
		Layers: []snapshot.LayerV1{{
			Index: 0,
			Chunks: []snapshot.ChunkV1{
				{
					Structures: []snapshot.StructureV1{
						{Type: "CONVEYOR", Conveyor: &snapshot.ConveyorV1{Items: make([]snapshot.ItemV1, 2)}},
						{Type: "CONVEYOR", Conveyor: &snapshot.ConveyorV1{}},
						{Type: "ROUTER", Router: &snapshot.RouterV1{Item: "IRON_ORE"}},
					},
					Cables: make([]snapshot.StructureV1, 3),
				},
				{Structures: []snapshot.StructureV1{{Type: "CHEST"}}},
			},
		}},
		Networks: []snapshot.NetworkV1{{Offered: 10, Delivered: 5}, {Offered: 2, Delivered: 2}},
	}
	s := summarizeSnapshot(snap)
	if s.Tick != 42 || s.Layers != 1 || s.Chunks != 2 || s.Cables != 3 {
		t.Fatalf("summary=%+v", s)
	}
	if s.Structures["CONVEYOR"] != 2 || s.Structures["ROUTER"] != 1 || s.Structures["CHEST"] != 1 {
		t.Fatalf("structures=%v", s.Structures)
	}
	if s.ItemsInTransit != 3 {
		t.Fatalf("items in transit=%d want 3", s.ItemsInTransit)
	}
	if s.Networks != 2 || s.PowerOffered != 12 || s.PowerDelivered != 7 {
		t.Fatalf("power=%+v", s)
	}
}

func TestTickSummaryAverages(t *testing.T) {
	var sum tickSummary
	sum.add(world.TickStats{Tick: 20, Structures: 4, PowerOffered: 10, PowerDelivered: 5, DurationMicros: 80})
	sum.add(world.TickStats{Tick: 10, Structures: 9, ItemsInTransit: 3, DurationMicros: 30})
	if sum.Entries != 2 || sum.FirstTick != 10 || sum.LastTick != 20 {
		t.Fatalf("range=%+v", sum)
	}
	if sum.MaxStructures != 9 || sum.MaxItemsInTransit != 3 || sum.MaxStepMicros != 80 {
		t.Fatalf("maxima=%+v", sum)
	}
	// 0.5 for the loaded tick, 1 for the tick with nothing offered.
	if sum.AvgSatisfaction != 0.75 {
		t.Fatalf("avg satisfaction=%v want 0.75", sum.AvgSatisfaction)
	}
}

func TestLatestSnapshotPath(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"60.snap.zst", "1200.snap.zst", "junk.snap.zst"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got := latestSnapshotPath(dir); got != filepath.Join(dir, "1200.snap.zst") {
		t.Fatalf("latest=%q", got)
	}
}
