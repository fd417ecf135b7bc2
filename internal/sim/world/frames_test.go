package world

import "testing"

func TestFramesFromReturnsMissedTicksInOrder(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	stone := w.cats.Terrain.Index["STONE"]

	if frames, ok := w.FramesFrom(0); !ok || len(frames) != 0 {
		t.Fatalf("fresh world: frames=%d ok=%v", len(frames), ok)
	}
	l.SetTile(3, 3, stone)
	steps(w, 3)

	frames, ok := w.FramesFrom(1)
	if !ok || len(frames) != 2 || frames[0].Tick != 1 || frames[1].Tick != 2 {
		t.Fatalf("frames from 1: ok=%v %d", ok, len(frames))
	}
	all, _ := w.FramesFrom(0)
	if len(all) != 3 || all[0].Layers[0].Dirty.Empty() {
		t.Fatalf("edit missing from the first frame")
	}
	if frames, ok := w.FramesFrom(w.Tick()); !ok || len(frames) != 0 {
		t.Fatalf("caught-up reader: frames=%d ok=%v", len(frames), ok)
	}
	if _, ok := w.FramesFrom(w.Tick() + 1); ok {
		t.Fatalf("reader ahead of the world was not sent to resync")
	}
}

func TestFramesFromForgetsOldTicks(t *testing.T) {
	w := newTestWorld(t, nil)
	steps(w, frameHistory+5)

	if _, ok := w.FramesFrom(0); ok {
		t.Fatalf("tick 0 still served after %d frames", frameHistory+5)
	}
	frames, ok := w.FramesFrom(5)
	if !ok || len(frames) != frameHistory || frames[0].Tick != 5 {
		t.Fatalf("oldest retained: ok=%v frames=%d", ok, len(frames))
	}

	snap := w.ExportSnapshot()
	w2 := newTestWorld(t, nil)
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, ok := w2.FramesFrom(snap.Header.Tick - 1); ok {
		t.Fatalf("frames before the imported tick were served")
	}
	if frames, ok := w2.FramesFrom(snap.Header.Tick); !ok || len(frames) != 0 {
		t.Fatalf("imported world: frames=%d ok=%v", len(frames), ok)
	}
}
