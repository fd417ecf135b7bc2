package world

import "testing"

func TestDeterminism_SameEditsSameDigest(t *testing.T) {
	w1 := newTestWorld(t, nil)
	w2 := newTestWorld(t, nil)
	buildFactory(t, w1)
	buildFactory(t, w2)

	for i := 0; i < 80; i++ {
		if i == 40 {
			for _, w := range []*World{w1, w2} {
				if _, ok := w.Layer(0).RemoveStructure(11, 11); !ok {
					t.Fatalf("remove cable failed")
				}
				mustPlace(t, w.Layer(0), "CONVEYOR", 2, 20, East)
			}
		}
		s1 := w1.Step(0.05, 1)
		s2 := w2.Step(0.05, 1)
		if s1.ItemsInTransit != s2.ItemsInTransit || s1.PowerDelivered != s2.PowerDelivered || s1.Networks != s2.Networks {
			t.Fatalf("tick %d: stats diverged: %+v vs %+v", i, s1, s2)
		}
		if d1, d2 := w1.Digest(), w2.Digest(); d1 != d2 {
			t.Fatalf("tick %d: digest mismatch %s vs %s", i, d1, d2)
		}
	}
}

func TestDigestChangesWithState(t *testing.T) {
	w := newTestWorld(t, nil)
	before := w.Digest()
	mustPlace(t, w.Layer(0), "CHEST", 3, 3, North)
	after := w.Digest()
	if before == after {
		t.Fatalf("placing a structure did not change the digest")
	}
	w.Step(0.05, 0)
	if w.Digest() == after {
		t.Fatalf("advancing the tick did not change the digest")
	}
}
