package world

import "testing"

func TestOpposingBeltsBlockWithoutLosingItems(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	a := mustPlace(t, l, "CONVEYOR", 1, 1, East)
	b := mustPlace(t, l, "CONVEYOR", 2, 1, West)
	ore := itemID(t, w, "IRON_ORE")
	if !l.AddItemEntity(1, 1, ore, -1, NoSource) {
		t.Fatalf("add item failed")
	}

	for i := 0; i < 20; i++ {
		w.Step(1, 1)
		if got := countItems(w, ore); got != 1 {
			t.Fatalf("tick %d: items=%d want 1", i, got)
		}
	}
	if len(beltItems(b)) != 0 {
		t.Fatalf("item crossed into the opposing belt")
	}
	items := beltItems(a)
	if len(items) != 1 {
		t.Fatalf("belt A items=%d", len(items))
	}
	if it := items[0]; it.Dir != DirNone || it.Slot != w.layout.Edge(East) {
		t.Fatalf("item not parked at the east edge: %+v", *it)
	}
}

func TestBeltLineDeliversIntoChest(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	var belts []*Structure
	for x := 1; x <= 5; x++ {
		belts = append(belts, mustPlace(t, l, "CONVEYOR", x, 3, East))
	}
	chest := mustPlace(t, l, "CHEST", 6, 3, North)
	ingot := itemID(t, w, "IRON_INGOT")
	for x := 1; x <= 5; x++ {
		if !l.AddItemEntity(x, 3, ingot, -1, NoSource) {
			t.Fatalf("add item at %d failed", x)
		}
	}

	for i := 0; i < 60; i++ {
		w.Step(1, 1)
		if got := countItems(w, ingot); got != 5 {
			t.Fatalf("tick %d: items=%d want 5", i, got)
		}
		for _, b := range belts {
			c := b.b.(*conveyor)
			for slot, it := range c.slots {
				if it != nil && it.Slot != slot {
					t.Fatalf("tick %d: item in slot %d claims slot %d", i, slot, it.Slot)
				}
			}
		}
	}
	if got := chest.Inv.Count(ingot); got != 5 {
		t.Fatalf("chest holds %d want 5", got)
	}
}

func TestBeltRejectsItemsFromOutputSide(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	s := mustPlace(t, l, "CONVEYOR", 4, 4, North)
	ore := itemID(t, w, "IRON_ORE")
	// Arriving from the north cell travels south, into the output side.
	if s.b.CanAccept(ore, 4, 3, South) {
		t.Fatalf("belt accepted from its output side")
	}
	if !s.b.CanAccept(ore, 4, 5, North) {
		t.Fatalf("belt refused from behind")
	}
	if !s.b.CanAccept(ore, 3, 4, East) {
		t.Fatalf("belt refused from the side")
	}
	if s.b.CanAccept(ore, 1, 1, East) {
		t.Fatalf("belt accepted from a non-adjacent cell")
	}
}

func parkAgainstFullChest(t *testing.T, sticky bool) (*World, *Structure, *Structure, ItemID) {
	t.Helper()
	w := newTestWorld(t, func(c *WorldConfig) { c.StickyNotify = sticky })
	l := w.Layer(0)
	belt := mustPlace(t, l, "CONVEYOR", 5, 5, East)
	chest := mustPlace(t, l, "CHEST", 6, 5, North)
	ingot := itemID(t, w, "IRON_INGOT")
	chest.Inv.Add(ingot, chest.Inv.Size)
	if !l.AddItemEntity(5, 5, ingot, -1, NoSource) {
		t.Fatalf("add item failed")
	}
	// Moves to the edge and parks; the next tick re-checks once and fails again.
	w.Step(1, 1)
	w.Step(1, 1)
	items := beltItems(belt)
	if len(items) != 1 || items[0].Dir != DirNone {
		t.Fatalf("expected a parked item, got %d items", len(items))
	}
	// Free room without telling the belt.
	chest.Inv.Take(ingot, 1)
	return w, belt, chest, ingot
}

func TestClearNotifyLeavesParkedItemUntilWoken(t *testing.T) {
	w, belt, chest, ingot := parkAgainstFullChest(t, false)
	steps(w, 3)
	if len(beltItems(belt)) != 1 {
		t.Fatalf("parked item moved without a notification")
	}
	w.Layer(0).NotifyAt(5, 5)
	w.Step(1, 1)
	if len(beltItems(belt)) != 0 || chest.Inv.Count(ingot) != chest.Inv.Size {
		t.Fatalf("item not delivered after notification")
	}
}

func TestStickyNotifyKeepsRechecking(t *testing.T) {
	w, belt, chest, ingot := parkAgainstFullChest(t, true)
	w.Step(1, 1)
	if len(beltItems(belt)) != 0 || chest.Inv.Count(ingot) != chest.Inv.Size {
		t.Fatalf("sticky belt did not retry the parked item")
	}
}

func TestChestWakesFeedingBeltWhenItEmits(t *testing.T) {
	w, belt, chest, ingot := parkAgainstFullChest(t, false)
	chest.Inv.Add(ingot, 1)
	l := w.Layer(0)
	// Far enough that the placement does not touch the feeding belt.
	out := mustPlace(t, l, "CONVEYOR", 7, 5, East)

	w.Step(1, 1)
	if len(beltItems(out)) != 1 {
		t.Fatalf("chest did not emit onto the output belt")
	}
	if len(beltItems(belt)) != 0 {
		t.Fatalf("feeding belt was not woken by the freed slot")
	}
	if got := countItems(w, ingot); got != chest.Inv.Size+1 {
		t.Fatalf("items=%d want %d", got, chest.Inv.Size+1)
	}
}

func TestPausedStepMovesNothing(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	s := mustPlace(t, l, "CONVEYOR", 2, 2, East)
	ore := itemID(t, w, "IRON_ORE")
	l.AddItemEntity(2, 2, ore, -1, NoSource)

	before := w.Tick()
	st := w.Step(1, 0)
	if w.Tick() != before+1 || st.Tick != before {
		t.Fatalf("tick did not advance: %d -> %d", before, w.Tick())
	}
	it := beltItems(s)[0]
	if it.Slot != 0 || it.Interp != 0 {
		t.Fatalf("item moved while paused: %+v", *it)
	}
	if w.Layer(0).DirtySinceLastFrame().Empty() {
		t.Fatalf("placement was not reconciled while paused")
	}
}

func TestRouterAlternatesOutputs(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	mustPlace(t, l, "ROUTER", 5, 5, North)
	north := mustPlace(t, l, "CONVEYOR", 5, 4, North)
	east := mustPlace(t, l, "CONVEYOR", 6, 5, East)
	ore := itemID(t, w, "IRON_ORE")
	r := l.StructureAt(5, 5).b.(*router)

	for i := 0; i < 2; i++ {
		if !r.AcceptItem(ore, NoSource, North) {
			t.Fatalf("router refused item %d", i)
		}
		// An item taken in this tick waits for the next item pass.
		steps(w, 2)
		if r.cur != nil {
			t.Fatalf("router kept item %d", i)
		}
	}
	if len(beltItems(north)) != 1 || len(beltItems(east)) != 1 {
		t.Fatalf("router outputs north=%d east=%d", len(beltItems(north)), len(beltItems(east)))
	}
}

func TestSorterForwardsMatchesAndSplitsRest(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	mustPlace(t, l, "SORTER", 5, 5, North)
	ahead := mustPlace(t, l, "CONVEYOR", 5, 4, North)
	left := mustPlace(t, l, "CONVEYOR", 4, 5, West)
	right := mustPlace(t, l, "CONVEYOR", 6, 5, East)
	sorter := l.StructureAt(5, 5).b.(*router)
	iron := itemID(t, w, "IRON_ORE")
	copper := itemID(t, w, "COPPER_ORE")

	for _, it := range []ItemID{iron, copper, copper} {
		if !sorter.AcceptItem(it, NoSource, North) {
			t.Fatalf("sorter refused %d", it)
		}
		steps(w, 2)
	}

	if len(beltItems(ahead)) != 1 || beltItems(ahead)[0].Item != iron {
		t.Fatalf("filtered item not forwarded")
	}
	if len(beltItems(left)) != 1 || len(beltItems(right)) != 1 {
		t.Fatalf("split left=%d right=%d", len(beltItems(left)), len(beltItems(right)))
	}
}

func TestPoweredBeltNeedsPoweredCore(t *testing.T) {
	w := newTestWorld(t, nil)
	l := w.Layer(0)
	fast := mustPlace(t, l, "FAST_CONVEYOR", 5, 5, East)
	// Turned south, the core's power dock faces north.
	mustPlace(t, l, "BELT_CORE", 5, 4, South)
	ore := itemID(t, w, "IRON_ORE")
	l.AddItemEntity(5, 5, ore, -1, NoSource)

	steps(w, 3)
	if it := beltItems(fast)[0]; it.Slot != 0 || it.Interp != 0 {
		t.Fatalf("unfed segment moved its item: %+v", *it)
	}

	// The panel's dock faces south into the core's dock.
	mustPlace(t, l, "SOLAR_PANEL", 5, 3, North)
	steps(w, 3)
	if st, _ := l.PowerStatusAt(5, 4); st != Powered {
		t.Fatalf("core status=%s", st)
	}
	if it := beltItems(fast)[0]; it.Slot != w.layout.Edge(East) {
		t.Fatalf("fed segment did not move its item: %+v", *it)
	}
}
