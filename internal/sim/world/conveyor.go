package world

import (
	"tilefactory.io/internal/sim/world/feature/conveyor/runtime"
	"tilefactory.io/internal/sim/world/kernel/model"
)

// Item is one item riding a belt or waiting in a router.
type Item struct {
	Item   ItemID
	Slot   int
	Interp float64
	// Dir is DirNone while the item is parked.
	Dir Dir
	// Heading is the direction the item entered the tile with.
	Heading Dir
	// Source is the grid index of the structure that put the item in
	// transit, NoSource if none.
	Source int32

	moved uint64
}

type conveyor struct {
	base
	layout  runtime.Layout
	bridge  bool
	powered bool

	slots     []*Item
	neighbors [4]int32
	notify    bool
	fed       bool
}

func newConveyor(b base) Behavior {
	k := b.s.Kind()
	c := &conveyor{
		base:    b,
		layout:  b.l.w.layout,
		bridge:  k == model.KindBridge,
		powered: k == model.KindPoweredConveyor,
	}
	c.slots = make([]*Item, c.layout.Slots(c.bridge))
	for i := range c.neighbors {
		c.neighbors[i] = NoSource
	}
	return c
}

func (c *conveyor) dirOf(slot int) Dir {
	if c.bridge {
		if it := c.slots[slot]; it != nil {
			return it.Heading
		}
		return DirNone
	}
	return c.layout.BeltDir(slot, c.s.Up)
}

func (c *conveyor) arrivesHere(fromX, fromY int, dir Dir) bool {
	return dir.Valid() && fromX+dir.DX() == c.s.X && fromY+dir.DY() == c.s.Y
}

func (c *conveyor) CanAccept(_ ItemID, fromX, fromY int, dir Dir) bool {
	if !c.arrivesHere(fromX, fromY, dir) {
		return false
	}
	return c.entryFree(dir)
}

func (c *conveyor) entryFree(dir Dir) bool {
	if !dir.Valid() {
		return false
	}
	if !c.bridge && dir == c.s.Up.Opposite() {
		return false
	}
	return c.slots[c.layout.Entry(dir)] == nil
}

func (c *conveyor) AcceptItem(item ItemID, source int32, dir Dir) bool {
	if !c.entryFree(dir) {
		return false
	}
	slot := c.layout.Entry(dir)
	it := &Item{Item: item, Slot: slot, Heading: dir, Source: source, moved: c.stamp()}
	c.slots[slot] = it
	it.Dir = c.dirOf(slot)
	return true
}

// put places an item directly, as AddItemEntity does.
func (c *conveyor) put(item ItemID, slot int, source int32) bool {
	if slot < 0 || slot >= len(c.slots) || c.slots[slot] != nil {
		return false
	}
	heading := c.s.Up
	if c.bridge {
		arm, _, center := c.layout.Locate(slot)
		switch {
		case !center:
			heading = arm.Opposite()
		case slot == c.layout.CrossCenter():
			heading = East
		default:
			heading = North
		}
	}
	it := &Item{Item: item, Slot: slot, Heading: heading, Source: source}
	c.slots[slot] = it
	it.Dir = c.dirOf(slot)
	return true
}

func (c *conveyor) setNotify() { c.notify = true }

func (c *conveyor) items() []*Item {
	var out []*Item
	for _, it := range c.slots {
		if it != nil {
			out = append(out, it)
		}
	}
	return out
}

func (c *conveyor) takeItems() []*Item {
	out := c.items()
	for i := range c.slots {
		c.slots[i] = nil
	}
	return out
}

// Update refreshes the cached neighbours when the tile or one next to it changed.
func (c *conveyor) Update(float64, int) {
	if !c.l.touched(c.s.X, c.s.Y) {
		return
	}
	for _, d := range model.Dirs {
		c.neighbors[d] = NoSource
		if t := c.l.StructureAt(c.s.X+d.DX(), c.s.Y+d.DY()); t != nil {
			c.neighbors[d] = t.Index(c.l.Width)
		}
	}
}

func (c *conveyor) neighbor(d Dir) *Structure {
	idx := c.neighbors[d]
	if idx == NoSource {
		return nil
	}
	t := c.l.structureByIndex(idx)
	if t == nil || !t.Covers(c.s.X+d.DX(), c.s.Y+d.DY()) {
		c.neighbors[d] = NoSource
		return nil
	}
	return t
}

// updateItems moves items closest to the exit first so followers can take
// freed slots in the same tick. Parked items are only retried when the tile
// was touched or a neighbour raised the notification flag.
func (c *conveyor) updateItems(dt float64, speed int) {
	if speed <= 0 || (c.powered && !c.fed) {
		return
	}
	recheck := c.notify || c.l.touched(c.s.X, c.s.Y)
	if c.notify && !c.l.w.cfg.StickyNotify {
		c.notify = false
	}

	occupied := make([]int, 0, 4)
	for i, it := range c.slots {
		if it != nil {
			occupied = append(occupied, i)
		}
	}
	if len(occupied) == 0 {
		return
	}
	c.layout.Order(occupied, c.dirOf)

	step := c.s.Schema.Def.Speed * dt * float64(speed)
	now := c.stamp()
	freed := false
	for _, slot := range occupied {
		it := c.slots[slot]
		if it == nil || it.moved == now {
			continue
		}
		if it.Dir == DirNone && !recheck {
			continue
		}
		it.Dir = c.dirOf(slot)
		it.Interp += step
		for it.Interp >= 1 {
			left, ok := c.advance(it)
			if !ok {
				it.Dir = DirNone
				it.Interp = 1
				break
			}
			freed = true
			it.Interp -= 1
			if left {
				break
			}
			it.Dir = c.dirOf(it.Slot)
		}
	}
	if freed {
		c.notify = true
		c.l.notifyNeighbors(c.s)
	}
}

// advance moves it one slot. left reports a hand-off out of the tile.
func (c *conveyor) advance(it *Item) (left, ok bool) {
	next, exit, ok := c.layout.Next(it.Slot, it.Dir, c.bridge)
	if !ok {
		return false, false
	}
	if !exit {
		if c.slots[next] != nil {
			return false, false
		}
		c.slots[it.Slot] = nil
		it.Slot = next
		c.slots[next] = it
		return false, true
	}
	t := c.neighbor(it.Dir)
	if t == nil || t.b == nil {
		return false, false
	}
	if !t.b.CanAccept(it.Item, c.s.X, c.s.Y, it.Dir) || !t.b.AcceptItem(it.Item, it.Source, it.Dir) {
		return false, false
	}
	c.slots[it.Slot] = nil
	return true, true
}
