package world

import (
	"tilefactory.io/internal/sim/world/kernel/model"
)

// Behavior is the transfer protocol every structure kind implements. The
// zero implementation (base) rejects everything and does nothing.
type Behavior interface {
	// CanAccept is a pure predicate: would the structure take item arriving
	// from fromX,fromY while travelling dir.
	CanAccept(item ItemID, fromX, fromY int, dir Dir) bool
	// AcceptItem takes item iff a matching CanAccept would have said yes.
	AcceptItem(item ItemID, source int32, dir Dir) bool
	// AcceptFluid returns the amount it did not take.
	AcceptFluid(fluid ItemID, amount int, source int32) int
	// AcceptPower returns the amount it did not take; it never takes more
	// than strength minus what it already took this tick.
	AcceptPower(amount, strength float64) float64
	Update(dt float64, speed int)
}

type base struct {
	s *Structure
	l *Layer
}

func (base) CanAccept(ItemID, int, int, Dir) bool { return false }

func (base) AcceptItem(ItemID, int32, Dir) bool { return false }

func (base) AcceptFluid(_ ItemID, amount int, _ int32) int { return amount }

func (b base) AcceptPower(amount, strength float64) float64 {
	p := b.s.Power
	if p == nil || amount <= 0 {
		return amount
	}
	room := min(p.Demand-p.Accepted, strength-p.Accepted)
	take := max(0, min(amount, room))
	p.Accepted += take
	return amount - take
}

func (base) Update(float64, int) {}

// capabilities maps each kind to its behavior constructor. Kinds missing here
// (cables, power nodes without state) run on base.
var capabilities = map[model.Kind]func(base) Behavior{
	model.KindConveyor:        newConveyor,
	model.KindPoweredConveyor: newConveyor,
	model.KindBridge:          newConveyor,
	model.KindRouter:          newRouter,
	model.KindSorter:          newRouter,
	model.KindBeltCore:        func(b base) Behavior { return b },
	model.KindProducer:        newProducer,
	model.KindContainer:       newContainer,
	model.KindGenerator:       newGenerator,
	model.KindBattery:         newBattery,
	model.KindPowerNode:       newPowerNode,
	model.KindPump:            newPump,
	model.KindTank:            newTank,
	model.KindConsumer:        func(b base) Behavior { return b },
}

func newBehavior(s *Structure, l *Layer) Behavior {
	b := base{s: s, l: l}
	if f, ok := capabilities[s.Kind()]; ok {
		return f(b)
	}
	return b
}

// itemHolder is implemented by behaviors that carry items in transit.
type itemHolder interface {
	items() []*Item
	takeItems() []*Item
}

// itemMover runs in the second pass, after every structure updated.
type itemMover interface {
	updateItems(dt float64, speed int)
}

type notifiable interface {
	setNotify()
}

// offerer is implemented by power donors.
type offerer interface {
	offer() float64
	drain(amount float64)
}

// running is the production rate factor from the last power pass.
func (b base) running() float64 {
	p := b.s.Power
	if p == nil || p.Demand <= 0 {
		return 1
	}
	if p.Status != Powered {
		return 0
	}
	return p.Ratio
}

func (b base) stamp() uint64 { return b.l.w.tick.Load() + 1 }

// inputDock finds an item-in dock that takes item travelling dir. With
// from set, the dock's partner cell must be fromX,fromY.
func (b base) inputDock(item ItemID, fromX, fromY int, dir Dir, from bool) bool {
	if !dir.Valid() {
		return false
	}
	for _, d := range b.s.Docks {
		if d.Type != model.DockItemIn && d.Type != model.DockStackIn {
			continue
		}
		if d.Dir != dir.Opposite() || (from && (d.TX != fromX || d.TY != fromY)) {
			continue
		}
		if d.Filter.Matches(item, &b.l.w.cats.Items) {
			return true
		}
	}
	return false
}

// emit offers item to whatever sits at an output dock's partner cell.
func (b base) emit(item ItemID, d Dock) bool {
	t := b.l.StructureAt(d.TX, d.TY)
	if t == nil || t == b.s || t.b == nil {
		return false
	}
	if !t.b.CanAccept(item, d.X, d.Y, d.Dir) {
		return false
	}
	return t.b.AcceptItem(item, b.s.Index(b.l.Width), d.Dir)
}

// emitFrom pushes at most one item per output dock out of inv.
func (b base) emitFrom(inv *Inventory) bool {
	moved := false
	for _, d := range b.s.Docks {
		if d.Type != model.DockItemOut && d.Type != model.DockStackOut {
			continue
		}
		for _, st := range inv.Stacks() {
			if !d.Filter.Matches(st.Item, &b.l.w.cats.Items) {
				continue
			}
			if b.emit(st.Item, d) {
				inv.Take(st.Item, 1)
				moved = true
				break
			}
		}
	}
	return moved
}

// wakeInputs tells belts feeding s that room freed up.
func (b base) wakeInputs() {
	for _, d := range b.s.Docks {
		if d.Type.Input() {
			b.l.NotifyAt(d.TX, d.TY)
		}
	}
}
