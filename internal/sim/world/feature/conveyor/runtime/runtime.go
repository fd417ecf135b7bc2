// Package runtime holds the slot geometry of a belt tile.
//
// A belt cell is a "+": one centre slot shared by both axes and four arms of
// Arm slots each. Position 0 on an arm touches the centre, position Arm-1 is
// the tile edge where items are handed to the neighbour. Bridges keep the two
// axes apart with a second centre reserved for east-west traffic.
package runtime

import (
	"sort"

	"tilefactory.io/internal/sim/world/kernel/model"
)

const Center = 0

type Layout struct {
	Arm int
}

func NewLayout(arm int) Layout {
	if arm < 1 {
		arm = 1
	}
	return Layout{Arm: arm}
}

// Slots is the slot count for a plain belt or a bridge.
func (l Layout) Slots(bridge bool) int {
	n := 1 + 4*l.Arm
	if bridge {
		n++
	}
	return n
}

// CrossCenter is the bridge-only centre used by east-west traffic.
func (l Layout) CrossCenter() int { return 1 + 4*l.Arm }

func (l Layout) Slot(arm model.Dir, pos int) int { return 1 + int(arm)*l.Arm + pos }

// Edge is the arm slot at the tile boundary.
func (l Layout) Edge(arm model.Dir) int { return l.Slot(arm, l.Arm-1) }

// Locate splits a slot index into arm and position. center is true for both centres.
func (l Layout) Locate(slot int) (arm model.Dir, pos int, center bool) {
	if slot == Center || slot == l.CrossCenter() {
		return model.DirNone, 0, true
	}
	i := slot - 1
	return model.Dir(i / l.Arm), i % l.Arm, false
}

// Next returns the slot an item at slot reaches by travelling dir. exit is
// true when the move leaves the tile. ok is false when dir does not run along
// the slot's axis.
func (l Layout) Next(slot int, dir model.Dir, bridge bool) (next int, exit bool, ok bool) {
	if !dir.Valid() {
		return 0, false, false
	}
	arm, pos, center := l.Locate(slot)
	if center {
		if bridge && (slot == l.CrossCenter()) != dir.Horizontal() {
			return 0, false, false
		}
		return l.Slot(dir, 0), false, true
	}
	switch dir {
	case arm:
		if pos == l.Arm-1 {
			return 0, true, true
		}
		return l.Slot(arm, pos+1), false, true
	case arm.Opposite():
		if pos > 0 {
			return l.Slot(arm, pos-1), false, true
		}
		if bridge && arm.Horizontal() {
			return l.CrossCenter(), false, true
		}
		return Center, false, true
	}
	return 0, false, false
}

// Entry is the slot an item lands on when it arrives travelling dir.
func (l Layout) Entry(dir model.Dir) int { return l.Edge(dir.Opposite()) }

// BeltDir derives an item's travel direction from the slot it occupies and
// the belt's configured output direction.
func (l Layout) BeltDir(slot int, up model.Dir) model.Dir {
	arm, _, center := l.Locate(slot)
	if center || arm == up {
		return up
	}
	return arm.Opposite()
}

// StepsToExit counts the moves left before an item at slot leaves the tile.
func (l Layout) StepsToExit(slot int, dir model.Dir) int {
	arm, pos, center := l.Locate(slot)
	switch {
	case center:
		return l.Arm
	case dir == arm:
		return l.Arm - 1 - pos
	default:
		return l.Arm + 1 + pos
	}
}

// Order sorts occupied slots so items closest to leaving move first,
// letting followers advance into freed slots within the same tick.
func (l Layout) Order(slots []int, dirOf func(slot int) model.Dir) {
	sort.SliceStable(slots, func(i, j int) bool {
		a := l.StepsToExit(slots[i], dirOf(slots[i]))
		b := l.StepsToExit(slots[j], dirOf(slots[j]))
		if a != b {
			return a < b
		}
		return slots[i] < slots[j]
	})
}
