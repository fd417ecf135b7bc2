package world

import (
	"go.uber.org/zap"

	"tilefactory.io/internal/sim/catalogs"
	"tilefactory.io/internal/sim/world/kernel/model"
	"tilefactory.io/internal/sim/world/tile"
)

// RemoveResult is what a removal hands back to the caller: the build cost to
// credit and what happened to items that were riding the structure.
type RemoveResult struct {
	Schema    *Schema
	X, Y      int
	BuildCost []catalogs.Stack
	Refunded  int
	Dropped   int
}

// PlaceStructure builds and adds a structure of the given schema id.
func (l *Layer) PlaceStructure(id string, x, y int, up Dir) (*Structure, bool) {
	schema, ok := l.w.cats.Schema(id)
	if !ok {
		return nil, false
	}
	s := NewStructure(schema, x, y, up)
	if !l.AddStructure(s, false) {
		return nil, false
	}
	return s, true
}

// AddStructure places s. It fails when any covered cell is taken or out of
// range. Unless fromLoad, belts around s are told to re-check parked items.
func (l *Layer) AddStructure(s *Structure, fromLoad bool) bool {
	if s == nil || s.b != nil {
		return false
	}
	if !l.CanPlace(s.Schema, s.X, s.Y, s.Up, l.w.cfg.StrictDocks && !fromLoad) {
		return false
	}
	s.Layer = l.Index
	s.b = newBehavior(s, l)
	l.attach(s)
	if !fromLoad {
		l.notifyAround(s)
		l.w.hooks.sound("place", s)
	}
	return true
}

// RemoveStructure tears down whatever structure or cable covers x,y.
func (l *Layer) RemoveStructure(x, y int) (RemoveResult, bool) {
	s := l.StructureAt(x, y)
	if s == nil {
		s = l.CableAt(x, y)
	}
	if s == nil || s.Schema.Def.Indestructible {
		return RemoveResult{}, false
	}
	l.detach(s, model.DirtyDestruction)
	res := RemoveResult{Schema: s.Schema, X: s.X, Y: s.Y, BuildCost: append([]catalogs.Stack(nil), s.Schema.BuildCost...)}
	if h, ok := s.b.(itemHolder); ok {
		for _, it := range h.takeItems() {
			if l.refund(it) {
				res.Refunded++
			} else {
				res.Dropped++
				l.w.log.Debug("item dropped on removal",
					zap.Int("layer", l.Index), zap.Int("x", s.X), zap.Int("y", s.Y),
					zap.String("item", l.w.cats.Items.Name(it.Item)))
			}
		}
	}
	s.b = nil
	l.notifyAround(s)
	l.w.hooks.sound("remove", s)
	return res, true
}

// Rotate turns a placed structure in place. It fails when the schema is not
// rotatable or the rotated footprint does not fit.
func (l *Layer) Rotate(x, y int, up Dir) bool {
	s := l.StructureAt(x, y)
	if s == nil || !up.Valid() || !s.Schema.Def.Rotatable {
		return false
	}
	if s.Up == up {
		return true
	}
	l.detach(s, model.DirtyConstruction)
	old := s.Up
	s.Up = up
	s.resolve()
	ok := l.CanPlace(s.Schema, s.X, s.Y, up, l.w.cfg.StrictDocks)
	if !ok {
		s.Up = old
		s.resolve()
	}
	l.attach(s)
	l.notifyAround(s)
	return ok
}

func (l *Layer) attach(s *Structure) {
	c := l.chunk(s.X, s.Y)
	c.activate(tile.Make(l.defaultTerrain, 0))
	c.insert(s, l.Width)

	bit := CollStructure
	if s.Kind().IsCable() {
		bit = CollTube
	}
	s.eachCell(func(x, y int) { l.flags[l.index(x, y)] |= bit })
	for _, d := range s.Docks {
		l.addDockRef(d, 1)
	}
	if s.Kind() == model.KindPowerNode {
		l.nodes[s.Index(l.Width)] = s
	}
	l.markDirty(model.RectBounds(s.X, s.Y, s.W, s.H, model.DirtyConstruction|dirtyKindOf(s)))
	l.attachPower(s)
}

func (l *Layer) detach(s *Structure, kind DirtyKind) {
	l.detachPower(s)
	l.chunk(s.X, s.Y).remove(s, l.Width)

	bit := CollStructure
	if s.Kind().IsCable() {
		bit = CollTube
	}
	s.eachCell(func(x, y int) { l.flags[l.index(x, y)] &^= bit })
	for _, d := range s.Docks {
		l.addDockRef(d, -1)
	}
	delete(l.nodes, s.Index(l.Width))
	l.markDirty(model.RectBounds(s.X, s.Y, s.W, s.H, kind|dirtyKindOf(s)))
}

func dirtyKindOf(s *Structure) DirtyKind {
	switch {
	case s.Kind().IsCable():
		return model.DirtyCable
	case s.Kind() == model.KindPowerNode:
		return model.DirtyPowerNode
	case s.isConveyorLike():
		return model.DirtyConveyor
	}
	return 0
}

func (l *Layer) addDockRef(d Dock, delta int) {
	if !l.InRange(d.TX, d.TY) {
		return
	}
	idx := l.index(d.TX, d.TY)
	refs := l.dockRefs[idx]
	if refs == nil {
		if delta < 0 {
			return
		}
		refs = &[4]uint16{}
		l.dockRefs[idx] = refs
	}
	k := dockRef(d.Type)
	if delta < 0 && refs[k] == 0 {
		return
	}
	refs[k] = uint16(int(refs[k]) + delta)
	if refs[k] > 0 {
		l.flags[idx] |= refFlags[k]
	} else {
		l.flags[idx] &^= refFlags[k]
	}
	if *refs == ([4]uint16{}) {
		delete(l.dockRefs, idx)
	}
}

// notifyAround wakes belts at s's item docks and along its outline.
func (l *Layer) notifyAround(s *Structure) {
	for _, d := range s.Docks {
		if d.Type.IsItem() || d.Type.IsStack() {
			l.NotifyAt(d.TX, d.TY)
		}
	}
	for x := s.X; x < s.X+s.W; x++ {
		l.NotifyAt(x, s.Y-1)
		l.NotifyAt(x, s.Y+s.H)
	}
	for y := s.Y; y < s.Y+s.H; y++ {
		l.NotifyAt(s.X-1, y)
		l.NotifyAt(s.X+s.W, y)
	}
}

// NotifyAt sets the item notification flag of the belt or router at x,y.
func (l *Layer) NotifyAt(x, y int) {
	if t := l.StructureAt(x, y); t != nil {
		if n, ok := t.b.(notifiable); ok {
			n.setNotify()
		}
	}
}

func (l *Layer) notifyNeighbors(s *Structure) {
	for _, d := range model.Dirs {
		l.NotifyAt(s.X+d.DX(), s.Y+d.DY())
	}
}

// refund puts an orphaned item back into the structure it came from.
func (l *Layer) refund(it *Item) bool {
	src := l.structureByIndex(it.Source)
	if src == nil {
		return false
	}
	inv := src.Out
	if inv == nil {
		inv = src.Inv
	}
	return inv != nil && inv.Add(it.Item, 1) == 0
}

// AddItemEntity puts an item on the belt at x,y. slot < 0 means the centre.
func (l *Layer) AddItemEntity(x, y int, item ItemID, slot int, source int32) bool {
	s := l.StructureAt(x, y)
	if s == nil {
		return false
	}
	c, ok := s.b.(*conveyor)
	if !ok {
		return false
	}
	if slot < 0 {
		slot = 0
	}
	return c.put(item, slot, source)
}
