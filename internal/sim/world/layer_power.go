package world

import (
	"sort"

	"tilefactory.io/internal/sim/world/kernel/model"
	"tilefactory.io/internal/sim/world/logic/conveyorpower"
	"tilefactory.io/internal/sim/world/logic/powergrid"
)

func (l *Layer) vertex(s *Structure) powergrid.VertexID {
	return powergrid.MakeVertex(l.Index, s.Index(l.Width))
}

type powerEdge struct {
	v     powergrid.VertexID
	class model.PowerClass
}

func cableClass(k Kind) model.PowerClass {
	switch k {
	case model.KindBigCable:
		return model.ClassBigPower
	case model.KindCableShaft:
		return model.ClassShaft
	}
	return model.ClassCable
}

// dockFitsCable: power docks take cables, big-power docks take big cables,
// shafts take either.
func dockFitsCable(t DockType, k Kind) bool {
	switch k {
	case model.KindCable:
		return t == model.DockPower
	case model.KindBigCable:
		return t == model.DockBigPower
	case model.KindCableShaft:
		return t.IsPower()
	}
	return false
}

// cableLink reports whether two adjacent cables join and with which class.
func cableLink(a, b Kind) (model.PowerClass, bool) {
	switch {
	case a == b:
		return cableClass(a), true
	case a == model.KindCableShaft:
		return cableClass(b), true
	case b == model.KindCableShaft:
		return cableClass(a), true
	}
	return 0, false
}

func (l *Layer) attachPower(s *Structure) {
	if !s.Schema.HasPowerDock() {
		return
	}
	g := l.w.grid
	v := l.vertex(s)
	g.AddVertex(v)
	for _, e := range l.powerEdges(s) {
		g.Connect(v, e.v, e.class)
	}
}

func (l *Layer) detachPower(s *Structure) {
	if !s.Schema.HasPowerDock() {
		return
	}
	l.w.grid.RemoveVertex(l.vertex(s))
}

func (l *Layer) powerEdges(s *Structure) []powerEdge {
	var out []powerEdge
	if s.Kind().IsCable() {
		for _, d := range model.Dirs {
			nx, ny := s.X+d.DX(), s.Y+d.DY()
			if c := l.CableAt(nx, ny); c != nil {
				if class, ok := cableLink(s.Kind(), c.Kind()); ok {
					out = append(out, powerEdge{v: l.vertex(c), class: class})
				}
			}
			t := l.StructureAt(nx, ny)
			if t == nil || !t.Schema.HasPowerDock() {
				continue
			}
			if _, ok := t.DockAt(s.X, s.Y, func(dt DockType) bool { return dockFitsCable(dt, s.Kind()) }); ok {
				out = append(out, powerEdge{v: l.vertex(t), class: cableClass(s.Kind())})
			}
		}
		if s.Kind() == model.KindCableShaft {
			for _, li := range []int{l.Index - 1, l.Index + 1} {
				o := l.w.Layer(li)
				if o == nil {
					continue
				}
				if c := o.CableAt(s.X, s.Y); c != nil && c.Kind() == model.KindCableShaft {
					out = append(out, powerEdge{v: o.vertex(c), class: model.ClassShaft})
				}
			}
		}
		return out
	}

	for _, d := range s.Docks {
		if !d.Type.IsPower() {
			continue
		}
		if c := l.CableAt(d.TX, d.TY); c != nil && dockFitsCable(d.Type, c.Kind()) {
			out = append(out, powerEdge{v: l.vertex(c), class: cableClass(c.Kind())})
		}
		t := l.StructureAt(d.TX, d.TY)
		if t == nil || t == s {
			continue
		}
		if _, ok := t.DockAt(d.X, d.Y, DockType.IsPower); ok {
			out = append(out, powerEdge{v: l.vertex(t), class: model.ClassDock})
		}
	}
	if r := l.w.cfg.PowerNodeRange; s.Kind() == model.KindPowerNode && r > 0 {
		idx := make([]int32, 0, len(l.nodes))
		for i := range l.nodes {
			idx = append(idx, i)
		}
		sort.Slice(idx, func(i, j int) bool { return idx[i] < idx[j] })
		for _, i := range idx {
			n := l.nodes[i]
			dx, dy := n.X-s.X, n.Y-s.Y
			// Square reach: a node r cells away on both axes still links.
			if n != s && max(dx, -dx) <= r && max(dy, -dy) <= r {
				out = append(out, powerEdge{v: l.vertex(n), class: model.ClassBigPower})
			}
		}
	}
	return out
}

// CableConnections is a bitmask over model.Dirs of the committed links from
// the cable at x,y to its four neighbours.
func (l *Layer) CableConnections(x, y int) uint8 {
	c := l.CableAt(x, y)
	if c == nil {
		return 0
	}
	v := l.vertex(c)
	var mask uint8
	for _, d := range model.Dirs {
		nx, ny := x+d.DX(), y+d.DY()
		n := l.CableAt(nx, ny)
		if n == nil {
			n = l.StructureAt(nx, ny)
		}
		if n == nil {
			continue
		}
		if _, ok := l.w.grid.Edge(v, l.vertex(n)); ok {
			mask |= 1 << d
		}
	}
	return mask
}

// PowerStatusAt returns the last power outcome of the structure at x,y.
func (l *Layer) PowerStatusAt(x, y int) (PowerStatus, bool) {
	s := l.StructureAt(x, y)
	if s == nil || s.Power == nil {
		return Unpowered, false
	}
	return s.Power.Status, true
}

// PowerNodeMeans returns the rolling inflow/outflow means seen by a power node.
func (l *Layer) PowerNodeMeans(x, y int) (in, out float64, ok bool) {
	s := l.StructureAt(x, y)
	if s == nil {
		return 0, 0, false
	}
	n, ok := s.b.(*powerNode)
	if !ok {
		return 0, 0, false
	}
	in, out = n.Means()
	return in, out, true
}

// NetworkAt returns the committed network of the structure or cable at x,y.
func (l *Layer) NetworkAt(x, y int) *powergrid.Network {
	s := l.StructureAt(x, y)
	if s == nil {
		s = l.CableAt(x, y)
	}
	if s == nil {
		return nil
	}
	return l.w.grid.NetworkOf(l.vertex(s))
}

type beltEnv struct{ l *Layer }

func (e beltEnv) PoweredBelt(p conveyorpower.Pos) bool {
	s := e.l.StructureAt(p.X, p.Y)
	return s != nil && s.Kind() == model.KindPoweredConveyor
}

func (e beltEnv) CoreActive(p conveyorpower.Pos) bool {
	s := e.l.StructureAt(p.X, p.Y)
	return s != nil && s.Kind() == model.KindBeltCore && s.Power != nil && s.Power.Status == Powered
}

// feedPoweredBelts marks each powered belt segment fed when a powered belt
// core touches it.
func (l *Layer) feedPoweredBelts() {
	env := beltEnv{l: l}
	seen := map[conveyorpower.Pos]bool{}
	for _, c := range l.Chunks() {
		for _, s := range c.conveyors {
			if s.Kind() != model.KindPoweredConveyor {
				continue
			}
			p := conveyorpower.Pos{X: s.X, Y: s.Y}
			if seen[p] {
				continue
			}
			members, fed := conveyorpower.Segment(env, p, l.Width*l.Height)
			for _, m := range members {
				seen[m] = true
				if t := l.StructureAt(m.X, m.Y); t != nil {
					if b, ok := t.b.(*conveyor); ok {
						b.fed = fed
					}
				}
			}
		}
	}
}
