// Package powergrid keeps the connectivity of power-carrying structures and
// splits it into networks. Topology edits are queued and only take effect on
// Commit, so a distribution pass always sees the topology of the previous
// commit.
package powergrid

import (
	"math"
	"sort"

	"github.com/zyedidia/generic/mapset"

	"tilefactory.io/internal/sim/world/kernel/model"
)

// VertexID identifies a structure across layers: layer<<32 | grid index.
type VertexID int64

func MakeVertex(layer int, index int32) VertexID {
	return VertexID(int64(layer)<<32 | int64(uint32(index)))
}

func (v VertexID) Layer() int   { return int(int64(v) >> 32) }
func (v VertexID) Index() int32 { return int32(uint32(int64(v) & 0xFFFFFFFF)) }

type Network struct {
	ID      uint32
	Members mapset.Set[VertexID]

	classes map[model.PowerClass]int

	// Results of the last distribution pass.
	Offered   float64
	Delivered float64
	Stored    float64
}

// Sorted returns the members in ascending order.
func (n *Network) Sorted() []VertexID {
	out := make([]VertexID, 0, n.Members.Size())
	n.Members.Each(func(v VertexID) { out = append(out, v) })
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type opKind uint8

const (
	opAdd opKind = iota + 1
	opRemove
	opConnect
	opDisconnect
)

type op struct {
	kind  opKind
	a, b  VertexID
	class model.PowerClass
}

type Grid struct {
	adj      map[VertexID]map[VertexID]model.PowerClass
	byVertex map[VertexID]*Network
	networks map[uint32]*Network
	nextID   uint32
	pending  []op

	strengths map[model.PowerClass]float64
}

func New(strengths map[model.PowerClass]float64) *Grid {
	s := map[model.PowerClass]float64{}
	for k, v := range strengths {
		s[k] = v
	}
	return &Grid{
		adj:       map[VertexID]map[VertexID]model.PowerClass{},
		byVertex:  map[VertexID]*Network{},
		networks:  map[uint32]*Network{},
		strengths: s,
	}
}

func (g *Grid) AddVertex(v VertexID)    { g.pending = append(g.pending, op{kind: opAdd, a: v}) }
func (g *Grid) RemoveVertex(v VertexID) { g.pending = append(g.pending, op{kind: opRemove, a: v}) }

func (g *Grid) Connect(a, b VertexID, class model.PowerClass) {
	g.pending = append(g.pending, op{kind: opConnect, a: a, b: b, class: class})
}

func (g *Grid) Disconnect(a, b VertexID) {
	g.pending = append(g.pending, op{kind: opDisconnect, a: a, b: b})
}

// Pending reports whether topology edits are waiting for Commit.
func (g *Grid) Pending() bool { return len(g.pending) > 0 }

// Commit applies queued edits in order.
func (g *Grid) Commit() {
	ops := g.pending
	g.pending = nil
	for _, o := range ops {
		switch o.kind {
		case opAdd:
			g.addVertex(o.a)
		case opRemove:
			g.removeVertex(o.a)
		case opConnect:
			g.connect(o.a, o.b, o.class)
		case opDisconnect:
			g.disconnect(o.a, o.b)
		}
	}
}

func (g *Grid) NetworkOf(v VertexID) *Network { return g.byVertex[v] }

func (g *Grid) Has(v VertexID) bool {
	_, ok := g.adj[v]
	return ok
}

// Networks returns all networks ordered by id.
func (g *Grid) Networks() []*Network {
	out := make([]*Network, 0, len(g.networks))
	for _, n := range g.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Neighbors returns v's neighbours in ascending order.
func (g *Grid) Neighbors(v VertexID) []VertexID {
	out := make([]VertexID, 0, len(g.adj[v]))
	for n := range g.adj[v] {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *Grid) Edge(a, b VertexID) (model.PowerClass, bool) {
	c, ok := g.adj[a][b]
	return c, ok
}

// Strength is the network's per-tick throughput cap: the weakest edge class it
// contains, or the dock class for a network without edges.
func (g *Grid) Strength(n *Network) float64 {
	if n == nil {
		return 0
	}
	s := math.Inf(1)
	for c, cnt := range n.classes {
		if cnt > 0 && g.strengths[c] < s {
			s = g.strengths[c]
		}
	}
	if math.IsInf(s, 1) {
		if v, ok := g.strengths[model.ClassDock]; ok {
			return v
		}
	}
	return s
}

func (g *Grid) newNetwork() *Network {
	g.nextID++
	n := &Network{ID: g.nextID, Members: mapset.New[VertexID](), classes: map[model.PowerClass]int{}}
	g.networks[n.ID] = n
	return n
}

func (g *Grid) addVertex(v VertexID) {
	if _, ok := g.adj[v]; ok {
		return
	}
	g.adj[v] = map[VertexID]model.PowerClass{}
	n := g.newNetwork()
	n.Members.Put(v)
	g.byVertex[v] = n
}

func (g *Grid) connect(a, b VertexID, class model.PowerClass) {
	if a == b {
		return
	}
	if _, ok := g.adj[a]; !ok {
		return
	}
	if _, ok := g.adj[b]; !ok {
		return
	}
	if _, ok := g.adj[a][b]; ok {
		return
	}
	g.adj[a][b] = class
	g.adj[b][a] = class

	na, nb := g.byVertex[a], g.byVertex[b]
	if na != nb {
		keep, gone := na, nb
		if gone.Members.Size() > keep.Members.Size() || (gone.Members.Size() == keep.Members.Size() && gone.ID < keep.ID) {
			keep, gone = gone, keep
		}
		gone.Members.Each(func(v VertexID) {
			keep.Members.Put(v)
			g.byVertex[v] = keep
		})
		for c, cnt := range gone.classes {
			keep.classes[c] += cnt
		}
		delete(g.networks, gone.ID)
		na = keep
	}
	na.classes[class]++
}

func (g *Grid) disconnect(a, b VertexID) {
	class, ok := g.adj[a][b]
	if !ok {
		return
	}
	delete(g.adj[a], b)
	delete(g.adj[b], a)
	n := g.byVertex[a]
	n.classes[class]--
	g.split(n, []VertexID{a, b})
}

func (g *Grid) removeVertex(v VertexID) {
	nbrs, ok := g.adj[v]
	if !ok {
		return
	}
	n := g.byVertex[v]
	starts := make([]VertexID, 0, len(nbrs))
	for u, class := range nbrs {
		delete(g.adj[u], v)
		n.classes[class]--
		starts = append(starts, u)
	}
	delete(g.adj, v)
	delete(g.byVertex, v)
	n.Members.Remove(v)
	if n.Members.Size() == 0 {
		delete(g.networks, n.ID)
		return
	}
	g.split(n, starts)
}

// split re-scans reachability from starts inside n. The component holding the
// smallest vertex keeps n's id; every other component becomes a new network.
func (g *Grid) split(n *Network, starts []VertexID) {
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })
	var comps [][]VertexID
	seen := map[VertexID]bool{}
	for _, s := range starts {
		if seen[s] || !n.Members.Has(s) {
			continue
		}
		comp := []VertexID{}
		queue := []VertexID{s}
		seen[s] = true
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			comp = append(comp, v)
			for u := range g.adj[v] {
				if !seen[u] {
					seen[u] = true
					queue = append(queue, u)
				}
			}
		}
		comps = append(comps, comp)
	}
	if len(comps) <= 1 {
		return
	}
	minOf := func(c []VertexID) VertexID {
		m := c[0]
		for _, v := range c[1:] {
			if v < m {
				m = v
			}
		}
		return m
	}
	sort.Slice(comps, func(i, j int) bool { return minOf(comps[i]) < minOf(comps[j]) })

	n.Members = mapset.New[VertexID]()
	for _, v := range comps[0] {
		n.Members.Put(v)
	}
	n.classes = g.classesOf(comps[0])
	for _, comp := range comps[1:] {
		nn := g.newNetwork()
		for _, v := range comp {
			nn.Members.Put(v)
			g.byVertex[v] = nn
		}
		nn.classes = g.classesOf(comp)
	}
}

func (g *Grid) classesOf(comp []VertexID) map[model.PowerClass]int {
	out := map[model.PowerClass]int{}
	for _, v := range comp {
		for u, c := range g.adj[v] {
			if v < u {
				out[c]++
			}
		}
	}
	return out
}
