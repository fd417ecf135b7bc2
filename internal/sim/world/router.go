package world

import "tilefactory.io/internal/sim/world/kernel/model"

// router holds at most one item and hands it to the next neighbour that
// takes it, round-robin. A sorter forwards filter matches straight on and
// splits everything else left and right.
type router struct {
	base
	sorter   bool
	cur      *Item
	progress float64
	next     int
}

func newRouter(b base) Behavior {
	return &router{base: b, sorter: b.s.Kind() == model.KindSorter}
}

func (r *router) CanAccept(_ ItemID, fromX, fromY int, dir Dir) bool {
	return r.cur == nil && dir.Valid() && fromX+dir.DX() == r.s.X && fromY+dir.DY() == r.s.Y
}

func (r *router) AcceptItem(item ItemID, source int32, dir Dir) bool {
	if r.cur != nil || !dir.Valid() {
		return false
	}
	r.cur = &Item{Item: item, Dir: dir, Heading: dir, Source: source, moved: r.stamp()}
	r.progress = 0
	return true
}

func (r *router) items() []*Item {
	if r.cur == nil {
		return nil
	}
	return []*Item{r.cur}
}

func (r *router) takeItems() []*Item {
	out := r.items()
	r.cur = nil
	return out
}

// outputs lists the directions to try, rotated by the round-robin cursor.
func (r *router) outputs() []Dir {
	h := r.cur.Heading
	var cand []Dir
	switch {
	case r.sorter && r.s.Schema.Filter.Matches(r.cur.Item, &r.l.w.cats.Items):
		return []Dir{h}
	case r.sorter:
		cand = []Dir{h.Rotate(-1), h.Rotate(1)}
	default:
		for _, d := range model.Dirs {
			if d != h.Opposite() {
				cand = append(cand, d)
			}
		}
	}
	out := make([]Dir, len(cand))
	for i := range cand {
		out[i] = cand[(r.next+i)%len(cand)]
	}
	return out
}

func (r *router) updateItems(dt float64, speed int) {
	if speed <= 0 || r.cur == nil || r.cur.moved == r.stamp() {
		return
	}
	r.progress += r.s.Schema.Def.Speed * dt * float64(speed)
	if r.progress < 1 {
		return
	}
	r.progress = 1
	for i, d := range r.outputs() {
		t := r.l.StructureAt(r.s.X+d.DX(), r.s.Y+d.DY())
		if t == nil || t.b == nil {
			continue
		}
		if !t.b.CanAccept(r.cur.Item, r.s.X, r.s.Y, d) || !t.b.AcceptItem(r.cur.Item, r.cur.Source, d) {
			continue
		}
		// 12 is a multiple of every candidate count.
		r.next = (r.next + i + 1) % 12
		r.cur = nil
		r.progress = 0
		r.l.notifyNeighbors(r.s)
		return
	}
}
