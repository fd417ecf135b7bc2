package conveyorpower

import "sort"

type Pos struct {
	X int
	Y int
}

type Env interface {
	PoweredBelt(Pos) bool
	CoreActive(Pos) bool
}

var cardinalDirs = []Pos{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

// Segment walks the powered belts connected to start (capped BFS) and
// reports whether any of them touches an active belt core. Members come
// back sorted by Y then X.
func Segment(env Env, start Pos, maxNodes int) ([]Pos, bool) {
	if maxNodes <= 0 || !env.PoweredBelt(start) {
		return nil, false
	}
	visited := map[Pos]bool{start: true}
	q := []Pos{start}
	members := make([]Pos, 0, 8)
	fed := false
	for len(q) > 0 {
		p := q[0]
		q = q[1:]
		members = append(members, p)
		for _, d := range cardinalDirs {
			np := Pos{X: p.X + d.X, Y: p.Y + d.Y}
			if !fed && env.CoreActive(np) {
				fed = true
			}
			if visited[np] || len(visited) >= maxNodes {
				continue
			}
			if !env.PoweredBelt(np) {
				continue
			}
			visited[np] = true
			q = append(q, np)
		}
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Y != members[j].Y {
			return members[i].Y < members[j].Y
		}
		return members[i].X < members[j].X
	})
	return members, fed
}
