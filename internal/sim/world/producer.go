package world

import (
	"tilefactory.io/internal/sim/catalogs"
)

// Work progress finishing within this of the recipe time counts as done.
const workEpsilon = 1e-9

type producer struct {
	base
	active   *catalogs.Recipe
	progress float64
}

func newProducer(b base) Behavior { return &producer{base: b} }

// Active returns the running recipe, nil when idle.
func (p *producer) Active() *catalogs.Recipe { return p.active }

func (p *producer) Progress() float64 { return p.progress }

func (p *producer) wants(item ItemID) bool {
	for _, r := range p.s.Schema.Recipes {
		for _, in := range r.Inputs {
			if in.Item == item && p.s.Inv.Count(item) < p.s.Inv.Size {
				return true
			}
		}
	}
	return false
}

func (p *producer) CanAccept(item ItemID, fromX, fromY int, dir Dir) bool {
	return p.s.Inv.Room() > 0 && p.wants(item) && p.inputDock(item, fromX, fromY, dir, true)
}

func (p *producer) AcceptItem(item ItemID, _ int32, dir Dir) bool {
	if p.s.Inv.Room() <= 0 || !p.wants(item) || !p.inputDock(item, 0, 0, dir, false) {
		return false
	}
	return p.s.Inv.Add(item, 1) == 0
}

func (p *producer) Update(dt float64, speed int) {
	if speed <= 0 {
		return
	}
	if p.s.Out.Total() > 0 {
		p.emitFrom(p.s.Out)
	}
	if p.active == nil {
		p.start()
		return
	}
	p.progress += dt * float64(speed) * p.running()
	if p.progress+workEpsilon < p.active.WorkSeconds {
		return
	}
	for _, out := range p.active.Outputs {
		p.s.Out.Add(out.Item, out.Count)
		p.l.w.hooks.seen(out.Item)
	}
	p.active = nil
	p.progress = 0
	p.start()
}

// start picks the first recipe whose inputs are present and whose outputs fit.
func (p *producer) start() {
	for _, r := range p.s.Schema.Recipes {
		if !p.s.Inv.Has(r.Inputs) {
			continue
		}
		need := 0
		for _, out := range r.Outputs {
			need += out.Count
		}
		if p.s.Out.Room() < need {
			continue
		}
		for _, in := range r.Inputs {
			p.s.Inv.Take(in.Item, in.Count)
		}
		p.active = r
		p.progress = 0
		p.wakeInputs()
		return
	}
}

type container struct {
	base
}

func newContainer(b base) Behavior { return &container{base: b} }

func (c *container) CanAccept(item ItemID, fromX, fromY int, dir Dir) bool {
	return c.s.Inv.Room() > 0 && c.inputDock(item, fromX, fromY, dir, true)
}

func (c *container) AcceptItem(item ItemID, _ int32, dir Dir) bool {
	if !c.inputDock(item, 0, 0, dir, false) {
		return false
	}
	return c.s.Inv.Add(item, 1) == 0
}

func (c *container) Update(_ float64, speed int) {
	if speed <= 0 || c.s.Inv.Total() == 0 {
		return
	}
	if c.emitFrom(c.s.Inv) {
		c.wakeInputs()
	}
}
