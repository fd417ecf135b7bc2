package world

import "tilefactory.io/internal/sim/world/kernel/model"

// pump draws its fluid while powered and pushes it out of its fluid docks.
type pump struct {
	base
}

func newPump(b base) Behavior { return &pump{base: b} }

func (p *pump) Update(dt float64, speed int) {
	if speed <= 0 {
		return
	}
	t := p.s.Tank
	t.carry += float64(p.s.Schema.Def.FluidRate) * dt * float64(speed) * p.running()
	if n := int(t.carry); n > 0 {
		t.carry -= float64(n)
		t.Fill(p.s.Schema.Fluid, n)
	}
	p.pushFluid(t.Amount)
}

// pushFluid offers up to amount of the tank's fluid through every fluid-out dock.
func (b base) pushFluid(amount int) {
	t := b.s.Tank
	for _, d := range b.s.Docks {
		if amount <= 0 || t.Amount == 0 {
			return
		}
		if d.Type != model.DockFluidOut {
			continue
		}
		dst := b.l.StructureAt(d.TX, d.TY)
		if dst == nil || dst == b.s || dst.b == nil {
			continue
		}
		offer := min(amount, t.Amount)
		left := dst.b.AcceptFluid(t.Fluid, offer, b.s.Index(b.l.Width))
		moved := offer - max(0, left)
		t.Drain(moved)
		amount -= moved
	}
}

type tank struct {
	base
}

func newTank(b base) Behavior { return &tank{base: b} }

// AcceptFluid takes fluid from a structure sitting at one of the tank's fluid-in docks.
func (k *tank) AcceptFluid(fluid ItemID, amount int, source int32) int {
	src := k.l.structureByIndex(source)
	if src == nil || !k.l.w.cats.Items.IsFluid(fluid) {
		return amount
	}
	for _, d := range k.s.Docks {
		if d.Type == model.DockFluidIn && src.Covers(d.TX, d.TY) {
			return k.s.Tank.Fill(fluid, amount)
		}
	}
	return amount
}

func (k *tank) Update(dt float64, speed int) {
	if speed <= 0 || k.s.Tank.Amount == 0 {
		return
	}
	t := k.s.Tank
	t.carry += float64(k.s.Schema.Def.FluidRate) * dt * float64(speed)
	n := int(t.carry)
	if n <= 0 {
		return
	}
	t.carry -= float64(n)
	k.pushFluid(n)
}
