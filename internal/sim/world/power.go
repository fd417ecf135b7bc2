package world

import (
	"tilefactory.io/internal/sim/world/kernel/model"
	"tilefactory.io/internal/sim/world/logic/powergrid"
)

// generator offers power while it burns fuel; without a fuel item it always offers.
type generator struct {
	base
}

func newGenerator(b base) Behavior { return &generator{base: b} }

func (g *generator) burning() bool {
	return g.s.Schema.Fuel == NoItem || g.s.Power.Burn > 0
}

func (g *generator) offer() float64 {
	if !g.burning() {
		return 0
	}
	return g.s.Schema.Def.PowerOffer
}

func (g *generator) drain(float64) {}

func (g *generator) CanAccept(item ItemID, fromX, fromY int, dir Dir) bool {
	return item == g.s.Schema.Fuel && g.s.Inv.Room() > 0 && g.inputDock(item, fromX, fromY, dir, true)
}

func (g *generator) AcceptItem(item ItemID, _ int32, dir Dir) bool {
	if item != g.s.Schema.Fuel || !g.inputDock(item, 0, 0, dir, false) {
		return false
	}
	return g.s.Inv.Add(item, 1) == 0
}

func (g *generator) Update(dt float64, speed int) {
	fuel := g.s.Schema.Fuel
	if speed <= 0 || fuel == NoItem {
		return
	}
	p := g.s.Power
	if p.Burn > 0 {
		p.Burn = max(0, p.Burn-dt*float64(speed))
	}
	if p.Burn <= 0 && g.s.Inv.Take(fuel, 1) == 1 {
		p.Burn = g.s.Schema.Def.FuelSeconds
		g.wakeInputs()
	}
}

type battery struct {
	base
}

func newBattery(b base) Behavior { return &battery{base: b} }

func (b *battery) offer() float64 { return min(b.s.Schema.Def.PowerOffer, b.s.Power.Stored) }

func (b *battery) drain(amount float64) {
	b.s.Power.Stored = max(0, b.s.Power.Stored-amount)
}

func (b *battery) AcceptPower(amount, strength float64) float64 {
	p := b.s.Power
	if amount <= 0 {
		return amount
	}
	room := min(p.Demand-p.Accepted, strength-p.Accepted, b.s.Schema.Def.Capacity-p.Stored)
	take := max(0, min(amount, room))
	p.Accepted += take
	p.Stored += take
	return amount - take
}

// powerNode keeps rolling means of its network's offer and delivery.
type powerNode struct {
	base
	in, out *powergrid.Mean
}

func newPowerNode(b base) Behavior {
	n := b.l.w.cfg.PowerAverageWindow
	return &powerNode{base: b, in: powergrid.NewMean(n), out: powergrid.NewMean(n)}
}

// Update samples the network; paused ticks leave the means frozen.
func (n *powerNode) Update(_ float64, speed int) {
	if speed <= 0 {
		return
	}
	net := n.l.w.grid.NetworkOf(n.l.vertex(n.s))
	if net == nil {
		n.in.Add(0)
		n.out.Add(0)
		return
	}
	n.in.Add(net.Offered)
	n.out.Add(net.Delivered)
}

func (n *powerNode) Means() (in, out float64) { return n.in.Value(), n.out.Value() }

// port adapts a placed structure to the distribution pass.
type port struct {
	v powergrid.VertexID
	s *Structure
}

func (p port) Vertex() powergrid.VertexID { return p.v }
func (p port) Priority() int { return p.s.Schema.Def.Priority }
func (p port) DonorPriority() int { return p.s.Schema.Def.DonorPriority }
func (p port) Storage() bool { return p.s.Kind() == model.KindBattery }

func (p port) AcceptPower(amount, strength float64) float64 {
	return p.s.b.AcceptPower(amount, strength)
}

func (p port) Offer() float64 {
	if o, ok := p.s.b.(offerer); ok {
		return o.offer()
	}
	return 0
}

func (p port) Drain(amount float64) {
	if o, ok := p.s.b.(offerer); ok {
		o.drain(amount)
	}
}

// distributePower runs one pass per network on the topology of the last commit.
func (w *World) distributePower() {
	for _, n := range w.grid.Networks() {
		var donors []powergrid.Donor
		var receivers []powergrid.Receiver
		var settle []*Structure
		for _, v := range n.Sorted() {
			s := w.vertexStructure(v)
			if s == nil || s.Power == nil || s.b == nil {
				continue
			}
			s.Power.Accepted = 0
			p := port{v: v, s: s}
			if _, ok := s.b.(offerer); ok {
				donors = append(donors, p)
			}
			if s.Power.Demand > 0 {
				receivers = append(receivers, p)
			}
			settle = append(settle, s)
		}
		res := powergrid.Distribute(w.grid.Strength(n), donors, receivers)
		n.Offered, n.Delivered, n.Stored = res.Offered, res.Delivered, res.Stored
		for _, s := range settle {
			s.Power.Settle()
		}
	}
}

func (w *World) vertexStructure(v powergrid.VertexID) *Structure {
	l := w.Layer(v.Layer())
	if l == nil {
		return nil
	}
	return l.structureByIndex(v.Index())
}
