package world

import (
	"sort"

	"tilefactory.io/internal/sim/catalogs"
	"tilefactory.io/internal/sim/world/kernel/model"
)

// StructureVersion is written with every persisted structure.
const StructureVersion = 1

// Dock is a schema dock resolved through the owner's rotation. X,Y is the
// cell inside the footprint; TX,TY is the partner cell outside it.
type Dock struct {
	X, Y   int
	TX, TY int
	Dir    Dir
	Type   DockType
	Filter catalogs.Filter
}

// Structure is a placed instance of a schema. Its origin is the top-left
// cell of the rotated footprint.
type Structure struct {
	Schema *Schema
	X, Y   int
	W, H   int
	Up     Dir
	Layer  int

	Docks []Dock

	Inv   *Inventory
	Out   *Inventory
	Tank  *Tank
	Power *PowerState

	b Behavior
}

// NewStructure builds an unplaced structure. up is North for unrotated placement.
func NewStructure(schema *Schema, x, y int, up Dir) *Structure {
	if !up.Valid() || !schema.Def.Rotatable {
		up = North
	}
	s := &Structure{Schema: schema, X: x, Y: y, Up: up}
	s.resolve()

	def := schema.Def
	switch schema.Kind {
	case model.KindProducer, model.KindContainer, model.KindGenerator:
		size := def.InventorySize
		if size <= 0 {
			size = 10
		}
		s.Inv = NewInventory(size)
		if schema.Kind == model.KindProducer {
			s.Out = NewInventory(size)
		}
	case model.KindTank:
		s.Tank = &Tank{Capacity: def.FluidCapacity, Fluid: NoItem}
	case model.KindPump:
		s.Tank = &Tank{Capacity: max(1, def.FluidRate), Fluid: NoItem}
	}
	if def.PowerDemand > 0 || def.PowerOffer > 0 || schema.Kind == model.KindBattery {
		s.Power = &PowerState{Demand: def.PowerDemand}
	}
	return s
}

func (s *Structure) resolve() {
	turns := int(s.Up)
	s.W, s.H = model.RotatedSize(s.Schema.Width(), s.Schema.Height(), turns)
	s.Docks = s.Docks[:0]
	for _, d := range s.Schema.Docks {
		lx, ly := model.RotateOffset(d.X, d.Y, s.Schema.Width(), s.Schema.Height(), turns)
		dir := d.Dir.Rotate(turns)
		x, y := s.X+lx, s.Y+ly
		s.Docks = append(s.Docks, Dock{
			X: x, Y: y,
			TX: x + dir.DX(), TY: y + dir.DY(),
			Dir:    dir,
			Type:   d.Type,
			Filter: d.Filter,
		})
	}
}

func (s *Structure) Kind() Kind { return s.Schema.Kind }

func (s *Structure) ID() string { return s.Schema.ID() }

// Index is the grid index of the origin cell.
func (s *Structure) Index(width int) int32 { return int32(s.Y*width + s.X) }

func (s *Structure) Covers(x, y int) bool {
	return x >= s.X && y >= s.Y && x < s.X+s.W && y < s.Y+s.H
}

func (s *Structure) Behavior() Behavior { return s.b }

func (s *Structure) eachCell(fn func(x, y int)) {
	for y := s.Y; y < s.Y+s.H; y++ {
		for x := s.X; x < s.X+s.W; x++ {
			fn(x, y)
		}
	}
}

func (s *Structure) isConveyorLike() bool {
	k := s.Kind()
	return k.IsBelt() || k == model.KindRouter || k == model.KindSorter
}

// DockAt returns the first dock whose partner cell is x,y and whose type matches.
func (s *Structure) DockAt(x, y int, match func(DockType) bool) (Dock, bool) {
	for _, d := range s.Docks {
		if d.TX == x && d.TY == y && match(d.Type) {
			return d, true
		}
	}
	return Dock{}, false
}

// Inventory is a bounded item multiset.
type Inventory struct {
	Size  int
	items map[ItemID]int
	total int
}

func NewInventory(size int) *Inventory {
	return &Inventory{Size: size, items: map[ItemID]int{}}
}

func (v *Inventory) Count(item ItemID) int { return v.items[item] }

func (v *Inventory) Total() int { return v.total }

func (v *Inventory) Room() int { return max(0, v.Size-v.total) }

// Add stores up to n items and returns how many did not fit.
func (v *Inventory) Add(item ItemID, n int) int {
	take := min(n, v.Room())
	if take <= 0 {
		return n
	}
	v.items[item] += take
	v.total += take
	return n - take
}

// Take removes up to n items and returns how many were removed.
func (v *Inventory) Take(item ItemID, n int) int {
	take := min(n, v.items[item])
	if take <= 0 {
		return 0
	}
	v.items[item] -= take
	if v.items[item] == 0 {
		delete(v.items, item)
	}
	v.total -= take
	return take
}

func (v *Inventory) Has(stacks []catalogs.Stack) bool {
	for _, st := range stacks {
		if v.items[st.Item] < st.Count {
			return false
		}
	}
	return true
}

// Stacks lists the contents ordered by item id.
func (v *Inventory) Stacks() []catalogs.Stack {
	out := make([]catalogs.Stack, 0, len(v.items))
	for item, n := range v.items {
		out = append(out, catalogs.Stack{Item: item, Count: n})
	}
	sortStacks(out)
	return out
}

// First returns the lowest item id present.
func (v *Inventory) First() (ItemID, bool) {
	best, ok := NoItem, false
	for item, n := range v.items {
		if n > 0 && (!ok || item < best) {
			best, ok = item, true
		}
	}
	return best, ok
}

// Tank holds one fluid type.
type Tank struct {
	Capacity int
	Fluid    ItemID
	Amount   int
	carry    float64
}

// Fill stores up to amount of fluid and returns the remainder.
func (t *Tank) Fill(fluid ItemID, amount int) int {
	if amount <= 0 {
		return amount
	}
	if t.Amount > 0 && t.Fluid != fluid {
		return amount
	}
	take := min(amount, t.Capacity-t.Amount)
	if take <= 0 {
		return amount
	}
	t.Fluid = fluid
	t.Amount += take
	return amount - take
}

func (t *Tank) Drain(amount int) int {
	take := min(amount, t.Amount)
	t.Amount -= take
	if t.Amount == 0 {
		t.Fluid = NoItem
	}
	return take
}

// PowerState is the power side of a structure for the current tick.
type PowerState struct {
	// Demand is the per-tick amount needed for full speed.
	Demand   float64
	Accepted float64
	Ratio    float64
	Status   PowerStatus

	// Battery charge or generator burn time left.
	Stored float64
	Burn   float64
}

// Settle turns what was accepted this tick into a status.
func (p *PowerState) Settle() {
	if p.Demand <= 0 {
		p.Ratio, p.Status = 1, Powered
		return
	}
	p.Ratio = min(1, p.Accepted/p.Demand)
	switch {
	case p.Ratio <= 0:
		p.Status = Unpowered
	case p.Ratio < 0.5:
		p.Status = Starved
	default:
		p.Status = Powered
	}
}

func sortStacks(st []catalogs.Stack) {
	sort.Slice(st, func(i, j int) bool { return st[i].Item < st[j].Item })
}
