package powergrid

import (
	"math"
	"testing"
)

type fakeDonor struct {
	v       VertexID
	prio    int
	offer   float64
	storage bool
	drained float64
}

func (d *fakeDonor) Vertex() VertexID { return d.v }
func (d *fakeDonor) DonorPriority() int { return d.prio }
func (d *fakeDonor) Offer() float64 { return d.offer - d.drained }
func (d *fakeDonor) Storage() bool { return d.storage }
func (d *fakeDonor) Drain(amount float64) { d.drained += amount }

type fakeReceiver struct {
	v        VertexID
	prio     int
	want     float64
	storage  bool
	accepted float64
}

func (r *fakeReceiver) Vertex() VertexID { return r.v }
func (r *fakeReceiver) Priority() int { return r.prio }
func (r *fakeReceiver) Storage() bool { return r.storage }

func (r *fakeReceiver) AcceptPower(amount, strength float64) float64 {
	room := min(r.want, strength) - r.accepted
	take := max(0, min(amount, room))
	r.accepted += take
	return amount - take
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestPriorityOrderServesLowerFirst(t *testing.T) {
	gen := &fakeDonor{v: 1, offer: 1000}
	hi := &fakeReceiver{v: 3, prio: 1, want: 700}
	lo := &fakeReceiver{v: 2, prio: 2, want: 700}
	res := Distribute(1e9, []Donor{gen}, []Receiver{lo, hi})
	if hi.accepted != 700 || lo.accepted != 300 {
		t.Fatalf("priority 1 got %v, priority 2 got %v", hi.accepted, lo.accepted)
	}
	if res.Delivered != 1000 || gen.drained != 1000 {
		t.Fatalf("delivered=%v drained=%v", res.Delivered, gen.drained)
	}
}

func TestStrengthCapsThroughput(t *testing.T) {
	gen := &fakeDonor{v: 1, offer: 1000}
	a := &fakeReceiver{v: 2, prio: 1, want: 400}
	b := &fakeReceiver{v: 3, prio: 1, want: 400}
	res := Distribute(500, []Donor{gen}, []Receiver{a, b})
	if !near(res.Delivered, 500) || a.accepted != 400 || b.accepted != 100 {
		t.Fatalf("delivered=%v a=%v b=%v", res.Delivered, a.accepted, b.accepted)
	}
	if gen.drained != 500 {
		t.Fatalf("drained=%v", gen.drained)
	}
}

func TestSurplusChargesStorageFromGeneratorsOnly(t *testing.T) {
	gen := &fakeDonor{v: 1, offer: 100}
	bat := &fakeDonor{v: 2, offer: 200, prio: 5, storage: true}
	batIn := &fakeReceiver{v: 2, prio: 10, want: 200, storage: true}
	lamp := &fakeReceiver{v: 3, prio: 2, want: 30}
	res := Distribute(1e9, []Donor{bat, gen}, []Receiver{batIn, lamp})
	if lamp.accepted != 30 || batIn.accepted != 70 {
		t.Fatalf("lamp=%v battery charged=%v", lamp.accepted, batIn.accepted)
	}
	if bat.drained != 0 || gen.drained != 100 {
		t.Fatalf("battery drained=%v generator drained=%v", bat.drained, gen.drained)
	}
	if res.Stored != 70 || res.Delivered != 100 {
		t.Fatalf("res=%+v", res)
	}
}

func TestDeficitDrainsStorage(t *testing.T) {
	gen := &fakeDonor{v: 1, offer: 50}
	bat := &fakeDonor{v: 2, offer: 200, prio: 5, storage: true}
	batIn := &fakeReceiver{v: 2, prio: 10, want: 200, storage: true}
	load := &fakeReceiver{v: 3, prio: 1, want: 120}
	res := Distribute(1e9, []Donor{gen, bat}, []Receiver{load, batIn})
	if load.accepted != 120 || batIn.accepted != 0 {
		t.Fatalf("load=%v charged=%v", load.accepted, batIn.accepted)
	}
	if gen.drained != 50 || bat.drained != 70 {
		t.Fatalf("generator drained=%v battery drained=%v", gen.drained, bat.drained)
	}
	if res.Stored != 0 || res.Delivered != 120 {
		t.Fatalf("res=%+v", res)
	}
}

func TestDeliveredNeverExceedsOffer(t *testing.T) {
	gen := &fakeDonor{v: 1, offer: 10}
	r := &fakeReceiver{v: 2, want: 1000}
	res := Distribute(1e9, []Donor{gen}, []Receiver{r})
	if res.Delivered > res.Offered || r.accepted != 10 {
		t.Fatalf("res=%+v accepted=%v", res, r.accepted)
	}
	res = Distribute(0, []Donor{&fakeDonor{v: 1, offer: 10}}, []Receiver{&fakeReceiver{v: 2, want: 5}})
	if res.Delivered != 0 {
		t.Fatalf("zero-strength network delivered %v", res.Delivered)
	}
}
