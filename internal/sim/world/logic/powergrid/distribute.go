package powergrid

import "sort"

// Donor offers energy to its network for one pass.
type Donor interface {
	Vertex() VertexID
	DonorPriority() int
	Offer() float64
	// Storage donors only give when the network is in deficit.
	Storage() bool
	Drain(amount float64)
}

// Receiver takes energy. AcceptPower returns the part of amount it did not take
// and never takes more than strength minus what it already took this pass.
type Receiver interface {
	Vertex() VertexID
	Priority() int
	// Storage receivers only take surplus left after every other receiver.
	Storage() bool
	AcceptPower(amount, strength float64) float64
}

type Result struct {
	Offered   float64
	Delivered float64
	// Stored is the part of Delivered that went into storage receivers.
	Stored float64
}

// Distribute runs one pass: demand is served in receiver priority order (lower
// first), storage charges from leftover generation, and donors are drained in
// donor priority order. Delivered never exceeds the offer nor strength.
func Distribute(strength float64, donors []Donor, receivers []Receiver) Result {
	donors = append([]Donor(nil), donors...)
	receivers = append([]Receiver(nil), receivers...)
	sort.SliceStable(donors, func(i, j int) bool {
		if donors[i].DonorPriority() != donors[j].DonorPriority() {
			return donors[i].DonorPriority() < donors[j].DonorPriority()
		}
		return donors[i].Vertex() < donors[j].Vertex()
	})
	sort.SliceStable(receivers, func(i, j int) bool {
		if receivers[i].Priority() != receivers[j].Priority() {
			return receivers[i].Priority() < receivers[j].Priority()
		}
		return receivers[i].Vertex() < receivers[j].Vertex()
	})

	var genOffer, storeOffer float64
	for _, d := range donors {
		o := d.Offer()
		if o <= 0 {
			continue
		}
		if d.Storage() {
			storeOffer += o
		} else {
			genOffer += o
		}
	}
	res := Result{Offered: genOffer + storeOffer}
	if strength <= 0 {
		return res
	}

	avail := min(strength, genOffer+storeOffer)
	var demand float64
	for _, r := range receivers {
		if r.Storage() {
			continue
		}
		left := avail - demand
		if left <= 0 {
			break
		}
		demand += left - r.AcceptPower(left, strength)
	}

	if demand > genOffer {
		// Deficit: storage joins the donors; nothing is left to charge with.
		drain(donors, demand, true)
		res.Delivered = demand
		return res
	}

	charge := 0.0
	spare := min(genOffer, strength) - demand
	for _, r := range receivers {
		if !r.Storage() || spare-charge <= 0 {
			continue
		}
		left := spare - charge
		charge += left - r.AcceptPower(left, strength)
	}
	drain(donors, demand+charge, false)
	res.Delivered = demand + charge
	res.Stored = charge
	return res
}

func drain(donors []Donor, amount float64, withStorage bool) {
	for _, d := range donors {
		if amount <= 0 {
			return
		}
		if d.Storage() && !withStorage {
			continue
		}
		take := min(d.Offer(), amount)
		if take <= 0 {
			continue
		}
		d.Drain(take)
		amount -= take
	}
}
