package world

import (
	"crypto/sha256"
	"encoding/hex"

	"tilefactory.io/internal/sim/catalogs"
	"tilefactory.io/internal/sim/world/io/digestcodec"
)

// Digest hashes tiles, structures and items in transit. Two worlds that will
// behave identically from here on have the same digest; replays and the
// round-trip tests compare it.
func (w *World) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	digestcodec.U64(h, &tmp, w.tick.Load())
	for _, l := range w.layers {
		digestcodec.I64(h, &tmp, int64(l.Index))
		for _, c := range l.Chunks() {
			digestcodec.I64(h, &tmp, int64(c.CX))
			digestcodec.I64(h, &tmp, int64(c.CY))
			sum := c.Digest()
			h.Write(sum[:])
			for _, s := range c.list {
				digestStructure(h, &tmp, s)
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestStructure(h digestcodec.Writer, tmp *[8]byte, s *Structure) {
	digestcodec.String(h, tmp, s.ID())
	digestcodec.I64(h, tmp, int64(s.X))
	digestcodec.I64(h, tmp, int64(s.Y))
	digestcodec.U64(h, tmp, uint64(s.Up))
	if s.Inv != nil {
		digestStacks(h, tmp, s.Inv.Stacks())
	}
	if s.Out != nil {
		digestStacks(h, tmp, s.Out.Stacks())
	}
	if t := s.Tank; t != nil {
		digestcodec.U64(h, tmp, uint64(t.Fluid))
		digestcodec.I64(h, tmp, int64(t.Amount))
	}
	if p := s.Power; p != nil {
		digestcodec.F64(h, tmp, p.Stored)
		digestcodec.F64(h, tmp, p.Burn)
	}
	switch b := s.b.(type) {
	case *conveyor:
		digestcodec.Bool(h, b.notify)
		for _, it := range b.items() {
			digestItem(h, tmp, it)
		}
	case *router:
		digestcodec.I64(h, tmp, int64(b.next))
		digestcodec.F64(h, tmp, b.progress)
		if b.cur != nil {
			digestItem(h, tmp, b.cur)
		}
	case *producer:
		if b.active != nil {
			digestcodec.String(h, tmp, b.active.ID)
		}
		digestcodec.F64(h, tmp, b.progress)
	}
}

func digestItem(h digestcodec.Writer, tmp *[8]byte, it *Item) {
	digestcodec.U64(h, tmp, uint64(it.Item))
	digestcodec.I64(h, tmp, int64(it.Slot))
	digestcodec.F64(h, tmp, it.Interp)
	digestcodec.U64(h, tmp, uint64(it.Dir))
	digestcodec.I64(h, tmp, int64(it.Source))
}

func digestStacks(h digestcodec.Writer, tmp *[8]byte, st []catalogs.Stack) {
	digestcodec.U64(h, tmp, uint64(len(st)))
	for _, s := range st {
		digestcodec.U64(h, tmp, uint64(s.Item))
		digestcodec.I64(h, tmp, int64(s.Count))
	}
}
