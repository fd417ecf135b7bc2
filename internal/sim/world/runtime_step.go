package world

import (
	"time"

	"go.uber.org/zap"
)

// Step advances the world by one tick of dt seconds at the given game speed.
// Speed 0 pauses: nothing moves or produces, but pending edits are still
// reconciled and a frame is published.
//
// Order: promote dirty bounds, distribute power over the topology committed
// last tick, update every structure in chunk order, feed powered belts, run
// the item pass, commit power topology, reconcile dirty bounds.
func (w *World) Step(dt float64, speed int) TickStats {
	start := time.Now()
	nowTick := w.tick.Load()

	for _, l := range w.layers {
		l.beginTick()
	}
	if speed > 0 {
		w.distributePower()
	}
	for _, l := range w.layers {
		l.updateStructures(dt, speed)
	}
	for _, l := range w.layers {
		l.feedPoweredBelts()
		l.updateItems(dt, speed)
	}
	w.grid.Commit()
	for _, l := range w.layers {
		l.postUpdate()
	}

	st := w.collectStats(nowTick)
	st.DurationMicros = time.Since(start).Microseconds()
	w.lastStats = st
	w.publishFrame(st)
	w.tick.Add(1)

	if w.tickLogger != nil {
		if every := w.cfg.StatsEveryTicks; every <= 0 || nowTick%uint64(every) == 0 {
			if err := w.tickLogger.WriteTick(st); err != nil {
				w.log.Warn("tick log write failed", zap.Uint64("tick", nowTick), zap.Error(err))
			}
		}
	}
	return st
}

func (l *Layer) updateStructures(dt float64, speed int) {
	for _, c := range l.Chunks() {
		for _, s := range c.list {
			if s.b != nil {
				s.b.Update(dt, speed)
			}
		}
	}
}

func (l *Layer) updateItems(dt float64, speed int) {
	for _, c := range l.Chunks() {
		for _, s := range c.conveyors {
			if m, ok := s.b.(itemMover); ok {
				m.updateItems(dt, speed)
			}
		}
	}
}
