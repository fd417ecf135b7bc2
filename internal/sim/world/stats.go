package world

// TickStats summarises one finished tick. It feeds the tick log, the index
// database and the observer frame.
type TickStats struct {
	Tick           uint64  `json:"tick"`
	Structures     int     `json:"structures"`
	ItemsInTransit int     `json:"items_in_transit"`
	Networks       int     `json:"networks"`
	PowerOffered   float64 `json:"power_offered"`
	PowerDelivered float64 `json:"power_delivered"`
	DurationMicros int64   `json:"duration_us"`
}

func (w *World) collectStats(tick uint64) TickStats {
	st := TickStats{Tick: tick}
	for _, l := range w.layers {
		for _, c := range l.Chunks() {
			st.Structures += len(c.list)
			for _, s := range c.conveyors {
				if h, ok := s.b.(itemHolder); ok {
					st.ItemsInTransit += len(h.items())
				}
			}
		}
	}
	nets := w.grid.Networks()
	st.Networks = len(nets)
	for _, n := range nets {
		st.PowerOffered += n.Offered
		st.PowerDelivered += n.Delivered
	}
	return st
}

// LastStats returns the stats of the last finished tick.
func (w *World) LastStats() TickStats { return w.lastStats }
