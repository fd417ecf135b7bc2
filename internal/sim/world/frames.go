package world

import "github.com/sasha-s/go-deadlock"

// frameHistory is how many published frames stay available to readers that
// fall behind.
const frameHistory = 64

// frameRing holds the most recent frames, oldest first. Ticks are
// consecutive because every Step publishes exactly one frame.
type frameRing struct {
	mu     deadlock.RWMutex
	frames []*Frame
	// next is the tick of the next frame to be published.
	next uint64
}

func (r *frameRing) push(f *Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == frameHistory {
		copy(r.frames, r.frames[1:])
		r.frames = r.frames[:frameHistory-1]
	}
	r.frames = append(r.frames, f)
	r.next = f.Tick + 1
}

func (r *frameRing) reset(next uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
	r.next = next
}

// FramesFrom returns the published frames whose Tick is at least tick,
// oldest first. ok is false when the frames for tick are no longer retained,
// or when tick is ahead of the world after it was rewound by a snapshot
// import; the reader then needs a full resync. Safe from any goroutine.
func (w *World) FramesFrom(tick uint64) (frames []*Frame, ok bool) {
	r := &w.history
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tick > r.next {
		return nil, false
	}
	oldest := r.next
	if len(r.frames) > 0 {
		oldest = r.frames[0].Tick
	}
	if tick < oldest {
		return nil, false
	}
	for _, f := range r.frames {
		if f.Tick >= tick {
			frames = append(frames, f)
		}
	}
	return frames, true
}
