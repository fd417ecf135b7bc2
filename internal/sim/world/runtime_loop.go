package world

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

var ErrStopped = errors.New("world: stopped")

// Run drives Step from a ticker until ctx is done or Stop is called.
// Submitted edits are applied between ticks in arrival order.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	dt := interval.Seconds()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []func(*World)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case fn := <-w.inbox:
			pending = append(pending, fn)
		case <-ticker.C:
			for _, fn := range pending {
				fn(w)
			}
			pending = pending[:0]
			st := w.Step(dt, w.GameSpeed())
			w.maybeSnapshot(st.Tick)
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// Submit queues fn to run on the world goroutine before the next tick.
func (w *World) Submit(ctx context.Context, fn func(*World)) error {
	select {
	case w.inbox <- fn:
		return nil
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Call runs fn on the world goroutine and waits for it.
func (w *World) Call(ctx context.Context, fn func(*World)) error {
	done := make(chan struct{})
	if err := w.Submit(ctx, func(w *World) {
		defer close(done)
		fn(w)
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) maybeSnapshot(tick uint64) {
	every := w.cfg.SnapshotEveryTicks
	if w.snapshotSink == nil || every <= 0 || tick == 0 || tick%uint64(every) != 0 {
		return
	}
	snap := w.ExportSnapshot()
	select {
	case w.snapshotSink <- snap:
	default:
		w.log.Warn("snapshot sink full, skipping", zap.Uint64("tick", tick))
	}
}
