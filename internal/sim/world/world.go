package world

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"tilefactory.io/internal/persistence/snapshot"
	"tilefactory.io/internal/sim/catalogs"
	"tilefactory.io/internal/sim/world/feature/conveyor/runtime"
	"tilefactory.io/internal/sim/world/logic/powergrid"
)

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine; other
// goroutines read the published Frame or go through Submit.
type World struct {
	cfg  WorldConfig
	cats *catalogs.Catalogs
	log  *zap.Logger

	hooks  Hooks
	layout runtime.Layout

	layers []*Layer
	grid   *powergrid.Grid

	tick  atomic.Uint64
	speed atomic.Int32
	frame atomic.Pointer[Frame]

	history frameRing

	inbox chan func(*World)
	stop  chan struct{}

	lastStats TickStats

	// Optional logger (may be nil). Implemented in internal/persistence/log.
	tickLogger TickLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1
}

// Hooks are the optional collaborators the simulation reports to.
// A nil func is a no-op.
type Hooks struct {
	Sound        func(name string, layer, x, y int)
	SeenResource func(item ItemID)
}

func (h Hooks) sound(name string, s *Structure) {
	if h.Sound != nil {
		h.Sound(name, s.Layer, s.X, s.Y)
	}
}

func (h Hooks) seen(item ItemID) {
	if h.SeenResource != nil {
		h.SeenResource(item)
	}
}

type TickLogger interface {
	WriteTick(stats TickStats) error
}

type Option func(*World)

func WithLogger(l *zap.Logger) Option {
	return func(w *World) {
		if l != nil {
			w.log = l
		}
	}
}

func WithHooks(h Hooks) Option { return func(w *World) { w.hooks = h } }

func WithTickLogger(t TickLogger) Option { return func(w *World) { w.tickLogger = t } }

// WithSnapshotSink makes Run hand a snapshot to ch every SnapshotEveryTicks.
// Sends never block the loop; a full channel skips that snapshot.
func WithSnapshotSink(ch chan<- snapshot.SnapshotV1) Option {
	return func(w *World) { w.snapshotSink = ch }
}

func New(cfg WorldConfig, cats *catalogs.Catalogs, opts ...Option) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	cfg.applyDefaults()
	def, ok := cats.Terrain.Index[cfg.DefaultTerrain]
	if !ok {
		return nil, fmt.Errorf("world: missing terrain id in palette: %s", cfg.DefaultTerrain)
	}
	w := &World{
		cfg:    cfg,
		cats:   cats,
		log:    zap.NewNop(),
		layout: runtime.NewLayout(cfg.BeltArmSlots),
		grid:   powergrid.New(cfg.Strengths),
		inbox:  make(chan func(*World), 1024),
		stop:   make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}
	w.speed.Store(int32(cfg.GameSpeed))
	for i := 0; i < cfg.Layers; i++ {
		w.layers = append(w.layers, newLayer(w, i, def))
	}
	w.frame.Store(&Frame{})
	return w, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) Catalogs() *catalogs.Catalogs { return w.cats }

func (w *World) Tick() uint64 { return w.tick.Load() }

func (w *World) TickRateHz() int { return w.cfg.TickRateHz }

// Layer returns layer i, nil when out of range.
func (w *World) Layer(i int) *Layer {
	if i < 0 || i >= len(w.layers) {
		return nil
	}
	return w.layers[i]
}

func (w *World) Layers() []*Layer { return w.layers }

// Networks returns the committed power networks by id.
func (w *World) Networks() []*powergrid.Network { return w.grid.Networks() }

// GameSpeed is the multiplier Run passes to Step; 0 pauses.
func (w *World) GameSpeed() int { return int(w.speed.Load()) }

// SetGameSpeed may be called from any goroutine.
func (w *World) SetGameSpeed(speed int) { w.speed.Store(int32(max(0, speed))) }

// Frame is the read-only view published after every tick.
type Frame struct {
	Tick   uint64
	Layers []LayerFrame
	Stats  TickStats
}

type LayerFrame struct {
	Index  int
	Dirty  Bounds
	Chunks []ChunkFrame
}

// ChunkFrame carries a copy of the tiles of a chunk touched last tick.
type ChunkFrame struct {
	CX, CY int
	Tiles  []uint16
}

// Frame returns the last published frame. Safe from any goroutine.
func (w *World) Frame() *Frame { return w.frame.Load() }

func (w *World) publishFrame(stats TickStats) {
	f := &Frame{Tick: stats.Tick, Stats: stats, Layers: make([]LayerFrame, 0, len(w.layers))}
	for _, l := range w.layers {
		lf := LayerFrame{Index: l.Index, Dirty: l.DirtySinceLastFrame()}
		for _, p := range l.DirtyChunks() {
			c := l.chunkXY(p.X, p.Y)
			if c == nil || !c.active {
				continue
			}
			cells := c.Tiles()
			raw := make([]uint16, len(cells))
			for i, v := range cells {
				raw[i] = uint16(v)
			}
			lf.Chunks = append(lf.Chunks, ChunkFrame{CX: p.X, CY: p.Y, Tiles: raw})
		}
		f.Layers = append(f.Layers, lf)
	}
	w.history.push(f)
	w.frame.Store(f)
}
