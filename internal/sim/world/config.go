package world

import (
	"tilefactory.io/internal/sim/tuning"
	"tilefactory.io/internal/sim/world/kernel/model"
)

type WorldConfig struct {
	ID string

	Layers         int
	Width          int
	Height         int
	ChunkSize      int
	DefaultTerrain string

	// Visual variety for SetTile; never read by the simulation.
	TileSeed           int64
	AltTexturePermille int
	RotationPermille   int

	TickRateHz int
	GameSpeed  int

	BeltArmSlots int
	// StickyNotify keeps a belt's notification flag set after it re-checked its parked items.
	StickyNotify bool
	// StrictDocks keeps new footprints off cells that other structures' item
	// and fluid docks point at. Snapshot loads ignore it.
	StrictDocks bool

	PowerAverageWindow int
	PowerNodeRange     int
	Strengths          map[model.PowerClass]float64

	SnapshotEveryTicks int
	StatsEveryTicks    int
}

// ConfigFromTuning maps tuning.yaml sections onto a world config.
func ConfigFromTuning(id string, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                 id,
		Layers:             t.World.Layers,
		Width:              t.World.Width,
		Height:             t.World.Height,
		ChunkSize:          t.World.ChunkSize,
		DefaultTerrain:     t.World.DefaultTerrain,
		TileSeed:           t.World.TileSeed,
		AltTexturePermille: t.World.AltTexturePermille,
		RotationPermille:   t.World.RotationPermille,
		TickRateHz:         t.Sim.TickRateHz,
		GameSpeed:          t.Sim.GameSpeed,
		BeltArmSlots:       t.Sim.BeltArmSlots,
		StickyNotify:       t.Sim.NotifyPolicy == tuning.NotifySticky,
		StrictDocks:        t.Sim.StrictDocks,
		PowerAverageWindow: t.Sim.PowerAverageWindow,
		PowerNodeRange:     t.Sim.PowerNodeRange,
		Strengths: map[model.PowerClass]float64{
			model.ClassDock:     t.Sim.Strength(model.ClassDock.String()),
			model.ClassCable:    t.Sim.Strength(model.ClassCable.String()),
			model.ClassBigPower: t.Sim.Strength(model.ClassBigPower.String()),
			model.ClassShaft:    t.Sim.Strength(model.ClassShaft.String()),
		},
		SnapshotEveryTicks: t.Persistence.SnapshotEveryTicks,
		StatsEveryTicks:    t.Persistence.StatsEveryTicks,
	}
}

func (c *WorldConfig) applyDefaults() {
	d := ConfigFromTuning(c.ID, tuning.Defaults())
	if c.Layers <= 0 {
		c.Layers = d.Layers
	}
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.DefaultTerrain == "" {
		c.DefaultTerrain = d.DefaultTerrain
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = d.TickRateHz
	}
	if c.GameSpeed < 0 {
		c.GameSpeed = 0
	}
	if c.BeltArmSlots <= 0 {
		c.BeltArmSlots = d.BeltArmSlots
	}
	if c.PowerAverageWindow <= 0 {
		c.PowerAverageWindow = d.PowerAverageWindow
	}
	if c.PowerNodeRange < 0 {
		c.PowerNodeRange = 0
	}
	if c.Strengths == nil {
		c.Strengths = map[model.PowerClass]float64{}
	}
	for k, v := range d.Strengths {
		if c.Strengths[k] <= 0 {
			c.Strengths[k] = v
		}
	}
}
