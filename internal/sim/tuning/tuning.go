package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	World       World       `yaml:"world"`
	Sim         Sim         `yaml:"sim"`
	Persistence Persistence `yaml:"persistence"`
	Observer    Observer    `yaml:"observer"`
	Logging     Logging     `yaml:"logging"`
}

type World struct {
	Layers         int    `yaml:"layers"`
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	ChunkSize      int    `yaml:"chunk_size"`
	DefaultTerrain string `yaml:"default_terrain"`
	TileSeed       int64  `yaml:"tile_seed"`

	// Per-mille chance that SetTile picks the alternate texture / a random rotation.
	AltTexturePermille int `yaml:"alt_texture_permille"`
	RotationPermille   int `yaml:"rotation_permille"`
}

type Sim struct {
	TickRateHz int `yaml:"tick_rate_hz"`
	GameSpeed  int `yaml:"game_speed"`

	BeltArmSlots int `yaml:"belt_arm_slots"`
	// "clear" re-checks a parked belt once per notification, "sticky" keeps re-checking.
	NotifyPolicy string `yaml:"notify_policy"`
	// Refuse placements whose footprint covers another structure's item or fluid dock.
	StrictDocks bool `yaml:"strict_docks"`

	PowerAverageWindow int                `yaml:"power_average_window"`
	PowerNodeRange     int                `yaml:"power_node_range"`
	Strengths          map[string]float64 `yaml:"strengths"`
}

type Persistence struct {
	DataDir            string `yaml:"data_dir"`
	SnapshotEveryTicks int    `yaml:"snapshot_every_ticks"`
	TickLog            bool   `yaml:"tick_log"`
	IndexDB            bool   `yaml:"index_db"`
	StatsEveryTicks    int    `yaml:"stats_every_ticks"`
}

type Observer struct {
	Listen string `yaml:"listen"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

const (
	NotifyClear  = "clear"
	NotifySticky = "sticky"
)

func Defaults() Tuning {
	return Tuning{
		World: World{
			Layers:             1,
			Width:              256,
			Height:             256,
			ChunkSize:          32,
			DefaultTerrain:     "GRASS",
			TileSeed:           1,
			AltTexturePermille: 150,
			RotationPermille:   250,
		},
		Sim: Sim{
			TickRateHz:         20,
			GameSpeed:          1,
			BeltArmSlots:       2,
			NotifyPolicy:       NotifyClear,
			PowerAverageWindow: 60,
			PowerNodeRange:     6,
			Strengths: map[string]float64{
				"dock":      1e9,
				"cable":     500,
				"big_power": 5000,
				"shaft":     5000,
			},
		},
		Persistence: Persistence{
			DataDir:            "./data",
			SnapshotEveryTicks: 1200,
			TickLog:            true,
			IndexDB:            true,
			StatsEveryTicks:    20,
		},
		Observer: Observer{Listen: "127.0.0.1:8080"},
		Logging:  Logging{Level: "info"},
	}
}

// Load reads path over Defaults(); keys missing from the file keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.World.Layers <= 0 {
		errs = append(errs, errors.New("world.layers must be > 0"))
	}
	if t.World.Width <= 0 || t.World.Height <= 0 {
		errs = append(errs, errors.New("world.width/height must be > 0"))
	}
	if t.World.ChunkSize <= 0 {
		errs = append(errs, errors.New("world.chunk_size must be > 0"))
	}
	if t.Sim.TickRateHz <= 0 {
		errs = append(errs, errors.New("sim.tick_rate_hz must be > 0"))
	}
	if t.Sim.GameSpeed < 0 {
		errs = append(errs, errors.New("sim.game_speed must be >= 0"))
	}
	if t.Sim.BeltArmSlots <= 0 {
		errs = append(errs, errors.New("sim.belt_arm_slots must be > 0"))
	}
	switch t.Sim.NotifyPolicy {
	case NotifyClear, NotifySticky:
	default:
		errs = append(errs, fmt.Errorf("sim.notify_policy %q: want %q or %q", t.Sim.NotifyPolicy, NotifyClear, NotifySticky))
	}
	if t.Sim.PowerAverageWindow <= 0 {
		errs = append(errs, errors.New("sim.power_average_window must be > 0"))
	}
	return errors.Join(errs...)
}

// Strength returns the throughput cap configured for a power class name.
func (s Sim) Strength(class string) float64 {
	if v, ok := s.Strengths[class]; ok && v > 0 {
		return v
	}
	return Defaults().Sim.Strengths[class]
}
