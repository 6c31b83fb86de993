package world

import "lootsweep.ai/internal/sim/tuning"

type WorldConfig struct {
	Name      string
	BaseLevel bool

	Seed            int64
	SpawnEveryTicks int
	MaxContainers   int
	SpawnRadius     int
	StoreCapacity   int

	// Operational parameters. These are included in snapshots for resume.
	SnapshotEveryTicks int
}

func ConfigFromTuning(s tuning.SandboxTuning) WorldConfig {
	return WorldConfig{
		Seed:               s.Seed,
		SpawnEveryTicks:    s.SpawnEveryTicks,
		MaxContainers:      s.MaxContainers,
		SpawnRadius:        s.SpawnRadius,
		StoreCapacity:      s.StoreCapacity,
		SnapshotEveryTicks: s.SnapshotEveryTicks,
	}
}

func (c *WorldConfig) applyDefaults() {
	if c.Name == "" {
		c.Name = "sandbox"
	}
	if c.SpawnEveryTicks < 0 {
		c.SpawnEveryTicks = 0
	}
	if c.MaxContainers <= 0 {
		c.MaxContainers = 64
	}
	if c.SpawnRadius <= 0 {
		c.SpawnRadius = 24
	}
	if c.StoreCapacity <= 0 {
		c.StoreCapacity = 40
	}
}
