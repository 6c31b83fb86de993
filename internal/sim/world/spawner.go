package world

import (
	"lootsweep.ai/internal/sim/host"
	"lootsweep.ai/internal/sim/logic/mathx"
)

// Step advances the world clock. Every SpawnEveryTicks it places one catalog container with loot
// around the actor, up to MaxContainers. Placement depends only on seed and tick.
func (w *World) Step(tick uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick = tick
	if w.cat == nil || w.cfg.SpawnEveryTicks <= 0 || tick%uint64(w.cfg.SpawnEveryTicks) != 0 {
		return
	}
	if len(w.containers) >= w.cfg.MaxContainers {
		return
	}
	w.spawnLocked(tick)
}

func (w *World) spawnLocked(tick uint64) {
	seed := w.cfg.Seed
	t := int(tick)
	kind, ok := w.cat.Containers.Pick(mathx.Hash3(seed, t, 0, 0))
	if !ok {
		return
	}

	r := w.cfg.SpawnRadius
	span := uint64(2*r + 1)
	pos := host.Vec3{
		X: w.actor.X + float64(int(mathx.Hash3(seed, t, 1, 0)%span)-r),
		Y: w.actor.Y,
		Z: w.actor.Z + float64(int(mathx.Hash3(seed, t, 2, 0)%span)-r),
	}
	id := w.addContainerLocked(kind.Name, pos, kind.Capacity)
	inv := w.invs[w.byID[id].inv]

	n := 1 + int(mathx.Hash3(seed, t, 3, 0)%uint64(kind.Capacity))
	for i := 0; i < n; i++ {
		def, ok := w.cat.Items.Pick(mathx.Hash3(seed, t, 4, i))
		if !ok {
			return
		}
		it := def.Instance(def.SpawnCount)
		it.Pos = pos
		if _, err := w.placeLocked(inv, -1, it); err != nil {
			return
		}
	}
}
