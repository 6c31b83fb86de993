// Package unload removes ammunition from weapons found in containers, once per weapon per session.
package unload

import (
	"lootsweep.ai/internal/sim/host"
	"lootsweep.ai/internal/sim/logic/ids"
)

type Outcome int

const (
	Skipped Outcome = iota // already recorded
	MarkedEmpty
	Unloaded
)

func (o Outcome) String() string {
	switch o {
	case MarkedEmpty:
		return "marked_empty"
	case Unloaded:
		return "unloaded"
	default:
		return "skipped"
	}
}

type Tracker struct {
	tag     string
	records map[string]struct{}
}

func New(weaponTag string) *Tracker {
	return &Tracker{tag: weaponTag, records: map[string]struct{}{}}
}

func (t *Tracker) IsGun(item host.Item) bool {
	return t.tag != "" && item.HasTag(t.tag)
}

// RecordKey identifies a weapon by (container, slot) when its slot resolves, else by the
// fallback of display name, instance id and rounded position.
func (t *Tracker) RecordKey(container host.ContainerID, item host.Item, world host.World) string {
	if slot, ok := slotOf(item, world); ok {
		return ids.UnloadKey(uint64(container), slot)
	}
	return ids.WeaponFallbackKey(item.DisplayName, uint64(item.ID), item.Pos.X, item.Pos.Y, item.Pos.Z)
}

func slotOf(item host.Item, world host.World) (int, bool) {
	if item.Owner == 0 || world == nil {
		return 0, false
	}
	n, err := world.InventoryCapacity(item.Owner)
	if err != nil {
		return 0, false
	}
	for i := 0; i < n; i++ {
		s, ok, err := world.InventorySlotAt(item.Owner, i)
		if err != nil {
			return 0, false
		}
		if ok && s.ID == item.ID {
			return i, true
		}
	}
	return 0, false
}

// UnloadOnce empties the weapon unless its key is recorded. Empty weapons are recorded without a
// call. A failed removal leaves the key unrecorded so a later pass retries it.
func (t *Tracker) UnloadOnce(container host.ContainerID, item host.Item, world host.World, armory host.Armory) (Outcome, error) {
	key := t.RecordKey(container, item, world)
	if _, done := t.records[key]; done {
		return Skipped, nil
	}
	if item.Rounds <= 0 {
		t.records[key] = struct{}{}
		return MarkedEmpty, nil
	}
	if err := armory.RemoveAllAmmunition(item.ID); err != nil {
		return Skipped, err
	}
	t.records[key] = struct{}{}
	return Unloaded, nil
}

func (t *Tracker) Recorded(key string) bool {
	_, ok := t.records[key]
	return ok
}

func (t *Tracker) Len() int { return len(t.records) }

func (t *Tracker) Reset() {
	t.records = map[string]struct{}{}
}
