// Package capacity answers whether the bounded store can take another item.
package capacity

import (
	"fmt"

	"lootsweep.ai/internal/sim/host"
)

// Probe remembers the last slot confirmed empty so repeated checks usually return on the first read.
type Probe struct {
	hint int
}

func (p *Probe) Hint() int { return p.hint }

func (p *Probe) Reset() { p.hint = 0 }

// HasFreeSlot reports whether the store has an unlocked empty slot. The scan starts at the hint and
// wraps around, so a slot freed below the hint is still found.
func (p *Probe) HasFreeSlot(store host.Store) (bool, error) {
	capacity := store.StoreCapacity()
	if capacity <= 0 || store.StoreCount() >= capacity {
		return false, nil
	}
	if p.hint < 0 || p.hint >= capacity {
		p.hint = 0
	}
	locked := store.StoreLockedIndexes()
	for n := 0; n < capacity; n++ {
		i := (p.hint + n) % capacity
		if _, isLocked := locked[i]; isLocked {
			continue
		}
		_, occupied, err := store.StoreSlotAt(i)
		if err != nil {
			return false, fmt.Errorf("store slot %d: %w", i, err)
		}
		if !occupied {
			p.hint = i
			return true, nil
		}
	}
	return false, nil
}

// Headroom sums the free stack space over store slots holding the same item type. It reads only.
func Headroom(store host.Store, item host.Item) (int, error) {
	if !item.Stackable {
		return 0, nil
	}
	total := 0
	capacity := store.StoreCapacity()
	for i := 0; i < capacity; i++ {
		s, occupied, err := store.StoreSlotAt(i)
		if err != nil {
			return 0, fmt.Errorf("store slot %d: %w", i, err)
		}
		if !occupied || s.TypeID != item.TypeID {
			continue
		}
		if free := s.MaxStack - s.StackCount; free > 0 {
			total += free
		}
	}
	return total, nil
}

// CanStack reports whether existing stacks absorb the item fully or partially.
func CanStack(store host.Store, item host.Item) (bool, error) {
	h, err := Headroom(store, item)
	return h > 0, err
}

// Admit is the per-item gate: a free slot or stacking headroom.
func (p *Probe) Admit(store host.Store, item host.Item) (bool, error) {
	free, err := p.HasFreeSlot(store)
	if err != nil {
		return false, err
	}
	if free {
		return true, nil
	}
	return CanStack(store, item)
}
