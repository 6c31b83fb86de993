package world

import "lootsweep.ai/internal/sim/host"

type inventory struct {
	id    host.InventoryID
	slots []*host.Item
}

func (inv *inventory) firstEmpty(locked map[int]struct{}) int {
	for i, s := range inv.slots {
		if s != nil {
			continue
		}
		if _, isLocked := locked[i]; isLocked {
			continue
		}
		return i
	}
	return -1
}

func (inv *inventory) count() int {
	n := 0
	for _, s := range inv.slots {
		if s != nil {
			n++
		}
	}
	return n
}

func (inv *inventory) occupied() []host.Item {
	out := make([]host.Item, 0, len(inv.slots))
	for _, s := range inv.slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (inv *inventory) remove(id host.ItemID) {
	for i, s := range inv.slots {
		if s != nil && s.ID == id {
			inv.slots[i] = nil
			return
		}
	}
}
