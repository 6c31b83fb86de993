package world

import (
	"fmt"

	"lootsweep.ai/internal/sim/catalogs"
	"lootsweep.ai/internal/sim/host"
)

var _ host.Host = (*World)(nil)

func (w *World) EnumerateContainers() ([]host.Container, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enumerateErr != nil {
		return nil, w.enumerateErr
	}
	out := make([]host.Container, 0, len(w.containers))
	for _, c := range w.containers {
		out = append(out, c.Container)
	}
	return out, nil
}

func (w *World) ContainerAlive(id host.ContainerID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.byID[id]
	return ok
}

func (w *World) ContainerInventory(id host.ContainerID) (host.InventoryID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoContainer, id)
	}
	return c.inv, nil
}

func (w *World) InventoryItems(id host.InventoryID) ([]host.Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	inv, ok := w.invs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoInventory, id)
	}
	return inv.occupied(), nil
}

func (w *World) InventoryCapacity(id host.InventoryID) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	inv, ok := w.invs[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoInventory, id)
	}
	return len(inv.slots), nil
}

func (w *World) InventorySlotAt(id host.InventoryID, i int) (host.Item, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	inv, ok := w.invs[id]
	if !ok {
		return host.Item{}, false, fmt.Errorf("%w: %d", ErrNoInventory, id)
	}
	if i < 0 || i >= len(inv.slots) {
		return host.Item{}, false, fmt.Errorf("slot %d out of range", i)
	}
	if inv.slots[i] == nil {
		return host.Item{}, false, nil
	}
	return *inv.slots[i], true, nil
}

func (w *World) ActorPosition() (host.Vec3, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.actor, w.hasActor
}

func (w *World) StoreCapacity() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.store.slots)
}

func (w *World) StoreCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.count()
}

func (w *World) StoreSlotAt(i int) (host.Item, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i < 0 || i >= len(w.store.slots) {
		return host.Item{}, false, fmt.Errorf("store slot %d out of range", i)
	}
	if w.store.slots[i] == nil {
		return host.Item{}, false, nil
	}
	return *w.store.slots[i], true, nil
}

func (w *World) StoreLockedIndexes() map[int]struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[int]struct{}, len(w.locked))
	for i := range w.locked {
		out[i] = struct{}{}
	}
	return out
}

// DepositItem tops up existing stacks of the same type first and puts any remainder in the first
// unlocked empty slot. A remainder that does not fit stays in the source; the call still reports
// success when anything moved. fromStash is accepted for interface parity and ignored.
func (w *World) DepositItem(id host.ItemID, fromStash bool) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.depositErr != nil {
		return false, w.depositErr
	}
	it, ok := w.items[id]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrNoItem, id)
	}
	src, ok := w.invs[it.Owner]
	if !ok || src == w.store {
		return false, fmt.Errorf("item %d is not in a container", id)
	}

	moved := false
	if it.Stackable {
		for _, s := range w.store.slots {
			if s == nil || s.TypeID != it.TypeID {
				continue
			}
			free := s.MaxStack - s.StackCount
			if free <= 0 {
				continue
			}
			n := free
			if it.StackCount < n {
				n = it.StackCount
			}
			s.StackCount += n
			it.StackCount -= n
			moved = true
			if it.StackCount == 0 {
				break
			}
		}
		if it.StackCount == 0 {
			src.remove(id)
			delete(w.items, id)
			return true, nil
		}
	}

	slot := w.store.firstEmpty(w.locked)
	if slot < 0 {
		return moved, nil
	}
	src.remove(id)
	it.Owner = w.store.id
	w.store.slots[slot] = it
	return true, nil
}

func (w *World) WishlistInfo(typeID int) (host.WishlistInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.wishlistErr != nil {
		return host.WishlistInfo{}, w.wishlistErr
	}
	return host.WishlistInfo{IsManuallyWishlisted: w.wishlist[typeID]}, nil
}

// RemoveAllAmmunition empties a weapon. With a catalog the rounds come back as ammunition stacks in
// the weapon's inventory; rounds that do not fit are discarded.
func (w *World) RemoveAllAmmunition(id host.ItemID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	it, ok := w.items[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrNoItem, id)
	}
	if it.Rounds <= 0 {
		return nil
	}
	var ammo catalogs.ItemDef
	if w.cat != nil {
		def, ok := w.cat.Items.Item(it.TypeID)
		if ok && def.AmmoType != 0 {
			if ammo, ok = w.cat.Items.Item(def.AmmoType); !ok || ammo.MaxStack <= 0 {
				return fmt.Errorf("%w: ammo type %d for %s", ErrNoItem, def.AmmoType, def.Key)
			}
		}
	}
	rounds := it.Rounds
	it.Rounds = 0
	w.unloads++

	if ammo.MaxStack == 0 {
		return nil
	}
	inv := w.invs[it.Owner]
	if inv == nil {
		return nil
	}
	for rounds > 0 {
		n := rounds
		if n > ammo.MaxStack {
			n = ammo.MaxStack
		}
		out := ammo.Instance(n)
		out.Pos = it.Pos
		if _, err := w.placeLocked(inv, -1, out); err != nil {
			break
		}
		rounds -= n
	}
	return nil
}

func (w *World) ShowMessage(text string, count int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.shown = append(w.shown, ShownMessage{Tick: w.tick, Text: text, Count: count})
	if len(w.shown) > maxShown {
		w.shown = append([]ShownMessage(nil), w.shown[len(w.shown)-maxShown:]...)
	}
}
