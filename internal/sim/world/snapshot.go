package world

import (
	"fmt"
	"sort"

	"lootsweep.ai/internal/persistence/snapshot"
	"lootsweep.ai/internal/sim/host"
)

// ExportSnapshot captures containers, store, wishlist and counters. The config record is filled
// in by the caller, which owns the blob store.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.Name, Tick: nowTick},

		Name:               w.cfg.Name,
		BaseLevel:          w.cfg.BaseLevel,
		Seed:               w.cfg.Seed,
		SpawnEveryTicks:    w.cfg.SpawnEveryTicks,
		MaxContainers:      w.cfg.MaxContainers,
		SpawnRadius:        w.cfg.SpawnRadius,
		SnapshotEveryTicks: w.cfg.SnapshotEveryTicks,

		Actor:    [3]float64{w.actor.X, w.actor.Y, w.actor.Z},
		HasActor: w.hasActor,

		Store:   exportInventory(w.store),
		Unloads: w.unloads,
		Counters: snapshot.CountersV1{
			NextContainer: w.nextContainer,
			NextInventory: w.nextInventory,
			NextItem:      w.nextItem,
		},
	}
	for _, c := range w.containers {
		s.Containers = append(s.Containers, snapshot.ContainerV1{
			ID:        uint64(c.ID),
			Name:      c.Name,
			Pos:       [3]float64{c.Pos.X, c.Pos.Y, c.Pos.Z},
			Inventory: exportInventory(w.invs[c.inv]),
		})
	}
	for i := range w.locked {
		s.Locked = append(s.Locked, i)
	}
	sort.Ints(s.Locked)
	for t := range w.wishlist {
		s.Wishlist = append(s.Wishlist, t)
	}
	sort.Ints(s.Wishlist)
	return s
}

func exportInventory(inv *inventory) snapshot.InventoryV1 {
	out := snapshot.InventoryV1{ID: uint64(inv.id), Capacity: len(inv.slots)}
	for i, it := range inv.slots {
		if it == nil {
			continue
		}
		out.Slots = append(out.Slots, snapshot.SlotV1{Index: i, Item: snapshot.ItemV1{
			ID:          uint64(it.ID),
			TypeID:      it.TypeID,
			DisplayName: it.DisplayName,
			RawName:     it.RawName,
			Tags:        append([]string(nil), it.Tags...),
			Quality:     it.Quality,
			StackCount:  it.StackCount,
			MaxStack:    it.MaxStack,
			Stackable:   it.Stackable,
			IsBullet:    it.IsBullet,
			Rounds:      it.Rounds,
		}})
	}
	return out
}

// ImportSnapshot replaces the world state. The store capacity follows the snapshot.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if s.Store.Capacity <= 0 {
		return fmt.Errorf("snapshot store capacity %d", s.Store.Capacity)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cfg := w.cfg
	cfg.Name = s.Name
	cfg.BaseLevel = s.BaseLevel
	cfg.Seed = s.Seed
	cfg.SpawnEveryTicks = s.SpawnEveryTicks
	cfg.MaxContainers = s.MaxContainers
	cfg.SpawnRadius = s.SpawnRadius
	cfg.StoreCapacity = s.Store.Capacity
	if s.SnapshotEveryTicks > 0 {
		cfg.SnapshotEveryTicks = s.SnapshotEveryTicks
	}
	cfg.applyDefaults()

	invs := map[host.InventoryID]*inventory{}
	items := map[host.ItemID]*host.Item{}
	byID := map[host.ContainerID]*container{}
	var containers []*container

	store, err := importInventory(s.Store, host.Vec3{}, invs, items)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	for _, cs := range s.Containers {
		id := host.ContainerID(cs.ID)
		if _, dup := byID[id]; dup {
			return fmt.Errorf("duplicate container id %d", cs.ID)
		}
		pos := host.Vec3{X: cs.Pos[0], Y: cs.Pos[1], Z: cs.Pos[2]}
		inv, err := importInventory(cs.Inventory, pos, invs, items)
		if err != nil {
			return fmt.Errorf("container %d: %w", cs.ID, err)
		}
		c := &container{Container: host.Container{ID: id, Name: cs.Name, Pos: pos}, inv: inv.id}
		containers = append(containers, c)
		byID[id] = c
	}

	w.cfg = cfg
	w.tick = s.Header.Tick
	w.containers = containers
	w.byID = byID
	w.invs = invs
	w.items = items
	w.store = store
	w.locked = map[int]struct{}{}
	for _, i := range s.Locked {
		w.locked[i] = struct{}{}
	}
	w.wishlist = map[int]bool{}
	for _, t := range s.Wishlist {
		w.wishlist[t] = true
	}
	w.actor = host.Vec3{X: s.Actor[0], Y: s.Actor[1], Z: s.Actor[2]}
	w.hasActor = s.HasActor
	w.unloads = s.Unloads
	w.shown = nil
	w.nextContainer = s.Counters.NextContainer
	w.nextInventory = s.Counters.NextInventory
	w.nextItem = s.Counters.NextItem
	return nil
}

func importInventory(s snapshot.InventoryV1, pos host.Vec3, invs map[host.InventoryID]*inventory, items map[host.ItemID]*host.Item) (*inventory, error) {
	id := host.InventoryID(s.ID)
	if _, dup := invs[id]; dup {
		return nil, fmt.Errorf("duplicate inventory id %d", s.ID)
	}
	inv := &inventory{id: id, slots: make([]*host.Item, s.Capacity)}
	for _, sl := range s.Slots {
		if sl.Index < 0 || sl.Index >= s.Capacity {
			return nil, fmt.Errorf("slot %d out of range", sl.Index)
		}
		if inv.slots[sl.Index] != nil {
			return nil, fmt.Errorf("slot %d occupied twice", sl.Index)
		}
		iid := host.ItemID(sl.Item.ID)
		if _, dup := items[iid]; dup {
			return nil, fmt.Errorf("duplicate item id %d", sl.Item.ID)
		}
		it := &host.Item{
			ID:          iid,
			TypeID:      sl.Item.TypeID,
			DisplayName: sl.Item.DisplayName,
			RawName:     sl.Item.RawName,
			Tags:        append([]string(nil), sl.Item.Tags...),
			Quality:     sl.Item.Quality,
			StackCount:  sl.Item.StackCount,
			MaxStack:    sl.Item.MaxStack,
			Stackable:   sl.Item.Stackable,
			IsBullet:    sl.Item.IsBullet,
			Owner:       id,
			Pos:         pos,
			Rounds:      sl.Item.Rounds,
		}
		inv.slots[sl.Index] = it
		items[iid] = it
	}
	invs[id] = inv
	return inv, nil
}
