// Package world is an in-memory host for the pickup engine: containers with slot inventories, a
// bounded store, a wishlist and an actor. cmd/server runs it as a sandbox and tests use it as the
// fake host. Failure hooks let callers inject host errors.
package world

import (
	"errors"
	"fmt"
	"sync"

	"lootsweep.ai/internal/sim/catalogs"
	"lootsweep.ai/internal/sim/host"
)

var (
	ErrNoContainer = errors.New("no such container")
	ErrNoInventory = errors.New("no such inventory")
	ErrNoItem      = errors.New("no such item")
	ErrNoSlot      = errors.New("no free slot")
)

const maxShown = 256

type ShownMessage struct {
	Tick  uint64 `json:"tick"`
	Text  string `json:"text"`
	Count int    `json:"count"`
}

type container struct {
	host.Container
	inv host.InventoryID
}

type World struct {
	cfg WorldConfig
	cat *catalogs.Catalogs

	mu sync.Mutex

	tick       uint64
	containers []*container
	byID       map[host.ContainerID]*container
	invs       map[host.InventoryID]*inventory
	items      map[host.ItemID]*host.Item
	store      *inventory
	locked     map[int]struct{}
	wishlist   map[int]bool

	actor    host.Vec3
	hasActor bool

	shown   []ShownMessage
	unloads int

	nextContainer uint64
	nextInventory uint64
	nextItem      uint64

	depositErr   error
	enumerateErr error
	wishlistErr  error
}

// New creates an empty world. cat may be nil; the spawner then does nothing and unloaded
// ammunition is discarded.
func New(cfg WorldConfig, cat *catalogs.Catalogs) *World {
	cfg.applyDefaults()
	w := &World{
		cfg:      cfg,
		cat:      cat,
		byID:     map[host.ContainerID]*container{},
		invs:     map[host.InventoryID]*inventory{},
		items:    map[host.ItemID]*host.Item{},
		locked:   map[int]struct{}{},
		wishlist: map[int]bool{},
		hasActor: true,
	}
	w.store = w.newInventoryLocked(cfg.StoreCapacity)
	return w
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) CurrentTick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

func (w *World) newInventoryLocked(capacity int) *inventory {
	w.nextInventory++
	inv := &inventory{id: host.InventoryID(w.nextInventory), slots: make([]*host.Item, capacity)}
	w.invs[inv.id] = inv
	return inv
}

// AddContainer places an empty container and returns its id.
func (w *World) AddContainer(name string, pos host.Vec3, capacity int) host.ContainerID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addContainerLocked(name, pos, capacity)
}

func (w *World) addContainerLocked(name string, pos host.Vec3, capacity int) host.ContainerID {
	if capacity <= 0 {
		capacity = 1
	}
	w.nextContainer++
	c := &container{
		Container: host.Container{ID: host.ContainerID(w.nextContainer), Name: name, Pos: pos},
		inv:       w.newInventoryLocked(capacity).id,
	}
	w.containers = append(w.containers, c)
	w.byID[c.ID] = c
	return c.ID
}

// PutItem places it in the first empty slot of the container and returns the new item id.
func (w *World) PutItem(id host.ContainerID, it host.Item) (host.ItemID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.byID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrNoContainer, id)
	}
	it.Pos = c.Pos
	return w.placeLocked(w.invs[c.inv], -1, it)
}

// PutStore places it in the store, at slot when slot >= 0 or else the first empty slot.
func (w *World) PutStore(slot int, it host.Item) (host.ItemID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.placeLocked(w.store, slot, it)
}

func (w *World) placeLocked(inv *inventory, slot int, it host.Item) (host.ItemID, error) {
	if slot < 0 {
		slot = inv.firstEmpty(nil)
	}
	if slot < 0 || slot >= len(inv.slots) || inv.slots[slot] != nil {
		return 0, ErrNoSlot
	}
	if it.MaxStack <= 0 {
		it.MaxStack = 1
	}
	if it.StackCount <= 0 {
		it.StackCount = 1
	}
	if it.StackCount > it.MaxStack {
		it.StackCount = it.MaxStack
	}
	w.nextItem++
	it.ID = host.ItemID(w.nextItem)
	it.Owner = inv.id
	it.Tags = append([]string(nil), it.Tags...)
	p := &it
	inv.slots[slot] = p
	w.items[it.ID] = p
	return it.ID, nil
}

// Destroy removes a container and everything in it.
func (w *World) Destroy(id host.ContainerID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.byID[id]
	if !ok {
		return false
	}
	if inv := w.invs[c.inv]; inv != nil {
		for _, it := range inv.slots {
			if it != nil {
				delete(w.items, it.ID)
			}
		}
		delete(w.invs, c.inv)
	}
	delete(w.byID, id)
	for i, x := range w.containers {
		if x.ID == id {
			w.containers = append(w.containers[:i], w.containers[i+1:]...)
			break
		}
	}
	return true
}

func (w *World) SetActor(pos host.Vec3) {
	w.mu.Lock()
	w.actor, w.hasActor = pos, true
	w.mu.Unlock()
}

func (w *World) RemoveActor() {
	w.mu.Lock()
	w.hasActor = false
	w.mu.Unlock()
}

func (w *World) LockStoreSlot(i int) {
	w.mu.Lock()
	w.locked[i] = struct{}{}
	w.mu.Unlock()
}

func (w *World) SetWishlisted(typeID int, on bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if on {
		w.wishlist[typeID] = true
	} else {
		delete(w.wishlist, typeID)
	}
}

// FailDeposits makes every deposit fail with err until called with nil.
func (w *World) FailDeposits(err error) {
	w.mu.Lock()
	w.depositErr = err
	w.mu.Unlock()
}

func (w *World) FailEnumerate(err error) {
	w.mu.Lock()
	w.enumerateErr = err
	w.mu.Unlock()
}

func (w *World) FailWishlist(err error) {
	w.mu.Lock()
	w.wishlistErr = err
	w.mu.Unlock()
}

func (w *World) Shown() []ShownMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]ShownMessage(nil), w.shown...)
}

func (w *World) Unloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unloads
}

// StoreItems returns the occupied store slots in slot order.
func (w *World) StoreItems() []host.Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.occupied()
}

func (w *World) ContainerItems(id host.ContainerID) []host.Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.byID[id]
	if !ok {
		return nil
	}
	return w.invs[c.inv].occupied()
}

func (w *World) Item(id host.ItemID) (host.Item, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	it, ok := w.items[id]
	if !ok {
		return host.Item{}, false
	}
	return *it, true
}

// State is a summary for admin endpoints.
type State struct {
	Tick          uint64    `json:"tick"`
	Name          string    `json:"name"`
	BaseLevel     bool      `json:"base_level"`
	Containers    int       `json:"containers"`
	Items         int       `json:"items"`
	StoreCount    int       `json:"store_count"`
	StoreCapacity int       `json:"store_capacity"`
	Actor         host.Vec3 `json:"actor"`
	HasActor      bool      `json:"has_actor"`
	Unloads       int       `json:"unloads"`
}

func (w *World) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		Tick:          w.tick,
		Name:          w.cfg.Name,
		BaseLevel:     w.cfg.BaseLevel,
		Containers:    len(w.containers),
		Items:         len(w.items) - w.store.count(),
		StoreCount:    w.store.count(),
		StoreCapacity: len(w.store.slots),
		Actor:         w.actor,
		HasActor:      w.hasActor,
		Unloads:       w.unloads,
	}
}
