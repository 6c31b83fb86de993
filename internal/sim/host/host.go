// Package host declares the collaborator surface the pickup engine consumes.
// A binding layer implements it per game host; internal/sim/world implements it in memory.
package host

type ContainerID uint64
type InventoryID uint64
type ItemID uint64

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Container struct {
	ID   ContainerID `json:"id"`
	Name string      `json:"name"`
	Pos  Vec3        `json:"pos"`
}

type Item struct {
	ID          ItemID   `json:"id"`
	TypeID      int      `json:"type_id"`
	DisplayName string   `json:"display_name"`
	RawName     string   `json:"raw_name"`
	Tags        []string `json:"tags,omitempty"`
	Quality     int      `json:"quality"`
	StackCount  int      `json:"stack_count"`
	MaxStack    int      `json:"max_stack"`
	Stackable   bool     `json:"stackable"`
	IsBullet    bool     `json:"is_bullet,omitempty"`

	// Owner is the inventory currently holding the item; 0 when unslotted.
	Owner InventoryID `json:"owner,omitempty"`
	Pos   Vec3        `json:"pos"`

	// Rounds loaded in a weapon's internal ammunition store.
	Rounds int `json:"rounds,omitempty"`
}

func (it Item) HasTag(tag string) bool {
	for _, t := range it.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

type WishlistInfo struct {
	IsManuallyWishlisted bool `json:"is_manually_wishlisted"`
}

// World is the read side of the host: container discovery and inventory access.
type World interface {
	EnumerateContainers() ([]Container, error)
	ContainerAlive(id ContainerID) bool
	ContainerInventory(id ContainerID) (InventoryID, error)
	// InventoryItems returns the occupied slots in stored order.
	InventoryItems(inv InventoryID) ([]Item, error)
	InventoryCapacity(inv InventoryID) (int, error)
	InventorySlotAt(inv InventoryID, i int) (Item, bool, error)
	ActorPosition() (Vec3, bool)
}

// Store is the bounded destination inventory.
type Store interface {
	StoreCapacity() int
	StoreCount() int
	StoreSlotAt(i int) (Item, bool, error)
	StoreLockedIndexes() map[int]struct{}
	// DepositItem moves the item from its source into the store in one step.
	DepositItem(id ItemID, fromStash bool) (bool, error)
}

type Wishlist interface {
	WishlistInfo(typeID int) (WishlistInfo, error)
}

type Armory interface {
	RemoveAllAmmunition(id ItemID) error
}

type Display interface {
	ShowMessage(text string, count int)
}

type Host interface {
	World
	Store
	Wishlist
	Armory
	Display
}
