// Package catalogs loads the loot tables the sandbox world spawns from.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"lootsweep.ai/internal/sim/host"
)

type Catalogs struct {
	Items      ItemCatalog
	Containers ContainerCatalog
}

type ItemCatalog struct {
	Defs   map[int]ItemDef
	ByKey  map[string]ItemDef
	Order  []int
	Digest string
}

type ItemDef struct {
	TypeID    int      `yaml:"type_id"`
	Key       string   `yaml:"key"`
	Name      string   `yaml:"name"`
	Tags      []string `yaml:"tags,omitempty"`
	Quality   int      `yaml:"quality"`
	MaxStack  int      `yaml:"max_stack"`
	Stackable bool     `yaml:"stackable"`
	Bullet    bool     `yaml:"bullet,omitempty"`

	// Weapons: ammunition type produced when unloaded and rounds loaded at spawn.
	AmmoType int `yaml:"ammo_type,omitempty"`
	Rounds   int `yaml:"rounds,omitempty"`

	// Weight is the relative spawn frequency; zero never spawns.
	Weight int `yaml:"weight"`
	// SpawnCount is the stack size at spawn; zero means one.
	SpawnCount int `yaml:"spawn_count,omitempty"`
}

type ContainerCatalog struct {
	Kinds  []ContainerKind
	Digest string
}

type ContainerKind struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
	Weight   int    `yaml:"weight"`
}

// Instance builds a host item of this type. IDs and placement are assigned by the world.
func (d ItemDef) Instance(count int) host.Item {
	if count <= 0 {
		count = 1
	}
	max := d.MaxStack
	if max <= 0 {
		max = 1
	}
	if count > max {
		count = max
	}
	return host.Item{
		TypeID:      d.TypeID,
		DisplayName: d.Name,
		RawName:     d.Key,
		Tags:        append([]string(nil), d.Tags...),
		Quality:     d.Quality,
		StackCount:  count,
		MaxStack:    max,
		Stackable:   d.Stackable,
		IsBullet:    d.Bullet,
		Rounds:      d.Rounds,
	}
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadItems(filepath.Join(configDir, "items.yaml"), &c.Items); err != nil {
		return nil, err
	}
	if err := loadContainers(filepath.Join(configDir, "containers.yaml"), &c.Containers); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return ParseItems(raw, out)
}

func ParseItems(raw []byte, out *ItemCatalog) error {
	out.Digest = sha256Hex(raw)

	var defs []ItemDef
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.yaml: %w", err)
	}
	out.Defs = map[int]ItemDef{}
	out.ByKey = map[string]ItemDef{}
	for _, d := range defs {
		if d.TypeID <= 0 {
			return fmt.Errorf("items.yaml: %q: type_id must be positive", d.Key)
		}
		if d.Key == "" {
			return fmt.Errorf("items.yaml: type %d: empty key", d.TypeID)
		}
		if _, dup := out.Defs[d.TypeID]; dup {
			return fmt.Errorf("items.yaml: duplicate type_id %d", d.TypeID)
		}
		if d.Name == "" {
			d.Name = d.Key
		}
		if d.MaxStack <= 0 {
			d.MaxStack = 1
		}
		out.Defs[d.TypeID] = d
		out.ByKey[d.Key] = d
	}
	for _, d := range out.Defs {
		if d.AmmoType != 0 {
			if _, ok := out.Defs[d.AmmoType]; !ok {
				return fmt.Errorf("items.yaml: %q: unknown ammo_type %d", d.Key, d.AmmoType)
			}
		}
	}

	out.Order = make([]int, 0, len(out.Defs))
	for id := range out.Defs {
		out.Order = append(out.Order, id)
	}
	sort.Ints(out.Order)
	return nil
}

func (c *ItemCatalog) Item(typeID int) (ItemDef, bool) {
	d, ok := c.Defs[typeID]
	return d, ok
}

// Pick chooses a spawnable item by weight using h as the random source.
func (c *ItemCatalog) Pick(h uint64) (ItemDef, bool) {
	total := 0
	for _, id := range c.Order {
		total += c.Defs[id].Weight
	}
	if total <= 0 {
		return ItemDef{}, false
	}
	n := int(h % uint64(total))
	for _, id := range c.Order {
		d := c.Defs[id]
		if n < d.Weight {
			return d, true
		}
		n -= d.Weight
	}
	return ItemDef{}, false
}

func loadContainers(path string, out *ContainerCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return ParseContainers(raw, out)
}

func ParseContainers(raw []byte, out *ContainerCatalog) error {
	out.Digest = sha256Hex(raw)
	var kinds []ContainerKind
	if err := yaml.Unmarshal(raw, &kinds); err != nil {
		return fmt.Errorf("containers.yaml: %w", err)
	}
	for i, k := range kinds {
		if k.Name == "" {
			return fmt.Errorf("containers.yaml: entry %d: empty name", i)
		}
		if k.Capacity <= 0 {
			return fmt.Errorf("containers.yaml: %q: capacity must be positive", k.Name)
		}
	}
	out.Kinds = kinds
	return nil
}

func (c *ContainerCatalog) Pick(h uint64) (ContainerKind, bool) {
	total := 0
	for _, k := range c.Kinds {
		total += k.Weight
	}
	if total <= 0 {
		return ContainerKind{}, false
	}
	n := int(h % uint64(total))
	for _, k := range c.Kinds {
		if n < k.Weight {
			return k, true
		}
		n -= k.Weight
	}
	return ContainerKind{}, false
}
