package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Name      string `json:"name"`
	BaseLevel bool   `json:"base_level,omitempty"`

	Seed               int64 `json:"seed"`
	SpawnEveryTicks    int   `json:"spawn_every_ticks"`
	MaxContainers      int   `json:"max_containers"`
	SpawnRadius        int   `json:"spawn_radius"`
	SnapshotEveryTicks int   `json:"snapshot_every_ticks,omitempty"`

	Actor    [3]float64 `json:"actor"`
	HasActor bool       `json:"has_actor"`

	Containers []ContainerV1 `json:"containers"`
	Store      InventoryV1   `json:"store"`
	Locked     []int         `json:"locked,omitempty"`
	Wishlist   []int         `json:"wishlist,omitempty"`

	// Config is the persisted toggles record as written by the config manager.
	Config []byte `json:"config,omitempty"`

	Unloads  int        `json:"unloads"`
	Counters CountersV1 `json:"counters"`
}

type ContainerV1 struct {
	ID        uint64      `json:"id"`
	Name      string      `json:"name"`
	Pos       [3]float64  `json:"pos"`
	Inventory InventoryV1 `json:"inventory"`
}

type InventoryV1 struct {
	ID       uint64   `json:"id"`
	Capacity int      `json:"capacity"`
	Slots    []SlotV1 `json:"slots"`
}

type SlotV1 struct {
	Index int    `json:"index"`
	Item  ItemV1 `json:"item"`
}

type ItemV1 struct {
	ID          uint64   `json:"id"`
	TypeID      int      `json:"type_id"`
	DisplayName string   `json:"display_name"`
	RawName     string   `json:"raw_name"`
	Tags        []string `json:"tags,omitempty"`
	Quality     int      `json:"quality"`
	StackCount  int      `json:"stack_count"`
	MaxStack    int      `json:"max_stack"`
	Stackable   bool     `json:"stackable"`
	IsBullet    bool     `json:"is_bullet,omitempty"`
	Rounds      int      `json:"rounds,omitempty"`
}

type CountersV1 struct {
	NextContainer uint64 `json:"next_container"`
	NextInventory uint64 `json:"next_inventory"`
	NextItem      uint64 `json:"next_item"`
}

// WriteSnapshot writes a JSON header line followed by the gob body, zstd-compressed.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header is repeated inside the gob body.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("snapshot header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("snapshot version %d unsupported", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the header line, for listings.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("snapshot header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("snapshot header: %w", err)
	}
	return h, nil
}

// PathForTick is the file name convention used by cmd/server.
func PathForTick(dir string, tick uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snap.zst", tick))
}
