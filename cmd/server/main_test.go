package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"lootsweep.ai/internal/config"
	"lootsweep.ai/internal/persistence/snapshot"
	"lootsweep.ai/internal/sim/host"
	"lootsweep.ai/internal/sim/world"
)

func TestLatestSnapshot_PicksHighestTick(t *testing.T) {
	worldDir := t.TempDir()
	dir := filepath.Join(worldDir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range []string{"90.snap.zst", "1200.snap.zst", "300.snap.zst", "junk.snap.zst", "500.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if got, want := latestSnapshot(worldDir), filepath.Join(dir, "1200.snap.zst"); got != want {
		t.Fatalf("got=%q want=%q", got, want)
	}
	if got := latestSnapshot(t.TempDir()); got != "" {
		t.Fatalf("empty dir got=%q", got)
	}
}

func TestRestoreConfigBlob_OnlyWhenMissing(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	cfg := config.Default()
	cfg.PickupRadius = 33
	blob, _ := json.Marshal(cfg)

	store := config.NewMemStore()
	restoreConfigBlob(store, blob, logger)
	m := config.NewManager(store, nil)
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, _ := m.Current(); got.PickupRadius != 33 {
		t.Fatalf("restored radius got=%v want=33", got.PickupRadius)
	}

	other := config.Default()
	other.PickupRadius = 5
	blob2, _ := json.Marshal(other)
	restoreConfigBlob(store, blob2, logger)
	if err := m.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got, _ := m.Current(); got.PickupRadius != 33 {
		t.Fatalf("existing record overwritten: got=%v", got.PickupRadius)
	}

	fresh := config.NewMemStore()
	restoreConfigBlob(fresh, []byte(`{"pickup_radius": "far"}`), logger)
	if _, err := fresh.LoadBlob(config.BlobKey); err != config.ErrNotFound {
		t.Fatalf("invalid blob stored: err=%v", err)
	}
}

type recordedSnap struct {
	paths []string
}

func (r *recordedSnap) RecordSnapshot(path string, _ snapshot.SnapshotV1) {
	r.paths = append(r.paths, path)
}

func TestSnapshotter_WriteNowCarriesConfig(t *testing.T) {
	worldDir := t.TempDir()
	w := world.New(world.WorldConfig{Name: "sandbox"}, nil)
	w.AddContainer("crate", host.Vec3{X: 3}, 4)
	w.Step(42)

	m := config.NewManager(config.NewMemStore(), nil)
	if err := m.Update(func(c *config.Config) { c.EnableAutoCollect = true }); err != nil {
		t.Fatalf("update: %v", err)
	}
	rec := &recordedSnap{}
	s := newSnapshotter(w, m, worldDir, "sandbox", rec, log.New(io.Discard, "", 0))

	path, err := s.WriteNow(context.Background())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if want := filepath.Join(worldDir, "snapshots", "42.snap.zst"); path != want {
		t.Fatalf("path got=%q want=%q", path, want)
	}
	if len(rec.paths) != 1 || rec.paths[0] != path {
		t.Fatalf("recorded=%v", rec.paths)
	}
	if got := latestSnapshot(worldDir); got != path {
		t.Fatalf("latest got=%q want=%q", got, path)
	}

	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.Header.WorldID != "sandbox" || len(snap.Containers) != 1 {
		t.Fatalf("header=%+v containers=%d", snap.Header, len(snap.Containers))
	}
	cfg, err := config.Decode(snap.Config)
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if !cfg.EnableAutoCollect {
		t.Fatalf("config blob lost auto collect: %+v", cfg)
	}
}
