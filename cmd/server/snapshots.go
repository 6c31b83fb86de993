package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lootsweep.ai/internal/config"
	"lootsweep.ai/internal/persistence/snapshot"
	"lootsweep.ai/internal/sim/world"
)

type snapshotRecorder interface {
	RecordSnapshot(path string, snap snapshot.SnapshotV1)
}

// snapshotter exports the world on the loop goroutine and writes files on its own goroutine.
type snapshotter struct {
	w       *world.World
	cfg     *config.Manager
	dir     string
	worldID string
	idx     snapshotRecorder
	log     *log.Logger

	ch chan snapshot.SnapshotV1
}

func newSnapshotter(w *world.World, cfg *config.Manager, worldDir, worldID string, idx snapshotRecorder, logger *log.Logger) *snapshotter {
	return &snapshotter{
		w:       w,
		cfg:     cfg,
		dir:     filepath.Join(worldDir, "snapshots"),
		worldID: worldID,
		idx:     idx,
		log:     logger,
		ch:      make(chan snapshot.SnapshotV1, 2),
	}
}

func (s *snapshotter) export(tick uint64) snapshot.SnapshotV1 {
	snap := s.w.ExportSnapshot(tick)
	snap.Header.WorldID = s.worldID
	if cur, err := s.cfg.Current(); err == nil {
		if b, err := json.Marshal(cur); err == nil {
			snap.Config = b
		}
	}
	return snap
}

// Enqueue never blocks the tick loop; a snapshot is skipped while two are still being written.
func (s *snapshotter) Enqueue(tick uint64) {
	select {
	case s.ch <- s.export(tick):
	default:
		s.log.Printf("snapshot queue full; skipping tick=%d", tick)
	}
}

// WriteNow writes synchronously and returns the file path.
func (s *snapshotter) WriteNow(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	snap := s.export(s.w.CurrentTick())
	return s.write(snap)
}

func (s *snapshotter) write(snap snapshot.SnapshotV1) (string, error) {
	path := snapshot.PathForTick(s.dir, snap.Header.Tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", err
	}
	if s.idx != nil {
		s.idx.RecordSnapshot(path, snap)
	}
	return path, nil
}

func (s *snapshotter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-s.ch:
			if _, err := s.write(snap); err != nil {
				s.log.Printf("snapshot write: %v", err)
			}
		}
	}
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}
