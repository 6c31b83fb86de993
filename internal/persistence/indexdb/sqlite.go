package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"lootsweep.ai/internal/config"
	"lootsweep.ai/internal/persistence/snapshot"
	"lootsweep.ai/internal/sim/catalogs"
	"lootsweep.ai/internal/sim/pickup"
	"lootsweep.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index of transfers, passes and snapshots. Writes are
// queued to a single writer goroutine and dropped when it falls behind; the JSONL logs remain the
// source of truth. Config blobs are the exception and are written synchronously.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTransfer atomic.Uint64
	dropPass     atomic.Uint64
	dropSnapshot atomic.Uint64
}

var _ config.BlobStore = (*SQLiteIndex)(nil)

type reqKind int

const (
	reqTransfer reqKind = iota + 1
	reqPass
	reqSnapshot
)

type req struct {
	kind reqKind

	transfer pickup.TransferEntry
	pass     pickup.PassReport
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	World      string
	Seed       int64
	Containers int
	Items      int
	StoreCount int
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTransferTotal uint64 `json:"drop_transfer_total"`
	DropPassTotal     uint64 `json:"drop_pass_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS blobs (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS transfers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			trigger TEXT NOT NULL,
			mode TEXT NOT NULL,
			container_id INTEGER NOT NULL,
			container_name TEXT NOT NULL,
			item_id INTEGER NOT NULL,
			type_id INTEGER NOT NULL,
			item_name TEXT NOT NULL,
			count INTEGER NOT NULL,
			is_bullet INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_tick ON transfers(tick);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_type ON transfers(type_id, tick);`,
		`CREATE TABLE IF NOT EXISTS passes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			session_id TEXT NOT NULL,
			trigger TEXT NOT NULL,
			skipped TEXT NOT NULL,
			cache_len INTEGER NOT NULL,
			scanned INTEGER NOT NULL,
			processed INTEGER NOT NULL,
			transfers INTEGER NOT NULL,
			blocked INTEGER NOT NULL,
			host_errors INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_passes_tick ON passes(tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			world TEXT NOT NULL,
			seed INTEGER NOT NULL,
			containers INTEGER NOT NULL,
			items INTEGER NOT NULL,
			store_count INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTransferTotal: s.dropTransfer.Load(),
		DropPassTotal:     s.dropPass.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) WriteTransfer(entry pickup.TransferEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTransfer, transfer: entry}:
	default:
		s.dropTransfer.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WritePass(entry pickup.PassReport) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqPass, pass: entry}:
	default:
		s.dropPass.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		World:      snap.Header.WorldID,
		Seed:       snap.Seed,
		Containers: len(snap.Containers),
		StoreCount: len(snap.Store.Slots),
	}
	for _, c := range snap.Containers {
		r.Items += len(c.Inventory.Slots)
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// LoadBlob returns config.ErrNotFound when key was never saved.
func (s *SQLiteIndex) LoadBlob(key string) ([]byte, error) {
	var b []byte
	err := s.db.QueryRow(`SELECT value FROM blobs WHERE key=?`, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, config.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %q: %w", key, err)
	}
	return b, nil
}

func (s *SQLiteIndex) SaveBlob(key string, b []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO blobs(key,value,updated_at) VALUES(?,?,?)`, key, b, now); err != nil {
		return fmt.Errorf("save blob %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	read := func(name, file, digest string) {
		if configDir == "" || digest == "" {
			return
		}
		b, err := os.ReadFile(filepath.Join(configDir, file))
		if err != nil {
			return
		}
		rows = append(rows, kv{name: name, digest: digest, json: b})
	}
	if cats != nil {
		read("items", "items.yaml", cats.Items.Digest)
		read("containers", "containers.yaml", cats.Containers.Digest)
	}
	{
		// Tuning: store the values we actually apply.
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTransfer, _ := s.db.Prepare(`INSERT INTO transfers(tick,session_id,trigger,mode,container_id,container_name,item_id,type_id,item_name,count,is_bullet) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertPass, _ := s.db.Prepare(`INSERT INTO passes(tick,session_id,trigger,skipped,cache_len,scanned,processed,transfers,blocked,host_errors,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,world,seed,containers,items,store_count) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTransfer, insertPass, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTransfer:
			t := r.transfer
			exec(insertTransfer,
				int64(t.Tick), t.SessionID, t.Trigger, t.Mode,
				int64(t.ContainerID), t.ContainerName, int64(t.ItemID),
				t.TypeID, t.ItemName, t.Count, boolInt(t.IsBullet),
			)
		case reqPass:
			p := r.pass
			raw, _ := json.Marshal(p)
			exec(insertPass,
				int64(p.Tick), p.SessionID, p.Trigger, p.Skipped,
				p.CacheLen, p.Scanned, p.Processed, p.Transfers, p.Blocked, p.HostErrors,
				string(raw),
			)
		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.World, sn.Seed, sn.Containers, sn.Items, sn.StoreCount)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0) {
			commit()
		}
	}
	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
