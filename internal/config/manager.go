package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"lootsweep.ai/internal/protocol/schemas"
)

// BlobKey is the key the record is persisted under.
const BlobKey = "lootsweep_config"

var ErrNotFound = errors.New("config blob not found")

// BlobStore persists opaque blobs by key. LoadBlob returns ErrNotFound for unknown keys.
type BlobStore interface {
	LoadBlob(key string) ([]byte, error)
	SaveBlob(key string, b []byte) error
}

type Manager struct {
	store BlobStore
	log   *log.Logger

	mu     sync.RWMutex
	cur    Config
	nextID int
	subs   map[int]func(Config)
}

func NewManager(store BlobStore, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{
		store: store,
		log:   logger,
		cur:   Default(),
		subs:  map[int]func(Config){},
	}
}

// Current never fails once the manager exists; it satisfies the engine's config source.
func (m *Manager) Current() (Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cur, nil
}

// Load replaces the current record with the persisted one. On a missing or unreadable blob the
// defaults are installed and the cause is returned for the caller to log.
func (m *Manager) Load() error {
	cfg, err := m.read()
	m.mu.Lock()
	m.cur = cfg
	m.mu.Unlock()
	if errors.Is(err, ErrNotFound) {
		m.log.Printf("no saved config; using defaults")
		return nil
	}
	if err != nil {
		m.log.Printf("config unreadable, using defaults: %v", err)
	}
	return err
}

func (m *Manager) read() (Config, error) {
	if m.store == nil {
		return Default(), ErrNotFound
	}
	raw, err := m.store.LoadBlob(BlobKey)
	if err != nil {
		return Default(), err
	}
	if len(raw) == 0 {
		return Default(), ErrNotFound
	}
	return Decode(raw)
}

// Decode parses a blob over the defaults so missing fields keep their default values.
func Decode(raw []byte) (Config, error) {
	return DecodeOver(Default(), raw)
}

// DecodeOver validates raw and applies it on top of base.
func DecodeOver(base Config, raw []byte) (Config, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return base, fmt.Errorf("config: %w", err)
	}
	s, err := schemas.Compile(schemas.Config)
	if err != nil {
		return base, err
	}
	if err := s.Validate(doc); err != nil {
		return base, fmt.Errorf("config: %w", err)
	}
	cfg := base
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return base, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (m *Manager) Save() error {
	m.mu.RLock()
	cfg := m.cur
	m.mu.RUnlock()

	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if m.store != nil {
		if err := m.store.SaveBlob(BlobKey, b); err != nil {
			m.log.Printf("config save: %v", err)
			return err
		}
	}
	m.notify(cfg)
	return nil
}

// Update applies fn to a copy of the current record, installs it and saves.
func (m *Manager) Update(fn func(*Config)) error {
	if fn == nil {
		return nil
	}
	m.mu.Lock()
	cfg := m.cur
	fn(&cfg)
	m.cur = cfg
	m.mu.Unlock()
	return m.Save()
}

// Replace installs cfg wholesale and saves.
func (m *Manager) Replace(cfg Config) error {
	return m.Update(func(c *Config) { *c = cfg })
}

func (m *Manager) ResetToDefault() error {
	m.log.Printf("config reset to defaults")
	return m.Replace(Default())
}

// Subscribe registers fn to run after every successful save. The returned func unsubscribes.
func (m *Manager) Subscribe(fn func(Config)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify(cfg Config) {
	m.mu.RLock()
	fns := make([]func(Config), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()
	for _, fn := range fns {
		fn(cfg)
	}
}

// MemStore is an in-process BlobStore.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func NewMemStore() *MemStore { return &MemStore{blobs: map[string][]byte{}} }

func (s *MemStore) LoadBlob(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *MemStore) SaveBlob(key string, b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), b...)
	return nil
}
