package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// TrackedPool is a pool the user registered for personalized threshold
// monitoring. MinThreshold is a percentage: an alert fires when the pool's
// implied APY drops below it.
type TrackedPool struct {
	ChainID      int64   `json:"chain_id"`
	Address      string  `json:"address"`
	Name         string  `json:"name"`
	MinThreshold float64 `json:"min_threshold"`
}

// Key returns the canonical "{chainID}-{address}" identifier for a pool.
func Key(chainID int64, address string) string {
	return fmt.Sprintf("%d-%s", chainID, strings.ToLower(address))
}

// Store holds the tracked-pool set in memory and persists it to a JSON file
// after every mutation. The engine reads it while the Telegram bot and HTTP
// handlers mutate it, so access is mutex-guarded.
type Store struct {
	path  string
	mu    sync.RWMutex
	pools map[string]TrackedPool
}

// Open loads the tracked-pool file. A missing file yields an empty store;
// a malformed file is an error the caller should treat as fatal.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		pools: make(map[string]TrackedPool),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tracked pools: %w", err)
	}

	if err := json.Unmarshal(data, &s.pools); err != nil {
		return nil, fmt.Errorf("parse tracked pools %s: %w", path, err)
	}
	return s, nil
}

// Add registers a pool and persists the full set.
func (s *Store) Add(p TrackedPool) error {
	p.Address = strings.ToLower(p.Address)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[Key(p.ChainID, p.Address)] = p
	return s.persist()
}

// Remove deletes a pool and persists the full set. The removed pool is
// returned so callers can report its name.
func (s *Store) Remove(chainID int64, address string) (TrackedPool, bool, error) {
	key := Key(chainID, address)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pools[key]
	if !ok {
		return TrackedPool{}, false, nil
	}
	delete(s.pools, key)
	return p, true, s.persist()
}

// Get returns the tracked pool for a chain/address pair, if registered.
func (s *Store) Get(chainID int64, address string) (TrackedPool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pools[Key(chainID, address)]
	return p, ok
}

// List returns all tracked pools ordered by key.
func (s *Store) List() []TrackedPool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.pools))
	for k := range s.pools {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]TrackedPool, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.pools[k])
	}
	return out
}

// Len returns the number of tracked pools.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pools)
}

// persist writes the full set atomically. Callers must hold the write lock.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.pools, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tracked pools: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tracked pools: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace tracked pools: %w", err)
	}
	return nil
}
