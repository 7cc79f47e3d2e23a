package catalog

import (
	"log"
	"sync"
	"time"

	"github.com/shogun-olives/hacksc-2024-WildIn/internal/domain"
)

// Store holds the process-wide catalog.
//
// It is built once at startup and read concurrently by pipeline runs. Reload swaps
// in a freshly loaded catalog under the write lock; readers always see either the
// old or the new snapshot, never a mix. A failed reload keeps the current snapshot.
type Store struct {
	source   Source
	current  *domain.Catalog
	loadedAt time.Time
	mutex    sync.RWMutex
}

// NewStore loads the catalog from src. It fails if the initial load fails.
func NewStore(src Source) (*Store, error) {
	cat, err := Load(src)
	if err != nil {
		return nil, err
	}
	return &Store{
		source:   src,
		current:  cat,
		loadedAt: time.Now(),
	}, nil
}

// Current returns the current immutable snapshot
func (s *Store) Current() *domain.Catalog {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.current
}

// LoadedAt returns when the current snapshot was loaded
func (s *Store) LoadedAt() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.loadedAt
}

// Reload re-reads the catalog source and swaps it in on success
func (s *Store) Reload() (*domain.Catalog, error) {
	// Parse outside the lock so readers are never blocked on disk I/O
	cat, err := Load(s.source)
	if err != nil {
		log.Printf("[Catalog] Reload failed, keeping previous snapshot: %v", err)
		return nil, err
	}

	s.mutex.Lock()
	s.current = cat
	s.loadedAt = time.Now()
	s.mutex.Unlock()

	return cat, nil
}
