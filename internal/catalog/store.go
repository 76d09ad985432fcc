package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/akademos/akademos/internal/shared"
)

// DefaultFreshness is the catalog freshness window when none is configured.
const DefaultFreshness = 10 * time.Minute

// State describes the lifecycle of the cached catalog snapshot.
type State int

const (
	// StateLoading means no snapshot has been applied yet. Resolution must
	// fail closed while this state holds.
	StateLoading State = iota
	// StateFresh means the snapshot is within the freshness window.
	StateFresh
	// StateStale means the snapshot exceeded the freshness window or was
	// explicitly invalidated. It is still served.
	StateStale
	// StateFailed means the most recent fetch errored. A previously applied
	// snapshot, if any, is kept and served.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Fetcher retrieves the full catalog from the upstream backend.
type Fetcher interface {
	FetchCatalog(ctx context.Context) ([]Role, []Permission, error)
}

// Observer receives snapshot lifecycle signals. Satisfied by
// observability.Metrics.
type Observer interface {
	ObserveCatalogRefresh(d time.Duration)
	SetCatalogState(state string)
}

// Store caches the role/permission catalog fetched from upstream. Concurrent
// loads are coalesced through singleflight; when loads overlap across
// invalidations the latest started fetch wins, so a slow early response can
// never clobber a newer snapshot.
type Store struct {
	fetcher   Fetcher
	freshness time.Duration
	logger    *slog.Logger
	observer  Observer
	now       func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	snap       *Snapshot
	lastFailed bool
	stale      bool
	nextGen    uint64
	appliedGen uint64
}

// NewStore constructs a Store. A zero freshness window falls back to
// DefaultFreshness.
func NewStore(fetcher Fetcher, freshness time.Duration, logger *slog.Logger) *Store {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		fetcher:   fetcher,
		freshness: freshness,
		logger:    logger,
		now:       time.Now,
	}
}

// Snapshot returns the current snapshot and its state. The snapshot is nil
// until the first successful load.
func (s *Store) Snapshot() (*Snapshot, State) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.stateLocked()
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stateLocked()
}

// IsStale reports whether the cached catalog needs a refresh: never loaded,
// explicitly invalidated, or older than the freshness window.
func (s *Store) IsStale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil || s.stale {
		return true
	}
	return s.now().Sub(s.snap.LoadedAt) > s.freshness
}

// Instrument publishes snapshot state transitions and refresh durations to
// the observer, starting with the current state.
func (s *Store) Instrument(obs Observer) {
	s.mu.Lock()
	s.observer = obs
	state := s.stateLocked()
	s.mu.Unlock()
	if obs != nil {
		obs.SetCatalogState(state.String())
	}
}

// MarkStale flags the snapshot for refresh on the next load without
// discarding it.
func (s *Store) MarkStale() {
	s.mu.Lock()
	s.stale = true
	obs := s.observer
	state := s.stateLocked()
	s.mu.Unlock()
	if obs != nil {
		obs.SetCatalogState(state.String())
	}
}

// Load fetches the catalog and applies it. Callers racing on the same load
// share one upstream request. On failure the previous snapshot, if any,
// stays in effect and the error wraps shared.ErrCatalogUnavailable.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	s.nextGen++
	gen := s.nextGen
	obs := s.observer
	s.mu.Unlock()

	start := time.Now()
	result, err, _ := s.group.Do("catalog", func() (any, error) {
		roles, perms, err := s.fetcher.FetchCatalog(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrCatalogUnavailable, err)
		}
		return NewSnapshot(roles, perms, s.now()), nil
	})

	s.mu.Lock()
	if err != nil {
		s.lastFailed = true
		snap, state := s.snap, s.stateLocked()
		s.mu.Unlock()
		s.logger.Warn("catalog load failed", slog.Any("error", err))
		if obs != nil {
			obs.SetCatalogState(state.String())
		}
		return snap, err
	}

	snap := result.(*Snapshot)
	// Last response wins: apply only if no later-started load already did.
	if gen > s.appliedGen {
		s.appliedGen = gen
		s.snap = snap
		s.lastFailed = false
		s.stale = false
	}
	applied, state := s.snap, s.stateLocked()
	s.mu.Unlock()
	if obs != nil {
		obs.ObserveCatalogRefresh(time.Since(start))
		obs.SetCatalogState(state.String())
	}
	return applied, nil
}

// LoadIfStale refreshes the catalog only when needed.
func (s *Store) LoadIfStale(ctx context.Context) (*Snapshot, error) {
	if !s.IsStale() {
		snap, _ := s.Snapshot()
		return snap, nil
	}
	return s.Load(ctx)
}

func (s *Store) stateLocked() State {
	if s.snap == nil {
		if s.lastFailed {
			return StateFailed
		}
		return StateLoading
	}
	if s.lastFailed {
		return StateFailed
	}
	if s.stale || s.now().Sub(s.snap.LoadedAt) > s.freshness {
		return StateStale
	}
	return StateFresh
}
