// Package overrides holds per-user permission exceptions: custom grants and
// denials layered on top of role-derived permissions.
package overrides

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/akademos/akademos/internal/shared"
)

// Overrides is the externally visible override state for one user.
type Overrides struct {
	Custom []string `json:"custom"`
	Denied []string `json:"denied"`
}

// Repository persists override state. Implementations must be safe for
// concurrent use.
type Repository interface {
	Load(ctx context.Context, userID int64) (custom, denied []string, err error)
	Grant(ctx context.Context, userID int64, permission string) error
	Deny(ctx context.Context, userID int64, permission string) error
	Clear(ctx context.Context, userID int64, permission string) error
}

// Syncer pushes an override mutation to the upstream backend, typically by
// enqueueing a background task.
type Syncer interface {
	SyncOverride(ctx context.Context, userID int64, permission, op string) error
}

// Operations understood by the Syncer.
const (
	OpGrant = "grant"
	OpDeny  = "deny"
	OpClear = "clear"
)

type userState struct {
	custom map[string]struct{}
	denied map[string]struct{}
}

// Store keeps override state in memory, mirrors mutations to the local
// repository synchronously, and hands remote propagation to the Syncer.
// Mutations apply optimistically: when persistence fails the in-memory state
// is kept and the error is surfaced to the caller instead of rolling back.
type Store struct {
	repo   Repository
	syncer Syncer
	logger *slog.Logger

	mu     sync.RWMutex
	users  map[int64]*userState
	loaded map[int64]bool
}

// NewStore constructs a Store. Repository and Syncer may be nil, in which
// case the store is purely in-memory.
func NewStore(repo Repository, syncer Syncer, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:   repo,
		syncer: syncer,
		logger: logger,
		users:  make(map[int64]*userState),
		loaded: make(map[int64]bool),
	}
}

// Overrides returns the user's custom and denied permission names, loading
// them from the repository on first access. A repository failure resolves to
// empty sets; the user then falls back to pure role-derived permissions.
func (s *Store) Overrides(ctx context.Context, userID int64) (custom, denied []string) {
	s.ensureLoaded(ctx, userID)

	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return sortedNames(state.custom), sortedNames(state.denied)
}

// Get returns the override state for external consumers.
func (s *Store) Get(ctx context.Context, userID int64) Overrides {
	custom, denied := s.Overrides(ctx, userID)
	if custom == nil {
		custom = []string{}
	}
	if denied == nil {
		denied = []string{}
	}
	return Overrides{Custom: custom, Denied: denied}
}

// Grant adds a custom grant for the user, removing any denial of the same
// permission first. Repeated grants are idempotent.
func (s *Store) Grant(ctx context.Context, userID int64, permission string) error {
	s.ensureLoaded(ctx, userID)

	s.mu.Lock()
	state := s.stateLocked(userID)
	delete(state.denied, permission)
	state.custom[permission] = struct{}{}
	s.mu.Unlock()

	return s.persist(ctx, userID, permission, OpGrant)
}

// Deny withholds the permission from the user, removing any custom grant of
// the same permission first. Repeated denials are idempotent.
func (s *Store) Deny(ctx context.Context, userID int64, permission string) error {
	s.ensureLoaded(ctx, userID)

	s.mu.Lock()
	state := s.stateLocked(userID)
	delete(state.custom, permission)
	state.denied[permission] = struct{}{}
	s.mu.Unlock()

	return s.persist(ctx, userID, permission, OpDeny)
}

// Clear removes the permission from both sets, restoring the role-derived
// default.
func (s *Store) Clear(ctx context.Context, userID int64, permission string) error {
	s.ensureLoaded(ctx, userID)

	s.mu.Lock()
	if state, ok := s.users[userID]; ok {
		delete(state.custom, permission)
		delete(state.denied, permission)
	}
	s.mu.Unlock()

	return s.persist(ctx, userID, permission, OpClear)
}

// Invalidate drops the cached state for a user so the next read reloads it
// from the repository.
func (s *Store) Invalidate(userID int64) {
	s.mu.Lock()
	delete(s.users, userID)
	delete(s.loaded, userID)
	s.mu.Unlock()
}

// InvalidateAll drops every cached user.
func (s *Store) InvalidateAll() {
	s.mu.Lock()
	s.users = make(map[int64]*userState)
	s.loaded = make(map[int64]bool)
	s.mu.Unlock()
}

func (s *Store) persist(ctx context.Context, userID int64, permission, op string) error {
	var repoErr error
	if s.repo != nil {
		switch op {
		case OpGrant:
			repoErr = s.repo.Grant(ctx, userID, permission)
		case OpDeny:
			repoErr = s.repo.Deny(ctx, userID, permission)
		case OpClear:
			repoErr = s.repo.Clear(ctx, userID, permission)
		}
	}
	if s.syncer != nil {
		if err := s.syncer.SyncOverride(ctx, userID, permission, op); err != nil {
			s.logger.Warn("override sync enqueue failed",
				slog.Int64("user_id", userID),
				slog.String("permission", permission),
				slog.Any("error", err))
			if repoErr == nil {
				repoErr = err
			}
		}
	}
	if repoErr != nil {
		return fmt.Errorf("%w: %s %s for user %d: %v",
			shared.ErrOverrideSync, op, permission, userID, repoErr)
	}
	return nil
}

func (s *Store) ensureLoaded(ctx context.Context, userID int64) {
	s.mu.RLock()
	done := s.loaded[userID]
	s.mu.RUnlock()
	if done {
		return
	}
	if s.repo == nil {
		s.mu.Lock()
		s.loaded[userID] = true
		s.mu.Unlock()
		return
	}

	custom, denied, err := s.repo.Load(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded[userID] {
		return
	}
	s.loaded[userID] = true
	if err != nil {
		s.logger.Warn("override load failed", slog.Int64("user_id", userID), slog.Any("error", err))
		return
	}
	state := s.stateLocked(userID)
	for _, name := range custom {
		state.custom[name] = struct{}{}
	}
	for _, name := range denied {
		state.denied[name] = struct{}{}
	}
}

func (s *Store) stateLocked(userID int64) *userState {
	state, ok := s.users[userID]
	if !ok {
		state = &userState{
			custom: make(map[string]struct{}),
			denied: make(map[string]struct{}),
		}
		s.users[userID] = state
	}
	return state
}

func sortedNames(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
