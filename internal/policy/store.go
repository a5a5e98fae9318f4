package policy

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store holds the default policy and last observed state of every output
// channel and writes them through to a Repository on each mutation.
//
// The in-memory tables are authoritative. When the repository fails the
// mutation is kept in memory and ErrPersistence is returned, so the caller
// can log degraded durability and carry on.
//
// All public methods are thread-safe.
type Store struct {
	repo   Repository
	saveMu sync.Mutex // orders snapshot+save pairs
	mu     sync.RWMutex
	tables Tables
	logger Logger
}

// NewStore creates a store with empty tables. Call Load to read the
// persisted state.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:   repo,
		tables: NewTables(),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// Load replaces the in-memory tables with the persisted ones. On failure
// the store keeps empty tables and returns ErrPersistence.
func (s *Store) Load(ctx context.Context) error {
	t, err := s.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: loading tables: %w", ErrPersistence, err)
	}
	if t.States == nil || t.Defaults == nil {
		base := NewTables()
		if t.States != nil {
			base.States = t.States
		}
		if t.Defaults != nil {
			base.Defaults = t.Defaults
		}
		t = base
	}

	s.mu.Lock()
	s.tables = t
	s.mu.Unlock()

	s.logger.Info("output policy loaded", "devices_with_state", len(t.States), "devices_with_defaults", len(t.Defaults))
	return nil
}

// GetInitialState returns the value an output should take when it attaches.
//
// ForceOn and ForceOff win; otherwise the last observed state is used. ok is
// false when nothing is known, meaning the hardware must be left untouched.
func (s *Store) GetInitialState(deviceID string, index int) (state, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, determinate := s.tables.Defaults[deviceID][index].Determinate(); determinate {
		return v, true
	}
	v, ok := s.tables.States[deviceID][index]
	return v, ok
}

// LastObserved returns the recorded output state, if any.
func (s *Store) LastObserved(deviceID string, index int) (state, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.tables.States[deviceID][index]
	return v, ok
}

// Policy returns the configured default for one channel.
func (s *Store) Policy(deviceID string, index int) Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables.Defaults[deviceID][index]
}

// Defaults returns a copy of the configured defaults of a device.
func (s *Store) Defaults(deviceID string) map[int]Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int]Policy, len(s.tables.Defaults[deviceID]))
	for idx, p := range s.tables.Defaults[deviceID] {
		out[idx] = p
	}
	return out
}

// RecordOutputState stores the last observed value of an output. Writing a
// value equal to the stored one is a no-op and does not touch the repository.
func (s *Store) RecordOutputState(ctx context.Context, deviceID string, index int, state bool) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if prev, ok := s.tables.States[deviceID][index]; ok && prev == state {
		s.mu.Unlock()
		return nil
	}
	if s.tables.States[deviceID] == nil {
		s.tables.States[deviceID] = make(map[int]bool)
	}
	s.tables.States[deviceID][index] = state
	snapshot := s.tables.Clone()
	s.mu.Unlock()

	return s.save(ctx, snapshot)
}

// SetDefaults clears every default of deviceID and assigns the policies
// described by pattern, one symbol per channel index. The parsed policies
// are returned so the caller can apply the determinate ones.
func (s *Store) SetDefaults(ctx context.Context, deviceID, pattern string) ([]Policy, error) {
	policies := ParsePattern(pattern)

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	delete(s.tables.Defaults, deviceID)
	assigned := make(map[int]Policy, len(policies))
	for idx, p := range policies {
		if p != Unset {
			assigned[idx] = p
		}
	}
	if len(assigned) > 0 {
		s.tables.Defaults[deviceID] = assigned
	}
	snapshot := s.tables.Clone()
	s.mu.Unlock()

	return policies, s.save(ctx, snapshot)
}

// Snapshot returns a deep copy of the current tables.
func (s *Store) Snapshot() Tables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables.Clone()
}

func (s *Store) save(ctx context.Context, t Tables) error {
	if err := s.repo.Save(ctx, t); err != nil {
		return fmt.Errorf("%w: saving tables: %w", ErrPersistence, err)
	}
	return nil
}
