package policy

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Repository loads and saves the policy tables as a whole.
//
// Save must be atomic per call: both tables are written together or not at all.
type Repository interface {
	// Load returns the persisted tables, or empty tables if nothing was saved yet.
	Load(ctx context.Context) (Tables, error)

	// Save replaces the persisted tables with t.
	Save(ctx context.Context, t Tables) error
}

// SQLiteRepository implements Repository on the output_states and
// output_defaults tables.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Load reads both tables.
func (r *SQLiteRepository) Load(ctx context.Context) (Tables, error) {
	t := NewTables()

	rows, err := r.db.QueryContext(ctx, "SELECT device_id, channel, state FROM output_states")
	if err != nil {
		return t, fmt.Errorf("querying output states: %w", err)
	}
	for rows.Next() {
		var (
			dev   string
			idx   int
			state int
		)
		if err := rows.Scan(&dev, &idx, &state); err != nil {
			rows.Close()
			return NewTables(), fmt.Errorf("scanning output state: %w", err)
		}
		if t.States[dev] == nil {
			t.States[dev] = make(map[int]bool)
		}
		t.States[dev][idx] = state == 1
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return NewTables(), fmt.Errorf("iterating output states: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, "SELECT device_id, channel, policy FROM output_defaults")
	if err != nil {
		return NewTables(), fmt.Errorf("querying output defaults: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			dev  string
			idx  int
			name string
		)
		if err := rows.Scan(&dev, &idx, &name); err != nil {
			return NewTables(), fmt.Errorf("scanning output default: %w", err)
		}
		p := parsePolicyName(name)
		if p == Unset {
			continue
		}
		if t.Defaults[dev] == nil {
			t.Defaults[dev] = make(map[int]Policy)
		}
		t.Defaults[dev][idx] = p
	}
	if err := rows.Err(); err != nil {
		return NewTables(), fmt.Errorf("iterating output defaults: %w", err)
	}

	return t, nil
}

// Save rewrites both tables inside a single transaction.
func (r *SQLiteRepository) Save(ctx context.Context, t Tables) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM output_states"); err != nil {
		return fmt.Errorf("clearing output states: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM output_defaults"); err != nil {
		return fmt.Errorf("clearing output defaults: %w", err)
	}

	stateStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO output_states (device_id, channel, state) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing state insert: %w", err)
	}
	defer stateStmt.Close()

	for dev, chans := range t.States {
		for idx, state := range chans {
			v := 0
			if state {
				v = 1
			}
			if _, err := stateStmt.ExecContext(ctx, dev, idx, v); err != nil {
				return fmt.Errorf("inserting output state %s/%d: %w", dev, idx, err)
			}
		}
	}

	defStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO output_defaults (device_id, channel, policy) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing default insert: %w", err)
	}
	defer defStmt.Close()

	for dev, chans := range t.Defaults {
		for idx, p := range chans {
			if p == Unset {
				continue
			}
			if _, err := defStmt.ExecContext(ctx, dev, idx, p.String()); err != nil {
				return fmt.Errorf("inserting output default %s/%d: %w", dev, idx, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing policy tables: %w", err)
	}
	return nil
}

// MemoryRepository keeps the tables in memory. It backs tests and runs
// without a database file.
type MemoryRepository struct {
	mu     sync.Mutex
	tables Tables
	saves  int
}

// NewMemoryRepository returns an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tables: NewTables()}
}

// Load returns a copy of the stored tables.
func (m *MemoryRepository) Load(_ context.Context) (Tables, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables.Clone(), nil
}

// Save stores a copy of t.
func (m *MemoryRepository) Save(_ context.Context, t Tables) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = t.Clone()
	m.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (m *MemoryRepository) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
