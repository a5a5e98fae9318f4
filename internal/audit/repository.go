// Package audit records inbound commands and their outcomes in the
// command_audit table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-iobridge/internal/channel"
)

// Actions.
const (
	ActionSetOutput   = "set_output"
	ActionSetDefaults = "set_defaults"
	ActionResync      = "resync"
)

// Sources.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// Outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeAdapterError = "adapter_error"
	OutcomeError        = "error"
)

// List page sizes.
const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Entry is a single command audit record.
type Entry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	DeviceID  string         `json:"device_id,omitempty"`
	Channel   *int           `json:"channel,omitempty"`
	Source    string         `json:"source"`
	Subject   string         `json:"subject,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Outcome   string         `json:"outcome"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	Action   string // optional: set_output, set_defaults or resync
	DeviceID string // optional
	Source   string // optional: api or mqtt
	Limit    int    // default 50, max 200
	Offset   int
}

// ListResult contains a page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository defines the audit trail operations.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// OutcomeOf classifies a registry error.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, channel.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, channel.ErrAdapter):
		return OutcomeAdapterError
	default:
		return OutcomeError
	}
}

// IntPtr is a convenience for Entry.Channel.
func IntPtr(i int) *int {
	return &i
}

// SQLiteRepository stores entries in SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Create inserts an entry. ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "cmd-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	var detailsJSON *string
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	var ch any
	if e.Channel != nil {
		ch = *e.Channel
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_audit (id, action, device_id, channel, source, subject, request_id, outcome, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, nullableString(e.DeviceID), ch,
		e.Source, nullableString(e.Subject), nullableString(e.RequestID),
		e.Outcome, detailsJSON,
		e.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// nullableString maps "" to NULL for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit > MaxLimit {
		filter.Limit = MaxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, filter.Source)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM command_audit " + where //nolint:gosec // WHERE built from parameterised conditions
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}

	query := "SELECT id, action, device_id, channel, source, subject, request_id, outcome, details, created_at FROM command_audit " + //nolint:gosec // WHERE built from parameterised conditions
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                                    Entry
		deviceID, subject, requestID, detail sql.NullString
		ch                                   sql.NullInt64
		createdAt                            string
	)
	if err := rows.Scan(&e.ID, &e.Action, &deviceID, &ch, &e.Source,
		&subject, &requestID, &e.Outcome, &detail, &createdAt); err != nil {
		return Entry{}, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.DeviceID = deviceID.String
	e.Subject = subject.String
	e.RequestID = requestID.String
	if ch.Valid {
		e.Channel = IntPtr(int(ch.Int64))
	}
	if detail.Valid && detail.String != "" {
		var details map[string]any
		if json.Unmarshal([]byte(detail.String), &details) == nil {
			e.Details = details
		}
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing audit timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t
	return e, nil
}
