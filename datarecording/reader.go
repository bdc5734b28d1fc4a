package datarecording

import (
	"context"
	"database/sql"
	"strings"
)

// Filter selects events. Empty fields match everything.
type Filter struct {
	Domain string
	Event  string

	// Limit is the maximum number of events to return, 0 for no limit.
	Limit  int
	Offset int
}

func (f Filter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)

	if f.Domain != "" {
		conds = append(conds, "Domain = ?")
		args = append(args, f.Domain)
	}

	if f.Event != "" {
		conds = append(conds, "Event = ?")
		args = append(args, f.Event)
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// A Reader reads back the events stored by a Recorder.
type Reader interface {
	// Events returns the events that match the filter in the order they were
	// recorded, and the number of matching events ignoring Limit and Offset.
	Events(ctx context.Context, f Filter) ([]Event, int, error)

	// Counts returns how many events of each kind match the filter.
	Counts(ctx context.Context, f Filter) (map[string]int, error)

	// Close closes the reader.
	Close() error
}

type sqliteReader struct {
	db *sql.DB
}

// NewReader opens the SQLite file at filename for reading.
func NewReader(filename string) Reader {
	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	return &sqliteReader{db: db}
}

// NewReaderWithDB creates a Reader over an open database.
func NewReaderWithDB(db *sql.DB) Reader {
	return &sqliteReader{db: db}
}

func (r *sqliteReader) Events(
	ctx context.Context,
	f Filter,
) ([]Event, int, error) {
	where, args := f.where()

	var total int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+EventTable+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := "SELECT " + strings.Join(eventColumns(), ", ") +
		" FROM " + EventTable + where + " ORDER BY rowid"

	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = -1
		}

		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := []Event{}

	for rows.Next() {
		var e Event

		err := rows.Scan(eventFields(&e)...)
		if err != nil {
			return nil, 0, err
		}

		events = append(events, e)
	}

	return events, total, rows.Err()
}

func (r *sqliteReader) Counts(
	ctx context.Context,
	f Filter,
) (map[string]int, error) {
	where, args := f.where()

	rows, err := r.db.QueryContext(ctx,
		"SELECT Event, COUNT(*) FROM "+EventTable+where+" GROUP BY Event",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			event string
			n     int
		)

		err := rows.Scan(&event, &n)
		if err != nil {
			return nil, err
		}

		counts[event] = n
	}

	return counts, rows.Err()
}

func (r *sqliteReader) Close() error {
	return r.db.Close()
}
