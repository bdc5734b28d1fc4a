package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A Recorder stores address-space events.
type Recorder interface {
	// Record buffers an event.
	Record(e Event)

	// Flush writes the buffered events into the database.
	Flush()
}

const defaultBatchSize = 10000

type sqliteRecorder struct {
	sync.Mutex
	db *sql.DB

	pending   []Event
	batchSize int
}

// New creates a Recorder that writes into path + ".sqlite3". An empty path
// picks a unique name. Pending events are flushed when the program exits
// through atexit.
func New(path string) Recorder {
	if path == "" {
		path = "kmem_events_" + xid.New().String()
	}

	filename := path + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	return NewWithDB(db)
}

// NewWithDB creates a Recorder that writes into an open database.
func NewWithDB(db *sql.DB) Recorder {
	r := &sqliteRecorder{
		db:        db,
		batchSize: defaultBatchSize,
	}

	r.mustExecute(createEventTableSQL())

	atexit.Register(r.Flush)

	return r
}

func (r *sqliteRecorder) Record(e Event) {
	r.Lock()
	defer r.Unlock()

	r.pending = append(r.pending, e)

	if len(r.pending) >= r.batchSize {
		r.flushLocked()
	}
}

func (r *sqliteRecorder) Flush() {
	r.Lock()
	defer r.Unlock()

	r.flushLocked()
}

func (r *sqliteRecorder) flushLocked() {
	if len(r.pending) == 0 {
		return
	}

	tx, err := r.db.Begin()
	if err != nil {
		panic(err)
	}

	columns := eventColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")

	stmt, err := tx.Prepare("INSERT INTO " + EventTable +
		" (" + strings.Join(columns, ", ") + ") VALUES (" + placeholders + ")")
	if err != nil {
		panic(err)
	}

	for _, e := range r.pending {
		_, err := stmt.Exec(eventValues(e)...)
		if err != nil {
			panic(err)
		}
	}

	err = stmt.Close()
	if err != nil {
		panic(err)
	}

	err = tx.Commit()
	if err != nil {
		panic(err)
	}

	r.pending = nil
}

func (r *sqliteRecorder) mustExecute(query string) {
	_, err := r.db.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}
}
