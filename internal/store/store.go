package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// pragma is a connection setting applied on Open. Want is what SQLite
// reports back when the setting took effect.
type pragma struct {
	Name  string
	Value string
	Want  string
}

// Trace readers open the same file while a run is recording, so the log
// runs in WAL mode with a busy timeout.
var firingLogPragmas = []pragma{
	{Name: "journal_mode", Value: "WAL", Want: "wal"},
	{Name: "synchronous", Value: "NORMAL", Want: "1"},
	{Name: "busy_timeout", Value: "5000", Want: "5000"},
	{Name: "foreign_keys", Value: "ON", Want: "1"},
}

// migrations[i] upgrades a log at user_version i to i+1.
var migrations = []func(*sql.Tx) error{
	// v1: trace --event filters by event name across sessions.
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_firings_event ON firings(event, seq)`)
		return err
	},
}

// schemaVersion is the user_version of a fully migrated firing log.
var schemaVersion = len(migrations)

// Store is the SQLite firing log.
type Store struct {
	db *sql.DB
}

// Open opens the firing log at path, creating it if needed. Opening an
// existing log brings its schema up to date and keeps recorded firings.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One writer; the recorder serializes through this connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func prepare(db *sql.DB) error {
	for _, p := range firingLogPragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.Name, p.Value)); err != nil {
			return fmt.Errorf("failed to apply pragma %s: %w", p.Name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := migrate(db); err != nil {
		return fmt.Errorf("failed to migrate firing log: %w", err)
	}
	return nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for v := version; v < schemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if err := migrations[v](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("v%d: %w", v+1, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("v%d: set user_version: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("v%d: %w", v+1, err)
		}
	}
	return nil
}

// Close closes the firing log. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// MaxSeq returns the highest recorded firing seq, or 0 for an empty log.
// A new recorder continues from here with engine.NewClockAt.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM firings`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

// checkPragmas reports the first pragma whose live value differs from
// what Open applied.
func (s *Store) checkPragmas() error {
	for _, p := range firingLogPragmas {
		var got string
		if err := s.db.QueryRow("PRAGMA " + p.Name).Scan(&got); err != nil {
			return fmt.Errorf("read pragma %s: %w", p.Name, err)
		}
		if got != p.Want {
			return fmt.Errorf("pragma %s = %q, want %q", p.Name, got, p.Want)
		}
	}
	return nil
}
