package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Durability defaults applied when the matching Options field is zero.
const (
	DefaultBusyTimeoutMS     = 1000
	DefaultPageSize          = 32768
	DefaultWALAutocheckpoint = 32
	DefaultJournalSizeLimit  = 3 * 1024 * 1024
)

// Options tunes how the database is opened. Zero values mean the default.
type Options struct {
	BusyTimeoutMS     int
	PageSize          int
	WALAutocheckpoint int
	JournalSizeLimit  int64

	// LogMode is the initial SQL log mode.
	LogMode LogMode

	// Logger receives SQL log output. Nil discards it.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.BusyTimeoutMS <= 0 {
		o.BusyTimeoutMS = DefaultBusyTimeoutMS
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.WALAutocheckpoint <= 0 {
		o.WALAutocheckpoint = DefaultWALAutocheckpoint
	}
	if o.JournalSizeLimit <= 0 {
		o.JournalSizeLimit = DefaultJournalSizeLimit
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// SQLite is the history store backed by a single SQLite connection.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	mode LogMode
	hook stmtHook
}

// Open opens (creating if needed) the history database at path.
// Missing parent directories are created; the engine creates the file.
func Open(path string, opts Options) (*SQLite, error) {
	opts = opts.withDefaults()
	memory := path == MemoryPath

	if !memory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	opts.Logger.Debug("opening history database", "path", path)

	// Pragmas in the connection string apply to every connection the pool
	// opens. The driver runs them in name order, so journal_mode is set
	// separately below: page_size only takes effect before the first write.
	db, err := sql.Open("sqlite", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if !memory {
		if err := enableWALMode(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	if !memory {
		// Best-effort; may not work on all platforms.
		_ = os.Chmod(path, 0600)
	}

	s := &SQLite{db: db, path: path, logger: opts.Logger}
	s.SetLogMode(opts.LogMode)
	return s, nil
}

func dsn(path string, opts Options) string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=page_size(%d)"+
		"&_pragma=wal_autocheckpoint(%d)&_pragma=journal_size_limit(%d)&_pragma=foreign_keys(1)",
		path, opts.BusyTimeoutMS, opts.PageSize, opts.WALAutocheckpoint, opts.JournalSizeLimit)
}

// Path returns the path the store was opened with.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// createSchema creates the history table and its indexes. Safe to run on
// every open.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS history_items (
	  history_id      INTEGER PRIMARY KEY AUTOINCREMENT,
	  timestamp       INTEGER NOT NULL,
	  duration        INTEGER NOT NULL,
	  exit_status     INTEGER NOT NULL,
	  command_line    TEXT NOT NULL,
	  command         TEXT NOT NULL,
	  command_params  TEXT NOT NULL,
	  cwd             TEXT NOT NULL,
	  session_id      INTEGER NOT NULL,
	  run_count       INTEGER NOT NULL,
	  UNIQUE(timestamp, cwd, command)
	);

	CREATE INDEX IF NOT EXISTS idx_history_timestamp
	ON history_items(timestamp);

	CREATE INDEX IF NOT EXISTS idx_history_command
	ON history_items(command);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("schema setup failed: %w", err)
	}
	return nil
}

// enableWALMode switches the database to WAL and checks that it took.
// WAL is persistent, so this is a no-op on an existing file.
func enableWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// Pragma returns the current value of a numeric pragma such as page_size.
func (s *SQLite) Pragma(ctx context.Context, name string) (int64, error) {
	var v int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read pragma %s: %w", name, err)
	}
	return v, nil
}
