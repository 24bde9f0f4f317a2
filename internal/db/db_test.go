package db

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "history.db")

	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", path)
	}

	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	var tableName string
	err = s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='history_items'").Scan(&tableName)
	if err != nil {
		t.Fatalf("history_items table not found: %v", err)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	tests := []struct {
		pragma string
		want   int64
	}{
		{"busy_timeout", 1000},
		{"page_size", 32768},
		{"wal_autocheckpoint", 32},
		{"journal_size_limit", 3145728},
		{"foreign_keys", 1},
	}

	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			got, err := s.Pragma(ctx, tt.pragma)
			if err != nil {
				t.Fatalf("Pragma(%s) error = %v", tt.pragma, err)
			}
			if got != tt.want {
				t.Errorf("%s = %d, want %d", tt.pragma, got, tt.want)
			}
		})
	}
}

func TestOpen_PragmaOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, Options{BusyTimeoutMS: 2500, WALAutocheckpoint: 100, JournalSizeLimit: 1 << 20})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for name, want := range map[string]int64{
		"busy_timeout":       2500,
		"wal_autocheckpoint": 100,
		"journal_size_limit": 1 << 20,
	} {
		got, err := s.Pragma(ctx, name)
		if err != nil {
			t.Fatalf("Pragma(%s) error = %v", name, err)
		}
		if got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestOpen_CreatesDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, "nested", "path", ".hiztery")

	s, err := Open(filepath.Join(dir, "history.db"), Options{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		t.Fatalf("directory not created at %s", dir)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", dir)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s1, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	if err := s1.Save(ctx, testItem("ls -la", 0)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	s1.Close()

	s2, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer s2.Close()

	n, err := s2.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() after reopen = %d, want 1", n)
	}
}

func TestOpen_SchemaIndexes(t *testing.T) {
	s := openTestDB(t)

	rows, err := s.db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name='history_items'")
	if err != nil {
		t.Fatalf("failed to query indexes: %v", err)
	}
	defer rows.Close()

	indexes := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes[name] = true
	}

	for _, want := range []string{"idx_history_timestamp", "idx_history_command"} {
		if !indexes[want] {
			t.Errorf("missing index %s", want)
		}
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(MemoryPath, Options{})
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Save(ctx, testItem("echo hi", 0)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestLogMode_Parse(t *testing.T) {
	tests := []struct {
		in      string
		want    LogMode
		wantErr bool
	}{
		{"", LogDisabled, false},
		{"disabled", LogDisabled, false},
		{"profile", LogProfile, false},
		{"TRACE", LogTrace, false},
		{"verbose", LogDisabled, true},
	}
	for _, tt := range tests {
		got, err := ParseLogMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	for _, m := range []LogMode{LogDisabled, LogProfile, LogTrace} {
		back, err := ParseLogMode(m.String())
		if err != nil || back != m {
			t.Errorf("ParseLogMode(%s) = %v, %v", m, back, err)
		}
	}
}

func TestLogMode_Switching(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s, err := Open(filepath.Join(t.TempDir(), "history.db"), Options{Logger: logger})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if s.LogMode() != LogDisabled {
		t.Fatalf("default log mode = %v, want disabled", s.LogMode())
	}
	if _, err := s.Count(ctx); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "sql ") {
		t.Errorf("disabled mode logged statements: %s", buf.String())
	}

	s.SetLogMode(LogTrace)
	buf.Reset()
	if _, err := s.Count(ctx); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "sql trace") || !strings.Contains(out, "SELECT COUNT(*) FROM history_items") {
		t.Errorf("trace output = %q", out)
	}
	if strings.Contains(out, "elapsed") {
		t.Errorf("trace mode must not log timing: %q", out)
	}

	s.SetLogMode(LogProfile)
	buf.Reset()
	if _, err := s.Count(ctx); err != nil {
		t.Fatal(err)
	}
	out = buf.String()
	if !strings.Contains(out, "sql profile") || !strings.Contains(out, "elapsed=") {
		t.Errorf("profile output = %q", out)
	}
	if strings.Contains(out, "sql trace") {
		t.Errorf("trace hook still attached after switching to profile: %q", out)
	}

	s.SetLogMode(LogDisabled)
	buf.Reset()
	if _, err := s.Count(ctx); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("disabled mode logged: %q", buf.String())
	}
}

func TestLogMode_FromOptions(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s, err := Open(MemoryPath, Options{Logger: logger, LogMode: LogTrace})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if s.LogMode() != LogTrace {
		t.Errorf("LogMode() = %v, want trace", s.LogMode())
	}
}
