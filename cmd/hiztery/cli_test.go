package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hiztery/internal/config"
	"github.com/hpungsan/hiztery/internal/db"
	"github.com/hpungsan/hiztery/internal/history"
	"github.com/hpungsan/hiztery/internal/ops"
)

// setupTestEnv opens a temporary database and returns an env writing
// command output to a buffer.
func setupTestEnv(t *testing.T) (*env, *bytes.Buffer) {
	t.Helper()
	store, err := db.Open(filepath.Join(t.TempDir(), "history.db"), db.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultConfig()
	cfg.SessionID = 77

	var out bytes.Buffer
	return &env{cfg: cfg, out: &out, store: store}, &out
}

// runCLI runs args against e and returns what the command printed.
func runCLI(t *testing.T, e *env, out *bytes.Buffer, args ...string) (string, error) {
	t.Helper()
	out.Reset()
	err := newCLIApp(e).Run(append([]string{"hiztery"}, args...))
	return out.String(), err
}

// mustRun runs args and decodes the JSON output into v.
func mustRun(t *testing.T, e *env, out *bytes.Buffer, v any, args ...string) {
	t.Helper()
	got, err := runCLI(t, e, out, args...)
	require.NoError(t, err, "hiztery %s", strings.Join(args, " "))
	require.NoError(t, json.Unmarshal([]byte(got), v), "output: %s", got)
}

func commandsOf(items []history.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.CommandLine
	}
	return out
}

func TestCLIInsertAndSelect(t *testing.T) {
	e, out := setupTestEnv(t)

	var inserted ops.InsertOutput
	mustRun(t, e, out, &inserted, "insert", "--text", "git status", "--rows", "2", "--cwd", "/src", "--exit-status", "1")
	assert.Equal(t, int64(2), inserted.Inserted)
	mustRun(t, e, out, &inserted, "insert", "--text", "make", "--cwd", "/src", "--duration", "1.5s")
	assert.Equal(t, int64(3), inserted.Total)

	var listed ops.ItemsOutput
	mustRun(t, e, out, &listed, "select")
	require.Equal(t, 3, listed.Count)
	assert.Equal(t, "make", listed.Items[0].CommandLine)
	assert.Equal(t, int64(77), listed.Items[0].SessionID, "session comes from config")
	assert.Equal(t, "1.5s", listed.Items[0].Duration.String())
	assert.Equal(t, history.UnknownDuration, listed.Items[1].Duration)
	assert.Equal(t, "status", listed.Items[1].Params())
	assert.Equal(t, int64(1), listed.Items[1].ExitStatus)

	mustRun(t, e, out, &listed, "list", "--unique")
	assert.Equal(t, []string{"make", "git status"}, commandsOf(listed.Items))

	mustRun(t, e, out, &listed, "select", "--max", "1")
	assert.Equal(t, 1, listed.Count)
}

func TestCLISearch(t *testing.T) {
	e, out := setupTestEnv(t)
	for _, text := range []string{"ls /home/ellie", "cd /home/ellie", "ls /tmp"} {
		_, err := runCLI(t, e, out, "insert", "--text", text, "--cwd", "/")
		require.NoError(t, err)
	}

	var found ops.SearchOutput
	mustRun(t, e, out, &found, "search", "--mode", "p", "--query", "ls")
	assert.Equal(t, 1, found.Count, "prefix matches the command name, collapsed by command")
	assert.Equal(t, history.SearchPrefix, found.Mode)

	mustRun(t, e, out, &found, "search", "-m", "f", "c")
	assert.Equal(t, []string{"cd /home/ellie"}, commandsOf(found.Items))

	mustRun(t, e, out, &found, "search", "--mode", "z", "--query", "s", "--limit", "5")
	assert.Equal(t, 1, found.Count)

	_, err := runCLI(t, e, out, "search", "--mode", "regex", "--query", "ls")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[INVALID_REQUEST]")
}

func TestCLIUpdateLoadDelete(t *testing.T) {
	e, out := setupTestEnv(t)
	_, err := runCLI(t, e, out, "insert", "--text", "vim", "--cwd", "/")
	require.NoError(t, err)

	var updated ops.UpdateOutput
	mustRun(t, e, out, &updated, "update", "--id", "1", "--text", "vim main.go", "--exit-status", "2")
	assert.Equal(t, int64(1), updated.Updated)

	var loaded history.Item
	mustRun(t, e, out, &loaded, "load", "1")
	assert.Equal(t, "vim main.go", loaded.CommandLine)
	assert.Equal(t, "main.go", loaded.Params())
	assert.Equal(t, int64(2), loaded.ExitStatus)

	var deleted ops.DeleteOutput
	mustRun(t, e, out, &deleted, "delete", "--id", "1")
	assert.Equal(t, int64(1), deleted.Deleted)

	_, err = runCLI(t, e, out, "load", "--id", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[NOT_FOUND]")

	_, err = runCLI(t, e, out, "delete", "--id", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[INVALID_REQUEST]")
}

func TestCLIDatesAndCounts(t *testing.T) {
	e, out := setupTestEnv(t)
	seedDay(t, e.store)

	var count ops.CountOutput
	mustRun(t, e, out, &count, "count")
	assert.Equal(t, int64(3), count.Count)

	var first, last history.Item
	mustRun(t, e, out, &first, "first")
	assert.Equal(t, "one", first.CommandLine)
	mustRun(t, e, out, &last, "last")
	assert.Equal(t, "three", last.CommandLine)

	var ranged ops.ItemsOutput
	mustRun(t, e, out, &ranged, "range", "--from", "2021-07-21", "--to", "2021-07-22")
	assert.Equal(t, []string{"one", "two", "three"}, commandsOf(ranged.Items))

	mustRun(t, e, out, &ranged, "range", "--from", "2021-07-22", "--to", "2021-07-23")
	assert.Equal(t, 0, ranged.Count)

	var before ops.ItemsOutput
	mustRun(t, e, out, &before, "before", "--from", "2021-07-22", "--count", "2")
	assert.Equal(t, []string{"three", "two"}, commandsOf(before.Items))

	_, err := runCLI(t, e, out, "range", "--from", "21/07/2021", "--to", "2021-07-22")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[INVALID_REQUEST]")
}

// seedDay saves three commands on 2021-07-21, one minute apart.
func seedDay(t *testing.T, store history.Store) {
	t.Helper()
	base := time.Date(2021, 7, 21, 9, 0, 0, 0, time.UTC)
	params := ""
	for i, cmd := range []string{"one", "two", "three"} {
		it := history.NewItem(history.ItemParams{
			CommandLine:   cmd,
			Command:       cmd,
			CommandParams: &params,
			Cwd:           "/",
			Duration:      history.UnknownDuration,
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			RunCount:      1,
		}, 1)
		require.NoError(t, store.Save(t.Context(), it))
	}
}

func TestCLIAll(t *testing.T) {
	e, out := setupTestEnv(t)
	seedDay(t, e.store)

	var all ops.ItemsOutput
	mustRun(t, e, out, &all, "all")
	require.Equal(t, 3, all.Count)
	for _, it := range all.Items {
		require.NotNil(t, it.ID)
		assert.Nil(t, it.CommandParams, "empty params read back as absent")
	}
}

func TestCLIExportImport(t *testing.T) {
	e, out := setupTestEnv(t)
	seedDay(t, e.store)
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "history.jsonl")

	var exported ops.ExportOutput
	mustRun(t, e, out, &exported, "export", "--path", exportPath)
	assert.Equal(t, 3, exported.Count)
	assert.Equal(t, ops.FormatJSONL, exported.Format)

	target, targetOut := setupTestEnv(t)
	var imported ops.ImportOutput
	mustRun(t, target, targetOut, &imported, "import", "--file", exportPath, "--format", "jsonl")
	assert.Equal(t, int64(3), imported.Imported)

	mustRun(t, target, targetOut, &imported, "import", "--file", exportPath, "--format", "jsonl")
	assert.Equal(t, int64(0), imported.Imported)
	assert.Equal(t, int64(3), imported.Skipped)

	mdPath := filepath.Join(dir, "history.md")
	mustRun(t, e, out, &exported, "export", "--path", mdPath, "--format", "markdown", "--max", "2")
	assert.Equal(t, 2, exported.Count)
	data, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "| two |")

	linesPath := filepath.Join(dir, "bash_history")
	require.NoError(t, os.WriteFile(linesPath, []byte("ls\npwd\n"), 0600))
	mustRun(t, target, targetOut, &imported, "import", "--file", linesPath, "--cwd", "/home/ellie")
	assert.Equal(t, int64(2), imported.Imported)

	_, err = runCLI(t, target, targetOut, "import", "--file", filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[FILE_NOT_FOUND]")
}

func TestCLIDatabaseFlag(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "custom.db")
	var out bytes.Buffer
	e := &env{cfg: config.DefaultConfig(), out: &out}

	_, err := runCLI(t, e, &out, "--db", dbPath, "insert", "--text", "ls", "--cwd", "/")
	require.NoError(t, err)
	assert.Nil(t, e.store, "store opened by the command is closed afterwards")

	store, err := db.Open(dbPath, db.Options{})
	require.NoError(t, err)
	defer store.Close()
	n, err := store.Count(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCLIConfigDatabasePath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "from-config.db")
	cfg := config.DefaultConfig()
	cfg.DBPath = dbPath
	var out bytes.Buffer

	_, err := runCLI(t, &env{cfg: cfg, out: &out}, &out, "count")
	require.NoError(t, err)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database created at the configured path")
}

func TestCLISQLLog(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")
	var out, logs bytes.Buffer
	e := &env{cfg: config.DefaultConfig(), out: &out, logOut: &logs}

	_, err := runCLI(t, e, &out, "--db", dbPath, "--sql-log", "trace", "count")
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "sql trace")
	assert.Contains(t, logs.String(), "SELECT COUNT")

	logs.Reset()
	_, err = runCLI(t, e, &out, "--db", dbPath, "count")
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "sql trace", "disabled unless requested")

	_, err = runCLI(t, e, &out, "--db", dbPath, "--sql-log", "loud", "count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[INVALID_REQUEST]")
}

func TestCLIRequiredFlags(t *testing.T) {
	e, out := setupTestEnv(t)

	_, err := runCLI(t, e, out, "insert")
	assert.Error(t, err)

	_, err = runCLI(t, e, out, "range", "--from", "2021-07-21")
	assert.Error(t, err)
}
