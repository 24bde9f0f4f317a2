package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strconv"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

var _ history.Store = (*SQLite)(nil)

const itemColumns = `history_id, timestamp, duration, exit_status, command_line,
	command, command_params, cwd, session_id, run_count`

const insertItem = `
	INSERT OR IGNORE INTO history_items (
		history_id, timestamp, duration, exit_status, command_line,
		command, command_params, cwd, session_id, run_count
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// newestPerCommand keeps only the newest row for each command. Rows sharing
// a timestamp are broken by the greater id, so exactly one row survives.
const newestPerCommand = `h.history_id = (
		SELECT i.history_id FROM history_items i
		WHERE i.command = h.command
		ORDER BY i.timestamp DESC, i.history_id DESC
		LIMIT 1
	)`

const (
	newestFirst = " ORDER BY h.timestamp DESC, h.history_id DESC"
	oldestFirst = " ORDER BY h.timestamp ASC, h.history_id ASC"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLite) exec(ctx context.Context, e execer, query string, args ...any) (sql.Result, error) {
	done := s.observe(query)
	defer done()
	return e.ExecContext(ctx, query, args...)
}

func (s *SQLite) queryItems(ctx context.Context, query string, args ...any) ([]history.Item, error) {
	done := s.observe(query)
	defer done()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	items := []history.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return items, nil
}

func (s *SQLite) queryItem(ctx context.Context, identifier, query string, args ...any) (history.Item, error) {
	done := s.observe(query)
	defer done()

	it, err := scanItem(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return history.Item{}, errors.NewNotFound(identifier)
	}
	if err != nil {
		return history.Item{}, mapError(err)
	}
	return it, nil
}

// Save inserts a single item in its own transaction.
func (s *SQLite) Save(ctx context.Context, item history.Item) error {
	return s.SaveBulk(ctx, []history.Item{item})
}

// SaveBulk inserts every item in one transaction. Items colliding on
// (timestamp, cwd, command) or carrying an ID that is already taken are
// skipped by INSERT OR IGNORE; any other failure rolls back the whole batch.
func (s *SQLite) SaveBulk(ctx context.Context, items []history.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback()

	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
		if _, err := s.exec(ctx, tx, insertItem, insertArgs(it)...); err != nil {
			return mapError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	s.logger.Debug("saved history items", "count", len(items))
	return nil
}

func insertArgs(it history.Item) []any {
	var id sql.NullInt64
	if it.ID != nil {
		id = sql.NullInt64{Int64: *it.ID, Valid: true}
	}
	return []any{
		id, it.Timestamp.UnixNano(), int64(it.Duration), it.ExitStatus, it.CommandLine,
		it.Command, it.Params(), it.Cwd, it.SessionID, it.RunCount,
	}
}

// Load retrieves an item by its id.
func (s *SQLite) Load(ctx context.Context, id int64) (history.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM history_items h WHERE h.history_id = ?`
	return s.queryItem(ctx, strconv.FormatInt(id, 10), query, id)
}

// List returns items newest first, optionally reduced to the newest row per
// command. A nil max means no cap.
func (s *SQLite) List(ctx context.Context, max *int, unique bool) ([]history.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM history_items h`
	if unique {
		query += ` WHERE ` + newestPerCommand
	}
	query += newestFirst + ` LIMIT ?`
	return s.queryItems(ctx, query, limitArg(max))
}

// Range returns items with from <= timestamp <= to, oldest first.
func (s *SQLite) Range(ctx context.Context, from, to time.Time) ([]history.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM history_items h
		WHERE h.timestamp >= ? AND h.timestamp <= ?` + oldestFirst
	return s.queryItems(ctx, query, from.UnixNano(), to.UnixNano())
}

// Update overwrites every column but the id of the row addressed by item.ID.
// It returns the number of rows changed.
func (s *SQLite) Update(ctx context.Context, item history.Item) (int64, error) {
	if item.ID == nil {
		return 0, errors.NewInvalidRequest("id is required for update")
	}
	if err := item.Validate(); err != nil {
		return 0, err
	}

	query := `
		UPDATE history_items
		SET timestamp = ?, duration = ?, exit_status = ?, command_line = ?,
			command = ?, command_params = ?, cwd = ?, session_id = ?, run_count = ?
		WHERE history_id = ?
	`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, mapError(err)
	}
	defer tx.Rollback()

	result, err := s.exec(ctx, tx, query,
		item.Timestamp.UnixNano(), int64(item.Duration), item.ExitStatus, item.CommandLine,
		item.Command, item.Params(), item.Cwd, item.SessionID, item.RunCount,
		*item.ID,
	)
	if err != nil {
		if isConstraint(err) {
			return 0, errors.NewInvalidRequest("update collides with an existing item at the same timestamp, cwd and command")
		}
		return 0, mapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, mapError(err)
	}
	return rowsAffected, nil
}

// Count returns the number of stored items.
func (s *SQLite) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM history_items`
	done := s.observe(query)
	defer done()

	var n int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// First returns the oldest item.
func (s *SQLite) First(ctx context.Context) (history.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM history_items h` + oldestFirst + ` LIMIT 1`
	return s.queryItem(ctx, "first", query)
}

// Last returns the newest item.
func (s *SQLite) Last(ctx context.Context) (history.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM history_items h` + newestFirst + ` LIMIT 1`
	return s.queryItem(ctx, "last", query)
}

// Before returns up to count items strictly older than ts, newest first.
func (s *SQLite) Before(ctx context.Context, ts time.Time, count int) ([]history.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM history_items h
		WHERE h.timestamp < ?` + newestFirst + ` LIMIT ?`
	return s.queryItems(ctx, query, ts.UnixNano(), count)
}

// Search matches query against the command column and returns the newest row
// per matching command, newest first.
func (s *SQLite) Search(ctx context.Context, limit *int, mode history.SearchMode, query string) ([]history.Item, error) {
	glob := history.Compile(mode, query).Glob()
	s.logger.Debug("searching history", "mode", string(mode), "query", query, "glob", glob)

	stmt := `SELECT ` + itemColumns + ` FROM history_items h
		WHERE h.command GLOB ? AND ` + newestPerCommand + newestFirst + ` LIMIT ?`
	return s.queryItems(ctx, stmt, glob, limitArg(limit))
}

// Delete removes the item with the given id and returns the number of rows
// removed.
func (s *SQLite) Delete(ctx context.Context, id int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, mapError(err)
	}
	defer tx.Rollback()

	result, err := s.exec(ctx, tx, `DELETE FROM history_items WHERE history_id = ?`, id)
	if err != nil {
		return 0, mapError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, mapError(err)
	}
	return rowsAffected, nil
}

// limitArg converts an optional cap into a LIMIT value; -1 means no limit.
func limitArg(max *int) int {
	if max == nil || *max < 0 {
		return -1
	}
	return *max
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem scans one row selected with itemColumns.
func scanItem(row rowScanner) (history.Item, error) {
	var (
		it        history.Item
		id        int64
		timestamp int64
		duration  int64
		params    string
	)

	err := row.Scan(
		&id, &timestamp, &duration, &it.ExitStatus, &it.CommandLine,
		&it.Command, &params, &it.Cwd, &it.SessionID, &it.RunCount,
	)
	if err != nil {
		return history.Item{}, err
	}

	it.ID = &id
	it.Timestamp = time.Unix(0, timestamp).UTC()
	it.Duration = time.Duration(duration)
	if params != "" {
		it.CommandParams = &params
	}
	return it, nil
}

// sqliteCode returns the primary result code of a SQLite error, or 0.
func sqliteCode(err error) int {
	var sErr *sqlite.Error
	if stderrors.As(err, &sErr) {
		return sErr.Code() & 0xff
	}
	return 0
}

func isBusy(err error) bool {
	switch sqliteCode(err) {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func isConstraint(err error) bool {
	return sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT
}

// mapError converts an engine error into a coded error. Errors that already
// carry a code pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var hErr *errors.HistoryError
	if stderrors.As(err, &hErr) {
		return err
	}
	if isBusy(err) {
		return errors.NewLockTimeout(err)
	}
	return errors.NewInternal(err)
}
