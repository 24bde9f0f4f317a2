package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

// RawQuery runs text verbatim and maps each result row into an Item by
// column name. Columns the query does not select are left at their zero
// value. It is meant for a trusted operator only: the text is not
// sanitized in any way.
func (s *SQLite) RawQuery(ctx context.Context, text string) ([]history.Item, error) {
	done := s.observe(text)
	defer done()

	rows, err := s.db.QueryContext(ctx, text)
	if err != nil {
		return nil, rawError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	items := []history.Item{}
	for rows.Next() {
		var (
			it   history.Item
			row  rawRow
			dest = make([]any, len(cols))
		)
		for i, col := range cols {
			ptr, ok := row.field(col)
			if !ok {
				return nil, errors.NewInvalidRequestf("raw query: column %q does not map to a history item field", col)
			}
			dest[i] = ptr
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.NewInvalidRequestf("raw query: %v", err)
		}
		row.apply(&it)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return items, nil
}

// rawRow holds the nullable scan targets for a raw query row.
type rawRow struct {
	id          sql.NullInt64
	timestamp   sql.NullInt64
	duration    sql.NullInt64
	exitStatus  sql.NullInt64
	commandLine sql.NullString
	command     sql.NullString
	params      sql.NullString
	cwd         sql.NullString
	sessionID   sql.NullInt64
	runCount    sql.NullInt64
}

func (r *rawRow) field(col string) (any, bool) {
	switch col {
	case "history_id":
		return &r.id, true
	case "timestamp":
		return &r.timestamp, true
	case "duration":
		return &r.duration, true
	case "exit_status":
		return &r.exitStatus, true
	case "command_line":
		return &r.commandLine, true
	case "command":
		return &r.command, true
	case "command_params":
		return &r.params, true
	case "cwd":
		return &r.cwd, true
	case "session_id":
		return &r.sessionID, true
	case "run_count":
		return &r.runCount, true
	}
	return nil, false
}

func (r *rawRow) apply(it *history.Item) {
	if r.id.Valid {
		id := r.id.Int64
		it.ID = &id
	}
	if r.timestamp.Valid {
		it.Timestamp = time.Unix(0, r.timestamp.Int64).UTC()
	}
	it.Duration = time.Duration(r.duration.Int64)
	it.ExitStatus = r.exitStatus.Int64
	it.CommandLine = r.commandLine.String
	it.Command = r.command.String
	if r.params.Valid && r.params.String != "" {
		params := r.params.String
		it.CommandParams = &params
	}
	it.Cwd = r.cwd.String
	it.SessionID = r.sessionID.Int64
	it.RunCount = r.runCount.Int64
}

// rawError reports a rejected statement as malformed input; lock failures
// keep their usual mapping.
func rawError(err error) error {
	if isBusy(err) {
		return errors.NewLockTimeout(err)
	}
	return errors.NewInvalidRequestf("raw query: %v", err)
}
