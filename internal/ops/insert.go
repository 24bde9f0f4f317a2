package ops

import (
	"context"
	"strings"
	"time"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

// InsertInput contains parameters for the Insert operation.
type InsertInput struct {
	Text       string         // required; the full command line
	Rows       int            // copies to insert, default 1
	Cwd        string         // default: current directory
	ExitStatus int64          // default 0
	Duration   *time.Duration // default: unknown
	SessionID  int64          // session stamped on the new items
	Now        time.Time      // default: time.Now()
}

// InsertOutput contains the result of the Insert operation.
type InsertOutput struct {
	Inserted int64 `json:"inserted"`
	Total    int64 `json:"total"`
}

// Insert records Text as Rows new history items. Copies are spaced one
// nanosecond apart so none collide on the uniqueness key.
func Insert(ctx context.Context, store history.Store, input InsertInput) (*InsertOutput, error) {
	line := strings.TrimSpace(input.Text)
	if line == "" {
		return nil, errors.NewInvalidRequest("text is required")
	}

	rows := input.Rows
	if rows == 0 {
		rows = 1
	}
	if rows < 0 || rows > MaxInsertRows {
		return nil, errors.NewInvalidRequestf("rows must be between 1 and %d", MaxInsertRows)
	}

	cwd, err := resolveCwd(input.Cwd)
	if err != nil {
		return nil, err
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	duration := history.UnknownDuration
	if input.Duration != nil {
		duration = *input.Duration
	}

	command, params := history.SplitCommandLine(line)
	items := make([]history.Item, 0, rows)
	for i := range rows {
		items = append(items, history.NewItem(history.ItemParams{
			CommandLine:   line,
			Command:       command,
			CommandParams: params,
			Cwd:           cwd,
			Duration:      duration,
			ExitStatus:    input.ExitStatus,
			Timestamp:     now.Add(time.Duration(i)),
			RunCount:      1,
		}, input.SessionID))
	}

	before, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.SaveBulk(ctx, items); err != nil {
		return nil, err
	}
	after, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &InsertOutput{Inserted: after - before, Total: after}, nil
}
