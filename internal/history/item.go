// Package history defines the history record, search modes, and the store
// contract shared by the CLI, the importer, and the tool server.
package history

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/hiztery/internal/errors"
)

// Timestamps are stored as nanoseconds since the epoch, which bounds the
// representable range to roughly the years 1678 through 2262.
var (
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// UnknownDuration marks a command whose run time was not measured.
const UnknownDuration time.Duration = -1

// Item represents one executed command and its metadata.
type Item struct {
	// ID is the store-assigned identity; nil until first persisted
	ID *int64 `json:"id"`

	// CommandLine is the full literal text the user typed
	CommandLine string `json:"command_line"`

	// Command is the command-name portion of the line and the search target
	Command string `json:"command"`

	// CommandParams is the remainder of the line (stored as "" when nil)
	CommandParams *string `json:"command_params"`

	// Cwd is the working directory at execution time
	Cwd string `json:"cwd"`

	// Duration is the elapsed run time; negative means unknown
	Duration time.Duration `json:"duration"`

	// ExitStatus is the process exit code
	ExitStatus int64 `json:"exit_status"`

	// SessionID groups records from one running shell session
	SessionID int64 `json:"session_id"`

	// Timestamp is when the command was run (persisted as Unix nanoseconds)
	Timestamp time.Time `json:"timestamp"`

	// RunCount is how many times the command was run
	RunCount int64 `json:"run_count"`
}

// ItemParams holds the caller-supplied fields for NewItem.
// A nil SessionID falls back to the session default passed to NewItem.
type ItemParams struct {
	ID            *int64
	CommandLine   string
	Command       string
	CommandParams *string
	Cwd           string
	Duration      time.Duration
	ExitStatus    int64
	SessionID     *int64
	Timestamp     time.Time
	RunCount      int64
}

// NewItem builds an Item, filling SessionID from defaultSession when the
// caller did not supply one.
func NewItem(p ItemParams, defaultSession int64) Item {
	session := defaultSession
	if p.SessionID != nil {
		session = *p.SessionID
	}
	return Item{
		ID:            p.ID,
		CommandLine:   p.CommandLine,
		Command:       p.Command,
		CommandParams: p.CommandParams,
		Cwd:           p.Cwd,
		Duration:      p.Duration,
		ExitStatus:    p.ExitStatus,
		SessionID:     session,
		Timestamp:     p.Timestamp,
		RunCount:      p.RunCount,
	}
}

// SplitCommandLine splits a command line into its command name and the
// remaining parameters. Params is nil when the line has no arguments.
func SplitCommandLine(line string) (command string, params *string) {
	line = strings.TrimSpace(line)
	name, rest, found := strings.Cut(line, " ")
	if !found {
		return line, nil
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return name, nil
	}
	return name, &rest
}

// Params returns CommandParams, or "" when absent.
func (i Item) Params() string {
	if i.CommandParams == nil {
		return ""
	}
	return *i.CommandParams
}

// Equal reports whether two items have the same command text. No other field
// takes part: this identity drives the unique list and search views.
func (i Item) Equal(o Item) bool {
	return i.Command == o.Command
}

// Key returns the hash key consistent with Equal.
func (i Item) Key() string {
	return i.Command
}

// Validate rejects items that cannot be stored.
func (i Item) Validate() error {
	if i.CommandLine == "" {
		return errors.NewInvalidRequest("command_line is required")
	}
	if i.Command == "" {
		return errors.NewInvalidRequest("command is required")
	}
	if i.Timestamp.IsZero() {
		return errors.NewInvalidRequest("timestamp is required")
	}
	if i.Timestamp.Before(MinTimestamp) || i.Timestamp.After(MaxTimestamp) {
		return errors.NewInvalidRequestf("timestamp %s is outside %d..%d",
			i.Timestamp.Format(time.RFC3339), MinTimestamp.Year(), MaxTimestamp.Year())
	}
	return nil
}

// Compare orders items field by field in declaration order. Absent ID and
// params sort before present ones. Note that Compare(a, b) == 0 is stricter
// than a.Equal(b).
func Compare(a, b Item) int {
	return cmp.Or(
		compareOptional(a.ID, b.ID),
		strings.Compare(a.CommandLine, b.CommandLine),
		strings.Compare(a.Command, b.Command),
		compareOptional(a.CommandParams, b.CommandParams),
		strings.Compare(a.Cwd, b.Cwd),
		cmp.Compare(a.Duration, b.Duration),
		cmp.Compare(a.ExitStatus, b.ExitStatus),
		cmp.Compare(a.SessionID, b.SessionID),
		a.Timestamp.Compare(b.Timestamp),
		cmp.Compare(a.RunCount, b.RunCount),
	)
}

func compareOptional[T cmp.Ordered](a, b *T) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return cmp.Compare(*a, *b)
}

// Unique keeps, for every distinct command, the item with the greatest
// timestamp, and returns them newest first. Ties on timestamp go to the
// greater ID, matching the SQL store.
func Unique(items []Item) []Item {
	newest := make(map[string]int, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		idx, ok := newest[it.Key()]
		if !ok {
			newest[it.Key()] = len(out)
			out = append(out, it)
			continue
		}
		if newerThan(it, out[idx]) {
			out[idx] = it
		}
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst sorts items by timestamp descending, then ID descending.
func SortNewestFirst(items []Item) {
	slices.SortStableFunc(items, func(a, b Item) int {
		return -compareAge(a, b)
	})
}

// SortOldestFirst sorts items by timestamp ascending, then ID ascending.
func SortOldestFirst(items []Item) {
	slices.SortStableFunc(items, compareAge)
}

func newerThan(a, b Item) bool {
	return compareAge(a, b) > 0
}

func compareAge(a, b Item) int {
	return cmp.Or(
		a.Timestamp.Compare(b.Timestamp),
		compareOptional(a.ID, b.ID),
	)
}
