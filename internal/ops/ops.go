// Package ops implements the history operations shared by the CLI and the
// tool server: input validation, date parsing, import, and export.
package ops

import (
	"strconv"
	"strings"
	"time"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

// Limits
const (
	DefaultBeforeCount = 10
	MaxInsertRows      = 10000
)

// DateLayout is the calendar-date form accepted for range bounds.
const DateLayout = "2006-01-02"

// ItemsOutput is the result of every multi-item read.
type ItemsOutput struct {
	Items []history.Item `json:"items"`
	Count int            `json:"count"`
}

func itemsOutput(items []history.Item) *ItemsOutput {
	if items == nil {
		items = []history.Item{}
	}
	return &ItemsOutput{Items: items, Count: len(items)}
}

// ParseID parses a history id given as text.
func ParseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.NewInvalidRequest("id is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequestf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

// ParseTime parses a boundary given as YYYY-MM-DD (midnight UTC) or RFC 3339.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.NewInvalidRequest("date is required")
	}
	if t, err := time.ParseInLocation(DateLayout, s, time.UTC); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.NewInvalidRequestf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
}

// validateLimit rejects negative caps. Nil means uncapped.
func validateLimit(name string, limit *int) error {
	if limit != nil && *limit < 0 {
		return errors.NewInvalidRequestf("%s must not be negative", name)
	}
	return nil
}
