package ops

import (
	"testing"
	"time"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
	"github.com/hpungsan/hiztery/internal/history/historytest"
)

// newTestStore returns an empty in-memory store seeded with commands, one
// second apart from historytest.Base.
func newTestStore(t *testing.T, commands ...string) *history.MemoryStore {
	t.Helper()
	s := history.NewMemoryStore()
	historytest.Seed(t, s, commands...)
	return s
}

func intPtr(n int) *int { return &n }

func stringPtr(s string) *string { return &s }

func commandsOf(items []history.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Command
	}
	return out
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{" 42 ", 42, false},
		{"", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"1.5", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseID(tt.in)
		if tt.wantErr {
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("ParseID(%q) error = %v, want INVALID_REQUEST", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseID(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseID(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2021-07-21", time.Date(2021, 7, 21, 0, 0, 0, 0, time.UTC), false},
		{"2021-07-21T12:30:00Z", time.Date(2021, 7, 21, 12, 30, 0, 0, time.UTC), false},
		{"2021-07-21T14:30:00+02:00", time.Date(2021, 7, 21, 12, 30, 0, 0, time.UTC), false},
		{"2021-07-21T12:30:00.5Z", time.Date(2021, 7, 21, 12, 30, 0, 500000000, time.UTC), false},
		{"", time.Time{}, true},
		{"2021-13-01", time.Time{}, true},
		{"21/07/2021", time.Time{}, true},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := ParseTime(tt.in)
		if tt.wantErr {
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("ParseTime(%q) error = %v, want INVALID_REQUEST", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTime(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
