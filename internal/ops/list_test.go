package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hiztery/internal/errors"
)

func TestList(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "ls", "cd /tmp", "ls", "vim")

	out, err := List(ctx, store, ListInput{})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Count)
	assert.Equal(t, []string{"vim", "ls", "cd /tmp", "ls"}, commandsOf(out.Items))

	out, err = List(ctx, store, ListInput{Unique: true, Max: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"vim", "ls"}, commandsOf(out.Items))

	_, err = List(ctx, store, ListInput{Max: intPtr(-1)})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestList_EmptyIsNotNil(t *testing.T) {
	out, err := List(context.Background(), newTestStore(t), ListInput{})
	require.NoError(t, err)
	assert.NotNil(t, out.Items)
	assert.Equal(t, 0, out.Count)
}

func TestRange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "a", "b", "c")

	// historytest.Base is 2021-07-21 12:00 UTC.
	out, err := Range(ctx, store, RangeInput{From: "2021-07-21", To: "2021-07-22"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, commandsOf(out.Items))

	out, err = Range(ctx, store, RangeInput{From: "2021-07-21T12:00:01Z", To: "2021-07-21T12:00:02Z"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, commandsOf(out.Items), "c is stamped after the upper bound")

	out, err = Range(ctx, store, RangeInput{From: "2021-07-22", To: "2021-07-23"})
	require.NoError(t, err)
	assert.Empty(t, out.Items)
}

func TestRange_InvalidInput(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tests := []struct {
		name string
		in   RangeInput
	}{
		{"missing from", RangeInput{To: "2021-07-21"}},
		{"bad to", RangeInput{From: "2021-07-21", To: "2021-02-30"}},
		{"reversed", RangeInput{From: "2021-07-22", To: "2021-07-21"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Range(ctx, store, tt.in)
			assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}
}

func TestBefore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "a", "b", "c", "d")

	out, err := Before(ctx, store, BeforeInput{From: "2021-07-21T12:00:03Z", Count: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, commandsOf(out.Items))

	out, err = Before(ctx, store, BeforeInput{From: "2021-07-22"})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Count, "count defaults to DefaultBeforeCount")

	_, err = Before(ctx, store, BeforeInput{From: "2021-07-22", Count: -1})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = Before(ctx, store, BeforeInput{From: "not a date"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestCount(t *testing.T) {
	out, err := Count(context.Background(), newTestStore(t, "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Count)
}
