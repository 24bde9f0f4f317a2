package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hiztery/internal/errors"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "ls", "pwd")

	it, err := Load(ctx, store, LoadInput{ID: "2"})
	require.NoError(t, err)
	assert.Equal(t, "pwd", it.Command)

	_, err = Load(ctx, store, LoadInput{ID: "99"})
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)

	_, err = Load(ctx, store, LoadInput{ID: "two"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func TestFirstLast(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "oldest", "middle", "newest")

	first, err := First(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "oldest", first.Command)

	last, err := Last(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "newest", last.Command)
}

func TestFirstLast_Empty(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := First(ctx, store)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	_, err = Last(ctx, store)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
