package ops

import (
	"context"

	"github.com/hpungsan/hiztery/internal/history"
)

// LoadInput contains parameters for the Load operation.
type LoadInput struct {
	ID string // required
}

// Load retrieves a single item by id.
func Load(ctx context.Context, store history.Store, input LoadInput) (*history.Item, error) {
	id, err := ParseID(input.ID)
	if err != nil {
		return nil, err
	}
	it, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// First retrieves the oldest item.
func First(ctx context.Context, store history.Store) (*history.Item, error) {
	it, err := store.First(ctx)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Last retrieves the newest item.
func Last(ctx context.Context, store history.Store) (*history.Item, error) {
	it, err := store.Last(ctx)
	if err != nil {
		return nil, err
	}
	return &it, nil
}
