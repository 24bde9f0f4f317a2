package ops

import (
	"context"

	"github.com/hpungsan/hiztery/internal/history"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	ID string // required
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	ID      int64 `json:"id"`
	Deleted int64 `json:"deleted"`
}

// Delete removes an item. Deleting an unknown id is not an error: Deleted
// reports 0.
func Delete(ctx context.Context, store history.Store, input DeleteInput) (*DeleteOutput, error) {
	id, err := ParseID(input.ID)
	if err != nil {
		return nil, err
	}

	n, err := store.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	return &DeleteOutput{ID: id, Deleted: n}, nil
}
