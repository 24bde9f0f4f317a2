package ops

import (
	"context"
	"strings"
	"time"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

// UpdateInput contains parameters for the Update operation.
type UpdateInput struct {
	ID string // required

	// Editable fields (nil = don't change)
	Text       *string
	Cwd        *string
	ExitStatus *int64
	Duration   *time.Duration
}

// UpdateOutput contains the result of the Update operation.
type UpdateOutput struct {
	ID      int64        `json:"id"`
	Updated int64        `json:"updated"`
	Item    history.Item `json:"item"`
}

// Update loads an item, applies the given fields, and writes every column
// back.
func Update(ctx context.Context, store history.Store, input UpdateInput) (*UpdateOutput, error) {
	id, err := ParseID(input.ID)
	if err != nil {
		return nil, err
	}

	if input.Text == nil && input.Cwd == nil && input.ExitStatus == nil && input.Duration == nil {
		return nil, errors.NewInvalidRequest("at least one editable field must be provided")
	}

	it, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Text != nil {
		line := strings.TrimSpace(*input.Text)
		if line == "" {
			return nil, errors.NewInvalidRequest("text must not be empty")
		}
		it.CommandLine = line
		it.Command, it.CommandParams = history.SplitCommandLine(line)
	}
	if input.Cwd != nil {
		it.Cwd = *input.Cwd
	}
	if input.ExitStatus != nil {
		it.ExitStatus = *input.ExitStatus
	}
	if input.Duration != nil {
		it.Duration = *input.Duration
	}

	n, err := store.Update(ctx, it)
	if err != nil {
		return nil, err
	}

	return &UpdateOutput{ID: id, Updated: n, Item: it}, nil
}
