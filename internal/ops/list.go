package ops

import (
	"context"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Max    *int // optional cap, applied after Unique
	Unique bool // keep only the newest item per command
}

// List returns history newest first.
func List(ctx context.Context, store history.Store, input ListInput) (*ItemsOutput, error) {
	if err := validateLimit("max", input.Max); err != nil {
		return nil, err
	}
	items, err := store.List(ctx, input.Max, input.Unique)
	if err != nil {
		return nil, err
	}
	return itemsOutput(items), nil
}

// RangeInput contains parameters for the Range operation.
// Bounds are YYYY-MM-DD (midnight UTC) or RFC 3339, both inclusive.
type RangeInput struct {
	From string
	To   string
}

// Range returns history between two dates, oldest first.
func Range(ctx context.Context, store history.Store, input RangeInput) (*ItemsOutput, error) {
	from, err := ParseTime(input.From)
	if err != nil {
		return nil, err
	}
	to, err := ParseTime(input.To)
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, errors.NewInvalidRequest("to must not be before from")
	}

	items, err := store.Range(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return itemsOutput(items), nil
}

// BeforeInput contains parameters for the Before operation.
type BeforeInput struct {
	From  string // YYYY-MM-DD or RFC 3339, exclusive
	Count int    // default: 10
}

// Before returns up to Count items older than From, newest first.
func Before(ctx context.Context, store history.Store, input BeforeInput) (*ItemsOutput, error) {
	ts, err := ParseTime(input.From)
	if err != nil {
		return nil, err
	}
	count := input.Count
	if count < 0 {
		return nil, errors.NewInvalidRequest("count must not be negative")
	}
	if count == 0 {
		count = DefaultBeforeCount
	}

	items, err := store.Before(ctx, ts, count)
	if err != nil {
		return nil, err
	}
	return itemsOutput(items), nil
}

// CountOutput contains the result of the Count operation.
type CountOutput struct {
	Count int64 `json:"count"`
}

// Count returns the number of stored items.
func Count(ctx context.Context, store history.Store) (*CountOutput, error) {
	n, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &CountOutput{Count: n}, nil
}
