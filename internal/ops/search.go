package ops

import (
	"context"
	"unicode/utf8"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

// MaxQueryLength bounds the query text in runes.
const MaxQueryLength = 1000

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Mode  string // prefix|p, fulltext|f, fuzzy|z; default prefix
	Query string
	Limit *int // optional cap
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	ItemsOutput
	Mode history.SearchMode `json:"mode"`
}

// Search matches Query against stored commands and returns the newest item
// per matching command, newest first.
func Search(ctx context.Context, store history.Store, input SearchInput) (*SearchOutput, error) {
	mode := history.SearchPrefix
	if input.Mode != "" {
		var err error
		if mode, err = history.ParseSearchMode(input.Mode); err != nil {
			return nil, err
		}
	}
	if utf8.RuneCountInString(input.Query) > MaxQueryLength {
		return nil, errors.NewInvalidRequestf("query must be at most %d characters", MaxQueryLength)
	}
	if err := validateLimit("limit", input.Limit); err != nil {
		return nil, err
	}

	items, err := store.Search(ctx, input.Limit, mode, input.Query)
	if err != nil {
		return nil, err
	}
	return &SearchOutput{ItemsOutput: *itemsOutput(items), Mode: mode}, nil
}
