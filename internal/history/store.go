package history

import (
	"context"
	"time"
)

// Store is the set of history operations the rest of the program depends on.
// The SQLite implementation lives in internal/db; MemoryStore is a
// substitutable implementation for tests.
type Store interface {
	// Save inserts an item. An item colliding with an existing
	// (timestamp, cwd, command) row is silently dropped, as is an item whose
	// ID is already taken, even when its (timestamp, cwd, command) is new.
	Save(ctx context.Context, item Item) error

	// SaveBulk inserts all items atomically. Items colliding on
	// (timestamp, cwd, command) or on an existing ID are dropped as in Save;
	// any other failure leaves the store unchanged.
	SaveBulk(ctx context.Context, items []Item) error

	// Load returns the item with the given ID or a NOT_FOUND error.
	Load(ctx context.Context, id int64) (Item, error)

	// List returns items newest first. With unique set, only the newest item
	// per distinct command is kept. A nil max means no cap; the cap applies
	// after the unique filter.
	List(ctx context.Context, max *int, unique bool) ([]Item, error)

	// Range returns items with from <= timestamp <= to, oldest first.
	Range(ctx context.Context, from, to time.Time) ([]Item, error)

	// Update overwrites every non-identity field of the item addressed by
	// item.ID and returns the number of rows changed (0 if the ID is unknown).
	Update(ctx context.Context, item Item) (int64, error)

	// Count returns the total number of stored items.
	Count(ctx context.Context) (int64, error)

	// First returns the oldest item.
	First(ctx context.Context) (Item, error)

	// Last returns the newest item.
	Last(ctx context.Context) (Item, error)

	// Before returns up to count items strictly older than ts, newest first.
	Before(ctx context.Context, ts time.Time, count int) ([]Item, error)

	// Search matches query against the command field using mode and returns
	// the newest item per distinct command, newest first, capped by limit.
	Search(ctx context.Context, limit *int, mode SearchMode, query string) ([]Item, error)

	// Delete removes the item with the given ID and returns the number of
	// rows actually removed.
	Delete(ctx context.Context, id int64) (int64, error)

	// Close releases the store.
	Close() error
}
