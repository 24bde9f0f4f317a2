package history

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hpungsan/hiztery/internal/errors"
)

// MemoryStore keeps history in memory. It follows the same uniqueness,
// ordering, and search rules as the SQLite store.
type MemoryStore struct {
	mu     sync.Mutex
	items  []Item
	nextID int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Save(ctx context.Context, item Item) error {
	return s.SaveBulk(ctx, []Item{item})
}

func (s *MemoryStore) SaveBulk(_ context.Context, items []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make([]Item, 0, len(items))
	nextID := s.nextID
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
		if s.conflicts(it, staged) {
			continue
		}
		if it.ID == nil {
			id := nextID
			it.ID = &id
		} else if s.indexOf(*it.ID) >= 0 {
			continue
		}
		if *it.ID >= nextID {
			nextID = *it.ID + 1
		}
		staged = append(staged, it)
	}

	s.items = append(s.items, staged...)
	s.nextID = nextID
	return nil
}

// conflicts reports whether it collides on (timestamp, cwd, command) with a
// stored or staged item.
func (s *MemoryStore) conflicts(it Item, staged []Item) bool {
	for _, o := range s.items {
		if sameKey(o, it) {
			return true
		}
	}
	for _, o := range staged {
		if sameKey(o, it) {
			return true
		}
	}
	return false
}

func sameKey(a, b Item) bool {
	return a.Timestamp.Equal(b.Timestamp) && a.Cwd == b.Cwd && a.Command == b.Command
}

func (s *MemoryStore) indexOf(id int64) int {
	for i, it := range s.items {
		if *it.ID == id {
			return i
		}
	}
	return -1
}

func (s *MemoryStore) Load(_ context.Context, id int64) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return Item{}, errors.NewNotFound(strconv.FormatInt(id, 10))
	}
	return s.items[idx], nil
}

func (s *MemoryStore) List(_ context.Context, max *int, unique bool) ([]Item, error) {
	s.mu.Lock()
	out := s.snapshot()
	s.mu.Unlock()

	if unique {
		out = Unique(out)
	} else {
		SortNewestFirst(out)
	}
	return capItems(out, max), nil
}

func (s *MemoryStore) Range(_ context.Context, from, to time.Time) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Item{}
	for _, it := range s.items {
		if !it.Timestamp.Before(from) && !it.Timestamp.After(to) {
			out = append(out, it)
		}
	}
	SortOldestFirst(out)
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, item Item) (int64, error) {
	if item.ID == nil {
		return 0, errors.NewInvalidRequest("id is required for update")
	}
	if err := item.Validate(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(*item.ID)
	if idx < 0 {
		return 0, nil
	}
	for i, o := range s.items {
		if i != idx && sameKey(o, item) {
			return 0, errors.NewInvalidRequest("update collides with an existing item at the same timestamp, cwd and command")
		}
	}
	s.items[idx] = item
	return 1, nil
}

func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.items)), nil
}

func (s *MemoryStore) First(_ context.Context) (Item, error) {
	s.mu.Lock()
	out := s.snapshot()
	s.mu.Unlock()

	if len(out) == 0 {
		return Item{}, errors.NewNotFound("first")
	}
	SortOldestFirst(out)
	return out[0], nil
}

func (s *MemoryStore) Last(_ context.Context) (Item, error) {
	s.mu.Lock()
	out := s.snapshot()
	s.mu.Unlock()

	if len(out) == 0 {
		return Item{}, errors.NewNotFound("last")
	}
	SortNewestFirst(out)
	return out[0], nil
}

func (s *MemoryStore) Before(_ context.Context, ts time.Time, count int) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Item{}
	for _, it := range s.items {
		if it.Timestamp.Before(ts) {
			out = append(out, it)
		}
	}
	SortNewestFirst(out)
	return capItems(out, &count), nil
}

func (s *MemoryStore) Search(_ context.Context, limit *int, mode SearchMode, query string) ([]Item, error) {
	pattern := Compile(mode, query)

	s.mu.Lock()
	matched := []Item{}
	for _, it := range s.items {
		if pattern.Match(it.Command) {
			matched = append(matched, it)
		}
	}
	s.mu.Unlock()

	// The unique filter looks at every row for a command, not just matches;
	// since matching is on command alone the two are the same set.
	return capItems(Unique(matched), limit), nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return 0, nil
	}
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	return 1, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) snapshot() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

func capItems(items []Item, max *int) []Item {
	if max == nil || *max < 0 || len(items) <= *max {
		return items
	}
	return items[:*max]
}
