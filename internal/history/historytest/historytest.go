// Package historytest holds the behavioural tests every history.Store
// implementation must pass.
package historytest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

// Factory returns a fresh, empty store. Implementations register cleanup
// through t.
type Factory func(t *testing.T) history.Store

// Base is the reference time used by the suite.
var Base = time.Date(2021, 7, 21, 12, 0, 0, 123456789, time.UTC)

// NewItem returns an item for command at Base+offset.
func NewItem(command string, offset time.Duration) history.Item {
	params := "beep boop"
	return history.NewItem(history.ItemParams{
		CommandLine:   command,
		Command:       command,
		CommandParams: &params,
		Cwd:           "/home/ellie",
		Duration:      0,
		ExitStatus:    1,
		Timestamp:     Base.Add(offset),
		RunCount:      1,
	}, 4242)
}

// Seed saves one item per command, one second apart, in order.
func Seed(t *testing.T, s history.Store, commands ...string) {
	t.Helper()
	ctx := context.Background()
	for i, cmd := range commands {
		require.NoError(t, s.Save(ctx, NewItem(cmd, time.Duration(i)*time.Second)))
	}
}

func intPtr(n int) *int { return &n }

// Run exercises the full store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("NilParamsRoundTrip", func(t *testing.T) { testNilParams(t, newStore(t)) })
	t.Run("UniquenessIdempotence", func(t *testing.T) { testUniqueness(t, newStore(t)) })
	t.Run("SaveBulkAtomic", func(t *testing.T) { testBulkAtomic(t, newStore(t)) })
	t.Run("SaveBulkSkipsConflicts", func(t *testing.T) { testBulkConflicts(t, newStore(t)) })
	t.Run("TimestampOutOfRange", func(t *testing.T) { testTimestampRange(t, newStore(t)) })
	t.Run("SaveExistingIDDropped", func(t *testing.T) { testExistingID(t, newStore(t)) })
	t.Run("LoadNotFound", func(t *testing.T) { testLoadNotFound(t, newStore(t)) })
	t.Run("ListOrderAndMax", func(t *testing.T) { testListOrder(t, newStore(t)) })
	t.Run("ListUnique", func(t *testing.T) { testListUnique(t, newStore(t)) })
	t.Run("RangeInclusive", func(t *testing.T) { testRange(t, newStore(t)) })
	t.Run("BeforeExclusive", func(t *testing.T) { testBefore(t, newStore(t)) })
	t.Run("FirstLastCount", func(t *testing.T) { testFirstLast(t, newStore(t)) })
	t.Run("FirstLastEmpty", func(t *testing.T) { testFirstLastEmpty(t, newStore(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("SearchPrefix", func(t *testing.T) { testSearchPrefix(t, newStore(t)) })
	t.Run("SearchFullText", func(t *testing.T) { testSearchFullText(t, newStore(t)) })
	t.Run("SearchFuzzy", func(t *testing.T) { testSearchFuzzy(t, newStore(t)) })
	t.Run("SearchUniqueAndLimit", func(t *testing.T) { testSearchUnique(t, newStore(t)) })
	t.Run("SearchWildcardAndCase", func(t *testing.T) { testSearchWildcard(t, newStore(t)) })
}

func testRoundTrip(t *testing.T, s history.Store) {
	ctx := context.Background()
	item := NewItem("ls /home/ellie", 0)
	item.Duration = -1
	item.ExitStatus = -3
	item.Timestamp = time.Date(2021, 7, 20, 20, 35, 32, 831940400, time.UTC)

	require.NoError(t, s.Save(ctx, item))

	first, err := s.First(ctx)
	require.NoError(t, err)
	require.NotNil(t, first.ID)

	got, err := s.Load(ctx, *first.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.ID, *got.ID)
	assert.Equal(t, item.CommandLine, got.CommandLine)
	assert.Equal(t, item.Command, got.Command)
	require.NotNil(t, got.CommandParams)
	assert.Equal(t, "beep boop", *got.CommandParams)
	assert.Equal(t, item.Cwd, got.Cwd)
	assert.Equal(t, item.Duration, got.Duration)
	assert.Equal(t, item.ExitStatus, got.ExitStatus)
	assert.Equal(t, int64(4242), got.SessionID)
	assert.True(t, item.Timestamp.Equal(got.Timestamp), "timestamp %v != %v", got.Timestamp, item.Timestamp)
	assert.Equal(t, item.Timestamp.UnixNano(), got.Timestamp.UnixNano())
	assert.Equal(t, item.RunCount, got.RunCount)
}

func testNilParams(t *testing.T, s history.Store) {
	ctx := context.Background()
	item := NewItem("pwd", 0)
	item.CommandParams = nil
	require.NoError(t, s.Save(ctx, item))

	got, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", got.Params())
}

func testUniqueness(t *testing.T, s history.Store) {
	ctx := context.Background()
	item := NewItem("make build", 0)
	require.NoError(t, s.Save(ctx, item))

	dup := item
	dup.ExitStatus = 99
	require.NoError(t, s.Save(ctx, dup))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ExitStatus, "existing row must not be modified")

	// A different cwd is a different key.
	other := item
	other.Cwd = "/tmp"
	require.NoError(t, s.Save(ctx, other))
	count, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func testBulkAtomic(t *testing.T, s history.Store) {
	ctx := context.Background()
	bad := NewItem("", 2*time.Second)
	batch := []history.Item{
		NewItem("git status", 0),
		NewItem("git diff", time.Second),
		bad,
		NewItem("git push", 3*time.Second),
	}

	err := s.SaveBulk(ctx, batch)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "no item from a failed batch may persist")
}

func testTimestampRange(t *testing.T, s history.Store) {
	ctx := context.Background()
	late := NewItem("ls", 0)
	late.Timestamp = time.Date(2500, 1, 1, 0, 0, 0, 0, time.UTC)

	err := s.Save(ctx, late)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
	err = s.SaveBulk(ctx, []history.Item{NewItem("pwd", 0), late})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, s.Save(ctx, NewItem("pwd", 0)))
	stored, err := s.First(ctx)
	require.NoError(t, err)
	stored.Timestamp = time.Date(1500, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.Update(ctx, stored)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)

	edge := NewItem("date", 0)
	edge.Timestamp = history.MaxTimestamp
	require.NoError(t, s.Save(ctx, edge))
	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "date", last.Command)
	assert.True(t, history.MaxTimestamp.Equal(last.Timestamp), "got %v", last.Timestamp)
}

func testExistingID(t *testing.T, s history.Store) {
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, NewItem("ls", 0)))
	first, err := s.First(ctx)
	require.NoError(t, err)

	other := NewItem("pwd", time.Second)
	other.ID = first.ID
	require.NoError(t, s.Save(ctx, other))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	got, err := s.Load(ctx, *first.ID)
	require.NoError(t, err)
	assert.Equal(t, "ls", got.Command)
}

func testBulkConflicts(t *testing.T, s history.Store) {
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, NewItem("git status", 0)))

	batch := []history.Item{
		NewItem("git status", 0),
		NewItem("git diff", time.Second),
		NewItem("git diff", time.Second),
		NewItem("git push", 2*time.Second),
	}
	require.NoError(t, s.SaveBulk(ctx, batch))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// Importing the same batch again is a no-op.
	require.NoError(t, s.SaveBulk(ctx, batch))
	count, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func testLoadNotFound(t *testing.T, s history.Store) {
	_, err := s.Load(context.Background(), 12345)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "got %v", err)
}

func testListOrder(t *testing.T, s history.Store) {
	ctx := context.Background()
	Seed(t, s, "one", "two", "three", "four")

	all, err := s.List(ctx, nil, false)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"four", "three", "two", "one"}, commands(all))

	capped, err := s.List(ctx, intPtr(2), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"four", "three"}, commands(capped))

	ids := map[int64]bool{}
	for _, it := range all {
		require.NotNil(t, it.ID)
		assert.False(t, ids[*it.ID], "duplicate id %d", *it.ID)
		ids[*it.ID] = true
	}
}

func testListUnique(t *testing.T, s history.Store) {
	ctx := context.Background()
	Seed(t, s, "ls", "cd /tmp", "ls", "vim", "cd /tmp", "ls")

	unique, err := s.List(ctx, nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"ls", "cd /tmp", "vim"}, commands(unique))
	assert.True(t, unique[0].Timestamp.Equal(Base.Add(5*time.Second)), "ls should be its newest row")
	assert.True(t, unique[1].Timestamp.Equal(Base.Add(4*time.Second)), "cd should be its newest row")

	capped, err := s.List(ctx, intPtr(2), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"ls", "cd /tmp"}, commands(capped))
}

func testRange(t *testing.T, s history.Store) {
	ctx := context.Background()
	Seed(t, s, "a", "b", "c", "d", "e")

	got, err := s.Range(ctx, Base.Add(time.Second), Base.Add(3*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "d"}, commands(got))

	none, err := s.Range(ctx, Base.Add(10*time.Second), Base.Add(20*time.Second))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testBefore(t *testing.T, s history.Store) {
	ctx := context.Background()
	Seed(t, s, "a", "b", "c", "d", "e")

	got, err := s.Before(ctx, Base.Add(3*time.Second), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b"}, commands(got))

	all, err := s.Before(ctx, Base.Add(3*time.Second), 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, commands(all))

	none, err := s.Before(ctx, Base, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testFirstLast(t *testing.T, s history.Store) {
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, NewItem("middle", time.Minute)))
	require.NoError(t, s.Save(ctx, NewItem("newest", time.Hour)))
	require.NoError(t, s.Save(ctx, NewItem("oldest", -time.Hour)))

	first, err := s.First(ctx)
	require.NoError(t, err)
	assert.Equal(t, "oldest", first.Command)

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newest", last.Command)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func testFirstLastEmpty(t *testing.T, s history.Store) {
	ctx := context.Background()

	_, err := s.First(ctx)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "First on empty store: %v", err)

	_, err = s.Last(ctx)
	assert.True(t, errors.Is(err, errors.ErrNotFound), "Last on empty store: %v", err)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func testUpdate(t *testing.T, s history.Store) {
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, NewItem("cargo build", 0)))
	item, err := s.Last(ctx)
	require.NoError(t, err)

	params := "--release"
	item.CommandLine = "cargo build --release"
	item.CommandParams = &params
	item.Cwd = "/src"
	item.Duration = 3 * time.Second
	item.ExitStatus = 0
	item.SessionID = 7
	item.Timestamp = Base.Add(time.Hour)
	item.RunCount = 2

	n, err := s.Update(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Load(ctx, *item.ID)
	require.NoError(t, err)
	assert.Equal(t, "cargo build --release", got.CommandLine)
	assert.Equal(t, "--release", got.Params())
	assert.Equal(t, "/src", got.Cwd)
	assert.Equal(t, 3*time.Second, got.Duration)
	assert.Equal(t, int64(0), got.ExitStatus)
	assert.Equal(t, int64(7), got.SessionID)
	assert.True(t, got.Timestamp.Equal(Base.Add(time.Hour)))
	assert.Equal(t, int64(2), got.RunCount)

	missing := item
	missingID := *item.ID + 1000
	missing.ID = &missingID
	n, err = s.Update(ctx, missing)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	noID := item
	noID.ID = nil
	_, err = s.Update(ctx, noID)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
}

func testDelete(t *testing.T, s history.Store) {
	ctx := context.Background()
	Seed(t, s, "a", "b")
	// The newest insert is "b"; deleting "a" must still report one row.
	first, err := s.First(ctx)
	require.NoError(t, err)

	n, err := s.Delete(ctx, *first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.Delete(ctx, *first.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = s.Load(ctx, *first.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func testSearchPrefix(t *testing.T, s history.Store) {
	ctx := context.Background()
	Seed(t, s, "ls /home/ellie")

	assertHits(t, s, history.SearchPrefix, "ls", 1)
	assertHits(t, s, history.SearchPrefix, "/home", 0)
	assertHits(t, s, history.SearchPrefix, "ls  ", 0)

	got, err := s.Search(ctx, nil, history.SearchPrefix, "ls")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ls /home/ellie", got[0].Command)
}

func testSearchFullText(t *testing.T, s history.Store) {
	Seed(t, s, "ls /home/ellie")

	assertHits(t, s, history.SearchFullText, "ls", 1)
	assertHits(t, s, history.SearchFullText, "/home", 1)
	assertHits(t, s, history.SearchFullText, "ls  ", 0)
}

func testSearchFuzzy(t *testing.T, s history.Store) {
	Seed(t, s, "ls /home/ellie", "ls /home/frank", "cd /home/ellie", "/home/ellie/.bin/rustup")

	assertHits(t, s, history.SearchFuzzy, "ls /", 2)
	assertHits(t, s, history.SearchFuzzy, "l/h/", 2)
	assertHits(t, s, history.SearchFuzzy, "/h/e", 3)
	assertHits(t, s, history.SearchFuzzy, "/hmoe/", 0)
	assertHits(t, s, history.SearchFuzzy, "ellie/home", 0)
	assertHits(t, s, history.SearchFuzzy, "lsellie", 1)
	// Whitespace degenerates to "contains a space".
	assertHits(t, s, history.SearchFuzzy, " ", 3)
	assertHits(t, s, history.SearchFuzzy, "", 4)
}

func testSearchUnique(t *testing.T, s history.Store) {
	ctx := context.Background()
	Seed(t, s, "git status", "git diff", "git status", "go test ./...", "git log")

	got, err := s.Search(ctx, nil, history.SearchPrefix, "git")
	require.NoError(t, err)
	assert.Equal(t, []string{"git log", "git status", "git diff"}, commands(got))
	assert.True(t, got[1].Timestamp.Equal(Base.Add(2*time.Second)), "newest git status row expected")

	limited, err := s.Search(ctx, intPtr(2), history.SearchPrefix, "git")
	require.NoError(t, err)
	assert.Equal(t, []string{"git log", "git status"}, commands(limited))
}

func testSearchWildcard(t *testing.T, s history.Store) {
	Seed(t, s, "git commit -m wip", "go test ./...", "grep -r TODO", "echo what?", "ls [abc]")

	assertHits(t, s, history.SearchPrefix, "g*t", 2)
	assertHits(t, s, history.SearchFullText, "TODO", 1)
	assertHits(t, s, history.SearchFullText, "todo", 0)
	assertHits(t, s, history.SearchPrefix, "LS", 0)
	assertHits(t, s, history.SearchFullText, "what?", 1)
	assertHits(t, s, history.SearchFullText, "t?", 1)
	assertHits(t, s, history.SearchFullText, "[abc]", 1)
	assertHits(t, s, history.SearchFullText, "[a]", 0)
}

func assertHits(t *testing.T, s history.Store, mode history.SearchMode, query string, want int) {
	t.Helper()
	got, err := s.Search(context.Background(), nil, mode, query)
	require.NoError(t, err)
	assert.Len(t, got, want, "search(%s, %q) = %v", mode, query, commands(got))
}

func commands(items []history.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Command
	}
	return out
}
