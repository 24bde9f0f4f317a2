package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

func TestSearch_Modes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "ls /home/ellie", "ls /home/frank", "cd /home/ellie", "/home/ellie/.bin/rustup")

	tests := []struct {
		mode  string
		query string
		want  int
	}{
		{"", "ls", 2},
		{"p", "/home", 1},
		{"prefix", "cd", 1},
		{"f", "ellie", 3},
		{"fulltext", "frank", 1},
		{"z", "l/h/", 2},
		{"fuzzy", "ellie/home", 0},
		{"z", " ", 3},
	}
	for _, tt := range tests {
		t.Run(tt.mode+"/"+tt.query, func(t *testing.T) {
			out, err := Search(ctx, store, SearchInput{Mode: tt.mode, Query: tt.query})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Count, "hits: %v", commandsOf(out.Items))
		})
	}
}

func TestSearch_DefaultModeIsPrefix(t *testing.T) {
	out, err := Search(context.Background(), newTestStore(t, "ls"), SearchInput{Query: "ls"})
	require.NoError(t, err)
	assert.Equal(t, history.SearchPrefix, out.Mode)
}

func TestSearch_Limit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, "git status", "git diff", "git log")

	out, err := Search(ctx, store, SearchInput{Mode: "p", Query: "git", Limit: intPtr(2)})
	require.NoError(t, err)
	assert.Equal(t, []string{"git log", "git diff"}, commandsOf(out.Items))
}

func TestSearch_InvalidInput(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tests := []struct {
		name string
		in   SearchInput
	}{
		{"unknown mode", SearchInput{Mode: "regex", Query: "ls"}},
		{"negative limit", SearchInput{Query: "ls", Limit: intPtr(-5)}},
		{"query too long", SearchInput{Query: strings.Repeat("x", MaxQueryLength+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Search(ctx, store, tt.in)
			assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}
}
