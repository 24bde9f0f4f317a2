package history

import (
	"strings"

	"github.com/hpungsan/hiztery/internal/errors"
)

// SearchMode selects how a query is matched against the command field.
type SearchMode string

const (
	SearchPrefix   SearchMode = "prefix"   // command starts with the query
	SearchFullText SearchMode = "fulltext" // command contains the query
	SearchFuzzy    SearchMode = "fuzzy"    // command contains every query character, in order
)

// Wildcard is the query character that matches any run of text.
const Wildcard = '*'

// SearchModes returns the valid mode names.
func SearchModes() []string {
	return []string{string(SearchPrefix), string(SearchFullText), string(SearchFuzzy)}
}

// ParseSearchMode accepts a full mode name or its one-letter short form
// (p, f, z).
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prefix", "p":
		return SearchPrefix, nil
	case "fulltext", "full-text", "f":
		return SearchFullText, nil
	case "fuzzy", "z":
		return SearchFuzzy, nil
	}
	return "", errors.NewInvalidRequestf("unknown search mode %q: must be one of prefix (p), fulltext (f), fuzzy (z)", s)
}

// Pattern is a compiled search query: literal segments separated by
// wildcards, always followed by a trailing wildcard.
type Pattern struct {
	// Anchored requires the first segment at the start of the command.
	Anchored bool

	// Segments are the literal pieces, matched in order.
	Segments []string
}

// Compile turns a query into a Pattern for the given mode.
//
// Every '*' in the query becomes a wildcard; there is no escape. Prefix keeps
// the query anchored at the start, FullText drops the anchor, and Fuzzy puts a
// wildcard between every character. In Fuzzy mode whitespace is a character
// like any other, so a lone space matches every command containing a space.
func Compile(mode SearchMode, query string) Pattern {
	parts := strings.Split(query, string(Wildcard))

	switch mode {
	case SearchFullText:
		return Pattern{Anchored: false, Segments: parts}
	case SearchFuzzy:
		var segs []string
		for _, part := range parts {
			for _, r := range part {
				segs = append(segs, string(r))
			}
		}
		return Pattern{Anchored: false, Segments: segs}
	default:
		return Pattern{Anchored: true, Segments: parts}
	}
}

// Glob renders the pattern as a case-sensitive SQLite GLOB expression,
// trailing wildcard included. Only '*' is special in the result.
func (p Pattern) Glob() string {
	var b strings.Builder
	if !p.Anchored {
		b.WriteByte('*')
	}
	for i, seg := range p.Segments {
		if i > 0 {
			b.WriteByte('*')
		}
		b.WriteString(escapeGlob(seg))
	}
	b.WriteByte('*')
	return b.String()
}

// Match reports whether command matches the pattern.
func (p Pattern) Match(command string) bool {
	rest := command
	for i, seg := range p.Segments {
		if i == 0 && p.Anchored {
			if !strings.HasPrefix(rest, seg) {
				return false
			}
			rest = rest[len(seg):]
			continue
		}
		idx := strings.Index(rest, seg)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(seg):]
	}
	return true
}

// escapeGlob brackets the GLOB metacharacters other than '*'.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, "?[]") {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '?', '[', ']':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
