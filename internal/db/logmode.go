package db

import (
	"strings"
	"time"

	"github.com/hpungsan/hiztery/internal/errors"
)

// LogMode controls diagnostic logging of SQL statements.
type LogMode int

const (
	LogDisabled LogMode = iota // no statement logging
	LogProfile                 // statement text and elapsed time, after execution
	LogTrace                   // statement text, before execution
)

var logModeNames = [...]string{
	LogDisabled: "disabled",
	LogProfile:  "profile",
	LogTrace:    "trace",
}

func (m LogMode) String() string {
	if m < 0 || int(m) >= len(logModeNames) {
		return "unknown"
	}
	return logModeNames[m]
}

// LogModes returns the valid mode names, for help text.
func LogModes() []string {
	return logModeNames[:]
}

// ParseLogMode parses a mode name. The empty string is LogDisabled.
func ParseLogMode(s string) (LogMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "disabled", "off":
		return LogDisabled, nil
	case "profile":
		return LogProfile, nil
	case "trace":
		return LogTrace, nil
	}
	return LogDisabled, errors.NewInvalidRequestf("unknown sql log mode %q: must be one of %s",
		s, strings.Join(LogModes(), ", "))
}

// stmtHook is called before a statement runs. The returned func, if not nil,
// is called once the statement has finished.
type stmtHook func(query string) func()

// LogMode returns the active log mode.
func (s *SQLite) LogMode() LogMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetLogMode detaches the current statement hook and attaches the one for
// mode. At most one hook is ever attached.
func (s *SQLite) SetLogMode(mode LogMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hook = nil
	s.mode = LogDisabled

	switch mode {
	case LogTrace:
		s.hook = s.traceHook
	case LogProfile:
		s.hook = s.profileHook
	default:
		return
	}
	s.mode = mode
}

func (s *SQLite) traceHook(query string) func() {
	s.logger.Info("sql trace", "sql", compactSQL(query))
	return nil
}

func (s *SQLite) profileHook(query string) func() {
	start := time.Now()
	return func() {
		s.logger.Info("sql profile", "sql", compactSQL(query), "elapsed", time.Since(start))
	}
}

// observe runs the attached hook for query and returns its completion func.
// It never returns nil.
func (s *SQLite) observe(query string) func() {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()

	if hook == nil {
		return func() {}
	}
	if done := hook(query); done != nil {
		return done
	}
	return func() {}
}

// compactSQL collapses the whitespace of a multi-line statement.
func compactSQL(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
