package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

// maxLineBytes bounds a single line of an import file.
const maxLineBytes = 1 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path      string    // required
	Format    string    // lines (default) or jsonl
	Cwd       string    // lines format: directory recorded on each item, default: current directory
	SessionID int64     // lines format: session recorded on each item
	Now       time.Time // lines format: timestamp of the last line, default: time.Now()
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Read     int           `json:"read"`
	Imported int64         `json:"imported"`
	Skipped  int64         `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents a line that could not be imported.
type ImportError struct {
	Line    int    `json:"line"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import reads a history file and saves every record in one batch.
// Records already present (same timestamp, cwd, and command) are skipped, so
// importing the same export twice is a no-op. Any parse error aborts the
// import before anything is written.
func Import(ctx context.Context, store history.Store, input ImportInput) (*ImportOutput, error) {
	format, err := ParseFormat(input.Format, ImportFormats)
	if err != nil {
		return nil, err
	}
	if err := ValidatePath(input.Path, PathCheckRead, format); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := err.(*errors.HistoryError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	var (
		items       []history.Item
		parseErrors []ImportError
	)
	switch format {
	case FormatJSONL:
		items, parseErrors, err = parseJSONL(file)
	default:
		items, err = parseLines(file, input)
	}
	if err != nil {
		return nil, err
	}

	out := &ImportOutput{Read: len(items), Errors: []ImportError{}}
	if len(parseErrors) > 0 {
		out.Errors = parseErrors
		return out, nil
	}

	before, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.SaveBulk(ctx, items); err != nil {
		return nil, err
	}
	after, err := store.Count(ctx)
	if err != nil {
		return nil, err
	}

	out.Imported = after - before
	out.Skipped = int64(len(items)) - out.Imported
	return out, nil
}

// parseLines turns each non-empty line of a plain history file into an item.
// The last line is stamped Now and each earlier line one second before the
// next, so the file order survives.
func parseLines(r io.Reader, input ImportInput) ([]history.Item, error) {
	cwd, err := resolveCwd(input.Cwd)
	if err != nil {
		return nil, err
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewInvalidRequestf("failed to read import file: %v", err)
	}

	items := make([]history.Item, 0, len(lines))
	for i, line := range lines {
		offset := time.Duration(len(lines)-1-i) * time.Second
		items = append(items, history.NewItem(history.ItemParams{
			CommandLine: line,
			Command:     line,
			Cwd:         cwd,
			Duration:    history.UnknownDuration,
			Timestamp:   now.Add(-offset),
			RunCount:    1,
		}, input.SessionID))
	}
	return items, nil
}

// parseJSONL parses an export file. The header line is checked and skipped.
func parseJSONL(r io.Reader) ([]history.Item, []ImportError, error) {
	var (
		items       []history.Item
		parseErrors []ImportError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var header ExportHeader
		if err := json.Unmarshal([]byte(line), &header); err == nil && header.HizteryExport {
			if header.SchemaVersion != exportSchemaVersion {
				parseErrors = append(parseErrors, ImportError{
					Line:    lineNum,
					Code:    string(errors.ErrInvalidRequest),
					Message: fmt.Sprintf("unsupported schema_version %q", header.SchemaVersion),
				})
			}
			continue
		}

		var it history.Item
		if err := json.Unmarshal([]byte(line), &it); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		it.ID = nil
		if err := it.Validate(); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    string(errors.CodeOf(err)),
				Message: err.Error(),
			})
			continue
		}
		items = append(items, it)
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, errors.NewInvalidRequestf("failed to read import file: %v", err)
	}
	return items, parseErrors, nil
}

// resolveCwd returns dir, or the current directory when dir is empty.
func resolveCwd(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get working directory: %w", err))
	}
	return wd, nil
}
