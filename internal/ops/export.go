package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
)

// Format names an import or export file format.
type Format string

const (
	FormatLines    Format = "lines"    // plain shell history file, import only
	FormatJSONL    Format = "jsonl"    // header line plus one item per line
	FormatMarkdown Format = "markdown" // table, export only
	FormatHTML     Format = "html"     // rendered markdown, export only
)

// ExportFormats are the formats Export accepts.
var ExportFormats = []Format{FormatJSONL, FormatMarkdown, FormatHTML}

// ImportFormats are the formats Import accepts.
var ImportFormats = []Format{FormatLines, FormatJSONL}

// ParseFormat parses a format name, restricted to allowed. Empty input
// returns the first allowed format.
func ParseFormat(s string, allowed []Format) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return allowed[0], nil
	}
	if s == "md" {
		s = string(FormatMarkdown)
	}
	f := Format(s)
	if !slices.Contains(allowed, f) {
		names := make([]string, len(allowed))
		for i, a := range allowed {
			names[i] = string(a)
		}
		return "", errors.NewInvalidRequestf("format must be one of: %s", strings.Join(names, ", "))
	}
	return f, nil
}

// Extension returns the file extension the format requires, or "" for none.
func (f Format) Extension() string {
	switch f {
	case FormatJSONL:
		return ".jsonl"
	case FormatMarkdown:
		return ".md"
	case FormatHTML:
		return ".html"
	}
	return ""
}

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path   string    // optional, default: ~/.hiztery/exports/history-<timestamp>.<ext>
	Format string    // jsonl (default), markdown, html
	Max    *int      // optional: export only the newest Max items
	Now    time.Time // default: time.Now()
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Format     Format `json:"format"`
	ExportID   string `json:"export_id"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	HizteryExport bool   `json:"_hiztery_export"`
	SchemaVersion string `json:"schema_version"`
	ExportID      string `json:"export_id"`
	ExportedAt    int64  `json:"exported_at"`
}

// exportSchemaVersion is written to, and required by, JSONL exports.
const exportSchemaVersion = "1.0"

// Export writes history, oldest first, to a file.
func Export(ctx context.Context, store history.Store, input ExportInput) (*ExportOutput, error) {
	format, err := ParseFormat(input.Format, ExportFormats)
	if err != nil {
		return nil, err
	}
	if err := validateLimit("max", input.Max); err != nil {
		return nil, err
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}
	header := ExportHeader{
		HizteryExport: true,
		SchemaVersion: exportSchemaVersion,
		ExportID:      newExportID(now),
		ExportedAt:    now.Unix(),
	}

	exportPath := input.Path
	if exportPath == "" {
		if exportPath, err = defaultExportPath(format, now); err != nil {
			return nil, err
		}
	}
	if err := ValidatePath(exportPath, PathCheckWrite, format); err != nil {
		return nil, err
	}

	items, err := store.List(ctx, input.Max, false)
	if err != nil {
		return nil, err
	}
	slices.Reverse(items)

	err = writeFileAtomic(exportPath, func(w io.Writer) error {
		switch format {
		case FormatMarkdown:
			return renderMarkdown(w, header, items)
		case FormatHTML:
			return renderHTML(w, header, items)
		default:
			return writeJSONL(ctx, w, header, items)
		}
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       exportPath,
		Format:     format,
		ExportID:   header.ExportID,
		Count:      len(items),
		ExportedAt: header.ExportedAt,
	}, nil
}

func newExportID(now time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

func writeJSONL(ctx context.Context, w io.Writer, header ExportHeader, items []history.Item) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(header); err != nil {
		return errors.NewInternal(err)
	}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return errors.NewInternal(err)
		}
		// Ids are store-local; a re-import assigns fresh ones.
		it.ID = nil
		if err := enc.Encode(it); err != nil {
			return errors.NewInternal(err)
		}
	}
	return nil
}

// writeFileAtomic writes to a temp file next to path, then renames it into
// place so an existing file survives a failed export.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	buf := bufio.NewWriter(file)
	if err := write(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink at the destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}

	// On Windows, os.Rename fails if the destination exists; the existing
	// file is kept rather than risking a delete+rename.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}

// defaultExportPath returns ~/.hiztery/exports/history-<timestamp>.<ext>.
func defaultExportPath(format Format, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("history-%s%s", now.UTC().Format("2006-01-02T150405"), format.Extension())
	return filepath.Join(dir, filename), nil
}
