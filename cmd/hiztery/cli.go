package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/hiztery/internal/config"
	"github.com/hpungsan/hiztery/internal/db"
	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/mcp"
	"github.com/hpungsan/hiztery/internal/ops"
)

// rawSelectAll is the query behind the all command.
const rawSelectAll = "SELECT * FROM history_items"

// env carries what commands share. The store is opened on first use, so
// help and version output never touch the database.
type env struct {
	cfg    *config.Config
	out    io.Writer // command output
	logOut io.Writer // log output; nil discards
	logger *slog.Logger
	store  *db.SQLite
	owned  bool // store was opened here and is closed after the command
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "hiztery",
		Usage:   "Shell command history store",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "History database path (default $" + config.EnvDBPath + " or ~/.hiztery/" + config.DefaultDBName + ")"},
			&cli.StringFlag{Name: "sql-log", Usage: "SQL statement logging: " + strings.Join(db.LogModes(), "|")},
			&cli.BoolFlag{Name: "verbose", Usage: "Debug logging"},
		},
		Before: func(c *cli.Context) error {
			w := e.logOut
			if w == nil {
				w = io.Discard
			}
			e.logger = setupLogging(w, c.Bool("verbose"))
			return nil
		},
		After: func(_ *cli.Context) error {
			if e.owned && e.store != nil {
				err := e.store.Close()
				e.store, e.owned = nil, false
				return err
			}
			return nil
		},
		Commands: []*cli.Command{
			insertCmd(e),
			updateCmd(e),
			deleteCmd(e),
			selectCmd(e),
			importCmd(e),
			exportCmd(e),
			searchCmd(e),
			countCmd(e),
			firstCmd(e),
			lastCmd(e),
			loadCmd(e),
			rangeCmd(e),
			beforeCmd(e),
			allCmd(e),
			serveCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// open returns the store, opening it from flags and config on first use.
func (e *env) open(c *cli.Context) (*db.SQLite, error) {
	modeName := e.cfg.SQLLogMode
	if c.IsSet("sql-log") {
		modeName = c.String("sql-log")
	}
	mode, err := db.ParseLogMode(modeName)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if c.IsSet("sql-log") {
			e.store.SetLogMode(mode)
		}
		return e.store, nil
	}

	path := e.cfg.DBPath
	if c.IsSet("db") {
		path = c.String("db")
	}
	if path == "" {
		return nil, errors.NewInvalidRequest("database path is required")
	}

	store, err := db.Open(path, db.Options{
		BusyTimeoutMS:     e.cfg.BusyTimeoutMS,
		PageSize:          e.cfg.PageSize,
		WALAutocheckpoint: e.cfg.WALAutocheckpoint,
		JournalSizeLimit:  e.cfg.JournalSizeLimit,
		LogMode:           mode,
		Logger:            e.logger,
	})
	if err != nil {
		return nil, err
	}
	e.store, e.owned = store, true
	return store, nil
}

// sessionID is the configured session, or the process id.
func (e *env) sessionID() int64 {
	if e.cfg.SessionID != 0 {
		return e.cfg.SessionID
	}
	return int64(os.Getpid())
}

// run wraps a command body: it opens the store, prints the result as JSON,
// and formats any error.
func (e *env) run(fn func(c *cli.Context, store *db.SQLite) (any, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		store, err := e.open(c)
		if err != nil {
			return outputError(err)
		}
		result, err := fn(c, store)
		if err != nil {
			return outputError(err)
		}
		return e.outputJSON(result)
	}
}

// insertCmd creates the insert command.
func insertCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "insert",
		Usage: "Record a command line",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Required: true, Usage: "Command line"},
			&cli.IntFlag{Name: "rows", Value: 1, Usage: "Number of copies to record"},
			&cli.StringFlag{Name: "cwd", Usage: "Working directory (default: current directory)"},
			&cli.Int64Flag{Name: "exit-status", Usage: "Exit status"},
			&cli.DurationFlag{Name: "duration", Usage: "Run time, e.g. 1.5s (default: unknown)"},
		},
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			input := ops.InsertInput{
				Text:       c.String("text"),
				Rows:       c.Int("rows"),
				Cwd:        c.String("cwd"),
				ExitStatus: c.Int64("exit-status"),
				SessionID:  e.sessionID(),
			}
			if c.IsSet("duration") {
				d := c.Duration("duration")
				input.Duration = &d
			}
			return ops.Insert(c.Context, store, input)
		}),
	}
}

// updateCmd creates the update command.
func updateCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Overwrite fields of a recorded command",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "History item id"},
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "New command line"},
			&cli.StringFlag{Name: "cwd", Usage: "New working directory"},
			&cli.Int64Flag{Name: "exit-status", Usage: "New exit status"},
			&cli.DurationFlag{Name: "duration", Usage: "New run time"},
		},
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			input := ops.UpdateInput{ID: idArg(c)}
			if c.IsSet("text") {
				text := c.String("text")
				input.Text = &text
			}
			if c.IsSet("cwd") {
				cwd := c.String("cwd")
				input.Cwd = &cwd
			}
			if c.IsSet("exit-status") {
				status := c.Int64("exit-status")
				input.ExitStatus = &status
			}
			if c.IsSet("duration") {
				d := c.Duration("duration")
				input.Duration = &d
			}
			return ops.Update(c.Context, store, input)
		}),
	}
}

// deleteCmd creates the delete command.
func deleteCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a recorded command",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "History item id"},
		},
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			return ops.Delete(c.Context, store, ops.DeleteInput{ID: idArg(c)})
		}),
	}
}

// selectCmd creates the select command.
func selectCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:    "select",
		Aliases: []string{"list"},
		Usage:   "List history, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Aliases: []string{"n"}, Usage: "Maximum items (default: all)"},
			&cli.BoolFlag{Name: "unique", Aliases: []string{"u"}, Usage: "Only the newest run of each command"},
		},
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			return ops.List(c.Context, store, ops.ListInput{
				Max:    intFlag(c, "max"),
				Unique: c.Bool("unique"),
			})
		}),
	}
}

// importCmd creates the import command.
func importCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a plain history file or a jsonl export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "File to import"},
			&cli.StringFlag{Name: "format", Value: string(ops.FormatLines), Usage: "lines|jsonl"},
			&cli.StringFlag{Name: "cwd", Usage: "Working directory recorded for lines (default: current directory)"},
		},
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			return ops.Import(c.Context, store, ops.ImportInput{
				Path:      c.String("file"),
				Format:    c.String("format"),
				Cwd:       c.String("cwd"),
				SessionID: e.sessionID(),
			})
		}),
	}
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export history, oldest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file (default: ~/.hiztery/exports/history-<timestamp>.<ext>)"},
			&cli.StringFlag{Name: "format", Value: string(ops.FormatJSONL), Usage: "jsonl|markdown|html"},
			&cli.IntFlag{Name: "max", Aliases: []string{"n"}, Usage: "Export only the newest N items"},
		},
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			return ops.Export(c.Context, store, ops.ExportInput{
				Path:   c.String("path"),
				Format: c.String("format"),
				Max:    intFlag(c, "max"),
			})
		}),
	}
}

// searchCmd creates the search command.
func searchCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search commands: p(refix), f(ulltext), or z (fuzzy)",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "p", Usage: "p|f|z"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Text to match"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Maximum results (default: all)"},
		},
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			query := c.String("query")
			if !c.IsSet("query") && c.NArg() > 0 {
				query = c.Args().First()
			}
			return ops.Search(c.Context, store, ops.SearchInput{
				Mode:  c.String("mode"),
				Query: query,
				Limit: intFlag(c, "limit"),
			})
		}),
	}
}

// countCmd creates the count command.
func countCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "Count recorded commands",
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			return ops.Count(c.Context, store)
		}),
	}
}

// firstCmd creates the first command.
func firstCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "first",
		Usage: "Show the oldest recorded command",
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			return ops.First(c.Context, store)
		}),
	}
}

// lastCmd creates the last command.
func lastCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "last",
		Usage: "Show the most recent command",
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			return ops.Last(c.Context, store)
		}),
	}
}

// loadCmd creates the load command.
func loadCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "load",
		Usage:     "Show one recorded command by id",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "id", Usage: "History item id"},
		},
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			return ops.Load(c.Context, store, ops.LoadInput{ID: idArg(c)})
		}),
	}
}

// rangeCmd creates the range command.
func rangeCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "range",
		Usage: "List history between two dates (inclusive), oldest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true, Usage: "YYYY-MM-DD (00:00 UTC) or RFC 3339"},
			&cli.StringFlag{Name: "to", Required: true, Usage: "YYYY-MM-DD (00:00 UTC) or RFC 3339"},
		},
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			return ops.Range(c.Context, store, ops.RangeInput{
				From: c.String("from"),
				To:   c.String("to"),
			})
		}),
	}
}

// beforeCmd creates the before command.
func beforeCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "before",
		Usage: "List the commands run just before a date, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true, Usage: "YYYY-MM-DD (00:00 UTC) or RFC 3339, exclusive"},
			&cli.IntFlag{Name: "count", Aliases: []string{"n"}, Value: ops.DefaultBeforeCount, Usage: "Number of items"},
		},
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			return ops.Before(c.Context, store, ops.BeforeInput{
				From:  c.String("from"),
				Count: c.Int("count"),
			})
		}),
	}
}

// allCmd creates the all command.
func allCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "all",
		Usage: "Dump every stored row as returned by the database",
		Action: e.run(func(c *cli.Context, store *db.SQLite) (any, error) {
			items, err := store.RawQuery(c.Context, rawSelectAll)
			if err != nil {
				return nil, err
			}
			return ops.ItemsOutput{Items: items, Count: len(items)}, nil
		}),
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve read-only history tools over stdio",
		Action: func(c *cli.Context) error {
			store, err := e.open(c)
			if err != nil {
				return outputError(err)
			}
			if isTerminal() {
				slog.Warn("tool server reads requests from stdin; pipe a client into it")
			}
			if err := mcp.Run(store, e.cfg, Version); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON writes result as indented JSON.
func (e *env) outputJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats an error for the CLI as "[CODE] message".
func outputError(err error) error {
	var hErr *errors.HistoryError
	if stderrors.As(err, &hErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", hErr.Code, hErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// idArg returns --id, or the first positional argument.
func idArg(c *cli.Context) string {
	if c.IsSet("id") {
		return c.String("id")
	}
	return c.Args().First()
}

// intFlag returns a pointer to the flag value, or nil when it was not given.
func intFlag(c *cli.Context, name string) *int {
	if !c.IsSet(name) {
		return nil
	}
	n := c.Int(name)
	return &n
}
