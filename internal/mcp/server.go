package mcp

import (
	"log/slog"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/hiztery/internal/config"
	"github.com/hpungsan/hiztery/internal/history"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"history_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"history_list": {
		def:     listToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleList },
	},
	"history_range": {
		def:     rangeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRange },
	},
	"history_before": {
		def:     beforeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleBefore },
	},
	"history_count": {
		def:     countToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCount },
	},
	"history_first": {
		def:     firstToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFirst },
	},
	"history_last": {
		def:     lastToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLast },
	},
	"history_load": {
		def:     loadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleLoad },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server with the history tools registered.
// Tools listed in cfg.DisabledTools are left out; unknown names are logged.
func NewServer(store history.Store, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"hiztery",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("Read-only access to the user's shell command history."),
	)

	h := NewHandlers(store, cfg)

	for _, name := range ValidateDisabledTools(cfg.DisabledTools) {
		slog.Warn("unknown tool in disabled_tools", "tool", name)
	}
	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves the history tools over stdio until stdin closes.
func Run(store history.Store, cfg *config.Config, version string) error {
	s := NewServer(store, cfg, version)
	errLog := slog.NewLogLogger(slog.Default().Handler(), slog.LevelError)
	return server.ServeStdio(s, server.WithErrorLogger(errLog))
}
