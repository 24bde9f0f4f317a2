package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/hiztery/internal/ops"
)

// Every tool only reads history.

var searchToolDef = mcp.NewTool("history_search",
	mcp.WithDescription("Search shell history by command. Returns the newest run of each matching command, newest first."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Text to match against the command"),
		mcp.MaxLength(ops.MaxQueryLength),
	),
	mcp.WithString("mode",
		mcp.Description("p/prefix: command starts with query; f/fulltext: query appears anywhere; z/fuzzy: query characters appear in order"),
		mcp.Enum("p", "prefix", "f", "fulltext", "z", "fuzzy"),
		mcp.DefaultString("prefix"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum results (default from config)"),
		mcp.Min(0),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var listToolDef = mcp.NewTool("history_list",
	mcp.WithDescription("List shell history, newest first."),
	mcp.WithNumber("max",
		mcp.Description("Maximum results (default from config)"),
		mcp.Min(0),
	),
	mcp.WithBoolean("unique",
		mcp.Description("Keep only the newest run of each command"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var rangeToolDef = mcp.NewTool("history_range",
	mcp.WithDescription("List shell history between two dates (inclusive), oldest first."),
	mcp.WithString("from",
		mcp.Required(),
		mcp.Description("Start, YYYY-MM-DD (00:00 UTC) or RFC 3339"),
	),
	mcp.WithString("to",
		mcp.Required(),
		mcp.Description("End, YYYY-MM-DD (00:00 UTC) or RFC 3339"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var beforeToolDef = mcp.NewTool("history_before",
	mcp.WithDescription("List the commands run just before a point in time, newest first."),
	mcp.WithString("from",
		mcp.Required(),
		mcp.Description("Exclusive upper bound, YYYY-MM-DD (00:00 UTC) or RFC 3339"),
	),
	mcp.WithNumber("count",
		mcp.Description("Number of items (default 10)"),
		mcp.Min(0),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var countToolDef = mcp.NewTool("history_count",
	mcp.WithDescription("Count stored shell history items."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var firstToolDef = mcp.NewTool("history_first",
	mcp.WithDescription("Return the oldest shell history item."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var lastToolDef = mcp.NewTool("history_last",
	mcp.WithDescription("Return the most recent shell history item."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var loadToolDef = mcp.NewTool("history_load",
	mcp.WithDescription("Return one shell history item by id."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("History item id"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)
