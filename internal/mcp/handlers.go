package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/hiztery/internal/config"
	"github.com/hpungsan/hiztery/internal/errors"
	"github.com/hpungsan/hiztery/internal/history"
	"github.com/hpungsan/hiztery/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store history.Store
	cfg   *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store history.Store, cfg *config.Config) *Handlers {
	return &Handlers{store: store, cfg: cfg}
}

// Request types for each tool

// SearchRequest represents the arguments for history_search.
type SearchRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
	Limit *int   `json:"limit,omitempty"`
}

// ListRequest represents the arguments for history_list.
type ListRequest struct {
	Max    *int `json:"max,omitempty"`
	Unique bool `json:"unique,omitempty"`
}

// RangeRequest represents the arguments for history_range.
type RangeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BeforeRequest represents the arguments for history_before.
type BeforeRequest struct {
	From  string `json:"from"`
	Count int    `json:"count,omitempty"`
}

// LoadRequest represents the arguments for history_load.
type LoadRequest struct {
	ID string `json:"id"`
}

// Handler implementations

// HandleSearch handles the history_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(ctx, h.store, ops.SearchInput{
		Mode:  input.Mode,
		Query: input.Query,
		Limit: h.limitOrDefault(input.Limit),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the history_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.store, ops.ListInput{
		Max:    h.limitOrDefault(input.Max),
		Unique: input.Unique,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRange handles the history_range tool call.
func (h *Handlers) HandleRange(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RangeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Range(ctx, h.store, ops.RangeInput{From: input.From, To: input.To})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBefore handles the history_before tool call.
func (h *Handlers) HandleBefore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BeforeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Before(ctx, h.store, ops.BeforeInput{From: input.From, Count: input.Count})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleCount handles the history_count tool call.
func (h *Handlers) HandleCount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Count(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFirst handles the history_first tool call.
func (h *Handlers) HandleFirst(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.First(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLast handles the history_last tool call.
func (h *Handlers) HandleLast(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Last(ctx, h.store)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLoad handles the history_load tool call.
func (h *Handlers) HandleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LoadRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Load(ctx, h.store, ops.LoadInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// limitOrDefault returns limit, or the configured default when the caller
// gave none. A zero or negative default leaves results unbounded.
func (h *Handlers) limitOrDefault(limit *int) *int {
	if limit != nil || h.cfg.DefaultSearchLimit <= 0 {
		return limit
	}
	n := h.cfg.DefaultSearchLimit
	return &n
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error messages are replaced so SQL text and file paths stay private.
func errorResult(err error) *mcp.CallToolResult {
	errorObj := map[string]any{
		"code":    errors.ErrInternal,
		"message": "an internal error occurred",
		"status":  500,
	}

	var hErr *errors.HistoryError
	if stderrors.As(err, &hErr) && hErr.Code != errors.ErrInternal {
		errorObj["code"] = hErr.Code
		errorObj["status"] = hErr.Status
		// Keep any wrapping context around the coded message.
		errorObj["message"] = hErr.Message
		if err != error(hErr) {
			errorObj["message"] = err.Error()
		}
		if hErr.Details != nil {
			errorObj["details"] = hErr.Details
		}
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
