package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/heinrichuk/pmoai/internal/query"
	"github.com/heinrichuk/pmoai/internal/session"
	"github.com/heinrichuk/pmoai/internal/store"
)

// WorkstreamTools holds references needed by the read-only entity tools.
type WorkstreamTools struct {
	Query   *query.Service
	Session *session.Session
}

// --- Input types ---

type ListInput struct {
	WorkstreamID string `json:"workstream_id,omitempty" jsonschema:"Only return records for this workstream; defaults to the focused workstream"`
}

type GetWorkstreamInput struct {
	ID string `json:"id" jsonschema:"Workstream id, e.g. ws-1"`
}

type GetRecordInput struct {
	ID string `json:"id" jsonschema:"Record id, e.g. m-1, r-1, i-1 or d-1"`
}

type FocusWorkstreamInput struct {
	ID string `json:"id" jsonschema:"Workstream id to focus list tools on"`
}

type SentimentInput struct {
	WorkstreamID string `json:"workstream_id,omitempty" jsonschema:"Workstream id; defaults to the focused workstream"`
}

// --- Handlers ---

func (t *WorkstreamTools) ListWorkstreams(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Query.Workstreams())
}

func (t *WorkstreamTools) GetWorkstream(_ context.Context, _ *mcp.CallToolRequest, input GetWorkstreamInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("Workstream id is required"), nil, nil
	}

	ws, err := t.Query.Workstream(input.ID)
	if errors.Is(err, store.ErrNotFound) {
		return toolError("Workstream %q not found", input.ID), nil, nil
	}
	if err != nil {
		return toolError("Failed to get workstream: %v", err), nil, nil
	}

	return toolJSON(ws)
}

func (t *WorkstreamTools) GetMilestone(_ context.Context, _ *mcp.CallToolRequest, input GetRecordInput) (*mcp.CallToolResult, any, error) {
	return getRecord("Milestone", input.ID, t.Query.Milestone)
}

func (t *WorkstreamTools) GetRisk(_ context.Context, _ *mcp.CallToolRequest, input GetRecordInput) (*mcp.CallToolResult, any, error) {
	return getRecord("Risk", input.ID, t.Query.Risk)
}

func (t *WorkstreamTools) GetIssue(_ context.Context, _ *mcp.CallToolRequest, input GetRecordInput) (*mcp.CallToolResult, any, error) {
	return getRecord("Issue", input.ID, t.Query.Issue)
}

func (t *WorkstreamTools) GetDependency(_ context.Context, _ *mcp.CallToolRequest, input GetRecordInput) (*mcp.CallToolResult, any, error) {
	return getRecord("Dependency", input.ID, t.Query.Dependency)
}

func getRecord[T any](kind, id string, lookup func(string) (T, error)) (*mcp.CallToolResult, any, error) {
	if id == "" {
		return toolError("%s id is required", kind), nil, nil
	}

	v, err := lookup(id)
	if errors.Is(err, store.ErrNotFound) {
		return toolError("%s %q not found", kind, id), nil, nil
	}
	if err != nil {
		return toolError("Failed to get %s: %v", strings.ToLower(kind), err), nil, nil
	}

	return toolJSON(v)
}

func (t *WorkstreamTools) FocusWorkstream(_ context.Context, _ *mcp.CallToolRequest, input FocusWorkstreamInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		t.Session.Clear()
		return toolText("Focus cleared. List tools now return every workstream."), nil, nil
	}

	ws, err := t.Session.Focus(t.Query, input.ID)
	if errors.Is(err, store.ErrNotFound) {
		return toolError("Workstream %q not found", input.ID), nil, nil
	}
	if err != nil {
		return toolError("Failed to focus workstream: %v", err), nil, nil
	}

	return toolText(fmt.Sprintf("Focused on %s (%s).", ws.Name, ws.ID)), nil, nil
}

func (t *WorkstreamTools) ListMilestones(_ context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Query.Milestones(t.Session.Scope(input.WorkstreamID)))
}

func (t *WorkstreamTools) ListRisks(_ context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Query.Risks(t.Session.Scope(input.WorkstreamID)))
}

func (t *WorkstreamTools) ListIssues(_ context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Query.Issues(t.Session.Scope(input.WorkstreamID)))
}

func (t *WorkstreamTools) ListDependencies(_ context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Query.Dependencies(t.Session.Scope(input.WorkstreamID)))
}

func (t *WorkstreamTools) GetSentiment(_ context.Context, _ *mcp.CallToolRequest, input SentimentInput) (*mcp.CallToolResult, any, error) {
	id := t.Session.Scope(input.WorkstreamID)
	if id == "" {
		return toolError("workstream_id is required when no workstream is focused"), nil, nil
	}
	return toolJSON(t.Query.Sentiment(id))
}

// --- Helpers ---

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError("Failed to marshal result: %v", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
