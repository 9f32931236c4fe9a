package tools

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/heinrichuk/pmoai/internal/models"
	"github.com/heinrichuk/pmoai/internal/query"
	"github.com/heinrichuk/pmoai/internal/storage"
)

// Snapshotter queues on-demand snapshots.
type Snapshotter interface {
	Trigger() (models.SnapshotAck, error)
}

// Answerer answers free-text questions.
type Answerer interface {
	Answer(ctx context.Context, query string) models.ChatMessage
}

// OperationTools holds references needed by the assistant, snapshot and sync tools.
type OperationTools struct {
	Query     *query.Service
	Snapshots Snapshotter
	Assistant Answerer
}

// --- Input types ---

type AskAssistantInput struct {
	Message string `json:"message" jsonschema:"Question about project status"`
}

type GetSnapshotInput struct {
	ID string `json:"id" jsonschema:"Snapshot id, e.g. snapshot-<uuid>"`
}

type SyncSourceInput struct {
	Source string `json:"source" jsonschema:"Source to sync from: sharepoint or gitlab"`
}

// --- Handlers ---

func (t *OperationTools) AskAssistant(ctx context.Context, _ *mcp.CallToolRequest, input AskAssistantInput) (*mcp.CallToolResult, any, error) {
	if input.Message == "" {
		return toolError("Message is required"), nil, nil
	}
	return toolJSON(t.Assistant.Answer(ctx, input.Message))
}

func (t *OperationTools) CreateSnapshot(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	ack, err := t.Snapshots.Trigger()
	if err != nil {
		return toolError("Failed to schedule snapshot: %v", err), nil, nil
	}
	return toolJSON(ack)
}

func (t *OperationTools) ListSnapshots(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.Query.Snapshots())
}

func (t *OperationTools) GetSnapshot(_ context.Context, _ *mcp.CallToolRequest, input GetSnapshotInput) (*mcp.CallToolResult, any, error) {
	if input.ID == "" {
		return toolError("Snapshot id is required"), nil, nil
	}

	snap, err := t.Query.Snapshot(input.ID)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		return toolError("Snapshot %q not found", input.ID), nil, nil
	}
	if err != nil {
		return toolError("Failed to read snapshot: %v", err), nil, nil
	}

	return toolJSON(snap)
}

func (t *OperationTools) SyncSource(_ context.Context, _ *mcp.CallToolRequest, input SyncSourceInput) (*mcp.CallToolResult, any, error) {
	res, err := t.Query.Sync(input.Source)
	if errors.Is(err, query.ErrUnknownSource) {
		return toolError("Invalid source %q. Must be 'sharepoint' or 'gitlab'", input.Source), nil, nil
	}
	if err != nil {
		return toolError("Failed to sync: %v", err), nil, nil
	}
	return toolJSON(res)
}
