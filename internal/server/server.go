package server

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/heinrichuk/pmoai/internal/query"
	"github.com/heinrichuk/pmoai/internal/session"
	"github.com/heinrichuk/pmoai/internal/tools"
)

// Version is reported to MCP clients.
const Version = "0.2.0"

// New creates a fully configured MCP server with all tools registered. Each
// server owns its own focus session, so build one per client connection.
func New(q *query.Service, snapshots tools.Snapshotter, assistant tools.Answerer) *mcp.Server {
	sess := session.New()

	wt := &tools.WorkstreamTools{Query: q, Session: sess}
	ot := &tools.OperationTools{Query: q, Snapshots: snapshots, Assistant: assistant}

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "pmoai",
		Version: Version,
	}, nil)

	// Entity reads
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_workstreams",
		Description: "List every workstream with its status, lead and last update",
	}, wt.ListWorkstreams)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_workstream",
		Description: "Get one workstream by id",
	}, wt.GetWorkstream)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_milestone",
		Description: "Get one milestone by id",
	}, wt.GetMilestone)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_risk",
		Description: "Get one risk by id",
	}, wt.GetRisk)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_issue",
		Description: "Get one issue by id",
	}, wt.GetIssue)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_dependency",
		Description: "Get one dependency by id",
	}, wt.GetDependency)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "focus_workstream",
		Description: "Set the workstream list tools default to for this session (empty id clears it)",
	}, wt.FocusWorkstream)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_milestones",
		Description: "List milestones, optionally for one workstream",
	}, wt.ListMilestones)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_risks",
		Description: "List risks, optionally for one workstream",
	}, wt.ListRisks)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_issues",
		Description: "List issues, optionally for one workstream",
	}, wt.ListIssues)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_dependencies",
		Description: "List dependencies, optionally those touching one workstream on either side",
	}, wt.ListDependencies)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_sentiment",
		Description: "Get the sentiment trend of a workstream, oldest sample first",
	}, wt.GetSentiment)

	// Assistant, snapshots and sync
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "ask_assistant",
		Description: "Ask the project assistant a question about project status",
	}, ot.AskAssistant)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "create_snapshot",
		Description: "Schedule a snapshot of the current state; returns the id it will be stored under",
	}, ot.CreateSnapshot)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_snapshots",
		Description: "List every persisted snapshot, oldest first",
	}, ot.ListSnapshots)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_snapshot",
		Description: "Read one persisted snapshot back from its file",
	}, ot.GetSnapshot)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "sync_source",
		Description: "Sync workstreams from sharepoint or gitlab (refreshes lastUpdated)",
	}, ot.SyncSource)

	return srv
}
