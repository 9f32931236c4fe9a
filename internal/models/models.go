package models

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ErrMissingField is returned (wrapped with the field name) when a record
// lacks a field it cannot exist without.
var ErrMissingField = errors.New("missing required field")

// Status is the RAG status of a workstream.
type Status string

const (
	StatusGreen Status = "green"
	StatusAmber Status = "amber"
	StatusRed   Status = "red"
)

// Valid reports whether s is one of green, amber or red.
func (s Status) Valid() bool {
	switch s {
	case StatusGreen, StatusAmber, StatusRed:
		return true
	}
	return false
}

const (
	MilestonePending   = "pending"
	MilestoneCompleted = "completed"
	MilestoneAtRisk    = "at_risk"
	MilestoneDelayed   = "delayed"

	RiskOpen      = "open"
	RiskMitigated = "mitigated"
	RiskClosed    = "closed"

	IssueOpen       = "open"
	IssueInProgress = "in_progress"
	IssueResolved   = "resolved"

	DependencyPending = "pending"
	DependencyMet     = "met"
	DependencyAtRisk  = "at_risk"
)

// Workstream is a tracked unit of project work.
type Workstream struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Lead        string    `json:"lead"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Milestone is a deliverable scoped to one workstream.
type Milestone struct {
	ID           string    `json:"id"`
	WorkstreamID string    `json:"workstreamId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	DueDate      time.Time `json:"dueDate"`
	Status       string    `json:"status"`
}

// Risk is a risk register entry scoped to one workstream.
type Risk struct {
	ID             string `json:"id"`
	WorkstreamID   string `json:"workstreamId"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Impact         string `json:"impact"`
	Likelihood     string `json:"likelihood"`
	MitigationPlan string `json:"mitigationPlan"`
	Status         string `json:"status"`
}

// Issue is an open problem scoped to one workstream.
type Issue struct {
	ID           string `json:"id"`
	WorkstreamID string `json:"workstreamId"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Severity     string `json:"severity"`
	Status       string `json:"status"`
	AssignedTo   string `json:"assignedTo"`
}

// Dependency is a directed edge: the source workstream gates the target.
type Dependency struct {
	ID                 string `json:"id"`
	SourceWorkstreamID string `json:"sourceWorkstreamId"`
	TargetWorkstreamID string `json:"targetWorkstreamId"`
	Description        string `json:"description"`
	Status             string `json:"status"`
}

// Touches reports whether either end of the dependency is the given workstream.
func (d Dependency) Touches(workstreamID string) bool {
	return d.SourceWorkstreamID == workstreamID || d.TargetWorkstreamID == workstreamID
}

// SentimentSample is one point of a workstream's sentiment trend.
type SentimentSample struct {
	ID           string    `json:"id"`
	WorkstreamID string    `json:"workstreamId"`
	Date         time.Time `json:"date"`
	Score        float64   `json:"score"`
	Keywords     []string  `json:"keywords"`
	Summary      string    `json:"summary"`
}

// Clone returns a copy that shares no memory with s.
func (s SentimentSample) Clone() SentimentSample {
	s.Keywords = slices.Clone(s.Keywords)
	return s
}

// Snapshot is an immutable, timestamped copy of the five primary collections.
type Snapshot struct {
	ID           string       `json:"id"`
	Date         time.Time    `json:"date"`
	Workstreams  []Workstream `json:"workstreams"`
	Milestones   []Milestone  `json:"milestones"`
	Risks        []Risk       `json:"risks"`
	Issues       []Issue      `json:"issues"`
	Dependencies []Dependency `json:"dependencies"`
}

// Clone returns a copy whose collections share no memory with s.
func (s Snapshot) Clone() Snapshot {
	s.Workstreams = slices.Clone(s.Workstreams)
	s.Milestones = slices.Clone(s.Milestones)
	s.Risks = slices.Clone(s.Risks)
	s.Issues = slices.Clone(s.Issues)
	s.Dependencies = slices.Clone(s.Dependencies)
	return s
}

// SnapshotAck is returned to a caller who asked for a snapshot; the
// snapshot itself is produced later.
type SnapshotAck struct {
	ID      string    `json:"id"`
	Date    time.Time `json:"date"`
	Message string    `json:"message"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of the assistant conversation.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewAssistantMessage builds an assistant turn with a fresh id.
func NewAssistantMessage(content string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:        "msg-" + uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: at,
	}
}

// SyncResult is the outcome of a sync from an external source.
type SyncResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func missing(kind, id, field string) error {
	if id == "" {
		return fmt.Errorf("%s: %s: %w", kind, field, ErrMissingField)
	}
	return fmt.Errorf("%s %q: %s: %w", kind, id, field, ErrMissingField)
}

// Validate checks required fields and the status enumeration.
func (w Workstream) Validate() error {
	switch {
	case w.ID == "":
		return missing("workstream", w.ID, "id")
	case w.Name == "":
		return missing("workstream", w.ID, "name")
	case !w.Status.Valid():
		return fmt.Errorf("workstream %q: invalid status %q", w.ID, w.Status)
	}
	return nil
}

func (m Milestone) Validate() error {
	switch {
	case m.ID == "":
		return missing("milestone", m.ID, "id")
	case m.WorkstreamID == "":
		return missing("milestone", m.ID, "workstreamId")
	case m.Title == "":
		return missing("milestone", m.ID, "title")
	}
	return nil
}

func (r Risk) Validate() error {
	switch {
	case r.ID == "":
		return missing("risk", r.ID, "id")
	case r.WorkstreamID == "":
		return missing("risk", r.ID, "workstreamId")
	case r.Title == "":
		return missing("risk", r.ID, "title")
	}
	return nil
}

func (i Issue) Validate() error {
	switch {
	case i.ID == "":
		return missing("issue", i.ID, "id")
	case i.WorkstreamID == "":
		return missing("issue", i.ID, "workstreamId")
	case i.Title == "":
		return missing("issue", i.ID, "title")
	}
	return nil
}

func (d Dependency) Validate() error {
	switch {
	case d.ID == "":
		return missing("dependency", d.ID, "id")
	case d.SourceWorkstreamID == "":
		return missing("dependency", d.ID, "sourceWorkstreamId")
	case d.TargetWorkstreamID == "":
		return missing("dependency", d.ID, "targetWorkstreamId")
	}
	return nil
}

func (s SentimentSample) Validate() error {
	switch {
	case s.ID == "":
		return missing("sentiment", s.ID, "id")
	case s.WorkstreamID == "":
		return missing("sentiment", s.ID, "workstreamId")
	case s.Score < -1 || s.Score > 1:
		return fmt.Errorf("sentiment %q: score %v outside [-1, 1]", s.ID, s.Score)
	}
	return nil
}
