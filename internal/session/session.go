package session

import (
	"sync"

	"github.com/heinrichuk/pmoai/internal/models"
)

// WorkstreamLookup resolves a workstream id.
type WorkstreamLookup interface {
	Workstream(id string) (models.Workstream, error)
}

// Session holds the focused workstream for an MCP session.
type Session struct {
	mu             sync.Mutex
	workstreamID   string
	workstreamName string
}

// New creates a new session with no focused workstream.
func New() *Session {
	return &Session{}
}

// Focus makes the given workstream the default for list tools. The previous
// focus is kept when the id is unknown.
func (s *Session) Focus(lookup WorkstreamLookup, id string) (models.Workstream, error) {
	ws, err := lookup.Workstream(id)
	if err != nil {
		return models.Workstream{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.workstreamID = ws.ID
	s.workstreamName = ws.Name
	return ws, nil
}

// Current returns the focused workstream, if any.
func (s *Session) Current() (id, name string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workstreamID == "" {
		return "", "", false
	}
	return s.workstreamID, s.workstreamName, true
}

// Scope picks the workstream a list tool should filter on: the explicit id
// when given, otherwise the focused one, otherwise none.
func (s *Session) Scope(explicit string) string {
	if explicit != "" {
		return explicit
	}
	id, _, _ := s.Current()
	return id
}

// Clear drops the focus.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workstreamID = ""
	s.workstreamName = ""
}
