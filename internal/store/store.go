// Package store holds the live project-management collections in memory.
//
// Reads take a shared lock and never block each other. Bulk writes and
// snapshot captures additionally take writeMu, so a capture always sees the
// collections as they stood between two bulk writes and no two captures or
// writes interleave.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/heinrichuk/pmoai/internal/models"
)

var (
	// ErrNotFound is returned by lookups for an id the store does not hold.
	ErrNotFound = errors.New("not found")
	// ErrDanglingReference is returned when a bulk write would leave a record
	// pointing at a workstream that does not exist.
	ErrDanglingReference = errors.New("dangling workstream reference")
)

// State is a value copy of every collection held by the store.
type State struct {
	Workstreams  []models.Workstream
	Milestones   []models.Milestone
	Risks        []models.Risk
	Issues       []models.Issue
	Dependencies []models.Dependency
	Sentiments   []models.SentimentSample
}

// Clone returns a deep copy of s. Nil collections come back empty.
func (s State) Clone() State {
	c := State{
		Workstreams:  cloneSlice(s.Workstreams),
		Milestones:   cloneSlice(s.Milestones),
		Risks:        cloneSlice(s.Risks),
		Issues:       cloneSlice(s.Issues),
		Dependencies: cloneSlice(s.Dependencies),
		Sentiments:   make([]models.SentimentSample, len(s.Sentiments)),
	}
	for i, ss := range s.Sentiments {
		c.Sentiments[i] = ss.Clone()
	}
	return c
}

// Store is the single source of truth for the primary collections.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	state   State
	logger  *zap.Logger
}

// New returns an empty store.
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		state:  State{}.Clone(),
		logger: logger.Named("store"),
	}
}

// Load validates a full bundle and swaps it in as the current state.
// On error the previous state is untouched.
func (s *Store) Load(bundle State) error {
	next := bundle.Clone()
	if err := validate(next); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.logger.Info("state loaded",
		zap.Int("workstreams", len(next.Workstreams)),
		zap.Int("milestones", len(next.Milestones)),
		zap.Int("risks", len(next.Risks)),
		zap.Int("issues", len(next.Issues)),
		zap.Int("dependencies", len(next.Dependencies)),
		zap.Int("sentiments", len(next.Sentiments)))
	return nil
}

// ReplaceWorkstreams atomically swaps the workstream collection.
func (s *Store) ReplaceWorkstreams(list []models.Workstream) error {
	return s.UpdateWorkstreams(func([]models.Workstream) []models.Workstream {
		return list
	})
}

// UpdateWorkstreams runs fn on a copy of the workstream collection and swaps
// the result in. fn runs with other bulk writes and captures excluded, so
// read-modify-write through it is never lost.
func (s *Store) UpdateWorkstreams(fn func([]models.Workstream) []models.Workstream) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	next := s.state.Clone()
	s.mu.RUnlock()

	next.Workstreams = cloneSlice(fn(next.Workstreams))
	if err := validate(next); err != nil {
		return err
	}

	s.mu.Lock()
	s.state.Workstreams = next.Workstreams
	s.mu.Unlock()
	return nil
}

// SnapshotState returns a consistent value copy of all collections.
func (s *Store) SnapshotState() State {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Store) Workstreams() []models.Workstream {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.state.Workstreams)
}

func (s *Store) Workstream(id string) (models.Workstream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.state.Workstreams, "workstream", id, func(w models.Workstream) string { return w.ID })
}

func (s *Store) Milestones() []models.Milestone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.state.Milestones)
}

func (s *Store) Milestone(id string) (models.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.state.Milestones, "milestone", id, func(m models.Milestone) string { return m.ID })
}

// MilestonesFor returns the milestones of one workstream in insertion order.
func (s *Store) MilestonesFor(workstreamID string) []models.Milestone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.state.Milestones, func(m models.Milestone) bool { return m.WorkstreamID == workstreamID })
}

func (s *Store) Risks() []models.Risk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.state.Risks)
}

func (s *Store) Risk(id string) (models.Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.state.Risks, "risk", id, func(r models.Risk) string { return r.ID })
}

func (s *Store) RisksFor(workstreamID string) []models.Risk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.state.Risks, func(r models.Risk) bool { return r.WorkstreamID == workstreamID })
}

func (s *Store) Issues() []models.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.state.Issues)
}

func (s *Store) Issue(id string) (models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.state.Issues, "issue", id, func(i models.Issue) string { return i.ID })
}

func (s *Store) IssuesFor(workstreamID string) []models.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.state.Issues, func(i models.Issue) bool { return i.WorkstreamID == workstreamID })
}

func (s *Store) Dependencies() []models.Dependency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSlice(s.state.Dependencies)
}

func (s *Store) Dependency(id string) (models.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.state.Dependencies, "dependency", id, func(d models.Dependency) string { return d.ID })
}

// DependenciesFor matches dependencies where the workstream is either end.
func (s *Store) DependenciesFor(workstreamID string) []models.Dependency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.state.Dependencies, func(d models.Dependency) bool { return d.Touches(workstreamID) })
}

// SentimentFor returns the sentiment trend of one workstream, oldest first
// as loaded.
func (s *Store) SentimentFor(workstreamID string) []models.SentimentSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SentimentSample, 0)
	for _, ss := range s.state.Sentiments {
		if ss.WorkstreamID == workstreamID {
			out = append(out, ss.Clone())
		}
	}
	return out
}

func validate(st State) error {
	known := make(map[string]bool, len(st.Workstreams))
	for _, w := range st.Workstreams {
		if err := w.Validate(); err != nil {
			return err
		}
		if known[w.ID] {
			return fmt.Errorf("workstream %q: duplicate id", w.ID)
		}
		known[w.ID] = true
	}

	ref := func(kind, id, wsID string) error {
		if !known[wsID] {
			return fmt.Errorf("%s %q references workstream %q: %w", kind, id, wsID, ErrDanglingReference)
		}
		return nil
	}

	for _, m := range st.Milestones {
		if err := m.Validate(); err != nil {
			return err
		}
		if err := ref("milestone", m.ID, m.WorkstreamID); err != nil {
			return err
		}
	}
	for _, r := range st.Risks {
		if err := r.Validate(); err != nil {
			return err
		}
		if err := ref("risk", r.ID, r.WorkstreamID); err != nil {
			return err
		}
	}
	for _, i := range st.Issues {
		if err := i.Validate(); err != nil {
			return err
		}
		if err := ref("issue", i.ID, i.WorkstreamID); err != nil {
			return err
		}
	}
	for _, d := range st.Dependencies {
		if err := d.Validate(); err != nil {
			return err
		}
		if err := ref("dependency", d.ID, d.SourceWorkstreamID); err != nil {
			return err
		}
		if err := ref("dependency", d.ID, d.TargetWorkstreamID); err != nil {
			return err
		}
	}
	for _, ss := range st.Sentiments {
		if err := ss.Validate(); err != nil {
			return err
		}
		if err := ref("sentiment", ss.ID, ss.WorkstreamID); err != nil {
			return err
		}
	}
	return nil
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return make([]T, 0)
	}
	return slices.Clone(in)
}

func find[T any](items []T, kind, want string, id func(T) string) (T, error) {
	for _, it := range items {
		if id(it) == want {
			return it, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%s %q: %w", kind, want, ErrNotFound)
}

func filter[T any](items []T, match func(T) bool) []T {
	out := make([]T, 0)
	for _, it := range items {
		if match(it) {
			out = append(out, it)
		}
	}
	return out
}
