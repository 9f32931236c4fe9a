// Package query is the read façade over the entity store and the snapshot
// archive, plus the sync stub.
package query

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/heinrichuk/pmoai/internal/models"
	"github.com/heinrichuk/pmoai/internal/store"
)

// ErrUnknownSource is returned by Sync for a source other than the known ones.
var ErrUnknownSource = errors.New("invalid source. Must be 'sharepoint' or 'gitlab'")

// Sources Sync accepts.
var Sources = []string{"sharepoint", "gitlab"}

// SnapshotReader reads the snapshot history.
type SnapshotReader interface {
	ListSnapshots() []models.Snapshot
	Load(id string) (models.Snapshot, error)
}

// Service answers entity and snapshot reads.
type Service struct {
	store     *store.Store
	snapshots SnapshotReader
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(st *store.Store, snapshots SnapshotReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     st,
		snapshots: snapshots,
		logger:    logger.Named("query"),
		now:       time.Now,
	}
}

func (s *Service) Workstreams() []models.Workstream {
	return s.store.Workstreams()
}

func (s *Service) Workstream(id string) (models.Workstream, error) {
	return s.store.Workstream(id)
}

func (s *Service) Milestone(id string) (models.Milestone, error) {
	return s.store.Milestone(id)
}

func (s *Service) Risk(id string) (models.Risk, error) {
	return s.store.Risk(id)
}

func (s *Service) Issue(id string) (models.Issue, error) {
	return s.store.Issue(id)
}

func (s *Service) Dependency(id string) (models.Dependency, error) {
	return s.store.Dependency(id)
}

// Milestones lists every milestone, or only those of workstreamID when it is set.
func (s *Service) Milestones(workstreamID string) []models.Milestone {
	if workstreamID == "" {
		return s.store.Milestones()
	}
	return s.store.MilestonesFor(workstreamID)
}

func (s *Service) Risks(workstreamID string) []models.Risk {
	if workstreamID == "" {
		return s.store.Risks()
	}
	return s.store.RisksFor(workstreamID)
}

func (s *Service) Issues(workstreamID string) []models.Issue {
	if workstreamID == "" {
		return s.store.Issues()
	}
	return s.store.IssuesFor(workstreamID)
}

// Dependencies filters on either end of the dependency.
func (s *Service) Dependencies(workstreamID string) []models.Dependency {
	if workstreamID == "" {
		return s.store.Dependencies()
	}
	return s.store.DependenciesFor(workstreamID)
}

func (s *Service) Sentiment(workstreamID string) []models.SentimentSample {
	return s.store.SentimentFor(workstreamID)
}

func (s *Service) Snapshots() []models.Snapshot {
	return s.snapshots.ListSnapshots()
}

func (s *Service) Snapshot(id string) (models.Snapshot, error) {
	return s.snapshots.Load(id)
}

// ValidSource reports whether Sync accepts source.
func ValidSource(source string) bool {
	return slices.Contains(Sources, source)
}

// Sync pretends to pull from an external tracker: it only refreshes every
// workstream's lastUpdated. An unknown source is rejected before any write.
func (s *Service) Sync(source string) (models.SyncResult, error) {
	if !ValidSource(source) {
		return models.SyncResult{}, fmt.Errorf("sync %q: %w", source, ErrUnknownSource)
	}

	now := s.now().Round(0)
	err := s.store.UpdateWorkstreams(func(ws []models.Workstream) []models.Workstream {
		for i := range ws {
			if now.After(ws[i].LastUpdated) {
				ws[i].LastUpdated = now
			}
		}
		return ws
	})
	if err != nil {
		return models.SyncResult{}, fmt.Errorf("sync %q: %w", source, err)
	}

	s.logger.Info("workstreams synced", zap.String("source", source))
	return models.SyncResult{Success: true, Message: "Data synced from " + source}, nil
}
