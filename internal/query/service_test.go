package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/heinrichuk/pmoai/internal/models"
	"github.com/heinrichuk/pmoai/internal/seed"
	"github.com/heinrichuk/pmoai/internal/storage"
	"github.com/heinrichuk/pmoai/internal/store"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st := store.New(zaptest.NewLogger(t))
	require.NoError(t, st.Load(seed.Bundle(epoch)))

	archive, err := storage.OpenArchive(t.TempDir(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })

	return NewService(st, archive, zaptest.NewLogger(t)), st
}

func TestListsAndFilters(t *testing.T) {
	svc, _ := newService(t)

	assert.Len(t, svc.Workstreams(), 4)
	assert.Len(t, svc.Milestones(""), 2)
	assert.Len(t, svc.Risks(""), 2)
	assert.Len(t, svc.Issues(""), 2)
	assert.Len(t, svc.Dependencies(""), 3)

	issues := svc.Issues("ws-3")
	require.Len(t, issues, 1)
	assert.Equal(t, "i-1", issues[0].ID)

	risks := svc.Risks("ws-1")
	require.Len(t, risks, 1)
	assert.Equal(t, "r-1", risks[0].ID)

	deps := svc.Dependencies("ws-4")
	require.Len(t, deps, 2)
	assert.Equal(t, "d-2", deps[0].ID)
	assert.Equal(t, "d-3", deps[1].ID)

	assert.Empty(t, svc.Milestones("ws-9"))
	assert.Empty(t, svc.Sentiment("ws-9"))
	assert.Len(t, svc.Sentiment("ws-2"), 3)
}

func TestWorkstreamNotFound(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Workstream("ws-404")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetByID(t *testing.T) {
	svc, _ := newService(t)

	m, err := svc.Milestone("m-2")
	require.NoError(t, err)
	assert.Equal(t, "ws-2", m.WorkstreamID)

	r, err := svc.Risk("r-2")
	require.NoError(t, err)
	assert.Equal(t, "ws-3", r.WorkstreamID)

	i, err := svc.Issue("i-1")
	require.NoError(t, err)
	assert.Equal(t, "ws-3", i.WorkstreamID)

	d, err := svc.Dependency("d-3")
	require.NoError(t, err)
	assert.Equal(t, "ws-2", d.SourceWorkstreamID)
	assert.Equal(t, "ws-4", d.TargetWorkstreamID)
}

func TestGetByIDNotFound(t *testing.T) {
	svc, _ := newService(t)

	lookups := map[string]func() error{
		"milestone":  func() error { _, err := svc.Milestone("m-404"); return err },
		"risk":       func() error { _, err := svc.Risk("r-404"); return err },
		"issue":      func() error { _, err := svc.Issue("i-404"); return err },
		"dependency": func() error { _, err := svc.Dependency("d-404"); return err },
	}
	for kind, lookup := range lookups {
		t.Run(kind, func(t *testing.T) {
			assert.ErrorIs(t, lookup(), store.ErrNotFound)
		})
	}
}

func TestValidSource(t *testing.T) {
	assert.True(t, ValidSource("sharepoint"))
	assert.True(t, ValidSource("gitlab"))
	assert.False(t, ValidSource("jira"))
	assert.False(t, ValidSource(""))
}

func TestSyncTouchesEveryWorkstream(t *testing.T) {
	svc, st := newService(t)
	later := epoch.Add(time.Hour)
	svc.now = func() time.Time { return later }

	res, err := svc.Sync("gitlab")
	require.NoError(t, err)
	assert.Equal(t, models.SyncResult{Success: true, Message: "Data synced from gitlab"}, res)

	for _, ws := range st.Workstreams() {
		assert.Equal(t, later, ws.LastUpdated, ws.ID)
	}
}

func TestSyncNeverMovesLastUpdatedBackwards(t *testing.T) {
	svc, st := newService(t)
	svc.now = func() time.Time { return epoch.Add(-24 * time.Hour) }

	_, err := svc.Sync("sharepoint")
	require.NoError(t, err)

	ws, err := st.Workstream("ws-2")
	require.NoError(t, err)
	assert.Equal(t, epoch, ws.LastUpdated)

	ws, err = st.Workstream("ws-1")
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(-24*time.Hour), ws.LastUpdated)
}

func TestSyncUnknownSourceChangesNothing(t *testing.T) {
	svc, st := newService(t)
	before := st.Workstreams()

	for _, src := range []string{"invalidsource", "", "GitLab", "jira"} {
		_, err := svc.Sync(src)
		assert.ErrorIs(t, err, ErrUnknownSource, src)
	}
	assert.Equal(t, before, st.Workstreams())
}

func TestSnapshotsPassThrough(t *testing.T) {
	svc, _ := newService(t)

	assert.Empty(t, svc.Snapshots())
	_, err := svc.Snapshot("snapshot-none")
	assert.ErrorIs(t, err, storage.ErrSnapshotNotFound)
}
