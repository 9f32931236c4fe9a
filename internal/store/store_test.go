package store_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/heinrichuk/pmoai/internal/models"
	"github.com/heinrichuk/pmoai/internal/seed"
	"github.com/heinrichuk/pmoai/internal/store"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(zaptest.NewLogger(t))
	require.NoError(t, s.Load(seed.Bundle(epoch)))
	return s
}

func TestListWorkstreams(t *testing.T) {
	s := seeded(t)

	ws := s.Workstreams()
	require.Len(t, ws, 4)
	assert.Equal(t, []string{"ws-1", "ws-2", "ws-3", "ws-4"}, []string{ws[0].ID, ws[1].ID, ws[2].ID, ws[3].ID})
	assert.Equal(t, models.StatusRed, ws[2].Status)
}

func TestGetUnknownIsNotFound(t *testing.T) {
	s := seeded(t)

	for _, id := range []string{"", "ws-0", "ws-5", "WS-1", "m-1"} {
		_, err := s.Workstream(id)
		assert.ErrorIs(t, err, store.ErrNotFound, id)
	}
	_, err := s.Milestone("m-9")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Risk("r-9")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Issue("i-9")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Dependency("d-9")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Issue("i-1")
	require.NoError(t, err)
	assert.Equal(t, "ws-3", got.WorkstreamID)
}

func TestFilterIsOrderPreservingSubset(t *testing.T) {
	s := seeded(t)
	ids := []string{"ws-1", "ws-2", "ws-3", "ws-4", "ws-missing"}

	for _, w := range ids {
		var wantM []models.Milestone
		for _, m := range s.Milestones() {
			if m.WorkstreamID == w {
				wantM = append(wantM, m)
			}
		}
		assert.ElementsMatch(t, wantM, s.MilestonesFor(w))
		assertSameOrder(t, wantM, s.MilestonesFor(w))

		var wantR []models.Risk
		for _, r := range s.Risks() {
			if r.WorkstreamID == w {
				wantR = append(wantR, r)
			}
		}
		assertSameOrder(t, wantR, s.RisksFor(w))

		var wantI []models.Issue
		for _, i := range s.Issues() {
			if i.WorkstreamID == w {
				wantI = append(wantI, i)
			}
		}
		assertSameOrder(t, wantI, s.IssuesFor(w))

		var wantD []models.Dependency
		for _, d := range s.Dependencies() {
			if d.SourceWorkstreamID == w || d.TargetWorkstreamID == w {
				wantD = append(wantD, d)
			}
		}
		assertSameOrder(t, wantD, s.DependenciesFor(w))
	}

	issues := s.IssuesFor("ws-3")
	require.Len(t, issues, 1)
	assert.Equal(t, "i-1", issues[0].ID)

	assert.NotNil(t, s.MilestonesFor("ws-missing"))
	assert.Empty(t, s.MilestonesFor("ws-missing"))
}

func assertSameOrder[T any](t *testing.T, want, got []T) {
	t.Helper()
	if len(want) == 0 {
		assert.Empty(t, got)
		return
	}
	assert.Equal(t, want, got)
}

func TestReadsAreIdempotent(t *testing.T) {
	s := seeded(t)

	assert.Equal(t, s.Workstreams(), s.Workstreams())
	assert.Equal(t, s.Dependencies(), s.Dependencies())
	a, err := s.Workstream("ws-2")
	require.NoError(t, err)
	b, err := s.Workstream("ws-2")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReturnedSlicesDoNotAlias(t *testing.T) {
	s := seeded(t)

	ws := s.Workstreams()
	ws[0].Name = "mutated"
	got, err := s.Workstream("ws-1")
	require.NoError(t, err)
	assert.Equal(t, "Data Migration", got.Name)

	samples := s.SentimentFor("ws-1")
	require.Len(t, samples, 3)
	samples[0].Keywords[0] = "mutated"
	assert.Equal(t, "delayed", s.SentimentFor("ws-1")[0].Keywords[0])
}

func TestSnapshotStateIsAValueCopy(t *testing.T) {
	s := seeded(t)

	captured := s.SnapshotState()
	before := captured.Workstreams[0].LastUpdated

	later := epoch.Add(time.Hour)
	require.NoError(t, s.UpdateWorkstreams(func(ws []models.Workstream) []models.Workstream {
		for i := range ws {
			ws[i].LastUpdated = later
			ws[i].Status = models.StatusRed
		}
		return ws
	}))

	assert.Equal(t, before, captured.Workstreams[0].LastUpdated)
	assert.Equal(t, models.StatusAmber, captured.Workstreams[0].Status)

	now, err := s.Workstream("ws-1")
	require.NoError(t, err)
	assert.Equal(t, later, now.LastUpdated)
}

func TestLoadRejectsDanglingReference(t *testing.T) {
	s := seeded(t)

	bad := seed.Bundle(epoch)
	bad.Issues = append(bad.Issues, models.Issue{ID: "i-3", WorkstreamID: "ws-9", Title: "orphan"})
	err := s.Load(bad)
	require.ErrorIs(t, err, store.ErrDanglingReference)

	assert.Len(t, s.Issues(), 2)
}

func TestLoadRejectsMissingFields(t *testing.T) {
	s := store.New(nil)

	bad := seed.Bundle(epoch)
	bad.Milestones[0].Title = ""
	require.ErrorIs(t, s.Load(bad), models.ErrMissingField)

	bad = seed.Bundle(epoch)
	bad.Workstreams[0].Status = "purple"
	require.Error(t, s.Load(bad))

	bad = seed.Bundle(epoch)
	bad.Workstreams = append(bad.Workstreams, bad.Workstreams[0])
	require.Error(t, s.Load(bad))

	assert.Empty(t, s.Workstreams())
}

func TestReplaceWorkstreamsKeepsReferencesIntact(t *testing.T) {
	s := seeded(t)

	ws := s.Workstreams()
	err := s.ReplaceWorkstreams(ws[:2])
	require.ErrorIs(t, err, store.ErrDanglingReference)
	assert.Len(t, s.Workstreams(), 4)

	ws[1].Status = models.StatusAmber
	require.NoError(t, s.ReplaceWorkstreams(ws))
	got, err := s.Workstream("ws-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAmber, got.Status)
}

func TestCaptureNeverSeesPartialUpdate(t *testing.T) {
	s := seeded(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			at := epoch.Add(time.Duration(i) * time.Second)
			_ = s.UpdateWorkstreams(func(ws []models.Workstream) []models.Workstream {
				for j := range ws {
					ws[j].LastUpdated = at
				}
				return ws
			})
		}
	}()

	for i := 0; i < 200; i++ {
		st := s.SnapshotState()
		first := st.Workstreams[0].LastUpdated
		for _, w := range st.Workstreams[1:] {
			if !w.LastUpdated.Equal(first) && !first.Equal(epoch.Add(-48*time.Hour)) {
				t.Fatalf("capture mixed timestamps: %v vs %v", first, w.LastUpdated)
			}
		}
	}
	close(stop)
	wg.Wait()
}
