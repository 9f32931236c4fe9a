package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/heinrichuk/pmoai/internal/models"
)

func tempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "pmoai-archive-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func openArchive(t *testing.T, dir string) *Archive {
	t.Helper()
	a, err := OpenArchive(dir, nil)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

var takenAt = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func sampleSnapshot(id string) models.Snapshot {
	return models.Snapshot{
		ID:   id,
		Date: takenAt,
		Workstreams: []models.Workstream{{
			ID:          "ws-1",
			Name:        "Data Migration",
			Description: "Migrate legacy data to new platform",
			Status:      models.StatusAmber,
			Lead:        "Jane Smith",
			LastUpdated: takenAt.Add(-48 * time.Hour),
		}},
		Milestones: []models.Milestone{{
			ID:           "m-1",
			WorkstreamID: "ws-1",
			Title:        "Schema Migration",
			Description:  "Complete the database schema migration",
			DueDate:      takenAt.Add(240 * time.Hour),
			Status:       models.MilestonePending,
		}},
		Risks:        []models.Risk{},
		Issues:       []models.Issue{},
		Dependencies: []models.Dependency{},
	}
}

func TestOpenArchive(t *testing.T) {
	dir := tempDir(t)
	a := openArchive(t, dir)

	if _, err := os.Stat(filepath.Join(dir, "snapshots")); err != nil {
		t.Errorf("Expected snapshots dir to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "_snapshots.db")); err != nil {
		t.Errorf("Expected _snapshots.db to exist: %v", err)
	}
	if got := a.ListSnapshots(); len(got) != 0 {
		t.Errorf("Expected empty history, got %d", len(got))
	}
}

func TestPersistAppendsInOrder(t *testing.T) {
	a := openArchive(t, tempDir(t))

	for _, id := range []string{"snapshot-a", "snapshot-b", "snapshot-c"} {
		if err := a.Persist(sampleSnapshot(id)); err != nil {
			t.Fatalf("Persist(%s): %v", id, err)
		}
	}

	got := a.ListSnapshots()
	if len(got) != 3 {
		t.Fatalf("Expected 3 snapshots, got %d", len(got))
	}
	for i, want := range []string{"snapshot-a", "snapshot-b", "snapshot-c"} {
		if got[i].ID != want {
			t.Errorf("history[%d] = %q, want %q", i, got[i].ID, want)
		}
		if _, err := os.Stat(filepath.Join(a.Dir(), FileName(want))); err != nil {
			t.Errorf("Expected file for %s: %v", want, err)
		}
	}

	entries, err := os.ReadDir(a.Dir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("Temp file left behind: %s", e.Name())
		}
	}
}

func TestPersistRoundTrip(t *testing.T) {
	a := openArchive(t, tempDir(t))

	snap := sampleSnapshot("snapshot-roundtrip")
	if err := a.Persist(snap); err != nil {
		t.Fatal(err)
	}

	loaded, err := a.Load(snap.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want, _ := json.Marshal(snap)
	got, _ := json.Marshal(loaded)
	if !bytes.Equal(want, got) {
		t.Errorf("Round trip mismatch:\nwant %s\n got %s", want, got)
	}
}

func TestSnapshotFileFormat(t *testing.T) {
	a := openArchive(t, tempDir(t))

	snap := sampleSnapshot("snapshot-golden")
	if err := a.Persist(snap); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(a.Dir(), "snapshot_snapshot-golden.json"))
	if err != nil {
		t.Fatal(err)
	}

	g := goldie.New(t)
	g.Assert(t, "snapshot_file", data)
}

func TestHistoryIsIsolatedFromCaller(t *testing.T) {
	a := openArchive(t, tempDir(t))

	snap := sampleSnapshot("snapshot-iso")
	if err := a.Persist(snap); err != nil {
		t.Fatal(err)
	}
	snap.Workstreams[0].Name = "changed after persist"

	listed := a.ListSnapshots()
	listed[0].Workstreams[0].Status = models.StatusRed

	got := a.ListSnapshots()[0].Workstreams[0]
	if got.Name != "Data Migration" || got.Status != models.StatusAmber {
		t.Errorf("History was mutated through an alias: %+v", got)
	}
}

func TestPersistDuplicateID(t *testing.T) {
	a := openArchive(t, tempDir(t))

	if err := a.Persist(sampleSnapshot("snapshot-dup")); err != nil {
		t.Fatal(err)
	}
	if err := a.Persist(sampleSnapshot("snapshot-dup")); err == nil {
		t.Error("Expected error on duplicate snapshot id")
	}
	if n := len(a.ListSnapshots()); n != 1 {
		t.Errorf("Expected 1 snapshot, got %d", n)
	}
}

func TestPersistRecreatesMissingDir(t *testing.T) {
	a := openArchive(t, tempDir(t))

	if err := os.RemoveAll(a.Dir()); err != nil {
		t.Fatal(err)
	}
	if err := a.Persist(sampleSnapshot("snapshot-mkdir")); err != nil {
		t.Fatalf("Persist after dir removal: %v", err)
	}
	if _, err := os.Stat(filepath.Join(a.Dir(), FileName("snapshot-mkdir"))); err != nil {
		t.Errorf("Expected file to exist: %v", err)
	}
}

func TestPersistWriteFailureDoesNotAppend(t *testing.T) {
	a := openArchive(t, tempDir(t))

	// A regular file where the directory should be makes every write fail.
	if err := os.RemoveAll(a.Dir()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(a.Dir(), []byte("blocked"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := a.Persist(sampleSnapshot("snapshot-fail")); err == nil {
		t.Fatal("Expected write failure")
	}
	if n := len(a.ListSnapshots()); n != 0 {
		t.Errorf("Expected empty history after failed write, got %d", n)
	}
}

func TestReopenRestoresHistory(t *testing.T) {
	dir := tempDir(t)

	a, err := OpenArchive(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"snapshot-1", "snapshot-2"} {
		if err := a.Persist(sampleSnapshot(id)); err != nil {
			t.Fatal(err)
		}
	}
	a.Close()

	b := openArchive(t, dir)
	got := b.ListSnapshots()
	if len(got) != 2 || got[0].ID != "snapshot-1" || got[1].ID != "snapshot-2" {
		t.Fatalf("Restored history = %v", got)
	}

	entries, err := b.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 catalog entries, got %d", len(entries))
	}
	if entries[0].Workstreams != 1 || entries[0].Milestones != 1 || entries[0].Risks != 0 {
		t.Errorf("Unexpected counts: %+v", entries[0])
	}
	if !entries[0].TakenAt.Equal(takenAt) {
		t.Errorf("TakenAt = %v, want %v", entries[0].TakenAt, takenAt)
	}
	if len(entries[0].SHA256) != 64 {
		t.Errorf("SHA256 = %q, want 64 hex chars", entries[0].SHA256)
	}
}

func TestReopenSkipsMissingFiles(t *testing.T) {
	dir := tempDir(t)

	a, err := OpenArchive(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	a.Persist(sampleSnapshot("snapshot-keep"))
	a.Persist(sampleSnapshot("snapshot-gone"))
	a.Close()

	os.Remove(filepath.Join(dir, "snapshots", FileName("snapshot-gone")))

	b := openArchive(t, dir)
	got := b.ListSnapshots()
	if len(got) != 1 || got[0].ID != "snapshot-keep" {
		t.Errorf("Restored history = %v, want only snapshot-keep", got)
	}
}

func TestReopenSkipsTamperedFiles(t *testing.T) {
	dir := tempDir(t)

	a, err := OpenArchive(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	a.Persist(sampleSnapshot("snapshot-keep"))
	a.Persist(sampleSnapshot("snapshot-edited"))
	a.Close()

	path := filepath.Join(dir, "snapshots", FileName("snapshot-edited"))
	edited := sampleSnapshot("snapshot-edited")
	edited.Workstreams[0].Status = models.StatusRed
	data, err := json.MarshalIndent(edited, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	b := openArchive(t, dir)
	got := b.ListSnapshots()
	if len(got) != 1 || got[0].ID != "snapshot-keep" {
		t.Errorf("Restored history = %v, want only snapshot-keep", got)
	}

	entries, err := b.Catalog()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := readVerified(path, entries[1]); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("readVerified error = %v, want ErrChecksumMismatch", err)
	}
}

func TestLoadUnknown(t *testing.T) {
	a := openArchive(t, tempDir(t))

	for _, id := range []string{"snapshot-missing", "../escape", ""} {
		if _, err := a.Load(id); !errors.Is(err, ErrSnapshotNotFound) {
			t.Errorf("Load(%q) error = %v, want ErrSnapshotNotFound", id, err)
		}
	}
}
