package storage

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"github.com/heinrichuk/pmoai/internal/models"
)

// ErrSnapshotNotFound is returned when no record exists for a snapshot id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrChecksumMismatch is returned when a snapshot file differs from the
// digest recorded in the catalog.
var ErrChecksumMismatch = errors.New("snapshot checksum mismatch")

// CatalogEntry is one row of the snapshot catalog.
type CatalogEntry struct {
	ID           string    `json:"id"`
	TakenAt      time.Time `json:"takenAt"`
	File         string    `json:"file"`
	SHA256       string    `json:"sha256"`
	Workstreams  int       `json:"workstreams"`
	Milestones   int       `json:"milestones"`
	Risks        int       `json:"risks"`
	Issues       int       `json:"issues"`
	Dependencies int       `json:"dependencies"`
}

// Archive persists snapshots as one JSON file each under <dataDir>/snapshots
// and keeps the history in memory, oldest first. A SQLite catalog indexes the
// files so the history is rebuilt when the archive is reopened.
type Archive struct {
	mu      sync.RWMutex
	db      *sql.DB
	dir     string
	history []models.Snapshot
	logger  *zap.Logger
}

// OpenArchive opens (or creates) the snapshot directory and its catalog, then
// reloads every catalogued snapshot whose file is still readable.
func OpenArchive(dataDir string, logger *zap.Logger) (*Archive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Join(dataDir, "snapshots")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "_snapshots.db")
	db, err := sql.Open("sqlite3", "file:"+dbPath+catalogDSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if _, err := db.Exec(CatalogSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}

	a := &Archive{
		db:     db,
		dir:    dir,
		logger: logger.Named("archive"),
	}
	if err := a.reload(); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Close closes the catalog connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Dir returns the directory holding the snapshot files.
func (a *Archive) Dir() string {
	return a.dir
}

// FileName is the record name for a snapshot id.
func FileName(id string) string {
	return "snapshot_" + id + ".json"
}

// Persist writes the snapshot to its own file and appends it to the history.
// Nothing is appended when encoding or the file write fails.
func (a *Archive) Persist(snap models.Snapshot) error {
	if err := checkID(snap.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot %q: %w", snap.ID, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, prev := range a.history {
		if prev.ID == snap.ID {
			return fmt.Errorf("snapshot %q already persisted", snap.ID)
		}
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	name := FileName(snap.ID)
	path := filepath.Join(a.dir, name)

	// Write to temp file first, then rename so no reader ever sees a partial record
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot file: %w", err)
	}

	sum := sha256.Sum256(data)
	_, err = a.db.Exec(
		`INSERT INTO snapshots (id, taken_at, file, sha256, workstreams, milestones, risks, issues, dependencies)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Date.UTC().Format(time.RFC3339Nano), name, hex.EncodeToString(sum[:]),
		len(snap.Workstreams), len(snap.Milestones), len(snap.Risks), len(snap.Issues), len(snap.Dependencies),
	)
	if err != nil {
		// The file is the durable record; the catalog only speeds up reopen.
		a.logger.Warn("catalog insert failed", zap.String("snapshot_id", snap.ID), zap.Error(err))
	}

	a.history = append(a.history, snap.Clone())
	return nil
}

// ListSnapshots returns every persisted snapshot, oldest first.
func (a *Archive) ListSnapshots() []models.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]models.Snapshot, len(a.history))
	for i, s := range a.history {
		out[i] = s.Clone()
	}
	return out
}

// Load reads a snapshot back from its durable record.
func (a *Archive) Load(id string) (models.Snapshot, error) {
	if checkID(id) != nil {
		return models.Snapshot{}, fmt.Errorf("snapshot %q: %w", id, ErrSnapshotNotFound)
	}
	return readSnapshot(filepath.Join(a.dir, FileName(id)), id)
}

// Catalog lists the catalog rows in persistence order.
func (a *Archive) Catalog() ([]CatalogEntry, error) {
	rows, err := a.db.Query(
		`SELECT id, taken_at, file, sha256, workstreams, milestones, risks, issues, dependencies
		 FROM snapshots ORDER BY seq`,
	)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	defer rows.Close()

	entries := []CatalogEntry{}
	for rows.Next() {
		var e CatalogEntry
		var takenAt string
		if err := rows.Scan(&e.ID, &takenAt, &e.File, &e.SHA256,
			&e.Workstreams, &e.Milestones, &e.Risks, &e.Issues, &e.Dependencies); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		if e.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
			return nil, fmt.Errorf("parse taken_at for %q: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// reload rebuilds the in-memory history from the catalog.
func (a *Archive) reload() error {
	entries, err := a.Catalog()
	if err != nil {
		return err
	}
	for _, e := range entries {
		snap, err := readVerified(filepath.Join(a.dir, e.File), e)
		if err != nil {
			a.logger.Warn("skipping unreadable snapshot", zap.String("snapshot_id", e.ID), zap.Error(err))
			continue
		}
		a.history = append(a.history, snap)
	}
	if len(a.history) > 0 {
		a.logger.Info("snapshot history restored", zap.Int("snapshots", len(a.history)))
	}
	return nil
}

// readVerified reads a catalogued record and rejects it when the file no
// longer matches the digest taken at persist time.
func readVerified(path string, e CatalogEntry) (models.Snapshot, error) {
	data, err := readFile(path, e.ID)
	if err != nil {
		return models.Snapshot{}, err
	}
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != e.SHA256 {
		return models.Snapshot{}, fmt.Errorf("snapshot %q: sha256 %s, catalog has %s: %w", e.ID, got, e.SHA256, ErrChecksumMismatch)
	}
	return decodeSnapshot(data, e.ID)
}

func readSnapshot(path, id string) (models.Snapshot, error) {
	data, err := readFile(path, id)
	if err != nil {
		return models.Snapshot{}, err
	}
	return decodeSnapshot(data, id)
}

func readFile(path, id string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("snapshot %q: %w", id, ErrSnapshotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte, id string) (models.Snapshot, error) {
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.Snapshot{}, fmt.Errorf("decode snapshot %q: %w", id, err)
	}
	return snap, nil
}

func checkID(id string) error {
	if id == "" {
		return fmt.Errorf("snapshot: id: %w", models.ErrMissingField)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("snapshot id %q: invalid characters", id)
	}
	return nil
}
