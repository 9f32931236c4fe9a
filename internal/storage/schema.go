package storage

// CatalogSchema is the SQL schema for the _snapshots.db catalog. Each row
// indexes one snapshot file; seq gives the persistence order.
const CatalogSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    id            TEXT NOT NULL UNIQUE,
    taken_at      TEXT NOT NULL,
    file          TEXT NOT NULL,
    sha256        TEXT NOT NULL,
    workstreams   INTEGER NOT NULL DEFAULT 0,
    milestones    INTEGER NOT NULL DEFAULT 0,
    risks         INTEGER NOT NULL DEFAULT 0,
    issues        INTEGER NOT NULL DEFAULT 0,
    dependencies  INTEGER NOT NULL DEFAULT 0,
    created_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);
`

// catalogDSN opens the catalog in WAL mode with a busy timeout.
const catalogDSN = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
