package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the rich history database schema.
const Schema = `
-- Rich history entries
CREATE TABLE IF NOT EXISTS rich_history (
    id TEXT PRIMARY KEY,

    -- Unix milliseconds, UTC
    created_at INTEGER NOT NULL,

    -- Origin
    datasource_uid TEXT NOT NULL,
    datasource_name TEXT NOT NULL,

    -- Canonical JSON payload and its lower-cased copy for text search
    queries TEXT NOT NULL,
    search_text TEXT NOT NULL,

    -- Mutable metadata
    starred INTEGER NOT NULL DEFAULT 0,
    comment TEXT
);

-- Settings document (single row)
CREATE TABLE IF NOT EXISTS settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    data TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_rich_history_created_at ON rich_history(created_at);
CREATE INDEX IF NOT EXISTS idx_rich_history_datasource_uid ON rich_history(datasource_uid);
CREATE INDEX IF NOT EXISTS idx_rich_history_starred ON rich_history(starred, created_at);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const entryColumns = `id, created_at, datasource_uid, datasource_name, queries, starred, comment`

const insertEntry = `
INSERT INTO rich_history (
    id, created_at, datasource_uid, datasource_name, queries, search_text, starred, comment
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const updateEntry = `
UPDATE rich_history SET starred = ?, comment = ? WHERE id = ?
`

const upsertSettings = `
INSERT INTO settings (id, data, updated_at) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
`
