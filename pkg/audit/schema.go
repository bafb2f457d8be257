package audit

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the access-record tables.
const Schema = `
CREATE TABLE IF NOT EXISTS access_records (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT,
    recorded_at INTEGER NOT NULL,
    client_ip TEXT NOT NULL,
    identity TEXT NOT NULL,
    method TEXT NOT NULL,
    path TEXT NOT NULL,
    status INTEGER NOT NULL,
    severity INTEGER NOT NULL,
    detail TEXT
);

CREATE INDEX IF NOT EXISTS idx_access_records_recorded_at ON access_records(recorded_at);
CREATE INDEX IF NOT EXISTS idx_access_records_identity ON access_records(identity);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion returns the highest applied schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`

const insertRecord = `
INSERT INTO access_records (request_id, recorded_at, client_ip, identity, method, path, status, severity, detail)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
