package storage

// SchemaVersion is the current audit schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit log schema.
//
// Timestamps are stored as Unix nanoseconds so ordering and range filters do
// not depend on the driver's time encoding. The triggers make the table
// append-only at the database level.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    sequence INTEGER PRIMARY KEY,
    audit_id TEXT NOT NULL UNIQUE,
    decision_id TEXT,
    action_type TEXT NOT NULL,
    actor TEXT NOT NULL,
    reason TEXT NOT NULL,
    timestamp INTEGER NOT NULL,
    metadata TEXT
);

CREATE TABLE IF NOT EXISTS schema_version (
    component TEXT NOT NULL,
    version INTEGER NOT NULL,
    applied_at TIMESTAMP NOT NULL,
    PRIMARY KEY (component, version)
);

CREATE INDEX IF NOT EXISTS idx_audit_log_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_log_decision_id ON audit_log(decision_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_action_type ON audit_log(action_type);
CREATE INDEX IF NOT EXISTS idx_audit_log_actor ON audit_log(actor);

CREATE TRIGGER IF NOT EXISTS audit_log_no_update
BEFORE UPDATE ON audit_log
BEGIN
    SELECT RAISE(ABORT, 'audit_log is append-only');
END;

CREATE TRIGGER IF NOT EXISTS audit_log_no_delete
BEFORE DELETE ON audit_log
BEGIN
    SELECT RAISE(ABORT, 'audit_log is append-only');
END;
`

// InsertSchemaVersion records the schema version for the audit component.
const InsertSchemaVersion = `
INSERT INTO schema_version (component, version, applied_at)
VALUES ('audit', ?, datetime('now'))
ON CONFLICT(component, version) DO NOTHING;
`

// GetSchemaVersion retrieves the current audit schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version WHERE component = 'audit' ORDER BY version DESC LIMIT 1;
`
