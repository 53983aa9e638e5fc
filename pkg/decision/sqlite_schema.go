package decision

// SchemaVersion is the current decision schema version.
const SchemaVersion = 1

// Schema creates the decision index. Classification, confidence and action
// are fixed at creation; a trigger rejects updates that touch them.
const Schema = `
CREATE TABLE IF NOT EXISTS decisions (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    decision_id TEXT NOT NULL UNIQUE,
    event_id TEXT,
    room_id TEXT NOT NULL,
    participant_id TEXT NOT NULL,
    participant_identity TEXT NOT NULL,
    content TEXT NOT NULL,
    content_type TEXT NOT NULL,
    classification TEXT NOT NULL,
    confidence REAL NOT NULL,
    action TEXT NOT NULL,
    status TEXT NOT NULL,
    policy_id TEXT,
    timestamp INTEGER NOT NULL,
    reasoning TEXT,
    metadata TEXT,
    review TEXT,
    overturn TEXT,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    component TEXT NOT NULL,
    version INTEGER NOT NULL,
    applied_at TIMESTAMP NOT NULL,
    PRIMARY KEY (component, version)
);

CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp);
CREATE INDEX IF NOT EXISTS idx_decisions_room_id ON decisions(room_id);
CREATE INDEX IF NOT EXISTS idx_decisions_participant_id ON decisions(participant_id);
CREATE INDEX IF NOT EXISTS idx_decisions_status ON decisions(status);
CREATE INDEX IF NOT EXISTS idx_decisions_classification ON decisions(classification);

CREATE TRIGGER IF NOT EXISTS decisions_immutable_outcome
BEFORE UPDATE ON decisions
WHEN OLD.decision_id IS NOT NEW.decision_id
  OR OLD.classification IS NOT NEW.classification
  OR OLD.confidence IS NOT NEW.confidence
  OR OLD.action IS NOT NEW.action
BEGIN
    SELECT RAISE(ABORT, 'decision outcome is immutable');
END;
`

// InsertSchemaVersion records the schema version for the decision component.
const InsertSchemaVersion = `
INSERT INTO schema_version (component, version, applied_at)
VALUES ('decision', ?, datetime('now'))
ON CONFLICT(component, version) DO NOTHING;
`

// GetSchemaVersion retrieves the current decision schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version WHERE component = 'decision' ORDER BY version DESC LIMIT 1;
`
