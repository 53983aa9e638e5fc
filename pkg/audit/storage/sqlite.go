package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/moderation"
	"mercator-hq/warden/pkg/storage/sqlite"
)

const selectColumns = "sequence, audit_id, decision_id, action_type, actor, reason, timestamp, metadata"

// SQLiteStorage implements audit.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStorage opens the database described by config and creates the
// audit schema.
func NewSQLiteStorage(config *sqlite.Config) (*SQLiteStorage, error) {
	db, err := sqlite.Open(config)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStorage{
		db:     db,
		logger: slog.Default().With("component", "audit.storage.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite audit storage initialized", "path", config.Path)
	return s, nil
}

// initialize creates the schema and verifies its version.
func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return moderation.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return moderation.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return moderation.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return moderation.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Append inserts entry. The table's triggers reject any later change to it.
func (s *SQLiteStorage) Append(ctx context.Context, entry *audit.Entry) error {
	var metadata any
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadata = string(raw)
	}

	var decisionID any
	if entry.DecisionID != "" {
		decisionID = entry.DecisionID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (sequence, audit_id, decision_id, action_type, actor, reason, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(entry.Sequence), entry.ID, decisionID,
		string(entry.ActionType), string(entry.Actor), entry.Reason,
		entry.Timestamp.UnixNano(), metadata,
	)
	if err != nil {
		return moderation.NewStorageError("sqlite", "append", err)
	}
	return nil
}

// Get returns the entry with the given audit id.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*audit.Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM audit_log WHERE audit_id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, moderation.NewNotFoundError("audit entry", id)
	}
	if err != nil {
		return nil, moderation.NewStorageError("sqlite", "get", err)
	}
	return entry, nil
}

// Query retrieves entries matching the query filters, newest first.
func (s *SQLiteStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Entry, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT " + selectColumns + " FROM audit_log"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	sqlQuery += " ORDER BY timestamp DESC, sequence DESC"

	// SQLite requires a LIMIT before OFFSET; -1 means unbounded.
	limit := -1
	if query.Limit > 0 {
		limit = query.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, moderation.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	entries := []*audit.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, moderation.NewStorageError("sqlite", "scan", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, moderation.NewStorageError("sqlite", "query", err)
	}

	return entries, nil
}

// Count returns the number of entries matching the query filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM audit_log"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, moderation.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Stats aggregates every stored entry.
func (s *SQLiteStorage) Stats(ctx context.Context) (*audit.Stats, error) {
	stats := audit.NewStats()

	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(timestamp), MAX(timestamp) FROM audit_log",
	).Scan(&stats.TotalEntries, &oldest, &newest)
	if err != nil {
		return nil, moderation.NewStorageError("sqlite", "stats", err)
	}
	if oldest.Valid {
		t := time.Unix(0, oldest.Int64).UTC()
		stats.OldestEntry = &t
	}
	if newest.Valid {
		t := time.Unix(0, newest.Int64).UTC()
		stats.NewestEntry = &t
	}

	if err := s.groupCount(ctx, "action_type", func(key string, n int64) {
		stats.ByActionType[audit.ActionType(key)] = n
	}); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "actor", func(key string, n int64) {
		stats.ByActor[audit.Actor(key)] = n
	}); err != nil {
		return nil, err
	}

	return stats, nil
}

func (s *SQLiteStorage) groupCount(ctx context.Context, column string, fn func(string, int64)) error {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s, COUNT(*) FROM audit_log GROUP BY %s", column, column))
	if err != nil {
		return moderation.NewStorageError("sqlite", "stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int64
		if err := rows.Scan(&key, &n); err != nil {
			return moderation.NewStorageError("sqlite", "stats", err)
		}
		fn(key, n)
	}
	if err := rows.Err(); err != nil {
		return moderation.NewStorageError("sqlite", "stats", err)
	}
	return nil
}

// LastSequence returns the highest stored sequence number.
func (s *SQLiteStorage) LastSequence(ctx context.Context) (uint64, error) {
	var last sql.NullInt64
	if err := s.db.QueryRowContext(ctx, "SELECT MAX(sequence) FROM audit_log").Scan(&last); err != nil {
		return 0, moderation.NewStorageError("sqlite", "last_sequence", err)
	}
	if !last.Valid {
		return 0, nil
	}
	return uint64(last.Int64), nil
}

// Ping checks the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return moderation.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return moderation.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite audit storage closed")
	return nil
}

// buildWhereClause builds a SQL WHERE clause from query filters.
// Returns the WHERE clause (without "WHERE" keyword) and the query arguments.
func buildWhereClause(query *audit.Query) (string, []any) {
	var conditions []string
	var args []any

	if query.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, query.EndTime.UnixNano())
	}
	if query.DecisionID != "" {
		conditions = append(conditions, "decision_id = ?")
		args = append(args, query.DecisionID)
	}
	if query.ActionType != "" {
		conditions = append(conditions, "action_type = ?")
		args = append(args, string(query.ActionType))
	}
	if query.Actor != "" {
		conditions = append(conditions, "actor = ?")
		args = append(args, string(query.Actor))
	}

	return strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry scans a database row into an Entry.
func scanEntry(row rowScanner) (*audit.Entry, error) {
	var (
		entry      audit.Entry
		sequence   int64
		decisionID sql.NullString
		actionType string
		actor      string
		ts         int64
		metadata   sql.NullString
	)

	if err := row.Scan(&sequence, &entry.ID, &decisionID, &actionType, &actor, &entry.Reason, &ts, &metadata); err != nil {
		return nil, err
	}

	entry.Sequence = uint64(sequence)
	entry.DecisionID = decisionID.String
	entry.ActionType = audit.ActionType(actionType)
	entry.Actor = audit.Actor(actor)
	entry.Timestamp = time.Unix(0, ts).UTC()

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
		}
	}

	return &entry, nil
}
