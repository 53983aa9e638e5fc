package decision

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"mercator-hq/warden/pkg/moderation"
	"mercator-hq/warden/pkg/storage/sqlite"
)

const selectColumns = `decision_id, event_id, room_id, participant_id, participant_identity,
	content, content_type, classification, confidence, action, status, policy_id,
	timestamp, reasoning, metadata, review, overturn, updated_at`

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens the database described by config and creates the
// decision schema.
func NewSQLiteStore(config *sqlite.Config) (*SQLiteStore, error) {
	db, err := sqlite.Open(config)
	if err != nil {
		return nil, err
	}

	s := &SQLiteStore{
		db:     db,
		logger: slog.Default().With("component", "decision.store.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite decision store initialized", "path", config.Path)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
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
	return nil
}

// Create inserts d.
func (s *SQLiteStore) Create(ctx context.Context, d *moderation.Decision) error {
	metadata, err := marshalOptional(d.Metadata, len(d.Metadata) > 0)
	if err != nil {
		return fmt.Errorf("marshal decision metadata: %w", err)
	}
	review, err := marshalOptional(d.Review, d.Review != nil)
	if err != nil {
		return fmt.Errorf("marshal decision review: %w", err)
	}
	overturn, err := marshalOptional(d.Overturn, d.Overturn != nil)
	if err != nil {
		return fmt.Errorf("marshal decision overturn: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			decision_id, event_id, room_id, participant_id, participant_identity,
			content, content_type, classification, confidence, action, status, policy_id,
			timestamp, reasoning, metadata, review, overturn, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, nullString(d.EventID), d.RoomID, d.ParticipantID, d.ParticipantIdentity,
		d.Content, string(d.ContentType), string(d.Classification), d.Confidence,
		string(d.Action), string(d.Status), nullString(d.PolicyID),
		d.Timestamp.UnixNano(), nullString(d.Reasoning), metadata, review, overturn,
		d.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return moderation.NewStorageError("sqlite", "create", err)
	}
	return nil
}

// Get returns the decision with the given id.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*moderation.Decision, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM decisions WHERE decision_id = ?", id)
	d, err := scanDecision(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, moderation.NewNotFoundError("decision", id)
	}
	if err != nil {
		return nil, moderation.NewStorageError("sqlite", "get", err)
	}
	return d, nil
}

// Update writes the mutable fields of d if the stored status equals from.
func (s *SQLiteStore) Update(ctx context.Context, d *moderation.Decision, from moderation.Status) error {
	review, err := marshalOptional(d.Review, d.Review != nil)
	if err != nil {
		return fmt.Errorf("marshal decision review: %w", err)
	}
	overturn, err := marshalOptional(d.Overturn, d.Overturn != nil)
	if err != nil {
		return fmt.Errorf("marshal decision overturn: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE decisions SET status = ?, review = ?, overturn = ?, updated_at = ?
		WHERE decision_id = ? AND status = ?`,
		string(d.Status), review, overturn, d.UpdatedAt.UnixNano(), d.ID, string(from),
	)
	if err != nil {
		return moderation.NewStorageError("sqlite", "update", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return moderation.NewStorageError("sqlite", "update", err)
	}
	if n == 1 {
		return nil
	}

	current, err := s.Get(ctx, d.ID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: decision %s is %s, expected %s", ErrConflict, d.ID, current.Status, from)
}

// Remove deletes the decision.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM decisions WHERE decision_id = ?", id)
	if err != nil {
		return moderation.NewStorageError("sqlite", "remove", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return moderation.NewNotFoundError("decision", id)
	}
	return nil
}

// Query returns matching decisions, newest first.
func (s *SQLiteStore) Query(ctx context.Context, q *Query) ([]*moderation.Decision, error) {
	whereClause, args := buildWhereClause(q)

	sqlQuery := "SELECT " + selectColumns + " FROM decisions"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	if q.OldestFirst {
		sqlQuery += " ORDER BY timestamp ASC, seq ASC"
	} else {
		sqlQuery += " ORDER BY timestamp DESC, seq DESC"
	}

	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if q.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, moderation.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	decisions := []*moderation.Decision{}
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, moderation.NewStorageError("sqlite", "scan", err)
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, moderation.NewStorageError("sqlite", "query", err)
	}
	return decisions, nil
}

// Count returns the number of matching decisions.
func (s *SQLiteStore) Count(ctx context.Context, q *Query) (int64, error) {
	whereClause, args := buildWhereClause(q)

	sqlQuery := "SELECT COUNT(*) FROM decisions"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&n); err != nil {
		return 0, moderation.NewStorageError("sqlite", "count", err)
	}
	return n, nil
}

// Stats aggregates every stored decision.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := NewStats()

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), AVG(CASE WHEN confidence > 0 THEN confidence END) FROM decisions`,
	).Scan(&stats.TotalDecisions, &avg)
	if err != nil {
		return nil, moderation.NewStorageError("sqlite", "stats", err)
	}
	if avg.Valid {
		stats.AverageConfidence = math.Round(avg.Float64*1000) / 1000
	}

	if err := s.groupCount(ctx, "action", func(k string, n int64) {
		stats.ByAction[moderation.Action(k)] = n
	}); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "classification", func(k string, n int64) {
		stats.ByClassification[moderation.Category(k)] = n
	}); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, "status", func(k string, n int64) {
		stats.ByStatus[moderation.Status(k)] = n
	}); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *SQLiteStore) groupCount(ctx context.Context, column string, fn func(string, int64)) error {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s, COUNT(*) FROM decisions GROUP BY %s", column, column))
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

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return moderation.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return moderation.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite decision store closed")
	return nil
}

// buildWhereClause builds a SQL WHERE clause (without "WHERE") from q.
func buildWhereClause(q *Query) (string, []any) {
	var conditions []string
	var args []any

	add := func(cond string, arg any) {
		conditions = append(conditions, cond)
		args = append(args, arg)
	}

	if q.RoomID != "" {
		add("room_id = ?", q.RoomID)
	}
	if q.ParticipantID != "" {
		add("participant_id = ?", q.ParticipantID)
	}
	if q.Classification != "" {
		add("classification = ?", string(q.Classification))
	}
	if q.Action != "" {
		add("action = ?", string(q.Action))
	}
	if q.Status != "" {
		add("status = ?", string(q.Status))
	}
	if q.MinConfidence != nil {
		add("confidence >= ?", *q.MinConfidence)
	}
	if q.MaxConfidence != nil {
		add("confidence <= ?", *q.MaxConfidence)
	}
	if q.StartTime != nil {
		add("timestamp >= ?", q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		add("timestamp <= ?", q.EndTime.UnixNano())
	}

	return strings.Join(conditions, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(row rowScanner) (*moderation.Decision, error) {
	var (
		d                                           moderation.Decision
		eventID, policyID, reasoning                sql.NullString
		metadata, review, overturn                  sql.NullString
		contentType, classification, action, status string
		ts, updatedAt                               int64
	)

	err := row.Scan(
		&d.ID, &eventID, &d.RoomID, &d.ParticipantID, &d.ParticipantIdentity,
		&d.Content, &contentType, &classification, &d.Confidence, &action, &status, &policyID,
		&ts, &reasoning, &metadata, &review, &overturn, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.EventID = eventID.String
	d.PolicyID = policyID.String
	d.Reasoning = reasoning.String
	d.ContentType = moderation.ContentType(contentType)
	d.Classification = moderation.Category(classification)
	d.Action = moderation.Action(action)
	d.Status = moderation.Status(status)
	d.Timestamp = time.Unix(0, ts).UTC()
	d.UpdatedAt = time.Unix(0, updatedAt).UTC()

	if err := unmarshalOptional(metadata, &d.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal decision metadata: %w", err)
	}
	if review.Valid && review.String != "" {
		d.Review = &moderation.Review{}
		if err := json.Unmarshal([]byte(review.String), d.Review); err != nil {
			return nil, fmt.Errorf("unmarshal decision review: %w", err)
		}
	}
	if overturn.Valid && overturn.String != "" {
		d.Overturn = &moderation.Overturn{}
		if err := json.Unmarshal([]byte(overturn.String), d.Overturn); err != nil {
			return nil, fmt.Errorf("unmarshal decision overturn: %w", err)
		}
	}

	return &d, nil
}

func marshalOptional(v any, present bool) (any, error) {
	if !present {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func unmarshalOptional(s sql.NullString, dst any) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
