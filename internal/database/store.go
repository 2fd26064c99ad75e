package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const millisPerHour = 3600_000

// Store defines the interface for message persistence and retrieval.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// SaveMessage inserts a new message record inside its own transaction.
	SaveMessage(ctx context.Context, message *Message) error

	// GetTranscriptByCount returns the most recent 'limit' messages as
	// "sourceName: message" lines in chronological (ascending) order.
	GetTranscriptByCount(ctx context.Context, limit int) ([]string, error)

	// GetTranscriptSince returns all messages with timestamp >= startMs as
	// "sourceName: message" lines in chronological (ascending) order.
	GetTranscriptSince(ctx context.Context, startMs int64) ([]string, error)

	// DeleteOlderThan removes messages older than maxAgeHours relative to
	// nowMs. Returns the number of rows removed.
	DeleteOlderThan(ctx context.Context, maxAgeHours int, nowMs int64) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveMessage inserts a new message record.
// Each call acquires its own transaction so interleaved access from the
// connection manager and the maintenance task stays safe.
func (s *sqlxStore) SaveMessage(ctx context.Context, message *Message) error {
	if message == nil {
		return fmt.Errorf("cannot save nil message")
	}
	if message.SourceName == "" {
		return fmt.Errorf("message must have a sourceName")
	}
	if message.Message == "" {
		return fmt.Errorf("message must have non-empty text")
	}
	if message.GroupID == "" {
		return fmt.Errorf("message must have a groupId")
	}

	message.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving message",
			"group_id", message.GroupID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
				s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
			}
		}
	}()

	query := `
        INSERT INTO messages (timestamp, sourceNumber, sourceName, message, groupId, createdAt)
        VALUES (:timestamp, :sourceNumber, :sourceName, :message, :groupId, :createdAt);
    `

	result, err := tx.NamedExecContext(ctx, query, message)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving message",
			"group_id", message.GroupID, "source_name", message.SourceName, "error", err)
		return fmt.Errorf("failed to save message: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		message.ID = uint(id)
	} else {
		s.logger.WarnContext(ctx, "Could not retrieve last insert ID after saving message",
			"group_id", message.GroupID, "error", err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction",
			"group_id", message.GroupID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	tx = nil

	s.logger.DebugContext(ctx, "Message saved successfully",
		"message_id", message.ID, "group_id", message.GroupID)
	return nil
}

// GetTranscriptByCount selects the newest rows by timestamp descending and
// reverses them before returning. Downstream summarization expects
// chronological order, so the reversal is part of the contract.
func (s *sqlxStore) GetTranscriptByCount(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var lines []string
	query := `
        SELECT sourceName || ': ' || message
        FROM messages
        ORDER BY timestamp DESC
        LIMIT ?;
    `
	if err := s.db.SelectContext(ctx, &lines, query, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error fetching transcript by count", "limit", limit, "error", err)
		return nil, fmt.Errorf("failed to fetch last %d messages: %w", limit, err)
	}

	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}

	s.logger.DebugContext(ctx, "Fetched transcript by count", "limit", limit, "rows", len(lines))
	return lines, nil
}

// GetTranscriptSince selects rows with timestamp >= startMs, already ascending.
func (s *sqlxStore) GetTranscriptSince(ctx context.Context, startMs int64) ([]string, error) {
	var lines []string
	query := `
        SELECT sourceName || ': ' || message
        FROM messages
        WHERE timestamp >= ?
        ORDER BY timestamp ASC;
    `
	if err := s.db.SelectContext(ctx, &lines, query, startMs); err != nil {
		s.logger.ErrorContext(ctx, "Error fetching transcript since timestamp", "start_ms", startMs, "error", err)
		return nil, fmt.Errorf("failed to fetch messages since %d: %w", startMs, err)
	}

	s.logger.DebugContext(ctx, "Fetched transcript since timestamp", "start_ms", startMs, "rows", len(lines))
	return lines, nil
}

// DeleteOlderThan removes rows with timestamp < nowMs - maxAgeHours.
// It runs after every successfully persisted message, so retention is
// driven by traffic rather than wall-clock polling.
func (s *sqlxStore) DeleteOlderThan(ctx context.Context, maxAgeHours int, nowMs int64) (int64, error) {
	cutoff := nowMs - int64(maxAgeHours)*millisPerHour

	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE timestamp < ?;`, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting expired messages", "cutoff_ms", cutoff, "error", err)
		return 0, fmt.Errorf("failed to delete messages older than %d hours: %w", maxAgeHours, err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to determine rows removed by retention sweep: %w", err)
	}

	if removed > 0 {
		s.logger.InfoContext(ctx, "Retention sweep removed expired messages",
			"removed", removed, "max_age_hours", maxAgeHours)
	}
	return removed, nil
}

// RunSQLMaintenance performs VACUUM and ANALYZE on the database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Running SQL maintenance (VACUUM, ANALYZE)")

	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		return fmt.Errorf("vacuum failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}

	s.logger.InfoContext(ctx, "SQL maintenance completed")
	return nil
}
