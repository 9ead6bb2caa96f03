package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lyric-companion/backend/internal/model"
)

const connectionColumns = `id, remote_addr, user_agent, status, close_reason, frames_in, frames_out, connected_at, closed_at`

// ConnectionRepository provides data access for the connection audit log.
type ConnectionRepository struct {
	db *sql.DB
}

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(db *sql.DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

// Create inserts an open connection record.
func (r *ConnectionRepository) Create(ctx context.Context, rec *model.ConnectionRecord) error {
	query := `
		INSERT INTO connections (id, remote_addr, user_agent, status, frames_in, frames_out, connected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID,
		rec.RemoteAddr,
		rec.UserAgent,
		rec.Status,
		rec.FramesIn,
		rec.FramesOut,
		rec.ConnectedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create connection: %w", err)
	}

	return nil
}

// GetByID retrieves a connection record by its session ID.
func (r *ConnectionRepository) GetByID(ctx context.Context, id string) (*model.ConnectionRecord, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = ?`

	rec, err := scanConnection(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return rec, nil
}

// List returns up to limit records, most recent first.
func (r *ConnectionRepository) List(ctx context.Context, limit int) ([]*model.ConnectionRecord, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections ORDER BY connected_at DESC, id LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var records []*model.ConnectionRecord
	for rows.Next() {
		rec, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating connections: %w", err)
	}

	return records, nil
}

// Finish marks a connection closed and stores its counters.
func (r *ConnectionRepository) Finish(ctx context.Context, id string, summary model.ConnectionSummary) error {
	query := `
		UPDATE connections
		SET status = ?, close_reason = ?, frames_in = ?, frames_out = ?, closed_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		model.SessionStatusClosed,
		summary.CloseReason,
		summary.FramesIn,
		summary.FramesOut,
		summary.ClosedAt.UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish connection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

// CountOpen returns the number of records still marked open.
func (r *ConnectionRepository) CountOpen(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM connections WHERE status = ?`, model.SessionStatusOpen).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open connections: %w", err)
	}

	return count, nil
}

// MarkStaleClosed closes records left open by a previous process. State is
// not persisted, so none of those connections can still be live.
func (r *ConnectionRepository) MarkStaleClosed(ctx context.Context, at time.Time) (int64, error) {
	query := `
		UPDATE connections
		SET status = ?, close_reason = ?, closed_at = ?
		WHERE status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		model.SessionStatusClosed,
		model.CloseReasonShutdown,
		at.UTC(),
		model.SessionStatusOpen,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to close stale connections: %w", err)
	}

	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConnection(row rowScanner) (*model.ConnectionRecord, error) {
	rec := &model.ConnectionRecord{}
	var userAgent sql.NullString
	var closeReason sql.NullString
	var closedAt sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.RemoteAddr,
		&userAgent,
		&rec.Status,
		&closeReason,
		&rec.FramesIn,
		&rec.FramesOut,
		&rec.ConnectedAt,
		&closedAt,
	)
	if err != nil {
		return nil, err
	}

	if userAgent.Valid {
		rec.UserAgent = userAgent.String
	}
	if closeReason.Valid {
		rec.CloseReason = model.CloseReason(closeReason.String)
	}
	if closedAt.Valid {
		t := closedAt.Time
		rec.ClosedAt = &t
	}

	return rec, nil
}
