package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/tickgrid/tickgrid/internal/model"
)

// TickHistoryStorage defines the interface for fired-boundary records
type TickHistoryStorage interface {
	// Store stores one fired boundary
	Store(ctx context.Context, event *model.TickEvent) error

	// Get retrieves a record by ID
	Get(ctx context.Context, id string) (*model.TickEvent, error)

	// List retrieves records for a schedule, newest first; an empty
	// schedule matches all
	List(ctx context.Context, schedule string, offset, limit int) ([]*model.TickEvent, error)

	// Count returns the number of records for a schedule
	Count(ctx context.Context, schedule string) (int, error)

	// LastForSchedule returns the most recent record for a schedule
	LastForSchedule(ctx context.Context, schedule string) (*model.TickEvent, error)

	// DeleteBefore deletes records whose boundary is older than beforeMS
	DeleteBefore(ctx context.Context, beforeMS int64) error
}

// SQLiteTickHistory implements TickHistoryStorage using SQLite
type SQLiteTickHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteTickHistory creates a new SQLite-based tick history storage
func NewSQLiteTickHistory(logger *zap.Logger, dbPath string) (*SQLiteTickHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteTickHistory{
		logger: logger,
		db:     db,
	}

	if err := storage.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return storage, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteTickHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tick_history (
			id TEXT PRIMARY KEY,
			schedule TEXT NOT NULL,
			unit TEXT NOT NULL,
			period INTEGER NOT NULL,
			boundary_ms INTEGER NOT NULL,
			fired_at_ms INTEGER NOT NULL,
			drift_ms INTEGER NOT NULL,
			sequence INTEGER NOT NULL,
			error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_tick_history_schedule ON tick_history(schedule);
		CREATE INDEX IF NOT EXISTS idx_tick_history_boundary_ms ON tick_history(boundary_ms);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Store implements TickHistoryStorage.Store
func (s *SQLiteTickHistory) Store(ctx context.Context, event *model.TickEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tick_history (
			id, schedule, unit, period, boundary_ms, fired_at_ms, drift_ms, sequence, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Schedule,
		event.Unit,
		event.Period,
		event.BoundaryMS,
		event.FiredAtMS,
		event.DriftMS,
		event.Sequence,
		sql.NullString{String: event.Error, Valid: event.Error != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to store tick history: %w", err)
	}
	return nil
}

// Get implements TickHistoryStorage.Get
func (s *SQLiteTickHistory) Get(ctx context.Context, id string) (*model.TickEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, schedule, unit, period, boundary_ms, fired_at_ms, drift_ms, sequence, error
		FROM tick_history
		WHERE id = ?`, id)

	event, err := scanTickEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan tick history: %w", err)
	}
	return event, nil
}

// List implements TickHistoryStorage.List
func (s *SQLiteTickHistory) List(ctx context.Context, schedule string, offset, limit int) ([]*model.TickEvent, error) {
	query := `
		SELECT id, schedule, unit, period, boundary_ms, fired_at_ms, drift_ms, sequence, error
		FROM tick_history`
	args := make([]interface{}, 0, 3)
	if schedule != "" {
		query += " WHERE schedule = ?"
		args = append(args, schedule)
	}
	query += " ORDER BY boundary_ms DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tick history: %w", err)
	}
	defer rows.Close()

	var events []*model.TickEvent
	for rows.Next() {
		event, err := scanTickEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tick history: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return events, nil
}

// Count implements TickHistoryStorage.Count
func (s *SQLiteTickHistory) Count(ctx context.Context, schedule string) (int, error) {
	query := "SELECT COUNT(*) FROM tick_history"
	args := make([]interface{}, 0, 1)
	if schedule != "" {
		query += " WHERE schedule = ?"
		args = append(args, schedule)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tick history: %w", err)
	}
	return count, nil
}

// LastForSchedule implements TickHistoryStorage.LastForSchedule
func (s *SQLiteTickHistory) LastForSchedule(ctx context.Context, schedule string) (*model.TickEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, schedule, unit, period, boundary_ms, fired_at_ms, drift_ms, sequence, error
		FROM tick_history
		WHERE schedule = ?
		ORDER BY boundary_ms DESC
		LIMIT 1`, schedule)

	event, err := scanTickEvent(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan tick history: %w", err)
	}
	return event, nil
}

// DeleteBefore implements TickHistoryStorage.DeleteBefore
func (s *SQLiteTickHistory) DeleteBefore(ctx context.Context, beforeMS int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tick_history WHERE boundary_ms < ?", beforeMS)
	if err != nil {
		return fmt.Errorf("failed to delete tick history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old tick history records",
		zap.Int64("before_ms", beforeMS),
		zap.Int64("deleted", affected))

	return nil
}

// Close closes the database connection
func (s *SQLiteTickHistory) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTickEvent(row rowScanner) (*model.TickEvent, error) {
	event := &model.TickEvent{}
	var errStr sql.NullString

	err := row.Scan(
		&event.ID,
		&event.Schedule,
		&event.Unit,
		&event.Period,
		&event.BoundaryMS,
		&event.FiredAtMS,
		&event.DriftMS,
		&event.Sequence,
		&errStr,
	)
	if err != nil {
		return nil, err
	}
	if errStr.Valid {
		event.Error = errStr.String
	}
	return event, nil
}
