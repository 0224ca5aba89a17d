package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fslongjin/billsync/pkg/model"
)

const DefaultFrequencySeconds = 10

// AutoSyncStore holds the single schedule row.
type AutoSyncStore struct {
	db *sql.DB
}

func NewAutoSyncStore() *AutoSyncStore {
	return &AutoSyncStore{db: DB}
}

// Get returns the stored schedule, or a disabled default with ID 0 when none exists.
func (s *AutoSyncStore) Get(ctx context.Context) (*model.AutoSyncConfig, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, enabled, frequency_seconds, next_sync_time, last_sync_time, created_at, updated_at
		FROM auto_sync_config ORDER BY id DESC LIMIT 1
	`)
	cfg, err := scanAutoSync(row)
	if err == sql.ErrNoRows {
		return &model.AutoSyncConfig{Enabled: false, FrequencySeconds: DefaultFrequencySeconds}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auto sync config: %w", err)
	}
	return cfg, nil
}

// Replace deletes every schedule and inserts cfg in one transaction.
func (s *AutoSyncStore) Replace(ctx context.Context, cfg *model.AutoSyncConfig) error {
	now := time.Now().UTC()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM auto_sync_config`); err != nil {
		return fmt.Errorf("failed to clear auto sync config: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO auto_sync_config (enabled, frequency_seconds, next_sync_time, last_sync_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, cfg.Enabled, cfg.FrequencySeconds, utcPtr(cfg.NextSyncTime), utcPtr(cfg.LastSyncTime), cfg.CreatedAt.UTC(), cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert auto sync config: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read auto sync config id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit auto sync config: %w", err)
	}
	cfg.ID = id
	return nil
}

// Due returns enabled schedules whose next sync time is at or before now.
func (s *AutoSyncStore) Due(ctx context.Context, now time.Time) ([]model.AutoSyncConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, enabled, frequency_seconds, next_sync_time, last_sync_time, created_at, updated_at
		FROM auto_sync_config
		WHERE enabled = 1 AND next_sync_time IS NOT NULL
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}
	defer rows.Close()

	due := []model.AutoSyncConfig{}
	for rows.Next() {
		cfg, err := scanAutoSync(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		if !cfg.NextSyncTime.After(now) {
			due = append(due, *cfg)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedules: %w", err)
	}
	return due, nil
}

// MarkSynced records a completed scheduled run and the next due time.
func (s *AutoSyncStore) MarkSynced(ctx context.Context, id int64, last, next time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE auto_sync_config SET last_sync_time = ?, next_sync_time = ?, updated_at = ? WHERE id = ?
	`, last.UTC(), next.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update schedule %d: %w", id, err)
	}
	return nil
}

// SetNextSync moves the next due time of schedule id.
func (s *AutoSyncStore) SetNextSync(ctx context.Context, id int64, next time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE auto_sync_config SET next_sync_time = ?, updated_at = ? WHERE id = ?
	`, next.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update schedule %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAutoSync(row rowScanner) (*model.AutoSyncConfig, error) {
	var (
		cfg        model.AutoSyncConfig
		next, last sql.NullTime
	)
	if err := row.Scan(&cfg.ID, &cfg.Enabled, &cfg.FrequencySeconds, &next, &last, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		return nil, err
	}
	if next.Valid {
		cfg.NextSyncTime = &next.Time
	}
	if last.Valid {
		cfg.LastSyncTime = &last.Time
	}
	return &cfg, nil
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
