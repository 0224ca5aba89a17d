package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fslongjin/billsync/pkg/model"
)

// SyncHistoryStore is the append-only audit log of synchronization runs.
type SyncHistoryStore struct {
	db *sql.DB
}

func NewSyncHistoryStore() *SyncHistoryStore {
	return &SyncHistoryStore{db: DB}
}

// Append writes run and sets its ID. A zero SyncTime is stamped with now.
func (s *SyncHistoryStore) Append(ctx context.Context, run *model.SyncRun) error {
	if run.SyncTime.IsZero() {
		run.SyncTime = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_history (sync_type, billing_month, status, synced_count, failed_count, total_count, message, duration, sync_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.SyncType, run.BillingMonth, run.Status, run.SyncedCount, run.FailedCount,
		run.TotalCount, run.Message, run.DurationSeconds, run.SyncTime.UTC())
	if err != nil {
		return fmt.Errorf("failed to append sync run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read sync run id: %w", err)
	}
	run.ID = id
	return nil
}

// List returns runs newest first, optionally filtered by type.
func (s *SyncHistoryStore) List(ctx context.Context, opts model.SyncRunListOptions) ([]model.SyncRun, int, error) {
	whereClause := ""
	var args []any
	if opts.Type != "" {
		whereClause = " WHERE sync_type = ?"
		args = append(args, opts.Type)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_history`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sync runs: %w", err)
	}

	page, pageSize := normalizePage(opts.Page, opts.PageSize)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sync_type, billing_month, status, synced_count, failed_count, total_count, message, duration, sync_time
		FROM sync_history`+whereClause+`
		ORDER BY sync_time DESC, id DESC
		LIMIT ? OFFSET ?
	`, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	runs := []model.SyncRun{}
	for rows.Next() {
		var run model.SyncRun
		if err := rows.Scan(&run.ID, &run.SyncType, &run.BillingMonth, &run.Status, &run.SyncedCount,
			&run.FailedCount, &run.TotalCount, &run.Message, &run.DurationSeconds, &run.SyncTime); err != nil {
			return nil, 0, fmt.Errorf("failed to scan sync run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate sync runs: %w", err)
	}
	return runs, total, nil
}

// DeleteOlderThan removes runs recorded before cutoff.
func (s *SyncHistoryStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_history WHERE sync_time < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean sync history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read clean result: %w", err)
	}
	return n, nil
}
