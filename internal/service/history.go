package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/fslongjin/billsync/internal/clock"
	"github.com/fslongjin/billsync/pkg/model"
)

type HistoryRepository interface {
	List(ctx context.Context, opts model.SyncRunListOptions) ([]model.SyncRun, int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryService exposes the audit log and prunes runs past retention.
type HistoryService struct {
	repo      HistoryRepository
	clock     clock.Clock
	retention time.Duration
}

func NewHistoryService(repo HistoryRepository, clk clock.Clock, retentionDays int) *HistoryService {
	if clk == nil {
		clk = clock.Real()
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &HistoryService{
		repo:      repo,
		clock:     clk,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

func (s *HistoryService) List(ctx context.Context, opts model.SyncRunListOptions) (*model.SyncRunListResponse, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	runs, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &model.SyncRunListResponse{
		Items:    runs,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.PageSize,
	}, nil
}

// Cleanup deletes runs older than the retention window.
func (s *HistoryService) Cleanup(ctx context.Context) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, s.clock.Now().Add(-s.retention))
}

// StartCleanup prunes history every interval until ctx is done.
func (s *HistoryService) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		logger := slog.Default().With("component", "history_cleanup")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Cleanup(ctx)
				if err != nil {
					logger.Error("scheduled history cleanup failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Info("pruned sync history", "deleted", n)
				}
			}
		}
	}()
}
