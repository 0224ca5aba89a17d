package service

import (
	"context"
	"time"

	"github.com/fslongjin/billsync/internal/billapi"
	internalmodel "github.com/fslongjin/billsync/internal/model"
	"github.com/fslongjin/billsync/pkg/model"
)

// BillFetcher reads the remote listing.
type BillFetcher interface {
	FetchPage(ctx context.Context, period string, pageNum, pageSize int) (*internalmodel.BillPage, error)
	FetchAllPages(ctx context.Context, period string, pageSize int, onProgress func(current, total int)) (*billapi.AllPages, error)
	RandomDelay() time.Duration
	Wait(ctx context.Context, d time.Duration) error
}

// BillRepository is the local record store used by synchronization.
type BillRepository interface {
	InsertIfAbsent(ctx context.Context, bill *model.Bill) (bool, error)
	LatestTransactionTime(ctx context.Context) (*string, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type SyncHistoryRepository interface {
	Append(ctx context.Context, run *model.SyncRun) error
}

type ScheduleRepository interface {
	Get(ctx context.Context) (*model.AutoSyncConfig, error)
	Replace(ctx context.Context, cfg *model.AutoSyncConfig) error
	Due(ctx context.Context, now time.Time) ([]model.AutoSyncConfig, error)
	MarkSynced(ctx context.Context, id int64, last, next time.Time) error
	SetNextSync(ctx context.Context, id int64, next time.Time) error
}

// IncrementalRunner is the part of SyncService the scheduler drives.
type IncrementalRunner interface {
	RunIncremental(ctx context.Context, period string) (*model.SyncResult, error)
}
