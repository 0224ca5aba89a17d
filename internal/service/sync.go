package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fslongjin/billsync/internal/logx"
	"github.com/fslongjin/billsync/internal/metrics"
	internalmodel "github.com/fslongjin/billsync/internal/model"
	"github.com/fslongjin/billsync/internal/transform"
	"github.com/fslongjin/billsync/pkg/model"
)

const (
	maxReportedErrors = 10
	auditTimeout      = 5 * time.Second
	subscriberBuffer  = 32

	msgNoDataFound = "no data found for the billing month"
	msgNoNewData   = "no new data to sync"
)

type SyncOptions struct {
	PageSize int
	Location *time.Location
	Metrics  *metrics.SyncMetrics
}

// SyncService runs full and incremental synchronizations. At most one run is
// active per instance; concurrent callers get ErrConflict.
type SyncService struct {
	fetcher  BillFetcher
	bills    BillRepository
	history  SyncHistoryRepository
	metrics  *metrics.SyncMetrics
	pageSize int
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger

	mu          sync.Mutex
	syncing     bool
	progress    model.SyncProgress
	lastResult  *model.SyncResult
	lastError   string
	subscribers map[int]chan model.SyncProgress
	nextSubID   int

	background sync.WaitGroup
}

func NewSyncService(fetcher BillFetcher, bills BillRepository, history SyncHistoryRepository, opts SyncOptions) *SyncService {
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &SyncService{
		fetcher:     fetcher,
		bills:       bills,
		history:     history,
		metrics:     opts.Metrics,
		pageSize:    opts.PageSize,
		loc:         opts.Location,
		now:         time.Now,
		logger:      slog.Default().With("component", "sync"),
		progress:    model.SyncProgress{Stage: model.SyncStageIdle},
		subscribers: make(map[int]chan model.SyncProgress),
	}
}

func (s *SyncService) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.syncing {
		return false
	}
	s.syncing = true
	return true
}

func (s *SyncService) release() {
	s.mu.Lock()
	s.syncing = false
	s.progress = model.SyncProgress{Stage: model.SyncStageIdle}
	snapshot := s.progress
	s.mu.Unlock()
	s.publish(snapshot)
}

func (s *SyncService) setProgress(stage model.SyncStage, current, total, percentage int) {
	s.mu.Lock()
	s.progress = model.SyncProgress{Stage: stage, Current: current, Total: total, Percentage: percentage}
	snapshot := s.progress
	s.mu.Unlock()
	s.publish(snapshot)
}

func (s *SyncService) publish(p model.SyncProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- p:
		default:
		}
	}
}

// Progress reports whether a run is active, its stage, and the outcome of the
// last finished run.
func (s *SyncService) Progress() model.ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := model.ProgressSnapshot{
		Syncing:   s.syncing,
		Progress:  s.progress,
		LastError: s.lastError,
	}
	if s.lastResult != nil {
		r := *s.lastResult
		snap.LastResult = &r
	}
	return snap
}

// Subscribe streams progress changes. Slow readers miss intermediate updates.
// The returned func unsubscribes and closes the channel.
func (s *SyncService) Subscribe() (<-chan model.SyncProgress, func()) {
	ch := make(chan model.SyncProgress, subscriberBuffer)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	ch <- s.progress
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// RunFull wipes the local store and re-ingests every record of period.
func (s *SyncService) RunFull(ctx context.Context, period string) (*model.SyncResult, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	if !s.tryAcquire() {
		s.metrics.ObserveRun(string(model.SyncTypeFull), metrics.StatusConflict, 0)
		return nil, ErrConflict
	}
	defer s.release()

	return s.runFull(ctx, period)
}

// StartFull acquires the guard and runs a full sync in the background. ctx
// must outlive the caller's request. The outcome is exposed by Progress.
func (s *SyncService) StartFull(ctx context.Context, period string) error {
	if err := validatePeriod(period); err != nil {
		return err
	}
	if !s.tryAcquire() {
		s.metrics.ObserveRun(string(model.SyncTypeFull), metrics.StatusConflict, 0)
		return ErrConflict
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer s.release()
		_, _ = s.runFull(ctx, period)
	}()
	return nil
}

// Wait blocks until background runs started by StartFull have finished.
func (s *SyncService) Wait() {
	s.background.Wait()
}

// RunIncremental ingests records newer than the newest stored transaction time.
func (s *SyncService) RunIncremental(ctx context.Context, period string) (*model.SyncResult, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	if !s.tryAcquire() {
		s.metrics.ObserveRun(string(model.SyncTypeIncremental), metrics.StatusConflict, 0)
		return nil, ErrConflict
	}
	defer s.release()

	start := s.now()
	s.log(ctx).Info("incremental sync started", "billing_month", period)
	result, err := s.incremental(ctx, period, start)
	s.finish(ctx, model.SyncTypeIncremental, period, start, result, err)
	return result, err
}

func (s *SyncService) runFull(ctx context.Context, period string) (*model.SyncResult, error) {
	start := s.now()
	s.log(ctx).Info("full sync started", "billing_month", period)
	result, err := s.full(ctx, period, start)
	s.finish(ctx, model.SyncTypeFull, period, start, result, err)
	return result, err
}

func (s *SyncService) full(ctx context.Context, period string, start time.Time) (*model.SyncResult, error) {
	s.setProgress(model.SyncStageClearing, 0, 0, 5)
	deleted, err := s.bills.DeleteAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to clear local bills: %w", err)
	}
	s.setProgress(model.SyncStageClearing, int(deleted), int(deleted), 5)
	s.log(ctx).Info("cleared local bills", "deleted", deleted)

	s.setProgress(model.SyncStageFetching, 0, 0, 5)
	all, err := s.fetcher.FetchAllPages(ctx, period, s.pageSize, func(current, total int) {
		s.setProgress(model.SyncStageFetching, current, total, scaled(current, total, 0, 50))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bills: %w", err)
	}

	result := &model.SyncResult{Type: model.SyncTypeFull, Total: len(all.Rows), Pages: all.Pages}
	if len(all.Rows) == 0 {
		s.setProgress(model.SyncStageCompleted, 0, 0, 100)
		result.Message = msgNoDataFound
		result.DurationMs = s.now().Sub(start).Milliseconds()
		return result, nil
	}

	s.save(ctx, result, all.Rows)
	result.Message = fmt.Sprintf("synced %d of %d records", result.Synced, result.Total)
	result.DurationMs = s.now().Sub(start).Milliseconds()
	return result, nil
}

// save persists transformed records one by one. Insert failures are counted
// and do not abort the run.
func (s *SyncService) save(ctx context.Context, result *model.SyncResult, rows []internalmodel.RemoteBill) {
	total := len(rows)
	s.setProgress(model.SyncStageSaving, 0, total, 50)
	for i, row := range rows {
		bill := transform.ToBill(row, s.loc)
		if _, err := s.bills.InsertIfAbsent(ctx, &bill); err != nil {
			result.Failed++
			if len(result.Errors) < maxReportedErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", bill.BillingNo, err))
			}
			s.log(ctx).Error("failed to save bill", "billing_no", bill.BillingNo, "error", err)
		} else {
			result.Synced++
		}
		s.setProgress(model.SyncStageSaving, i+1, total, scaled(i+1, total, 50, 100))
	}
	s.setProgress(model.SyncStageCompleted, total, total, 100)
}

// finish appends the audit row and remembers the outcome. The audit write
// survives cancellation of ctx.
func (s *SyncService) finish(ctx context.Context, syncType model.SyncType, period string, start time.Time, result *model.SyncResult, runErr error) {
	elapsed := s.now().Sub(start)
	run := &model.SyncRun{
		SyncType:     syncType,
		BillingMonth: period,
		SyncTime:     s.now(),
	}

	s.mu.Lock()
	if runErr != nil {
		run.Status = model.SyncStatusFailure
		run.Message = runErr.Error()
		s.lastResult = nil
		s.lastError = runErr.Error()
	} else {
		run.Status = model.SyncStatusSuccess
		run.SyncedCount = result.Synced
		run.FailedCount = result.Failed
		run.TotalCount = result.Total
		run.Message = result.Message
		run.DurationSeconds = int(elapsed / time.Second)
		r := *result
		s.lastResult = &r
		s.lastError = ""
	}
	s.mu.Unlock()

	if runErr != nil {
		s.metrics.ObserveRun(string(syncType), metrics.StatusFailure, elapsed)
		s.log(ctx).Error("sync failed", "type", syncType, "billing_month", period, "error", runErr)
	} else {
		s.metrics.ObserveRun(string(syncType), metrics.StatusSuccess, elapsed)
		s.metrics.AddRecords(string(syncType), result.Synced, result.Failed, result.Skipped, result.Pages)
		s.log(ctx).Info("sync completed",
			"type", syncType,
			"billing_month", period,
			"synced", result.Synced,
			"failed", result.Failed,
			"skipped", result.Skipped,
			"pages", result.Pages,
			"duration_ms", result.DurationMs,
		)
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	if err := s.history.Append(auditCtx, run); err != nil {
		s.log(ctx).Error("failed to record sync history", "type", syncType, "error", err)
	}
}

func (s *SyncService) log(ctx context.Context) *slog.Logger {
	return logx.With(ctx, s.logger)
}

// scaled maps current/total onto [from, to].
func scaled(current, total, from, to int) int {
	if total <= 0 {
		return from
	}
	if current > total {
		current = total
	}
	return from + current*(to-from)/total
}
