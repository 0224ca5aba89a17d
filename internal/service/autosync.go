package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fslongjin/billsync/internal/clock"
	"github.com/fslongjin/billsync/internal/logx"
	"github.com/fslongjin/billsync/internal/metrics"
	"github.com/fslongjin/billsync/pkg/model"
)

const (
	// dueSlack pushes the next run past the tick that would otherwise land
	// exactly on it.
	dueSlack = 500 * time.Millisecond
)

var allowedFrequencies = map[int]struct{}{5: {}, 10: {}, 60: {}, 300: {}}

// AutoSyncService polls the schedule and runs incremental syncs for the
// current month when one is due.
type AutoSyncService struct {
	runner    IncrementalRunner
	schedules ScheduleRepository
	clock     clock.Clock
	metrics   *metrics.SyncMetrics
	loc       *time.Location
	logger    *slog.Logger

	processing atomic.Bool

	mu       sync.Mutex
	running  bool
	interval time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewAutoSyncService(runner IncrementalRunner, schedules ScheduleRepository, clk clock.Clock, m *metrics.SyncMetrics, loc *time.Location) *AutoSyncService {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.Local
	}
	return &AutoSyncService{
		runner:    runner,
		schedules: schedules,
		clock:     clk,
		metrics:   m,
		loc:       loc,
		logger:    slog.Default().With("component", "auto_sync"),
	}
}

// Start begins polling every interval. Calling Start on a running scheduler is a no-op.
func (s *AutoSyncService) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.interval = interval
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.Tick(loopCtx)
				}()
			}
		}
	}()
	s.logger.Info("auto sync scheduler started", "interval", interval.String())
}

// Stop halts polling and waits for an in-flight tick to return.
func (s *AutoSyncService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("auto sync scheduler stopped")
}

// Tick runs every due schedule once. Overlapping ticks are dropped.
func (s *AutoSyncService) Tick(ctx context.Context) {
	if !s.processing.CompareAndSwap(false, true) {
		s.metrics.IncSchedulerTick(metrics.TickSkippedBusy)
		return
	}
	defer s.processing.Store(false)

	now := s.clock.Now()
	due, err := s.schedules.Due(ctx, now)
	if err != nil {
		s.metrics.IncSchedulerTick(metrics.TickError)
		s.logger.Error("failed to load due schedules", "error", err)
		return
	}
	if len(due) == 0 {
		s.metrics.IncSchedulerTick(metrics.TickIdle)
		return
	}

	s.metrics.IncSchedulerTick(metrics.TickRan)
	for _, cfg := range due {
		s.runOne(ctx, cfg)
	}
}

func (s *AutoSyncService) runOne(ctx context.Context, cfg model.AutoSyncConfig) {
	start := s.clock.Now()
	period := start.In(s.loc).Format("2006-01")
	ctx = logx.WithRequestID(ctx, logx.NewRequestID())
	logger := logx.With(ctx, s.logger)

	// Only page fetches carry a timeout; the run itself is bounded by the loop.
	result, err := s.runner.RunIncremental(ctx, period)

	switch {
	case err != nil:
		logger.Warn("scheduled incremental sync failed", "schedule_id", cfg.ID, "billing_month", period, "error", err)
	default:
		logger.Info("scheduled incremental sync finished",
			"schedule_id", cfg.ID,
			"billing_month", period,
			"synced", result.Synced,
			"skipped", result.Skipped,
			"message", result.Message,
		)
	}

	next := start.Add(time.Duration(cfg.FrequencySeconds)*time.Second + dueSlack)
	markCtx, markCancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer markCancel()
	if err := s.schedules.MarkSynced(markCtx, cfg.ID, start, next); err != nil {
		logger.Error("failed to advance schedule", "schedule_id", cfg.ID, "error", err)
	}
}

// SaveConfig replaces the schedule. An enabled schedule becomes due one
// period from now.
func (s *AutoSyncService) SaveConfig(ctx context.Context, enabled bool, frequencySeconds int) (*model.AutoSyncConfig, error) {
	if _, ok := allowedFrequencies[frequencySeconds]; !ok {
		return nil, ErrInvalidFrequency
	}

	cfg := &model.AutoSyncConfig{Enabled: enabled, FrequencySeconds: frequencySeconds}
	if enabled {
		next := s.clock.Now().Add(time.Duration(frequencySeconds)*time.Second + dueSlack)
		cfg.NextSyncTime = &next
	}
	if err := s.schedules.Replace(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to save auto sync config: %w", err)
	}
	s.logger.Info("auto sync config saved", "enabled", enabled, "frequency_seconds", frequencySeconds)
	return cfg, nil
}

func (s *AutoSyncService) GetConfig(ctx context.Context) (*model.AutoSyncConfig, error) {
	return s.schedules.Get(ctx)
}

// TriggerNow makes the enabled schedule due on the next tick.
func (s *AutoSyncService) TriggerNow(ctx context.Context) error {
	cfg, err := s.schedules.Get(ctx)
	if err != nil {
		return err
	}
	if cfg.ID == 0 || !cfg.Enabled {
		return ErrScheduleDisabled
	}
	return s.schedules.SetNextSync(ctx, cfg.ID, s.clock.Now())
}

func (s *AutoSyncService) Status(ctx context.Context) (*model.AutoSyncStatus, error) {
	cfg, err := s.schedules.Get(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	status := &model.AutoSyncStatus{
		Running:         s.running,
		Processing:      s.processing.Load(),
		CheckIntervalMs: s.interval.Milliseconds(),
		Config:          cfg,
	}
	s.mu.Unlock()
	return status, nil
}
