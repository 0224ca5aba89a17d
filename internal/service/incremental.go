package service

import (
	"context"
	"fmt"
	"time"

	internalmodel "github.com/fslongjin/billsync/internal/model"
	"github.com/fslongjin/billsync/internal/transform"
	"github.com/fslongjin/billsync/pkg/model"
)

// walk is what a newest-first scan collected before reaching the high-water mark.
type walk struct {
	accepted []internalmodel.RemoteBill
	skipped  int
	seen     int
	pages    int
}

func (s *SyncService) incremental(ctx context.Context, period string, start time.Time) (*model.SyncResult, error) {
	hwm, err := s.bills.LatestTransactionTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read high-water mark: %w", err)
	}
	if hwm == nil {
		return nil, ErrPrerequisiteMissing
	}
	s.log(ctx).Info("resuming after high-water mark", "billing_month", period, "high_water_mark", *hwm)

	s.setProgress(model.SyncStageFetching, 0, 0, 0)
	w, err := s.walkNewerThan(ctx, period, *hwm)
	if err != nil {
		return nil, err
	}

	result := &model.SyncResult{
		Type:    model.SyncTypeIncremental,
		Skipped: w.skipped,
		Total:   w.seen,
		Pages:   w.pages,
	}
	if len(w.accepted) == 0 {
		s.setProgress(model.SyncStageCompleted, 0, 0, 100)
		result.Message = msgNoNewData
		result.DurationMs = s.now().Sub(start).Milliseconds()
		return result, nil
	}

	s.save(ctx, result, w.accepted)
	result.Message = fmt.Sprintf("synced %d new records", result.Synced)
	result.DurationMs = s.now().Sub(start).Milliseconds()
	return result, nil
}

// walkNewerThan pages through period newest first and collects records whose
// transaction time is strictly after hwm. The first record at or before hwm
// ends the walk, and the rest of its page is discarded. Records without a
// derivable timestamp are skipped and never end the walk.
func (s *SyncService) walkNewerThan(ctx context.Context, period, hwm string) (*walk, error) {
	w := &walk{}
	for pageNum := 1; ; pageNum++ {
		if pageNum > 1 {
			if err := s.fetcher.Wait(ctx, s.fetcher.RandomDelay()); err != nil {
				return nil, err
			}
		}

		page, err := s.fetcher.FetchPage(ctx, period, pageNum, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", pageNum, err)
		}
		w.pages++
		if len(page.Rows) == 0 {
			break
		}
		w.seen += len(page.Rows)

		stop := false
		for _, row := range page.Rows {
			ts, ok := transform.ExtractTransactionTime(row, s.loc)
			if !ok {
				w.skipped++
				continue
			}
			if stop {
				w.skipped++
				continue
			}
			if ts <= hwm {
				stop = true
				w.skipped++
				continue
			}
			w.accepted = append(w.accepted, row)
		}

		s.setProgress(model.SyncStageFetching, w.seen, page.Total, scaled(w.seen, page.Total, 0, 50))
		s.log(ctx).Debug("scanned page",
			"page", pageNum,
			"rows", len(page.Rows),
			"accepted", len(w.accepted),
			"reached_high_water_mark", stop,
		)

		if stop || len(page.Rows) < s.pageSize {
			break
		}
	}
	return w, nil
}
