package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fslongjin/billsync/internal/billapi"
	internalmodel "github.com/fslongjin/billsync/internal/model"
	"github.com/fslongjin/billsync/internal/store"
	"github.com/fslongjin/billsync/pkg/model"
)

const (
	testCustomer = "C1"
	// t0 is 2023-11-14 22:13:20.000 UTC.
	t0 = int64(1700000000000)
)

func initTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, store.InitDB(filepath.Join(t.TempDir(), "billsync.db")))
	t.Cleanup(func() { _ = store.CloseDB() })
}

// remoteAt builds a remote row whose billing number embeds millis.
func remoteAt(millis int64) internalmodel.RemoteBill {
	return internalmodel.RemoteBill{
		BillingNo:         internalmodel.FlexString("B-" + testCustomer + strconv.FormatInt(millis, 10)),
		CustomerID:        testCustomer,
		ModelProductName:  "GLM-4",
		TokenResourceName: "pack-a",
		UsageCount:        10,
		APIUsage:          1,
	}
}

func remoteWithoutTimestamp(no string) internalmodel.RemoteBill {
	return internalmodel.RemoteBill{
		BillingNo:  internalmodel.FlexString(no),
		CustomerID: "missing",
	}
}

// fakeFetcher serves fixed pages. Page n is pages[n-1]; pages beyond the
// slice are empty.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    [][]internalmodel.RemoteBill
	total    int
	pageErr  map[int]error
	calls    []int
	waits    int
	block    chan struct{}
	requests []string
}

func newFakeFetcher(pages ...[]internalmodel.RemoteBill) *fakeFetcher {
	total := 0
	for _, p := range pages {
		total += len(p)
	}
	return &fakeFetcher{pages: pages, total: total, pageErr: map[int]error{}}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, period string, pageNum, pageSize int) (*internalmodel.BillPage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageNum)
	f.requests = append(f.requests, period)
	err := f.pageErr[pageNum]
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	page := &internalmodel.BillPage{Code: 200, Total: f.total}
	if pageNum-1 < len(f.pages) {
		page.Rows = f.pages[pageNum-1]
	}
	return page, nil
}

func (f *fakeFetcher) FetchAllPages(ctx context.Context, period string, pageSize int, onProgress func(current, total int)) (*billapi.AllPages, error) {
	all := &billapi.AllPages{}
	for pageNum := 1; ; pageNum++ {
		page, err := f.FetchPage(ctx, period, pageNum, pageSize)
		if err != nil {
			return nil, err
		}
		all.Pages++
		if len(page.Rows) == 0 {
			break
		}
		all.Rows = append(all.Rows, page.Rows...)
		all.Total = page.Total
		if onProgress != nil {
			onProgress(len(all.Rows), page.Total)
		}
		if len(page.Rows) < pageSize {
			break
		}
	}
	return all, nil
}

func (f *fakeFetcher) RandomDelay() time.Duration { return 0 }

func (f *fakeFetcher) Wait(ctx context.Context, _ time.Duration) error {
	f.mu.Lock()
	f.waits++
	f.mu.Unlock()
	return ctx.Err()
}

func (f *fakeFetcher) pageCalls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

// failingBills rejects inserts of the listed billing numbers.
type failingBills struct {
	*store.BillStore
	reject map[string]bool
}

func (b *failingBills) InsertIfAbsent(ctx context.Context, bill *model.Bill) (bool, error) {
	if b.reject[bill.BillingNo] {
		return false, errors.New("disk full")
	}
	return b.BillStore.InsertIfAbsent(ctx, bill)
}

func newTestSyncService(fetcher BillFetcher, bills BillRepository, pageSize int) *SyncService {
	return NewSyncService(fetcher, bills, store.NewSyncHistoryStore(), SyncOptions{
		PageSize: pageSize,
		Location: time.UTC,
	})
}

func listRuns(t *testing.T) []model.SyncRun {
	t.Helper()
	runs, _, err := store.NewSyncHistoryStore().List(context.Background(), model.SyncRunListOptions{PageSize: 100})
	require.NoError(t, err)
	return runs
}

func billingNo(millis int64) string {
	return fmt.Sprintf("B-%s%d", testCustomer, millis)
}
