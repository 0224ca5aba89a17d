package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fslongjin/billsync/pkg/model"
)

func strPtr(s string) *string { return &s }

func testBill(no, txTime, product string) *model.Bill {
	b := &model.Bill{
		BillingNo:         no,
		CustomerID:        "C1",
		ModelProductName:  product,
		TokenResourceName: "pack-" + product,
		UsageCount:        10,
		APIUsage:          1,
		TimeWindow:        "a~b",
		TimeWindowStart:   "a",
		TimeWindowEnd:     "b",
	}
	if txTime != "" {
		b.TransactionTime = strPtr(txTime)
	}
	return b
}

func TestBillStoreInsertIfAbsent(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	s := NewBillStore()

	bill := testBill("BN-1", "2025-03-01 10:00:00.000", "GLM-4")
	inserted, err := s.InsertIfAbsent(ctx, bill)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Len(t, bill.ID, 32)
	assert.NotContains(t, bill.ID, "-")

	again, err := s.InsertIfAbsent(ctx, testBill("BN-1", "2025-03-02 10:00:00.000", "other"))
	require.NoError(t, err)
	assert.False(t, again)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	bills, total, err := s.List(ctx, model.BillListOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, "GLM-4", bills[0].ModelProductName)
	require.NotNil(t, bills[0].TransactionTime)
	assert.Equal(t, "2025-03-01 10:00:00.000", *bills[0].TransactionTime)
	assert.Equal(t, "a", bills[0].TimeWindowStart)
}

func TestBillStoreLatestTransactionTime(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	s := NewBillStore()

	latest, err := s.LatestTransactionTime(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	_, err = s.InsertIfAbsent(ctx, testBill("no-ts", "", "x"))
	require.NoError(t, err)
	latest, err = s.LatestTransactionTime(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for _, b := range []*model.Bill{
		testBill("a", "2025-03-01 09:59:59.999", "x"),
		testBill("b", "2025-03-01 10:00:00.000", "x"),
		testBill("c", "2025-02-28 23:00:00.000", "x"),
	} {
		_, err := s.InsertIfAbsent(ctx, b)
		require.NoError(t, err)
	}

	latest, err = s.LatestTransactionTime(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2025-03-01 10:00:00.000", *latest)
}

func TestBillStoreDeleteAll(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	s := NewBillStore()

	for _, no := range []string{"a", "b", "c"} {
		_, err := s.InsertIfAbsent(ctx, testBill(no, "2025-03-01 10:00:00.000", "x"))
		require.NoError(t, err)
	}

	n, err := s.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBillStoreListFiltersAndPaging(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	s := NewBillStore()

	fixtures := []*model.Bill{
		testBill("a", "2025-03-01 08:00:00.000", "GLM-4"),
		testBill("b", "2025-03-02 08:00:00.000", "GLM-4"),
		testBill("c", "2025-03-03 08:00:00.000", "CogView"),
		testBill("d", "2025-03-04 23:59:59.500", "GLM-4"),
	}
	for _, b := range fixtures {
		_, err := s.InsertIfAbsent(ctx, b)
		require.NoError(t, err)
	}

	bills, total, err := s.List(ctx, model.BillListOptions{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, bills, 2)
	assert.Equal(t, "d", bills[0].BillingNo)
	assert.Equal(t, "c", bills[1].BillingNo)

	bills, total, err = s.List(ctx, model.BillListOptions{ProductName: "GLM-4", StartDate: "2025-03-02", EndDate: "2025-03-04"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, bills, 2)
	assert.Equal(t, "d", bills[0].BillingNo)
	assert.Equal(t, "b", bills[1].BillingNo)

	products, err := s.Products(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"CogView", "GLM-4"}, products)
}

func TestBillStoreStats(t *testing.T) {
	initTestDB(t)
	ctx := context.Background()
	s := NewBillStore()

	for _, b := range []*model.Bill{
		testBill("old", "2025-02-01 00:00:00.000", "GLM-4"),
		testBill("n1", "2025-03-01 00:00:00.000", "GLM-4"),
		testBill("n2", "2025-03-02 00:00:00.000", "GLM-4"),
		testBill("n3", "2025-03-02 00:00:00.000", "CogView"),
	} {
		_, err := s.InsertIfAbsent(ctx, b)
		require.NoError(t, err)
	}

	stats, err := s.Stats(ctx, "2025-03-01 00:00:00.000")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.CallCount)
	assert.InDelta(t, 30, stats.TotalTokens, 1e-9)
	assert.InDelta(t, 3, stats.APIUsageCount, 1e-9)
	require.Len(t, stats.ResourceStats, 2)
	assert.Equal(t, "pack-GLM-4", stats.ResourceStats[0].TokenResourceName)
	assert.Equal(t, 2, stats.ResourceStats[0].CallCount)
}
