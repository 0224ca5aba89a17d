package transform

import (
	"testing"
	"time"

	"github.com/fslongjin/billsync/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func remote(billingNo, customerID string) model.RemoteBill {
	return model.RemoteBill{
		BillingNo:  model.FlexString(billingNo),
		CustomerID: model.FlexString(customerID),
	}
}

func TestExtractTransactionTime(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)

	tests := []struct {
		name      string
		billingNo string
		customer  string
		loc       *time.Location
		want      string
		wantOK    bool
	}{
		{"utc", "ORDC1" + "1700000000000" + "XYZ", "C1", time.UTC, "2023-11-14 22:13:20.000", true},
		{"offset zone", "C1" + "1700000000123", "C1", shanghai, "2023-11-15 06:13:20.123", true},
		{"epoch", "pre-abc0000000000000", "abc", time.UTC, "1970-01-01 00:00:00.000", true},
		{"customer missing", "ORD9991700000000000", "C1", time.UTC, "", false},
		{"too short", "ORDC1170000000000", "C1", time.UTC, "", false},
		{"not numeric", "ORDC117000000000xx", "C1", time.UTC, "", false},
		{"empty billing no", "", "C1", time.UTC, "", false},
		{"empty customer", "ORDC11700000000000", "", time.UTC, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractTransactionTime(remote(tt.billingNo, tt.customer), tt.loc)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractTransactionTimeUsesFirstOccurrence(t *testing.T) {
	got, ok := ExtractTransactionTime(remote("C1"+"1700000000000"+"C1"+"0000000000000", "C1"), time.UTC)
	require.True(t, ok)
	assert.Equal(t, "2023-11-14 22:13:20.000", got)
}

func TestExtractTransactionTimeRoundTrip(t *testing.T) {
	at := time.Date(2025, 3, 9, 17, 4, 5, 678*int(time.Millisecond), time.UTC)
	billingNo := "EB" + "cust42" + "1741539845678" + "0001"
	require.Equal(t, at.UnixMilli(), int64(1741539845678))

	got, ok := ExtractTransactionTime(remote(billingNo, "cust42"), time.UTC)
	require.True(t, ok)
	assert.Equal(t, at.Format(TimestampLayout), got)
}

func TestTimestampsOrderLexicographically(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := base.Format(TimestampLayout)
	for _, d := range []time.Duration{time.Millisecond, time.Second, time.Hour, 40 * 24 * time.Hour} {
		next := base.Add(d).Format(TimestampLayout)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestToBill(t *testing.T) {
	row := remote("X-C91700000000000", "C9")
	row.TimeWindow = " 2025-01-01 10:00:00 ~ 2025-01-01 11:00:00 "
	row.ModelProductName = "GLM-4"
	row.UsageCount = 42

	bill := ToBill(row, time.UTC)

	assert.Equal(t, "X-C91700000000000", bill.BillingNo)
	assert.Equal(t, "GLM-4", bill.ModelProductName)
	assert.InDelta(t, 42, bill.UsageCount, 1e-9)
	assert.Equal(t, "2025-01-01 10:00:00", bill.TimeWindowStart)
	assert.Equal(t, "2025-01-01 11:00:00", bill.TimeWindowEnd)
	require.NotNil(t, bill.TransactionTime)
	assert.Equal(t, "2023-11-14 22:13:20.000", *bill.TransactionTime)
	assert.Empty(t, bill.ID)
}

func TestToBillWithoutTimestampOrWindow(t *testing.T) {
	row := remote("NOPE", "C9")
	row.TimeWindow = "2025-01-01"

	bill := ToBill(row, time.UTC)

	assert.Nil(t, bill.TransactionTime)
	assert.Empty(t, bill.TimeWindowStart)
	assert.Empty(t, bill.TimeWindowEnd)
	assert.Equal(t, "2025-01-01", bill.TimeWindow)
}

func TestDuplicateBillingNos(t *testing.T) {
	rows := []model.RemoteBill{
		remote("a", ""), remote("b", ""), remote("a", ""), remote("c", ""), remote("a", ""), remote("c", ""),
	}
	assert.Equal(t, []string{"a", "c"}, DuplicateBillingNos(rows))
	assert.Empty(t, DuplicateBillingNos(rows[:2]))
}
