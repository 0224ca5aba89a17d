// Package transform derives local billing records from remote rows.
package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/fslongjin/billsync/internal/model"
	pkgmodel "github.com/fslongjin/billsync/pkg/model"
)

const (
	// TimestampLayout is fixed width so lexicographic order is chronological.
	TimestampLayout = "2006-01-02 15:04:05.000"

	epochMillisDigits = 13
)

// ExtractTransactionTime locates the customer id inside the billing number and
// reads the 13 characters after it as Unix epoch milliseconds. The result is
// rendered in loc. ok is false when the id is absent, fewer than 13 characters
// follow it, or they are not an integer.
func ExtractTransactionTime(bill model.RemoteBill, loc *time.Location) (string, bool) {
	billingNo := bill.BillingNo.String()
	customerID := bill.CustomerID.String()
	if billingNo == "" || customerID == "" {
		return "", false
	}

	idx := strings.Index(billingNo, customerID)
	if idx < 0 {
		return "", false
	}
	rest := billingNo[idx+len(customerID):]
	if len(rest) < epochMillisDigits {
		return "", false
	}
	millis, err := strconv.ParseInt(rest[:epochMillisDigits], 10, 64)
	if err != nil {
		return "", false
	}

	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(millis).In(loc).Format(TimestampLayout), true
}

// ToBill projects a remote row into a local record. The id is left for the store.
func ToBill(remote model.RemoteBill, loc *time.Location) pkgmodel.Bill {
	bill := pkgmodel.Bill{
		BillingNo:           remote.BillingNo.String(),
		BillingDate:         remote.BillingDate.String(),
		BillingTime:         remote.BillingTime.String(),
		OrderNo:             remote.OrderNo.String(),
		CustomerID:          remote.CustomerID.String(),
		APIKey:              remote.APIKey.String(),
		ModelCode:           remote.ModelCode.String(),
		ModelProductType:    remote.ModelProductType.String(),
		ModelProductSubtype: remote.ModelProductSubtype.String(),
		ModelProductCode:    remote.ModelProductCode.String(),
		ModelProductName:    remote.ModelProductName.String(),
		PaymentType:         remote.PaymentType.String(),
		StartTime:           remote.StartTime.String(),
		EndTime:             remote.EndTime.String(),
		BusinessID:          remote.BusinessID.String(),
		CostPrice:           float64(remote.CostPrice),
		CostUnit:            remote.CostUnit.String(),
		UsageCount:          float64(remote.UsageCount),
		UsageExempt:         float64(remote.UsageExempt),
		UsageUnit:           remote.UsageUnit.String(),
		Currency:            remote.Currency.String(),
		SettlementAmount:    float64(remote.SettlementAmount),
		GiftDeductAmount:    float64(remote.GiftDeductAmount),
		DueAmount:           float64(remote.DueAmount),
		PaidAmount:          float64(remote.PaidAmount),
		UnpaidAmount:        float64(remote.UnpaidAmount),
		BillingStatus:       remote.BillingStatus.String(),
		InvoicingAmount:     float64(remote.InvoicingAmount),
		InvoicedAmount:      float64(remote.InvoicedAmount),
		TokenAccountID:      remote.TokenAccountID.String(),
		TokenResourceNo:     remote.TokenResourceNo.String(),
		TokenResourceName:   remote.TokenResourceName.String(),
		DeductUsage:         float64(remote.DeductUsage),
		DeductAfter:         remote.DeductAfter.String(),
		TimeWindow:          remote.TimeWindow.String(),
		OriginalAmount:      float64(remote.OriginalAmount),
		OriginalCostPrice:   float64(remote.OriginalCostPrice),
		APIUsage:            float64(remote.APIUsage),
		DiscountRate:        float64(remote.DiscountRate),
		DiscountType:        remote.DiscountType.String(),
		CreditPayAmount:     float64(remote.CreditPayAmount),
		TokenType:           remote.TokenType.String(),
		CashAmount:          float64(remote.CashAmount),
		ThirdParty:          remote.ThirdParty.String(),
	}

	if start, end, ok := splitTimeWindow(bill.TimeWindow); ok {
		bill.TimeWindowStart = start
		bill.TimeWindowEnd = end
	}
	if ts, ok := ExtractTransactionTime(remote, loc); ok {
		bill.TransactionTime = &ts
	}
	return bill
}

func splitTimeWindow(window string) (string, string, bool) {
	if window == "" {
		return "", "", false
	}
	parts := strings.Split(window, "~")
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// DuplicateBillingNos returns billing numbers seen more than once, in first-repeat order.
func DuplicateBillingNos(rows []model.RemoteBill) []string {
	seen := make(map[string]int, len(rows))
	var dups []string
	for _, row := range rows {
		no := row.BillingNo.String()
		seen[no]++
		if seen[no] == 2 {
			dups = append(dups, no)
		}
	}
	return dups
}
