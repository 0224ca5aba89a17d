package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fslongjin/billsync/pkg/model"
)

const billColumns = `id, billing_no, billing_date, billing_time, order_no, customer_id,
	api_key, model_code, model_product_type, model_product_subtype,
	model_product_code, model_product_name, payment_type, start_time,
	end_time, business_id, cost_price, cost_unit, usage_count,
	usage_exempt, usage_unit, currency, settlement_amount,
	gift_deduct_amount, due_amount, paid_amount, unpaid_amount,
	billing_status, invoicing_amount, invoiced_amount,
	token_account_id, token_resource_no, token_resource_name,
	deduct_usage, deduct_after, time_window, time_window_start,
	time_window_end, original_amount, original_cost_price,
	api_usage, discount_rate, discount_type, credit_pay_amount,
	token_type, cash_amount, third_party, transaction_time`

const billColumnCount = 48

// BillStore persists billing records keyed by billing number.
type BillStore struct {
	db *sql.DB
}

func NewBillStore() *BillStore {
	return &BillStore{db: DB}
}

// InsertIfAbsent inserts bill unless a record with the same billing number
// exists. It reports whether a row was written.
func (s *BillStore) InsertIfAbsent(ctx context.Context, bill *model.Bill) (bool, error) {
	if bill.ID == "" {
		bill.ID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", billColumnCount), ", ")
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO expense_bills (`+billColumns+`, created_at)
		VALUES (`+placeholders+`, ?)
		ON CONFLICT(billing_no) DO NOTHING`,
		append(billArgs(bill), time.Now().UTC())...,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert bill %s: %w", bill.BillingNo, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n > 0, nil
}

// LatestTransactionTime returns the newest derived transaction time, or nil
// when no record carries one.
func (s *BillStore) LatestTransactionTime(ctx context.Context) (*string, error) {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(transaction_time) FROM expense_bills WHERE transaction_time IS NOT NULL
	`).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest transaction time: %w", err)
	}
	if !latest.Valid || latest.String == "" {
		return nil, nil
	}
	return &latest.String, nil
}

// DeleteAll removes every record and returns how many were deleted.
func (s *BillStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM expense_bills`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bills: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	return n, nil
}

func (s *BillStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expense_bills`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bills: %w", err)
	}
	return n, nil
}

// List returns one page of bills, newest transaction first, plus the total
// number of rows matching the filters.
func (s *BillStore) List(ctx context.Context, opts model.BillListOptions) ([]model.Bill, int, error) {
	var where []string
	var args []any
	if opts.ProductName != "" {
		where = append(where, "model_product_name = ?")
		args = append(args, opts.ProductName)
	}
	if opts.StartDate != "" {
		where = append(where, "transaction_time >= ?")
		args = append(args, opts.StartDate+" 00:00:00")
	}
	if opts.EndDate != "" {
		where = append(where, "transaction_time <= ?")
		args = append(args, opts.EndDate+" 23:59:59.999")
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expense_bills`+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count bills: %w", err)
	}

	page, pageSize := normalizePage(opts.Page, opts.PageSize)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+billColumns+` FROM expense_bills`+whereClause+`
		ORDER BY transaction_time DESC, billing_no DESC
		LIMIT ? OFFSET ?`,
		append(args, pageSize, (page-1)*pageSize)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	bills := []model.Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		bills = append(bills, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate bills: %w", err)
	}
	return bills, total, nil
}

// Products lists distinct non-empty product names.
func (s *BillStore) Products(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT model_product_name FROM expense_bills
		WHERE model_product_name IS NOT NULL AND model_product_name != ''
		ORDER BY model_product_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

// Stats aggregates usage for records whose transaction time is at or after since.
func (s *BillStore) Stats(ctx context.Context, since string) (*model.BillStats, error) {
	stats := &model.BillStats{ResourceStats: []model.ResourceStat{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(usage_count), 0), COALESCE(SUM(api_usage), 0)
		FROM expense_bills WHERE transaction_time >= ?
	`, since).Scan(&stats.CallCount, &stats.TotalTokens, &stats.APIUsageCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate bills: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(token_resource_name, ''), COALESCE(SUM(usage_count), 0), COUNT(*)
		FROM expense_bills WHERE transaction_time >= ?
		GROUP BY token_resource_name
		ORDER BY 2 DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate resources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rs model.ResourceStat
		if err := rows.Scan(&rs.TokenResourceName, &rs.TotalUsage, &rs.CallCount); err != nil {
			return nil, fmt.Errorf("failed to scan resource stats: %w", err)
		}
		stats.ResourceStats = append(stats.ResourceStats, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resource stats: %w", err)
	}
	return stats, nil
}

func billArgs(b *model.Bill) []any {
	var txTime any
	if b.TransactionTime != nil {
		txTime = *b.TransactionTime
	}
	return []any{
		b.ID, b.BillingNo, b.BillingDate, b.BillingTime, b.OrderNo, b.CustomerID,
		b.APIKey, b.ModelCode, b.ModelProductType, b.ModelProductSubtype,
		b.ModelProductCode, b.ModelProductName, b.PaymentType, b.StartTime,
		b.EndTime, b.BusinessID, b.CostPrice, b.CostUnit, b.UsageCount,
		b.UsageExempt, b.UsageUnit, b.Currency, b.SettlementAmount,
		b.GiftDeductAmount, b.DueAmount, b.PaidAmount, b.UnpaidAmount,
		b.BillingStatus, b.InvoicingAmount, b.InvoicedAmount,
		b.TokenAccountID, b.TokenResourceNo, b.TokenResourceName,
		b.DeductUsage, b.DeductAfter, b.TimeWindow, nullIfEmpty(b.TimeWindowStart),
		nullIfEmpty(b.TimeWindowEnd), b.OriginalAmount, b.OriginalCostPrice,
		b.APIUsage, b.DiscountRate, b.DiscountType, b.CreditPayAmount,
		b.TokenType, b.CashAmount, b.ThirdParty, txTime,
	}
}

func scanBill(rows *sql.Rows) (*model.Bill, error) {
	var (
		b                           model.Bill
		windowStart, windowEnd, txn sql.NullString
	)
	err := rows.Scan(
		&b.ID, &b.BillingNo, &b.BillingDate, &b.BillingTime, &b.OrderNo, &b.CustomerID,
		&b.APIKey, &b.ModelCode, &b.ModelProductType, &b.ModelProductSubtype,
		&b.ModelProductCode, &b.ModelProductName, &b.PaymentType, &b.StartTime,
		&b.EndTime, &b.BusinessID, &b.CostPrice, &b.CostUnit, &b.UsageCount,
		&b.UsageExempt, &b.UsageUnit, &b.Currency, &b.SettlementAmount,
		&b.GiftDeductAmount, &b.DueAmount, &b.PaidAmount, &b.UnpaidAmount,
		&b.BillingStatus, &b.InvoicingAmount, &b.InvoicedAmount,
		&b.TokenAccountID, &b.TokenResourceNo, &b.TokenResourceName,
		&b.DeductUsage, &b.DeductAfter, &b.TimeWindow, &windowStart,
		&windowEnd, &b.OriginalAmount, &b.OriginalCostPrice,
		&b.APIUsage, &b.DiscountRate, &b.DiscountType, &b.CreditPayAmount,
		&b.TokenType, &b.CashAmount, &b.ThirdParty, &txn,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan bill: %w", err)
	}
	b.TimeWindowStart = windowStart.String
	b.TimeWindowEnd = windowEnd.String
	if txn.Valid {
		b.TransactionTime = &txn.String
	}
	return &b, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return page, pageSize
}
