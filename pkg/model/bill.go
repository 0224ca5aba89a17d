package model

// Bill is one locally persisted billing record.
type Bill struct {
	ID                  string  `json:"id"`
	BillingNo           string  `json:"billingNo"`
	BillingDate         string  `json:"billingDate"`
	BillingTime         string  `json:"billingTime"`
	OrderNo             string  `json:"orderNo"`
	CustomerID          string  `json:"customerId"`
	APIKey              string  `json:"apiKey"`
	ModelCode           string  `json:"modelCode"`
	ModelProductType    string  `json:"modelProductType"`
	ModelProductSubtype string  `json:"modelProductSubtype"`
	ModelProductCode    string  `json:"modelProductCode"`
	ModelProductName    string  `json:"modelProductName"`
	PaymentType         string  `json:"paymentType"`
	StartTime           string  `json:"startTime"`
	EndTime             string  `json:"endTime"`
	BusinessID          string  `json:"businessId"`
	CostPrice           float64 `json:"costPrice"`
	CostUnit            string  `json:"costUnit"`
	UsageCount          float64 `json:"usageCount"`
	UsageExempt         float64 `json:"usageExempt"`
	UsageUnit           string  `json:"usageUnit"`
	Currency            string  `json:"currency"`
	SettlementAmount    float64 `json:"settlementAmount"`
	GiftDeductAmount    float64 `json:"giftDeductAmount"`
	DueAmount           float64 `json:"dueAmount"`
	PaidAmount          float64 `json:"paidAmount"`
	UnpaidAmount        float64 `json:"unpaidAmount"`
	BillingStatus       string  `json:"billingStatus"`
	InvoicingAmount     float64 `json:"invoicingAmount"`
	InvoicedAmount      float64 `json:"invoicedAmount"`
	TokenAccountID      string  `json:"tokenAccountId"`
	TokenResourceNo     string  `json:"tokenResourceNo"`
	TokenResourceName   string  `json:"tokenResourceName"`
	DeductUsage         float64 `json:"deductUsage"`
	DeductAfter         string  `json:"deductAfter"`
	TimeWindow          string  `json:"timeWindow"`
	TimeWindowStart     string  `json:"timeWindowStart,omitempty"`
	TimeWindowEnd       string  `json:"timeWindowEnd,omitempty"`
	OriginalAmount      float64 `json:"originalAmount"`
	OriginalCostPrice   float64 `json:"originalCostPrice"`
	APIUsage            float64 `json:"apiUsage"`
	DiscountRate        float64 `json:"discountRate"`
	DiscountType        string  `json:"discountType"`
	CreditPayAmount     float64 `json:"creditPayAmount"`
	TokenType           string  `json:"tokenType"`
	CashAmount          float64 `json:"cashAmount"`
	ThirdParty          string  `json:"thirdParty"`
	// TransactionTime is derived from BillingNo; nil when it could not be extracted.
	TransactionTime *string `json:"transactionTime,omitempty"`
}

// BillListOptions filters the local bill listing.
type BillListOptions struct {
	Page        int    `json:"page,omitempty"`
	PageSize    int    `json:"pageSize,omitempty"`
	StartDate   string `json:"startDate,omitempty"` // YYYY-MM-DD, inclusive
	EndDate     string `json:"endDate,omitempty"`   // YYYY-MM-DD, inclusive
	ProductName string `json:"productName,omitempty"`
}

type BillListResponse struct {
	Items    []Bill `json:"items"`
	Total    int    `json:"total"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type BillCountResponse struct {
	Count int `json:"count"`
}

type ProductListResponse struct {
	Items []string `json:"items"`
}

// ResourceStat aggregates usage per token resource.
type ResourceStat struct {
	TokenResourceName string  `json:"tokenResourceName"`
	TotalUsage        float64 `json:"totalUsage"`
	CallCount         int     `json:"callCount"`
}

// BillStats summarizes usage over a recent window ("5h", "1d" or "1m").
type BillStats struct {
	Period        string         `json:"period"`
	CallCount     int            `json:"callCount"`
	TotalTokens   float64        `json:"totalTokens"`
	APIUsageCount float64        `json:"apiUsageCount"`
	ResourceStats []ResourceStat `json:"resourceStats"`
}
