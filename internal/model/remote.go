package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RemoteBill is one row of the remote expense bill listing.
type RemoteBill struct {
	BillingNo           FlexString `json:"billingNo"`
	BillingDate         FlexString `json:"billingDate"`
	BillingTime         FlexString `json:"billingTime"`
	OrderNo             FlexString `json:"orderNo"`
	CustomerID          FlexString `json:"customerId"`
	APIKey              FlexString `json:"apiKey"`
	ModelCode           FlexString `json:"modelCode"`
	ModelProductType    FlexString `json:"modelProductType"`
	ModelProductSubtype FlexString `json:"modelProductSubtype"`
	ModelProductCode    FlexString `json:"modelProductCode"`
	ModelProductName    FlexString `json:"modelProductName"`
	PaymentType         FlexString `json:"paymentType"`
	StartTime           FlexString `json:"startTime"`
	EndTime             FlexString `json:"endTime"`
	BusinessID          FlexString `json:"businessId"`
	CostPrice           FlexFloat  `json:"costPrice"`
	CostUnit            FlexString `json:"costUnit"`
	UsageCount          FlexFloat  `json:"usageCount"`
	UsageExempt         FlexFloat  `json:"usageExempt"`
	UsageUnit           FlexString `json:"usageUnit"`
	Currency            FlexString `json:"currency"`
	SettlementAmount    FlexFloat  `json:"settlementAmount"`
	GiftDeductAmount    FlexFloat  `json:"giftDeductAmount"`
	DueAmount           FlexFloat  `json:"dueAmount"`
	PaidAmount          FlexFloat  `json:"paidAmount"`
	UnpaidAmount        FlexFloat  `json:"unpaidAmount"`
	BillingStatus       FlexString `json:"billingStatus"`
	InvoicingAmount     FlexFloat  `json:"invoicingAmount"`
	InvoicedAmount      FlexFloat  `json:"invoicedAmount"`
	TokenAccountID      FlexString `json:"tokenAccountId"`
	TokenResourceNo     FlexString `json:"tokenResourceNo"`
	TokenResourceName   FlexString `json:"tokenResourceName"`
	DeductUsage         FlexFloat  `json:"deductUsage"`
	DeductAfter         FlexString `json:"deductAfter"`
	TimeWindow          FlexString `json:"timeWindow"`
	OriginalAmount      FlexFloat  `json:"originalAmount"`
	OriginalCostPrice   FlexFloat  `json:"originalCostPrice"`
	APIUsage            FlexFloat  `json:"apiUsage"`
	DiscountRate        FlexFloat  `json:"discountRate"`
	DiscountType        FlexString `json:"discountType"`
	CreditPayAmount     FlexFloat  `json:"creditPayAmount"`
	TokenType           FlexString `json:"tokenType"`
	CashAmount          FlexFloat  `json:"cashAmount"`
	ThirdParty          FlexString `json:"thirdParty"`
}

// BillPage is the remote response envelope. Code 200 means success.
type BillPage struct {
	Code  int          `json:"code"`
	Msg   string       `json:"msg"`
	Rows  []RemoteBill `json:"rows"`
	Total int          `json:"total"`
}

// FlexString decodes a JSON string, number, boolean or null into a string.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		return fmt.Errorf("cannot decode %s into string", data)
	}
	*s = FlexString(data)
	return nil
}

func (s FlexString) String() string { return string(s) }

// FlexFloat decodes a JSON number, numeric string or null into a float64.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw == "" {
			*f = 0
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("cannot decode %s into number: %w", data, err)
	}
	*f = FlexFloat(v)
	return nil
}
