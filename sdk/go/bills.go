package billsync

import (
	"context"
	"net/http"
	"strconv"
)

// BillService reads locally stored bills.
type BillService struct {
	client *Client
}

func (b *BillService) List(ctx context.Context, opts *BillListOptions) (*BillListResponse, error) {
	queryParams := make(map[string]string)
	if opts != nil {
		if opts.Page > 0 {
			queryParams["page"] = strconv.Itoa(opts.Page)
		}
		if opts.PageSize > 0 {
			queryParams["pageSize"] = strconv.Itoa(opts.PageSize)
		}
		if opts.StartDate != "" {
			queryParams["startDate"] = opts.StartDate
		}
		if opts.EndDate != "" {
			queryParams["endDate"] = opts.EndDate
		}
		if opts.ProductName != "" {
			queryParams["productName"] = opts.ProductName
		}
	}
	var result BillListResponse
	if err := b.client.doJSON(ctx, http.MethodGet, b.client.buildPath("bills"), nil, &result, queryParams); err != nil {
		return nil, err
	}
	return &result, nil
}

func (b *BillService) Count(ctx context.Context) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	if err := b.client.doJSON(ctx, http.MethodGet, b.client.buildPath("bills", "count"), nil, &result, nil); err != nil {
		return 0, err
	}
	return result.Count, nil
}

func (b *BillService) Products(ctx context.Context) ([]string, error) {
	var result struct {
		Items []string `json:"items"`
	}
	if err := b.client.doJSON(ctx, http.MethodGet, b.client.buildPath("bills", "products"), nil, &result, nil); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// Stats aggregates usage over period: "5h", "1d" or "1m".
func (b *BillService) Stats(ctx context.Context, period string) (*BillStats, error) {
	var result BillStats
	err := b.client.doJSON(ctx, http.MethodGet, b.client.buildPath("bills", "stats"), nil, &result, map[string]string{"period": period})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
