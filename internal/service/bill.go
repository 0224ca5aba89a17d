package service

import (
	"context"
	"time"

	"github.com/fslongjin/billsync/internal/clock"
	"github.com/fslongjin/billsync/internal/transform"
	"github.com/fslongjin/billsync/pkg/model"
)

type BillQueryRepository interface {
	List(ctx context.Context, opts model.BillListOptions) ([]model.Bill, int, error)
	Count(ctx context.Context) (int, error)
	Products(ctx context.Context) ([]string, error)
	Stats(ctx context.Context, since string) (*model.BillStats, error)
}

// BillService answers read queries over locally stored bills.
type BillService struct {
	repo  BillQueryRepository
	clock clock.Clock
	loc   *time.Location
}

func NewBillService(repo BillQueryRepository, clk clock.Clock, loc *time.Location) *BillService {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.Local
	}
	return &BillService{repo: repo, clock: clk, loc: loc}
}

func (s *BillService) List(ctx context.Context, opts model.BillListOptions) (*model.BillListResponse, error) {
	if opts.Page <= 0 {
		opts.Page = 1
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.PageSize > 500 {
		opts.PageSize = 500
	}
	bills, total, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &model.BillListResponse{
		Items:    bills,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.PageSize,
	}, nil
}

func (s *BillService) Count(ctx context.Context) (*model.BillCountResponse, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &model.BillCountResponse{Count: n}, nil
}

func (s *BillService) Products(ctx context.Context) (*model.ProductListResponse, error) {
	products, err := s.repo.Products(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []string{}
	}
	return &model.ProductListResponse{Items: products}, nil
}

// Stats aggregates usage over the last 5 hours ("5h"), day ("1d") or month ("1m").
func (s *BillService) Stats(ctx context.Context, period string) (*model.BillStats, error) {
	now := s.clock.Now().In(s.loc)
	var since time.Time
	switch period {
	case "5h":
		since = now.Add(-5 * time.Hour)
	case "1d":
		since = now.AddDate(0, 0, -1)
	case "1m":
		since = now.AddDate(0, -1, 0)
	default:
		return nil, ErrInvalidStatsPeriod
	}

	stats, err := s.repo.Stats(ctx, since.Format(transform.TimestampLayout))
	if err != nil {
		return nil, err
	}
	stats.Period = period
	return stats, nil
}
