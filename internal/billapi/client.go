package billapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/fslongjin/billsync/internal/model"
	"github.com/fslongjin/billsync/internal/transform"
)

const (
	DefaultPageSize       = 100
	DefaultRequestTimeout = 10 * time.Second
	DefaultMaxAttempts    = 3
	DefaultRetryDelay     = time.Second
	DefaultMinPageDelay   = 500 * time.Millisecond
	DefaultMaxPageDelay   = 2000 * time.Millisecond

	successCode  = 200
	maxBodyBytes = 32 << 20
	maxErrorBody = 512
)

// TokenSource yields the bearer credential for the next call.
type TokenSource interface {
	CurrentToken(ctx context.Context) (string, error)
}

type Options struct {
	BaseURL        string
	PageSize       int
	RequestTimeout time.Duration
	MaxAttempts    int
	RetryDelay     time.Duration
	MinPageDelay   time.Duration
	MaxPageDelay   time.Duration
	HTTPClient     *http.Client
}

// Client talks to the remote expense bill listing.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	tokens         TokenSource
	pageSize       int
	requestTimeout time.Duration
	maxAttempts    int
	retryDelay     time.Duration
	minPageDelay   time.Duration
	maxPageDelay   time.Duration
	logger         *slog.Logger

	// sleepFunc waits between pages; overridable in tests.
	sleepFunc func(ctx context.Context, d time.Duration) error
	// now drives the period used for credential verification.
	now func() time.Time
}

func NewClient(tokens TokenSource, opts Options) *Client {
	c := &Client{
		baseURL:        opts.BaseURL,
		httpClient:     opts.HTTPClient,
		tokens:         tokens,
		pageSize:       opts.PageSize,
		requestTimeout: opts.RequestTimeout,
		maxAttempts:    opts.MaxAttempts,
		retryDelay:     opts.RetryDelay,
		minPageDelay:   opts.MinPageDelay,
		maxPageDelay:   opts.MaxPageDelay,
		logger:         slog.Default().With("component", "billapi"),
		sleepFunc:      timeSleep,
		now:            time.Now,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	if c.requestTimeout <= 0 {
		c.requestTimeout = DefaultRequestTimeout
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.retryDelay < 0 {
		c.retryDelay = 0
	}
	if c.maxPageDelay < c.minPageDelay {
		c.maxPageDelay = c.minPageDelay
	}
	return c
}

// PageSize is the page size used when callers pass zero.
func (c *Client) PageSize() int {
	return c.pageSize
}

// FetchPage fetches one page for period (YYYY-MM). The credential is looked up
// again before every attempt. Retryable transport failures are retried with a
// fixed delay up to the configured number of attempts; everything else fails fast.
func (c *Client) FetchPage(ctx context.Context, period string, pageNum, pageSize int) (*model.BillPage, error) {
	return c.fetch(ctx, c.tokens.CurrentToken, period, pageNum, pageSize, c.maxAttempts)
}

func (c *Client) fetch(ctx context.Context, tokenFn func(context.Context) (string, error), period string, pageNum, pageSize, attempts int) (*model.BillPage, error) {
	if pageSize <= 0 {
		pageSize = c.pageSize
	}

	attempt := 0
	var tokenErr error
	operation := func() (*model.BillPage, error) {
		attempt++
		token, err := tokenFn(ctx)
		if err != nil {
			tokenErr = fmt.Errorf("failed to load api token: %w", err)
			return nil, backoff.Permanent(tokenErr)
		}
		page, err := c.doFetch(ctx, token, period, pageNum, pageSize)
		if err == nil {
			return page, nil
		}
		if !IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	page, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryDelay)),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Warn("retrying bill page fetch",
				slog.String("period", period),
				slog.Int("page", pageNum),
				slog.Int("attempt", attempt),
				slog.Duration("delay", next),
				slog.String("error", err.Error()),
			)
		}),
	)
	if tokenErr != nil {
		return nil, tokenErr
	}
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			// Context cancelled while waiting between attempts.
			err = fatal(0, "request aborted", err)
		}
		c.logger.Error("bill page fetch failed",
			slog.String("period", period),
			slog.Int("page", pageNum),
			slog.Int("attempts", attempt),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.logger.Debug("fetched bill page",
		slog.String("period", period),
		slog.Int("page", pageNum),
		slog.Int("rows", len(page.Rows)),
		slog.Int("total", page.Total),
	)
	return page, nil
}

func (c *Client) doFetch(ctx context.Context, token, period string, pageNum, pageSize int) (*model.BillPage, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fatal(0, "invalid base url", err)
	}
	q := u.Query()
	q.Set("billingMonth", period)
	q.Set("pageNum", strconv.Itoa(pageNum))
	q.Set("pageSize", strconv.Itoa(pageSize))
	u.RawQuery = q.Encode()

	attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fatal(0, "failed to create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, truncate(string(body), maxErrorBody))
	}

	var page model.BillPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fatal(resp.StatusCode, "failed to decode response", fmt.Errorf("%w: %w", ErrMalformedBody, err))
	}
	if page.Code != successCode {
		return nil, &Error{Kind: ErrFatalTransport, Code: page.Code, Message: page.Msg, Err: ErrAPIStatus}
	}
	if page.Rows == nil {
		page.Rows = []model.RemoteBill{}
	}
	return &page, nil
}

// AllPages is the result of an unconditional walk over every page.
type AllPages struct {
	Rows  []model.RemoteBill
	Total int
	Pages int
}

// FetchAllPages walks every page of period, sleeping a random delay between
// pages. onProgress receives the accumulated row count and the remote total.
// Duplicate billing numbers are logged, not rejected.
func (c *Client) FetchAllPages(ctx context.Context, period string, pageSize int, onProgress func(current, total int)) (*AllPages, error) {
	if pageSize <= 0 {
		pageSize = c.pageSize
	}

	first, err := c.FetchPage(ctx, period, 1, pageSize)
	if err != nil {
		return nil, err
	}

	result := &AllPages{Rows: first.Rows, Total: first.Total, Pages: 1}
	if onProgress != nil {
		onProgress(len(result.Rows), result.Total)
	}

	totalPages := (first.Total + pageSize - 1) / pageSize
	for pageNum := 2; pageNum <= totalPages && len(first.Rows) > 0; pageNum++ {
		if err := c.Wait(ctx, c.RandomDelay()); err != nil {
			return nil, err
		}
		page, err := c.FetchPage(ctx, period, pageNum, pageSize)
		if err != nil {
			return nil, err
		}
		result.Pages++
		if len(page.Rows) == 0 {
			break
		}
		result.Rows = append(result.Rows, page.Rows...)
		if onProgress != nil {
			onProgress(len(result.Rows), result.Total)
		}
	}

	if dups := transform.DuplicateBillingNos(result.Rows); len(dups) > 0 {
		c.logger.Warn("duplicate billing numbers in remote listing",
			slog.String("period", period),
			slog.Int("count", len(dups)),
			slog.Any("billing_nos", firstN(dups, 10)),
		)
	}
	return result, nil
}

// VerifyToken checks a candidate credential with a single one-row request for
// the current month. A rejected credential yields false with a nil error.
func (c *Client) VerifyToken(ctx context.Context, token string) (bool, string, error) {
	period := c.now().Format("2006-01")
	candidate := func(context.Context) (string, error) { return token, nil }
	_, err := c.fetch(ctx, candidate, period, 1, 1, 1)
	if err == nil {
		return true, "", nil
	}
	if errors.Is(err, ErrAPIStatus) || errors.Is(err, ErrUnauthorized) {
		return false, err.Error(), nil
	}
	return false, "", err
}

// RandomDelay returns a uniformly random inter-page delay in [min, max).
func (c *Client) RandomDelay() time.Duration {
	span := c.maxPageDelay - c.minPageDelay
	if span <= 0 {
		return c.minPageDelay
	}
	return c.minPageDelay + time.Duration(rand.Int64N(int64(span))) //nolint:gosec // jitter, not security
}

// Wait blocks for d or until ctx is done.
func (c *Client) Wait(ctx context.Context, d time.Duration) error {
	return c.sleepFunc(ctx, d)
}

func timeSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
