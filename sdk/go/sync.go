package billsync

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

// SyncService triggers synchronizations and reads their progress and history.
type SyncService struct {
	client *Client
}

// StartFull starts a background full synchronization of month (YYYY-MM).
func (s *SyncService) StartFull(ctx context.Context, month string) (*SyncAccepted, error) {
	var result SyncAccepted
	req := SyncRequest{BillingMonth: month, Type: SyncTypeFull}
	if err := s.client.doJSON(ctx, http.MethodPost, s.client.buildPath("bills", "sync"), req, &result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunIncremental runs an incremental synchronization of month and waits for the result.
func (s *SyncService) RunIncremental(ctx context.Context, month string) (*SyncResult, error) {
	var result SyncResult
	req := SyncRequest{BillingMonth: month, Type: SyncTypeIncremental}
	if err := s.client.doJSON(ctx, http.MethodPost, s.client.buildPath("bills", "sync"), req, &result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *SyncService) Status(ctx context.Context) (*ProgressSnapshot, error) {
	var result ProgressSnapshot
	if err := s.client.doJSON(ctx, http.MethodGet, s.client.buildPath("bills", "sync-status"), nil, &result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

// History lists past runs, newest first.
func (s *SyncService) History(ctx context.Context, opts *SyncRunListOptions) (*SyncRunListResponse, error) {
	queryParams := make(map[string]string)
	if opts != nil {
		if opts.Type != "" {
			queryParams["type"] = string(opts.Type)
		}
		if opts.Page > 0 {
			queryParams["page"] = strconv.Itoa(opts.Page)
		}
		if opts.PageSize > 0 {
			queryParams["pageSize"] = strconv.Itoa(opts.PageSize)
		}
	}
	var result SyncRunListResponse
	if err := s.client.doJSON(ctx, http.MethodGet, s.client.buildPath("bills", "sync-history"), nil, &result, queryParams); err != nil {
		return nil, err
	}
	return &result, nil
}

// Watch streams progress updates to fn until ctx is done, the server closes
// the stream, or fn returns false.
func (s *SyncService) Watch(ctx context.Context, fn func(SyncProgress) bool) error {
	u := s.client.endpoint(s.client.buildPath("bills", "sync-status", "stream"), nil)
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set("User-Agent", s.client.userAgent)
	if s.client.authToken != "" {
		header.Set("Authorization", "Bearer "+s.client.authToken)
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			defer resp.Body.Close()
			return handleErrorResponse(resp)
		}
		return fmt.Errorf("failed to open progress stream: %w", err)
	}
	defer ws.Close()

	stop := context.AfterFunc(ctx, func() { _ = ws.Close() })
	defer stop()

	for {
		var p SyncProgress
		if err := ws.ReadJSON(&p); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				strings.Contains(err.Error(), "use of closed network connection") {
				return nil
			}
			return fmt.Errorf("failed to read progress: %w", err)
		}
		if !fn(p) {
			return nil
		}
	}
}
