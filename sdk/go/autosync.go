package billsync

import (
	"context"
	"net/http"
)

// AutoSyncService manages the incremental sync schedule.
type AutoSyncService struct {
	client *Client
}

func (a *AutoSyncService) GetConfig(ctx context.Context) (*AutoSyncConfig, error) {
	var result AutoSyncConfig
	if err := a.client.doJSON(ctx, http.MethodGet, a.client.buildPath("auto-sync", "config"), nil, &result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveConfig replaces the schedule. frequencySeconds must be 5, 10, 60 or 300.
func (a *AutoSyncService) SaveConfig(ctx context.Context, enabled bool, frequencySeconds int) (*AutoSyncConfig, error) {
	req := SaveAutoSyncConfigRequest{Enabled: enabled, FrequencySeconds: frequencySeconds}
	var result AutoSyncConfig
	if err := a.client.doJSON(ctx, http.MethodPost, a.client.buildPath("auto-sync", "config"), req, &result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}

// Trigger makes the enabled schedule due immediately.
func (a *AutoSyncService) Trigger(ctx context.Context) error {
	return a.client.doJSON(ctx, http.MethodPost, a.client.buildPath("auto-sync", "trigger"), nil, nil, nil)
}

func (a *AutoSyncService) Status(ctx context.Context) (*AutoSyncStatus, error) {
	var result AutoSyncStatus
	if err := a.client.doJSON(ctx, http.MethodGet, a.client.buildPath("auto-sync", "status"), nil, &result, nil); err != nil {
		return nil, err
	}
	return &result, nil
}
