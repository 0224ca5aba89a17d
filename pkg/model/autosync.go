package model

import "time"

// AutoSyncConfig is the persisted schedule. At most one exists.
type AutoSyncConfig struct {
	ID               int64      `json:"id"`
	Enabled          bool       `json:"enabled"`
	FrequencySeconds int        `json:"frequencySeconds"`
	NextSyncTime     *time.Time `json:"nextSyncTime,omitempty"`
	LastSyncTime     *time.Time `json:"lastSyncTime,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type SaveAutoSyncConfigRequest struct {
	Enabled          bool `json:"enabled"`
	FrequencySeconds int  `json:"frequencySeconds" binding:"required"`
}

type AutoSyncStatus struct {
	Running         bool            `json:"running"`
	Processing      bool            `json:"processing"`
	CheckIntervalMs int64           `json:"checkIntervalMs"`
	Config          *AutoSyncConfig `json:"config,omitempty"`
}
