package model

import "time"

type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
)

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailure SyncStatus = "failure"
)

// SyncStage is the coarse phase of the running synchronization.
type SyncStage string

const (
	SyncStageIdle      SyncStage = "idle"
	SyncStageClearing  SyncStage = "clearing"
	SyncStageFetching  SyncStage = "fetching"
	SyncStageSaving    SyncStage = "saving"
	SyncStageCompleted SyncStage = "completed"
)

// SyncRequest starts a synchronization for one billing month (YYYY-MM).
type SyncRequest struct {
	BillingMonth string   `json:"billingMonth" binding:"required"`
	Type         SyncType `json:"type"`
}

// SyncResult is the outcome of one synchronization run.
type SyncResult struct {
	Type       SyncType `json:"type"`
	Synced     int      `json:"synced"`
	Failed     int      `json:"failed"`
	Skipped    int      `json:"skipped"`
	Total      int      `json:"total"`
	Pages      int      `json:"pages"`
	DurationMs int64    `json:"durationMs"`
	Message    string   `json:"message,omitempty"`
	Errors     []string `json:"errors,omitempty"`
}

type SyncProgress struct {
	Stage      SyncStage `json:"stage"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Percentage int       `json:"percentage"`
}

// ProgressSnapshot is what the status endpoint reports. LastResult and
// LastError describe the most recently finished run.
type ProgressSnapshot struct {
	Syncing    bool         `json:"syncing"`
	Progress   SyncProgress `json:"progress"`
	LastResult *SyncResult  `json:"lastResult,omitempty"`
	LastError  string       `json:"lastError,omitempty"`
}

// SyncAccepted acknowledges a background full synchronization.
type SyncAccepted struct {
	Accepted     bool   `json:"accepted"`
	BillingMonth string `json:"billingMonth"`
	Message      string `json:"message"`
}

// SyncRun is one audit row appended after a run concludes.
type SyncRun struct {
	ID              int64      `json:"id"`
	SyncType        SyncType   `json:"syncType"`
	BillingMonth    string     `json:"billingMonth"`
	Status          SyncStatus `json:"status"`
	SyncedCount     int        `json:"syncedCount"`
	FailedCount     int        `json:"failedCount"`
	TotalCount      int        `json:"totalCount"`
	Message         string     `json:"message"`
	DurationSeconds int        `json:"durationSeconds"`
	SyncTime        time.Time  `json:"syncTime"`
}

type SyncRunListOptions struct {
	Type     SyncType `json:"type,omitempty"`
	Page     int      `json:"page,omitempty"`
	PageSize int      `json:"pageSize,omitempty"`
}

type SyncRunListResponse struct {
	Items    []SyncRun `json:"items"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}
