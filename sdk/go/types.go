package billsync

import "github.com/fslongjin/billsync/pkg/model"

// Re-exported wire types.
type (
	Bill                      = model.Bill
	BillListOptions           = model.BillListOptions
	BillListResponse          = model.BillListResponse
	BillStats                 = model.BillStats
	ResourceStat              = model.ResourceStat
	SyncType                  = model.SyncType
	SyncRequest               = model.SyncRequest
	SyncResult                = model.SyncResult
	SyncProgress              = model.SyncProgress
	SyncStage                 = model.SyncStage
	ProgressSnapshot          = model.ProgressSnapshot
	SyncAccepted              = model.SyncAccepted
	SyncRun                   = model.SyncRun
	SyncRunListOptions        = model.SyncRunListOptions
	SyncRunListResponse       = model.SyncRunListResponse
	AutoSyncConfig            = model.AutoSyncConfig
	AutoSyncStatus            = model.AutoSyncStatus
	SaveAutoSyncConfigRequest = model.SaveAutoSyncConfigRequest
	TokenInfo                 = model.TokenInfo
	VerifyTokenResponse       = model.VerifyTokenResponse
)

const (
	SyncTypeFull        = model.SyncTypeFull
	SyncTypeIncremental = model.SyncTypeIncremental
	SyncStageCompleted  = model.SyncStageCompleted
	SyncStageIdle       = model.SyncStageIdle
)
