package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/fslongjin/billsync/internal/cli/output"
	billsync "github.com/fslongjin/billsync/sdk/go"
)

var (
	syncMonth       string
	syncWait        bool
	syncRunTimeout  time.Duration
	statusWatch     bool
	historyType     string
	historyPage     int
	historyPageSize int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize billing records",
	Long:  `Start synchronizations of a billing month and inspect their progress and history.`,
}

var syncFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Replace the local copy of a billing month",
	Long: `Clear every local record of the month and re-fetch all of its pages.
The server runs the synchronization in the background; pass --wait to follow
its progress until it finishes.`,
	Example: `  billsyncctl sync full --month 2025-03
  billsyncctl sync full --wait`,
	Args: cobra.NoArgs,
	RunE: runSyncFull,
}

var syncIncrementalCmd = &cobra.Command{
	Use:     "incremental",
	Short:   "Fetch records newer than the newest stored one",
	Example: `  billsyncctl sync incremental --month 2025-03`,
	Args:    cobra.NoArgs,
	RunE:    runSyncIncremental,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the progress of the current synchronization",
	Args:  cobra.NoArgs,
	RunE:  runSyncStatus,
}

var syncHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List past synchronization runs",
	Args:  cobra.NoArgs,
	RunE:  runSyncHistory,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	for _, c := range []*cobra.Command{syncFullCmd, syncIncrementalCmd} {
		c.Flags().StringVarP(&syncMonth, "month", "m", "", "Billing month YYYY-MM (default: current month)")
		c.Flags().DurationVar(&syncRunTimeout, "run-timeout", 10*time.Minute, "How long to wait for the run to finish")
	}
	syncFullCmd.Flags().BoolVarP(&syncWait, "wait", "w", false, "Follow progress until the run finishes")
	syncCmd.AddCommand(syncFullCmd)
	syncCmd.AddCommand(syncIncrementalCmd)

	syncStatusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Stream progress updates")
	syncCmd.AddCommand(syncStatusCmd)

	syncHistoryCmd.Flags().StringVar(&historyType, "type", "", "Filter by run type (full, incremental)")
	syncHistoryCmd.Flags().IntVar(&historyPage, "page", 1, "Page number")
	syncHistoryCmd.Flags().IntVar(&historyPageSize, "page-size", 20, "Items per page")
	syncCmd.AddCommand(syncHistoryCmd)
}

func month() string {
	if syncMonth != "" {
		return syncMonth
	}
	return currentMonth()
}

func runSyncFull(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	accepted, err := client.Sync.StartFull(ctx, month())
	if err != nil {
		return fmt.Errorf("failed to start full sync: %w", err)
	}
	out := cmd.OutOrStdout()
	if !syncWait {
		output.WriteString(out, fmt.Sprintf("%s (%s)", accepted.Message, accepted.BillingMonth))
		return nil
	}

	watchCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	watchCtx, cancelWatch := context.WithTimeout(watchCtx, syncRunTimeout)
	defer cancelWatch()

	// The stream starts with the current stage. Idle means either not yet
	// started or already released, so confirm against the status endpoint.
	if err := client.Sync.Watch(watchCtx, func(p billsync.SyncProgress) bool {
		if p.Stage != billsync.SyncStageIdle {
			output.WriteString(out, progressLine(p))
		}
		if p.Stage != billsync.SyncStageIdle && p.Stage != billsync.SyncStageCompleted {
			return true
		}
		snap, err := client.Sync.Status(watchCtx)
		return err != nil || snap.Syncing
	}); err != nil {
		return fmt.Errorf("failed to watch progress: %w", err)
	}

	statusCtx, cancelStatus := getContext(cmd)
	defer cancelStatus()
	snap, err := client.Sync.Status(statusCtx)
	if err != nil {
		return fmt.Errorf("failed to get sync status: %w", err)
	}
	if snap.LastError != "" {
		return fmt.Errorf("full sync failed: %s", snap.LastError)
	}
	if snap.LastResult == nil {
		return nil
	}
	return writeResult(cmd, snap.LastResult)
}

func runSyncIncremental(cmd *cobra.Command, args []string) error {
	client := getAPIClient(syncRunTimeout)
	ctx, cancel := context.WithTimeout(cmd.Context(), max(requestTimeout(), syncRunTimeout))
	defer cancel()

	result, err := client.Sync.RunIncremental(ctx, month())
	if err != nil {
		if billsync.IsRemoteFailure(err) {
			return fmt.Errorf("incremental sync failed: %w (check the stored token with 'billsyncctl token verify')", err)
		}
		return fmt.Errorf("incremental sync failed: %w", err)
	}
	return writeResult(cmd, result)
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	out := cmd.OutOrStdout()

	if statusWatch {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		err := client.Sync.Watch(ctx, func(p billsync.SyncProgress) bool {
			output.WriteString(out, progressLine(p))
			return true
		})
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("failed to watch progress: %w", err)
		}
		return nil
	}

	ctx, cancel := getContext(cmd)
	defer cancel()
	snap, err := client.Sync.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync status: %w", err)
	}
	return formatter(
		output.Col("syncing"),
		output.Col("progress.stage"),
		output.Col("progress.current"),
		output.Col("progress.total"),
		output.Column{Path: "progress.percentage", Label: "PERCENT"},
		output.Column{Path: "lastResult.message", Label: "LAST RESULT"},
		output.Column{Path: "lastError", Label: "LAST ERROR"},
	).Write(out, snap)
}

func runSyncHistory(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	resp, err := client.Sync.History(ctx, &billsync.SyncRunListOptions{
		Type:     billsync.SyncType(historyType),
		Page:     historyPage,
		PageSize: historyPageSize,
	})
	if err != nil {
		return fmt.Errorf("failed to list sync history: %w", err)
	}

	f := formatter(
		output.Col("id"),
		output.Column{Path: "syncType", Label: "TYPE"},
		output.Column{Path: "billingMonth", Label: "MONTH"},
		output.Col("status"),
		output.Column{Path: "syncedCount", Label: "SYNCED"},
		output.Column{Path: "failedCount", Label: "FAILED"},
		output.Column{Path: "totalCount", Label: "TOTAL"},
		output.Column{Path: "durationSeconds", Label: "SECONDS"},
		output.Column{Path: "syncTime", Label: "TIME"},
		output.Col("message"),
	)
	if _, table := f.(*output.TableFormatter); !table {
		return f.Write(cmd.OutOrStdout(), resp)
	}
	if err := f.Write(cmd.OutOrStdout(), resp.Items); err != nil {
		return err
	}
	output.WriteString(cmd.OutOrStdout(), fmt.Sprintf("\nPage %d, %d of %d runs", resp.Page, len(resp.Items), resp.Total))
	return nil
}

func writeResult(cmd *cobra.Command, result *billsync.SyncResult) error {
	return formatter(
		output.Col("type"),
		output.Col("synced"),
		output.Col("failed"),
		output.Col("skipped"),
		output.Col("total"),
		output.Col("pages"),
		output.Column{Path: "durationMs", Label: "DURATION MS"},
		output.Col("message"),
	).Write(cmd.OutOrStdout(), result)
}

func progressLine(p billsync.SyncProgress) string {
	if p.Total == 0 {
		return string(p.Stage)
	}
	return fmt.Sprintf("%s %d/%d (%d%%)", p.Stage, p.Current, p.Total, p.Percentage)
}
