package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fslongjin/billsync/internal/cli/output"
	billsync "github.com/fslongjin/billsync/sdk/go"
)

var (
	scheduleEnabled   bool
	scheduleFrequency int
)

var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Aliases: []string{"auto-sync"},
	Short:   "Manage the periodic incremental synchronization",
}

var scheduleGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the schedule",
	Args:  cobra.NoArgs,
	RunE:  runScheduleGet,
}

var scheduleSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Enable, disable or retime the schedule",
	Long: `Replace the schedule. --frequency is in seconds and must be one of
5, 10, 60 or 300. Enabling sets the next run one period from now.`,
	Example: `  billsyncctl schedule set --enabled --frequency 60
  billsyncctl schedule set --enabled=false --frequency 60`,
	Args: cobra.NoArgs,
	RunE: runScheduleSet,
}

var scheduleTriggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Make the schedule due on the next check",
	Args:  cobra.NoArgs,
	RunE:  runScheduleTrigger,
}

var scheduleStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the scheduler is running and busy",
	Args:  cobra.NoArgs,
	RunE:  runScheduleStatus,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.AddCommand(scheduleGetCmd)

	scheduleSetCmd.Flags().BoolVar(&scheduleEnabled, "enabled", true, "Enable the schedule")
	scheduleSetCmd.Flags().IntVarP(&scheduleFrequency, "frequency", "f", 0, "Frequency in seconds (5, 10, 60, 300)")
	_ = scheduleSetCmd.MarkFlagRequired("frequency")
	scheduleCmd.AddCommand(scheduleSetCmd)

	scheduleCmd.AddCommand(scheduleTriggerCmd)
	scheduleCmd.AddCommand(scheduleStatusCmd)
}

var scheduleColumns = []output.Column{
	output.Col("enabled"),
	output.Column{Path: "frequencySeconds", Label: "FREQUENCY"},
	output.Column{Path: "nextSyncTime", Label: "NEXT"},
	output.Column{Path: "lastSyncTime", Label: "LAST"},
}

func runScheduleGet(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	cfg, err := client.AutoSync.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schedule: %w", err)
	}
	return formatter(scheduleColumns...).Write(cmd.OutOrStdout(), cfg)
}

func runScheduleSet(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	cfg, err := client.AutoSync.SaveConfig(ctx, scheduleEnabled, scheduleFrequency)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return formatter(scheduleColumns...).Write(cmd.OutOrStdout(), cfg)
}

func runScheduleTrigger(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	if err := client.AutoSync.Trigger(ctx); err != nil {
		if errors.Is(err, billsync.ErrConflict) {
			return fmt.Errorf("schedule is disabled; enable it with 'billsyncctl schedule set --enabled'")
		}
		return fmt.Errorf("failed to trigger schedule: %w", err)
	}
	output.WriteString(cmd.OutOrStdout(), "Schedule triggered")
	return nil
}

func runScheduleStatus(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	status, err := client.AutoSync.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get scheduler status: %w", err)
	}
	return formatter(
		output.Col("running"),
		output.Col("processing"),
		output.Column{Path: "checkIntervalMs", Label: "CHECK MS"},
		output.Column{Path: "config.enabled", Label: "ENABLED"},
		output.Column{Path: "config.frequencySeconds", Label: "FREQUENCY"},
		output.Column{Path: "config.nextSyncTime", Label: "NEXT"},
	).Write(cmd.OutOrStdout(), status)
}
