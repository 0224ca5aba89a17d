package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fslongjin/billsync/internal/cli/output"
	billsync "github.com/fslongjin/billsync/sdk/go"
)

var (
	billsStart    string
	billsEnd      string
	billsProduct  string
	billsPage     int
	billsPageSize int
	billsPeriod   string
)

var billsCmd = &cobra.Command{
	Use:   "bills",
	Short: "Query locally stored bills",
}

var billsListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List bills, newest first",
	Example: `  billsyncctl bills list --start 2025-03-01 --end 2025-03-31 --product GLM-4`,
	Args:    cobra.NoArgs,
	RunE:    runBillsList,
}

var billsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count stored bills",
	Args:  cobra.NoArgs,
	RunE:  runBillsCount,
}

var billsProductsCmd = &cobra.Command{
	Use:   "products",
	Short: "List distinct model product names",
	Args:  cobra.NoArgs,
	RunE:  runBillsProducts,
}

var billsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize usage over a recent window",
	Args:  cobra.NoArgs,
	RunE:  runBillsStats,
}

func init() {
	rootCmd.AddCommand(billsCmd)

	billsListCmd.Flags().StringVar(&billsStart, "start", "", "First billing date, YYYY-MM-DD")
	billsListCmd.Flags().StringVar(&billsEnd, "end", "", "Last billing date, YYYY-MM-DD")
	billsListCmd.Flags().StringVar(&billsProduct, "product", "", "Model product name")
	billsListCmd.Flags().IntVar(&billsPage, "page", 1, "Page number")
	billsListCmd.Flags().IntVar(&billsPageSize, "page-size", 20, "Items per page")
	billsCmd.AddCommand(billsListCmd)

	billsCmd.AddCommand(billsCountCmd)
	billsCmd.AddCommand(billsProductsCmd)

	billsStatsCmd.Flags().StringVarP(&billsPeriod, "period", "p", "1d", "Window: 5h, 1d or 1m")
	billsCmd.AddCommand(billsStatsCmd)
}

func runBillsList(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	resp, err := client.Bills.List(ctx, &billsync.BillListOptions{
		Page:        billsPage,
		PageSize:    billsPageSize,
		StartDate:   billsStart,
		EndDate:     billsEnd,
		ProductName: billsProduct,
	})
	if err != nil {
		return fmt.Errorf("failed to list bills: %w", err)
	}

	f := formatter(
		output.Column{Path: "billingNo", Label: "BILLING NO"},
		output.Column{Path: "transactionTime", Label: "TIME"},
		output.Column{Path: "modelProductName", Label: "PRODUCT"},
		output.Column{Path: "tokenResourceName", Label: "RESOURCE"},
		output.Column{Path: "usageCount", Label: "USAGE"},
		output.Column{Path: "apiUsage", Label: "API USAGE"},
		output.Column{Path: "dueAmount", Label: "DUE"},
	)
	if _, table := f.(*output.TableFormatter); !table {
		return f.Write(cmd.OutOrStdout(), resp)
	}
	if err := f.Write(cmd.OutOrStdout(), resp.Items); err != nil {
		return err
	}
	output.WriteString(cmd.OutOrStdout(), fmt.Sprintf("\nPage %d, %d of %d bills", resp.Page, len(resp.Items), resp.Total))
	return nil
}

func runBillsCount(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	count, err := client.Bills.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count bills: %w", err)
	}
	return formatter(output.Col("count")).Write(cmd.OutOrStdout(), map[string]int{"count": count})
}

func runBillsProducts(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	products, err := client.Bills.Products(ctx)
	if err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}
	return formatter(output.Column{Path: "", Label: "PRODUCT"}).Write(cmd.OutOrStdout(), products)
}

func runBillsStats(cmd *cobra.Command, args []string) error {
	client := getAPIClient(0)
	ctx, cancel := getContext(cmd)
	defer cancel()

	stats, err := client.Bills.Stats(ctx, billsPeriod)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, table := formatter().(*output.TableFormatter); !table {
		return formatter().Write(out, stats)
	}
	if err := formatter(
		output.Col("period"),
		output.Column{Path: "callCount", Label: "CALLS"},
		output.Column{Path: "totalTokens", Label: "TOKENS"},
		output.Column{Path: "apiUsageCount", Label: "API USAGE"},
	).Write(out, stats); err != nil {
		return err
	}
	if len(stats.ResourceStats) == 0 {
		return nil
	}
	output.WriteString(out, "")
	return formatter(
		output.Column{Path: "tokenResourceName", Label: "RESOURCE"},
		output.Column{Path: "totalUsage", Label: "USAGE"},
		output.Column{Path: "callCount", Label: "CALLS"},
	).Write(out, stats.ResourceStats)
}
