package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"tidytabs/internal/clix"
	"tidytabs/internal/services"
)

var (
	costListLimit  int
	costListOffset int
)

// costCmd represents the base command for cost operations.
var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "View AI usage costs",
	Long:  `Lists recorded generation and categorization calls and summarizes their cost.`,
}

var costListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detailed AI usage logs",
	Long:  `Displays a paginated list of recorded AI API calls with associated costs and token counts, newest first.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		costService, err := requireCostService(cmd)
		if err != nil {
			return err
		}

		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		out := cmd.OutOrStdout()
		logs, err := costService.ListUsage(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list cost logs: %w", err)
		}

		if len(logs) == 0 {
			fmt.Fprintln(out, "No cost logs found.")
			return nil
		}

		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"ID", "Timestamp", "Provider", "Service", "Model", "In", "Out", "Cost", "Request ID"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		for _, l := range logs {
			reqID := "N/A"
			if l.RequestID != nil {
				reqID = *l.RequestID
			}
			table.Append([]string{
				strconv.FormatInt(l.ID, 10),
				l.Timestamp.Format("2006-01-02 15:04:05"),
				l.ProviderName,
				l.ServiceType,
				l.ModelName,
				strconv.Itoa(l.InputTokens),
				strconv.Itoa(l.OutputTokens),
				fmt.Sprintf("%.8f", l.Cost),
				reqID,
			})
		}
		table.Render()

		fmt.Fprintf(out, "\nDisplayed %d logs.\n", len(logs))
		return nil
	},
}

var costSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show summary of total AI costs and token usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		costService, err := requireCostService(cmd)
		if err != nil {
			return err
		}

		sum, err := costService.GetSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get cost summary: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "AI Usage Cost Summary:")
		fmt.Fprintln(out, "----------------------")
		fmt.Fprintf(out, "Calls:               %d\n", sum.Calls)
		fmt.Fprintf(out, "Total Cost:          $%.6f\n", sum.TotalCost)
		fmt.Fprintf(out, "Total Input Tokens:  %d\n", sum.TotalInputTokens)
		fmt.Fprintf(out, "Total Output Tokens: %d\n", sum.TotalOutputTokens)
		fmt.Fprintln(out, "----------------------")
		return nil
	},
}

func requireCostService(cmd *cobra.Command) (*services.CostService, error) {
	appInstance, err := GetAppFromContext(cmd.Context())
	if err != nil {
		return nil, err
	}
	if appInstance.CostService == nil {
		return nil, fmt.Errorf("usage tracking is disabled: set database.dsn to enable it")
	}
	return appInstance.CostService, nil
}

func init() {
	costCmd.AddCommand(costListCmd)
	costCmd.AddCommand(costSummaryCmd)

	costListCmd.Flags().IntVarP(&costListLimit, "limit", "l", 50, "Number of logs to display")
	costListCmd.Flags().IntVarP(&costListOffset, "offset", "o", 0, "Number of logs to skip")
}
