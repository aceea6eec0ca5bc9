package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/app"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/service"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sync history of a tenant",
		Long: `List the newest sync_history rows of a tenant, one row per entity type and run,
newest first.`,
		RunE: runHistory,
	}
	cmd.Flags().Int64("tenant", 0, "Tenant id (required)")
	cmd.Flags().Int("limit", service.DefaultHistoryLimit, "Maximum number of rows")
	cmd.Flags().StringP("output", "o", outputTable, "Output format (table or json)")
	if err := cmd.MarkFlagRequired("tenant"); err != nil {
		panic(err)
	}
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	tenantID, err := cmd.Flags().GetInt64("tenant")
	if err != nil {
		return fmt.Errorf("failed to get tenant flag: %w", err)
	}
	if tenantID <= 0 {
		return fmt.Errorf("tenant must be a positive id")
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("failed to get limit flag: %w", err)
	}
	if limit < 1 || limit > service.MaxHistoryLimit {
		return fmt.Errorf("limit must be between 1 and %d", service.MaxHistoryLimit)
	}
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	if err := validateOutput(output); err != nil {
		return err
	}

	return withStores(cmd, func(stores *app.AppComponents) error {
		records, err := stores.History.List(cmd.Context(), tenantID, limit)
		if err != nil {
			return fmt.Errorf("failed to list history of tenant %d: %w", tenantID, err)
		}
		return renderHistory(cmd.OutOrStdout(), output, records)
	})
}
