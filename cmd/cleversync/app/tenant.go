package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/app"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/tenant"
)

func newTenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage the tenant directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Register or update a tenant",
		Long: `Register a school as a tenant, or update an existing one. A new tenant always
starts with a full sync.

Example:
  cleversync tenant add --config config.yaml --id 5 --external-id 5f3c... \
    --name "Lincoln High" --district d1 --database school_5`,
		RunE: runTenantAdd,
	}
	add.Flags().Int64("id", 0, "Tenant id (required)")
	add.Flags().String("external-id", "", "Clever school id (required)")
	add.Flags().String("name", "", "Display name")
	add.Flags().String("district", "", "Clever district id (required)")
	add.Flags().String("database", "", "Tenant database name (required)")
	add.Flags().Bool("inactive", false, "Register the tenant as inactive")
	for _, name := range []string{"id", "external-id", "district", "database"} {
		if err := add.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}

	requestFull := &cobra.Command{
		Use:   "request-full",
		Short: "Make the next sync of a tenant a full reconciliation",
		RunE:  runTenantRequestFull,
	}
	requestFull.Flags().Int64("tenant", 0, "Tenant id (required)")
	if err := requestFull.MarkFlagRequired("tenant"); err != nil {
		panic(err)
	}

	cmd.AddCommand(add, requestFull)
	return cmd
}

func tenantFromFlags(cmd *cobra.Command) (tenant.Tenant, error) {
	flags := cmd.Flags()
	t := tenant.Tenant{RequiresFullSync: true}
	var err error
	if t.ID, err = flags.GetInt64("id"); err != nil {
		return t, fmt.Errorf("failed to get id flag: %w", err)
	}
	if t.ExternalID, err = flags.GetString("external-id"); err != nil {
		return t, fmt.Errorf("failed to get external-id flag: %w", err)
	}
	if t.Name, err = flags.GetString("name"); err != nil {
		return t, fmt.Errorf("failed to get name flag: %w", err)
	}
	if t.DistrictID, err = flags.GetString("district"); err != nil {
		return t, fmt.Errorf("failed to get district flag: %w", err)
	}
	if t.DatabaseName, err = flags.GetString("database"); err != nil {
		return t, fmt.Errorf("failed to get database flag: %w", err)
	}
	inactive, err := flags.GetBool("inactive")
	if err != nil {
		return t, fmt.Errorf("failed to get inactive flag: %w", err)
	}
	t.Active = !inactive

	if t.ID <= 0 {
		return t, fmt.Errorf("id must be a positive integer")
	}
	if t.ExternalID == "" || t.DistrictID == "" || t.DatabaseName == "" {
		return t, fmt.Errorf("external-id, district and database cannot be empty")
	}
	if t.Name == "" {
		t.Name = t.ExternalID
	}
	return t, nil
}

func runTenantAdd(cmd *cobra.Command, _ []string) error {
	t, err := tenantFromFlags(cmd)
	if err != nil {
		return err
	}
	return withStores(cmd, func(stores *app.AppComponents) error {
		if err := stores.Tenants.Save(cmd.Context(), t); err != nil {
			return fmt.Errorf("failed to save tenant %d: %w", t.ID, err)
		}
		slog.Info("Tenant saved", "tenant", t.ID, "district", t.DistrictID, "active", t.Active)
		return nil
	})
}

func runTenantRequestFull(cmd *cobra.Command, _ []string) error {
	id, err := cmd.Flags().GetInt64("tenant")
	if err != nil {
		return fmt.Errorf("failed to get tenant flag: %w", err)
	}
	return withStores(cmd, func(stores *app.AppComponents) error {
		if err := stores.Tenants.RequestFullSync(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to flag tenant %d: %w", id, err)
		}
		slog.Info("Full sync requested", "tenant", id)
		return nil
	})
}
