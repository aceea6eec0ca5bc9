package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/app"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/sync/orchestrator"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a sync now",
		Long: `Run a sync for a scope and print a summary.

Scopes:
  school:<id>       one tenant
  district:<id>     every active tenant of a district
  all               every active tenant

Interrupting the command lets tenants in flight finish their current entity
type; tenants that have not started are reported as cancelled.

Examples:
  cleversync sync --config config.yaml --scope school:5
  cleversync sync --config config.yaml --scope district:d1 --full --output json`,
		RunE: runSync,
	}
	cmd.Flags().String("scope", "", "Scope to sync (required)")
	cmd.Flags().Bool("full", false, "Force a full reconciliation")
	cmd.Flags().String("mode", string(orchestrator.ModeAuto), "Sync mode (auto, full or incremental)")
	cmd.Flags().Int("concurrency", 0, "Tenants synced in parallel (0 = sync.concurrency)")
	cmd.Flags().StringP("output", "o", outputTable, "Output format (table or json)")
	if err := cmd.MarkFlagRequired("scope"); err != nil {
		panic(err)
	}
	return cmd
}

type syncFlags struct {
	scope       string
	full        bool
	mode        orchestrator.Mode
	concurrency int
	output      string
}

func getSyncFlags(cmd *cobra.Command) (*syncFlags, error) {
	f := &syncFlags{}
	var err error
	if f.scope, err = cmd.Flags().GetString("scope"); err != nil {
		return nil, fmt.Errorf("failed to get scope flag: %w", err)
	}
	if f.full, err = cmd.Flags().GetBool("full"); err != nil {
		return nil, fmt.Errorf("failed to get full flag: %w", err)
	}
	modeStr, err := cmd.Flags().GetString("mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get mode flag: %w", err)
	}
	mode, ok := orchestrator.ParseMode(modeStr)
	if !ok {
		return nil, fmt.Errorf("unknown mode %q (expected auto, full or incremental)", modeStr)
	}
	f.mode = mode
	if f.concurrency, err = cmd.Flags().GetInt("concurrency"); err != nil {
		return nil, fmt.Errorf("failed to get concurrency flag: %w", err)
	}
	if f.concurrency < 0 {
		return nil, fmt.Errorf("concurrency cannot be negative")
	}
	if f.output, err = cmd.Flags().GetString("output"); err != nil {
		return nil, fmt.Errorf("failed to get output flag: %w", err)
	}
	if err := validateOutput(f.output); err != nil {
		return nil, err
	}
	return f, nil
}

func runSync(cmd *cobra.Command, _ []string) error {
	flags, err := getSyncFlags(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.BuildComponents(ctx, app.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(context.Background()); err != nil {
			slog.Warn("Failed to close components", "error", err)
		}
	}()

	summary, err := components.Orchestrator.Run(ctx, orchestrator.Request{
		Scope:       flags.scope,
		Mode:        flags.mode,
		Concurrency: flags.concurrency,
		ForceFull:   flags.full,
		Initiator:   "cli",
		Observer:    logTenantResult,
	})
	if err != nil {
		return fmt.Errorf("sync %s failed: %w", flags.scope, err)
	}

	if err := renderSummary(cmd.OutOrStdout(), flags.output, summary); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}
	return summaryError(summary)
}

func logTenantResult(r orchestrator.TenantResult) {
	attrs := []any{
		"tenant", r.TenantID,
		"outcome", r.Outcome,
		"mode", r.Mode,
		"changed", r.Changed(),
		"duration", r.Duration,
	}
	if r.Err != nil {
		attrs = append(attrs, "error", r.Err)
	}
	slog.Info("Tenant sync finished", attrs...)
}

// summaryError makes the command exit non-zero when any tenant failed or
// finished partially
func summaryError(s *orchestrator.Summary) error {
	if s.Failed == 0 && s.Partial == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d tenant(s) failed, %d partial", s.Failed, s.Total, s.Partial)
}
