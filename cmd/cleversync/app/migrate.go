package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/BillSOS/CleverSyncSOS-sub001/database"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Control database migration tool",
		Long:  `Control database migration tool for managing schema versions. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply pending migrations to the control database (tenants, sync_history,
sync_locks, sync_baselines). Connection parameters come from the database
section of the config file.`,
		RunE: runMigrateUp,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the control database schema down by reverting migrations.
WARNING: This operation can result in loss of sync history and baselines.

Examples:
  # Migrate down by 1 step
  cleversync migrate down --config config.yaml --num-steps 1 --yes`,
		RunE: runMigrateDown,
	})
	return cmd
}

type migrationFlags struct {
	yes      bool
	numSteps uint
}

func setupMigration(cmd *cobra.Command) (database.Migrator, *migrationFlags, error) {
	flags := &migrationFlags{}
	var err error
	if flags.yes, err = cmd.Flags().GetBool("yes"); err != nil {
		return nil, nil, fmt.Errorf("failed to get yes flag: %w", err)
	}
	if flags.numSteps, err = cmd.Flags().GetUint("num-steps"); err != nil {
		return nil, nil, fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if flags.numSteps > math.MaxInt32 {
		return nil, nil, fmt.Errorf("number of steps exceeds maximum allowed value")
	}
	if !flags.yes && !isTerminal(cmd.InOrStdin()) {
		return nil, nil, fmt.Errorf("stdin is not a terminal: pass --yes to migrate non-interactively")
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	m, err := database.NewFromConnectionString(connString)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("Connected to control database",
		"user", cfg.Database.User, "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
	return m, flags, nil
}

func closeMigrator(m database.Migrator) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		slog.Warn("Error closing migrator", "error", err)
	}
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	m, flags, err := setupMigration(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if !flags.yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Apply migrations to the control database?") {
		return fmt.Errorf("migration cancelled by user")
	}

	if flags.numSteps == 0 {
		slog.Info("Applying all pending migrations...")
		err = m.Up()
	} else {
		slog.Info("Applying migrations", "steps", flags.numSteps)
		err = m.Steps(int(flags.numSteps)) // #nosec G115 -- bounded in setupMigration
	}
	if err := migrationResult(err, "No pending migrations - database is up to date"); err != nil {
		return err
	}

	displayMigrationVersion(m)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	m, flags, err := setupMigration(cmd)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if !flags.yes {
		prompt := "WARNING: This will migrate down ALL steps and drop all sync state. Continue?"
		if flags.numSteps > 0 {
			prompt = fmt.Sprintf("WARNING: This will migrate down %d step(s) and may result in data loss. Continue?", flags.numSteps)
		}
		if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
			return fmt.Errorf("migration cancelled by user")
		}
	}

	if flags.numSteps == 0 {
		slog.Warn("Migrating down all steps - this will remove all schema!")
		err = m.Down()
	} else {
		slog.Info("Reverting migrations", "steps", flags.numSteps)
		err = m.Steps(-int(flags.numSteps)) // #nosec G115 -- bounded in setupMigration
	}
	if err := migrationResult(err, "No migrations to revert - database is already at the oldest version"); err != nil {
		return err
	}

	displayMigrationVersion(m)
	return nil
}

func migrationResult(err error, noChange string) error {
	if errors.Is(err, migrate.ErrNoChange) {
		slog.Info(noChange)
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	slog.Info("Migration completed successfully")
	return nil
}

func displayMigrationVersion(m database.Migrator) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		slog.Info("Database schema has been completely removed")
	case err != nil:
		slog.Warn("Failed to get migration version", "error", err)
	case dirty:
		slog.Warn("Database is in a dirty state - manual intervention may be required", "version", version)
	default:
		slog.Info("Current migration version", "version", version)
	}
}

// isTerminal reports whether in is an interactive terminal
func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) // #nosec G115 -- file descriptors fit in int
}

// confirm asks a yes/no question on out and reads the answer from in
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	_, _ = fmt.Fprintf(out, "%s (yes/no): ", prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "yes" || answer == "y"
}
