// Package app provides the commands of the cleversync CLI.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BillSOS/CleverSyncSOS-sub001/internal/app"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/config"
	"github.com/BillSOS/CleverSyncSOS-sub001/internal/versions"
)

// EnvPrefix is the prefix of environment variables read through viper
const EnvPrefix = "CLEVERSYNC"

// NewRootCmd creates the root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "cleversync",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Clever roster sync service",
		Long: `cleversync replicates Clever roster data (schools, students, teachers, sections)
into one database per school, with full and incremental sync modes.`,
		PersistentPreRunE: setupLogging,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (YAML format)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", LogFormatJSON, "Log format (json or text)")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"config", "debug", "log-format"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSyncCmd(),
		newMigrateCmd(),
		newLockCmd(),
		newHistoryCmd(),
		newTenantCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	format := viper.GetString("log-format")
	if format != LogFormatJSON && format != LogFormatText {
		return fmt.Errorf("unsupported log format %q (expected %s or %s)", format, LogFormatJSON, LogFormatText)
	}
	// Keep the handler installed by main unless asked otherwise
	if !viper.GetBool("debug") && !cmd.Flags().Changed("log-format") {
		return nil
	}

	level := slog.LevelInfo
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(NewLogHandler(os.Stderr, format, level)))
	return nil
}

// loadConfig loads the configuration file named by --config or CLEVERSYNC_CONFIG
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("a configuration file is required (--config or %s_CONFIG)", EnvPrefix)
	}
	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Debug("Loaded configuration", "path", path)
	return cfg, nil
}

// withStores loads the configuration, opens the control plane stores for
// the duration of fn and closes them afterwards
func withStores(cmd *cobra.Command, fn func(*app.AppComponents) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	stores, err := app.BuildStores(ctx, app.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(ctx); err != nil {
			slog.Warn("Failed to close stores", "error", err)
		}
	}()
	return fn(stores)
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("failed to get format flag: %w", err)
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to format version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "cleversync %s (commit %s, built %s, %s, %s)\n",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
