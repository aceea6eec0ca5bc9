// Package main is the entry point for the cleversync roster sync service.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/BillSOS/CleverSyncSOS-sub001/cmd/cleversync/app"
)

// getLogLevel parses the CLEVERSYNC_LOG_LEVEL environment variable and returns the corresponding slog.Level.
// Defaults to slog.LevelInfo if it is not set or if the value is invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(app.EnvPrefix)
	v.AutomaticEnv()

	levelStr := v.GetString("LOG_LEVEL")
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
		return slog.LevelInfo
	}
}

func main() {
	// Use stderr to keep stdout clean for commands that output data (e.g., sync --output json).
	slog.SetDefault(slog.New(app.NewLogHandler(os.Stderr, app.LogFormatJSON, getLogLevel())))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
