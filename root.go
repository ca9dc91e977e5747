package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/meridianhq/meridian-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagBaseURL    string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// cfgHolder carries the effective configuration loaded by
// PersistentPreRunE. Available to all subcommands after the root pre-run
// phase completes.
var cfgHolder *config.Holder

// logger is the process-wide logger built from config and flags.
var logger *slog.Logger

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "meridian",
		Short:   "Meridian backend client",
		Long:    "A resilient client for the Meridian backend: offline request queueing,\ncached reads, and automatic credential refresh.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "backend origin (overrides config)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	// Register subcommands.
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newQueueCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newCallCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain
// (defaults -> file -> environment -> flags) and builds the process logger.
func loadConfig() error {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		BaseURL:    flagBaseURL,
		LogLevel:   logLevelFromFlags(),
	}

	cfg, path, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfgHolder = config.NewHolder(cfg, path)
	logger = buildLogger(cfg)
	slog.SetDefault(logger)

	return nil
}

// logLevelFromFlags maps --verbose/--quiet to a log level override.
// Empty means "use the config value".
func logLevelFromFlags() string {
	switch {
	case flagVerbose:
		return "debug"
	case flagQuiet:
		return "error"
	default:
		return ""
	}
}

// buildLogger creates an slog.Logger from the resolved logging config.
// Format "auto" selects a text handler on a terminal and JSON otherwise,
// so piped and service output stays machine-readable.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo

	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	format := cfg.Logging.Format
	if format == "auto" {
		if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
			format = "text"
		} else {
			format = "json"
		}
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
