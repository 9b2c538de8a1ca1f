package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/classeval/internal/config"
	"github.com/abhisek/classeval/internal/logger"
	"github.com/abhisek/classeval/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "classeval",
	Short:        "Generate classroom performance evaluations",
	Long:         "classeval merges a class activity log with the roster, asks an LLM for per-student evaluations and a class-wide analysis, and recovers them into a validated report.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides CLASSEVAL_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to TOML config file (overrides CLASSEVAL_CONFIG env var)")
	rootCmd.PersistentFlags().String("log-mode", "", "Log output: dev, prod or quiet (overrides [log] mode)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then CLASSEVAL_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// openStore opens the database named by resolveDBPath.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	dbPath, err := resolveDBPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// loadSettings resolves the config file named by --config, or the default
// path, into Settings.
func loadSettings(cmd *cobra.Command) (config.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	s, err := config.LoadSettings(path)
	if err != nil {
		return config.Settings{}, fmt.Errorf("load config: %w", err)
	}
	if mode, _ := cmd.Flags().GetString("log-mode"); mode != "" {
		s.LogMode = mode
	}
	return s, nil
}

// newLogger builds the logger for the resolved settings.
func newLogger(s config.Settings) (*logger.Logger, error) {
	log, err := logger.New(s.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return log, nil
}
