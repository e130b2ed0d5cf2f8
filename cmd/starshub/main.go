// Command starshub runs the progress and gamification engine: the HTTP API,
// schema migrations and a few operator tools.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kidlearn/stars-hub/config"
	"github.com/kidlearn/stars-hub/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "starshub",
	Short:         "Stars, streaks and levels for young learners",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Directory containing config.yaml (defaults to . and ./config)")
	rootCmd.PersistentFlags().String("store", "", "Persistence backend: postgres or memory (overrides APP_STORE)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file loaded before the environment is read")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(hashKeyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// loadConfig reads the dotenv file, then config.yaml and the environment.
// The --store flag wins over both.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	if store, _ := cmd.Flags().GetString("store"); store != "" {
		v.Set("app.store", store)
	}

	paths := []string{".", "./config"}
	if dir, _ := cmd.Flags().GetString("config"); dir != "" {
		paths = []string{dir}
	}

	cfg, err := config.LoadFrom(v, paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setupLogger builds the process logger. Text output is colourised for local
// development; everything else logs JSON.
func setupLogger(cfg *config.Config) *logger.Logger {
	opts := logger.DefaultOptions()
	opts.Output = os.Stderr
	opts.Level = logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		opts.Level = logger.LevelDebug
	}
	if cfg.Observability.LogFormat == string(logger.FormatText) {
		opts.Format = logger.FormatText
	}
	opts.AddCaller = cfg.IsDevelopment()

	return logger.New(opts).With(
		logger.String("service", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)
}
