package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iliyamo/movies-api/internal/config"
	"github.com/iliyamo/movies-api/internal/logger"
)

var (
	version = "dev"
	cfgFile string
)

// rootCmd runs the API server when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "movies-api",
	Short: "HTTP backend for a table of movies",
	Long: `movies-api serves create, read, update, like and delete operations on
movies stored in MySQL or an embedded SQLite file.

Configuration comes from environment variables (see .env), an optional
--config file, and built-in defaults.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml); environment variables take precedence")
}

// setup loads the configuration and builds the process logger shared by
// every command.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty).With().Str("env", cfg.App.Env).Logger()
	return cfg, log, nil
}
