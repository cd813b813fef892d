// =============================================================================
// Order History Export - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI and the runtime that
// every subcommand shares: configuration, logger and the aggregate store.
//
// COBRA CLI STRUCTURE:
//   rootCmd (orderexport)
//   ├── fetchCmd   (orderexport fetch)
//   ├── exportCmd  (orderexport export)
//   ├── statusCmd  (orderexport status)
//   ├── resetCmd   (orderexport reset)
//   └── versionCmd (orderexport version)
//
// STARTUP ORDER:
//   1. Load the .env file (--env-file, or ./.env when present)
//   2. Load config.yaml (--config); a missing file means defaults
//   3. Build the logger (--verbose forces debug)
//   4. Open the store backend
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/order-history-export/internal/config"
	"github.com/ginjaninja78/order-history-export/internal/logging"
	"github.com/ginjaninja78/order-history-export/internal/store"
	"github.com/ginjaninja78/order-history-export/pkg/utils"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// envFile is an optional dotenv file loaded before the configuration.
var envFile string

// verbose enables debug logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "orderexport",
	Short: "Order History Export - Collect order history pages into a flat export",
	Long: `Order History Export reads saved order-history list pages, fetches each
order's invoice, and accumulates the orders in a keyed store. The store can
then be exported as a pipe-delimited orders.csv (or an orders.xlsx workbook).

Key Features:
  - Understands both invoice page generations (table and grid layouts)
  - Skips digital orders, counts cancelled ones without fetching them
  - Keeps running totals: order count and earliest/latest order date
  - Memory, file and redis store backends

Example Usage:
  orderexport fetch --list page1.html --invoice-dir ./invoices
  orderexport status
  orderexport export --stdout
  orderexport reset`,

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		"",
		"Load environment variables from this file (default ./.env when present)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// =============================================================================
// SHARED RUNTIME
// =============================================================================

// session is what a subcommand needs to touch the store.
type session struct {
	cfg    *config.MainConfig
	logger *log.Logger
	store  *store.AggregateStore

	closers []func() error
}

// setup loads configuration, builds the logger and opens the store.
func setup(ctx context.Context) (*session, error) {
	if err := loadEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile, verbose)
	if err != nil {
		return nil, err
	}
	rt := &session{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	kv, closeStore, err := store.Open(ctx, cfg.Store)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	rt.store = store.NewAggregateStore(kv, cfg.Store.Namespace)
	rt.closers = append(rt.closers, closeStore)

	logger.WithFields(log.Fields{
		"config":  cfgFile,
		"backend": cfg.Store.Backend,
	}).Debug("runtime ready")

	return rt, nil
}

// Close releases the store connection and the log file.
func (rt *session) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func loadEnv() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return nil
	}
	if utils.FileExists(".env") {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("failed to load .env: %w", err)
		}
	}
	return nil
}
