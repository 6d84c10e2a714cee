package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"farm-market-backend/internal/config"
	"farm-market-backend/internal/database"
	"farm-market-backend/internal/importer"
	"farm-market-backend/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type importOptions struct {
	file    string
	reset   bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import-farms",
		Short: "Bulk import farms and their crop listings from a JSON or .xlsx file",
		Long: `Imports a JSON array of farms, each with an optional "crops" array of
listings, or an .xlsx workbook with one listing per row, in a single
transaction. Crops are matched to the existing catalog
by name and origin; farms are always inserted.

Example:
  import-farms --file data/real_farms.json --reset`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Path to the .json or .xlsx batch (required)")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Delete all listings, farms and crops before importing")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(ctx context.Context, opts importOptions) error {
	cfg := config.Load()
	level := cfg.LogLevel
	if opts.verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	for _, w := range cfg.Warnings {
		log.Debug(w)
	}

	// Input problems are fatal before any database access.
	records, err := importer.LoadBatch(opts.file)
	if err != nil {
		return err
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}()

	if err := database.Bootstrap(db, log); err != nil {
		return err
	}

	res, err := importer.New(db, log).Run(ctx, records, importer.Options{Reset: opts.reset})
	if err != nil {
		log.Error("import failed", zap.Error(err))
		return err
	}

	fmt.Printf("Imported %d farms successfully (%d skipped).\n", res.FarmsImported, res.FarmsSkipped)
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Import failed:", err)
		stop()
		os.Exit(1)
	}
}
