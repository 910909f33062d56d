package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vaine/internal/blob"
	"vaine/internal/config"
	"vaine/internal/core"
	"vaine/internal/dataset"
	"vaine/internal/export"
	"vaine/internal/ledger"
)

// app carries the state shared by all subcommands.
type app struct {
	verbose    bool
	configPath string

	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "vaine",
		Short:         "Cluster-stratified treatment effect analysis",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.logger == nil {
				zcfg := zap.NewProductionConfig()
				if a.verbose {
					zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
				}
				logger, err := zcfg.Build()
				if err != nil {
					return fmt.Errorf("failed to initialize logger: %w", err)
				}
				a.logger = logger
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")
	root.AddCommand(newAnalyzeCmd(a), newServeCmd(a))
	return root
}

// loadInput reads the input document and optionally replaces its rows with
// a CSV file.
func loadInput(path, rowsPath string) (dataset.Input, error) {
	in, err := dataset.LoadFile(path)
	if err != nil {
		return dataset.Input{}, err
	}
	if rowsPath == "" {
		return in, nil
	}
	f, err := os.Open(rowsPath)
	if err != nil {
		return dataset.Input{}, fmt.Errorf("open rows: %w", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := dataset.ReadCSV(f)
	if err != nil {
		return dataset.Input{}, err
	}
	in.Data = rows
	if err := in.Validate(); err != nil {
		return dataset.Input{}, err
	}
	return in, nil
}

// openExporter opens the configured blob store and ledger. The returned
// closer releases the ledger.
func (a *app) openExporter(ctx context.Context, metrics core.MetricsRecorder) (*export.Exporter, io.Closer, error) {
	store, err := blob.Open(ctx, a.cfg.BlobStore())
	if err != nil {
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	led, err := ledger.Open(ctx, a.cfg.LedgerStore())
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}
	exp := export.NewExporter(store, led,
		export.WithLogger(a.logger),
		export.WithAudit(export.ZapAuditLog{Logger: a.logger.Named("audit")}),
		export.WithMetrics(metrics),
	)
	a.logger.Debug("exporter ready",
		zap.String("blob", string(store.Driver())),
		zap.String("ledger", string(led.Driver())),
	)
	return exp, led, nil
}
