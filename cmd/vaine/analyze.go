package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"vaine/internal/core"
	"vaine/internal/export"
	"vaine/pkg/domain"
)

type analyzeOptions struct {
	input     string
	rows      string
	treatment string
	outcome   string
	clusters  int
	alpha     float64
	exclude   []int
	valid     []string
	names     []string
	export    bool
	formats   []string
	trace     string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one analysis over an input document and print the result",
		Long: `Loads an input document, applies the requested gestures in order
(cluster count, threshold, exclusions, validity and name edits) and prints
the analysis document as JSON. With --export the document is also stored
and recorded in the export ledger.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runAnalyze(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.input, "input", "i", "", "input document (JSON)")
	f.StringVar(&opts.rows, "rows", "", "CSV file replacing the document's data rows")
	f.StringVarP(&opts.treatment, "treatment", "t", "", "treatment column (default: first declared)")
	f.StringVarP(&opts.outcome, "outcome", "o", "", "outcome column (default: first declared)")
	f.IntVarP(&opts.clusters, "clusters", "n", 0, "number of clusters (default from config)")
	f.Float64Var(&opts.alpha, "alpha", 0, "significance threshold (default from config)")
	f.IntSliceVar(&opts.exclude, "exclude", nil, "observation indices to exclude for the pair")
	f.StringSliceVar(&opts.valid, "valid", nil, "manual validity as cluster=true|false")
	f.StringSliceVar(&opts.names, "name", nil, "custom cluster name as cluster=name")
	f.BoolVar(&opts.export, "export", false, "store the document and record it in the ledger")
	f.StringSliceVar(&opts.formats, "format", []string{"json"}, "export formats (json, csv)")
	f.StringVar(&opts.trace, "trace", "", "write recompute spans as JSON lines to this file")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, opts *analyzeOptions) error {
	ctx := cmd.Context()
	in, err := loadInput(opts.input, opts.rows)
	if err != nil {
		return err
	}

	clusters := a.cfg.Clusters
	if opts.clusters > 0 {
		clusters = opts.clusters
	}
	alpha := a.cfg.Alpha
	if opts.alpha > 0 {
		alpha = opts.alpha
	}
	metrics := core.NewExpvarMetricsRecorder("")
	sessionOpts := []core.Option{
		core.WithLogger(a.logger),
		core.WithMetrics(metrics),
		core.WithClusterCount(clusters),
		core.WithThreshold(alpha),
	}
	if opts.treatment != "" || opts.outcome != "" {
		pair := domain.NewPairKey(opts.treatment, opts.outcome)
		if pair.Treatment == "" {
			pair.Treatment = in.Treatments[0]
		}
		if pair.Outcome == "" {
			pair.Outcome = in.Outcomes[0]
		}
		sessionOpts = append(sessionOpts, core.WithPair(pair))
	}
	if opts.trace != "" {
		f, err := os.Create(opts.trace)
		if err != nil {
			return fmt.Errorf("create trace file: %w", err)
		}
		defer func() { _ = f.Close() }()
		sessionOpts = append(sessionOpts, core.WithTracer(core.NewJSONTracer(f)))
	}

	s, err := core.NewSession(in, sessionOpts...)
	if err != nil {
		return err
	}
	ctx = core.WithSessionID(ctx, s.ID())

	if len(opts.exclude) > 0 {
		if err := s.Exclude(ctx, opts.exclude...); err != nil {
			return err
		}
	}
	for _, raw := range opts.valid {
		id, value, err := splitClusterFlag(raw)
		if err != nil {
			return err
		}
		valid, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid --valid %q: %w", raw, err)
		}
		if err := s.SetClusterValid(ctx, id, valid); err != nil {
			return err
		}
	}
	for _, raw := range opts.names {
		id, name, err := splitClusterFlag(raw)
		if err != nil {
			return err
		}
		if err := s.SetClusterName(ctx, id, name); err != nil {
			return err
		}
	}

	doc := s.ExportDocument()
	out := map[string]any{"document": doc}
	if opts.export {
		formats := make([]export.Format, 0, len(opts.formats))
		for _, raw := range opts.formats {
			f, err := export.ParseFormat(raw)
			if err != nil {
				return err
			}
			formats = append(formats, f)
		}
		exp, closer, err := a.openExporter(ctx, metrics)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()
		rec, err := exp.Export(ctx, doc, formats...)
		if err != nil {
			return err
		}
		out["export"] = rec
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func splitClusterFlag(raw string) (domain.ClusterID, string, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok {
		return 0, "", fmt.Errorf("expected cluster=value, got %q", raw)
	}
	id, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil {
		return 0, "", fmt.Errorf("invalid cluster id in %q", raw)
	}
	return domain.ClusterID(id), value, nil
}
