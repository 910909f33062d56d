package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaine/internal/adapters/session"
	"vaine/internal/core"
)

type serveOptions struct {
	input string
	rows  string
	addr  string
}

func newServeCmd(a *app) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve one interactive analysis session over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			srv, closer, err := a.buildServer(ctx, opts)
			if err != nil {
				return err
			}
			defer func() { _ = closer() }()
			return a.runServer(ctx, srv)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input document (JSON)")
	cmd.Flags().StringVar(&opts.rows, "rows", "", "CSV file replacing the document's data rows")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// buildServer wires the session, exporter and metrics endpoints.
func (a *app) buildServer(ctx context.Context, opts *serveOptions) (*http.Server, func() error, error) {
	in, err := loadInput(opts.input, opts.rows)
	if err != nil {
		return nil, nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := core.MultiRecorder{core.NewPrometheusRecorder(reg), core.NewExpvarMetricsRecorder("")}

	s, err := core.NewSession(in,
		core.WithLogger(a.logger),
		core.WithMetrics(metrics),
		core.WithClusterCount(a.cfg.Clusters),
		core.WithThreshold(a.cfg.Alpha),
	)
	if err != nil {
		return nil, nil, err
	}
	exp, closer, err := a.openExporter(ctx, metrics)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	api := session.NewHandler(s, exp, a.logger)
	mux.Handle("/api/", api)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	addr := opts.addr
	if addr == "" {
		addr = a.cfg.HTTP.Addr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.logger.Info("session ready",
		zap.String("session", s.ID()),
		zap.String("pair", s.Snapshot().Pair().String()),
		zap.Int("clusters", s.Snapshot().ClusterCount()),
	)
	return srv, closer.Close, nil
}

func (a *app) runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	a.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
