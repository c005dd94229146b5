package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"mercator-hq/richhistory/pkg/richhistory"
	"mercator-hq/richhistory/pkg/richhistory/retention"
	"mercator-hq/richhistory/pkg/richhistory/service"
	"mercator-hq/richhistory/pkg/richhistory/settings"
	"mercator-hq/richhistory/pkg/telemetry/health"
)

// shutdownTimeout bounds the HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled retention and the metrics endpoint",
	Long: `Run until SIGINT or SIGTERM:

  - prunes expired entries on retention.schedule
  - serves Prometheus metrics and /healthz when metrics.enabled is set
  - reloads the settings file on change when settings.watch is set`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := slog.Default().With("component", "richhistory.serve")

	var metrics *service.Metrics
	var registry *prometheus.Registry
	if appConfig.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = service.NewMetrics(registry)
	}

	svc, err := openService(ctx, metrics)
	if err != nil {
		return err
	}
	defer svc.Close()

	pruner := newPruner(svc)
	if err := pruner.Start(ctx); err != nil {
		return err
	}
	defer pruner.Stop()
	if next := pruner.NextPruning(); next != nil {
		logger.Info("next retention run scheduled", "at", next)
	}

	if appConfig.Settings.Watch && appConfig.Settings.File != "" {
		watcher, err := startSettingsWatcher(ctx, pruner)
		if err != nil {
			return err
		}
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	var srv *http.Server
	if registry != nil {
		srv = newMetricsServer(registry, svc)
		go func() {
			logger.Info("metrics endpoint listening",
				"address", srv.Addr,
				"path", appConfig.Metrics.Path,
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
	}

	logger.Info("richhistory serving", "backend", svc.Backend(), "max_entries", svc.MaxEntries())

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown failed: %w", err)
		}
	}
	return nil
}

// newMetricsServer serves the registry and a readiness check of the store.
func newMetricsServer(registry *prometheus.Registry, svc *service.Service) *http.Server {
	checker := health.New(appConfig.History.OperationTimeout)
	checker.Register("storage", func(ctx context.Context) error {
		_, err := svc.GetRichHistory(ctx, richhistory.SearchFilters{Limit: 1})
		return err
	})
	checker.Register("settings", func(ctx context.Context) error {
		_, err := svc.GetSettings(ctx)
		return err
	})

	mux := http.NewServeMux()
	mux.Handle(appConfig.Metrics.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.Handle("/healthz", checker.Handler())

	return &http.Server{
		Addr:              appConfig.Metrics.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// startSettingsWatcher prunes right away when the settings file changes, so
// a shorter retention period takes effect without waiting for the schedule.
func startSettingsWatcher(ctx context.Context, pruner *retention.Pruner) (*settings.Watcher, error) {
	watcher, err := settings.NewWatcher(settings.NewFileStore(appConfig.Settings.File), 0)
	if err != nil {
		return nil, err
	}

	go func() {
		err := watcher.Watch(ctx, func(s richhistory.Settings) error {
			_, err := pruner.Prune(ctx)
			return err
		})
		if err != nil {
			slog.Error("settings watcher stopped", "error", err)
		}
	}()
	return watcher, nil
}
