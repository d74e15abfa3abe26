package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/loomkit/loom/internal/config"
	"github.com/loomkit/loom/pkg/hostapp"
	"github.com/loomkit/loom/pkg/obs"
	"github.com/loomkit/loom/pkg/reactive"
	"github.com/loomkit/loom/pkg/reconcile"
	"github.com/loomkit/loom/pkg/scheduler"
	"github.com/loomkit/loom/pkg/transport"
)

// AppFactory is supplied by a generated/user main package binding loom's
// CLI to an actual root component; wired here only as the hook point
// (the loom module itself ships no demo app).
var AppFactory func() (*hostapp.App, error)

func serveCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a loom application over HTTP + WebSocket",
		Long: `Mounts the application's live WebSocket endpoint and a
Prometheus /metrics endpoint on a chi router.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVarP(&host, "host", "H", "0.0.0.0", "Host to bind to")

	return cmd
}

func runServe(host string, port int) error {
	if AppFactory == nil {
		return fmt.Errorf("loom serve: no application registered (AppFactory is nil)")
	}

	cfg := config.FromEnv()
	log := slog.Default()

	reactive.SetStrictMode(cfg.Strict == config.StrictPanic)
	reconcile.SetFastlaneThresholds(cfg.FastlaneThreshold, cfg.BulkTextThreshold)

	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(reg)
	reconcile.FastlaneObserver = func(hit bool) {
		if hit {
			metrics.FastlaneHits.Inc()
		} else {
			metrics.FastlaneMisses.Inc()
		}
	}
	scheduler.RenderObserver = func(string) {
		metrics.DirtyInstances.Inc()
	}
	scheduler.FlushHook = func(drain func() error) error {
		return obs.TraceFlush(context.Background(), metrics, drain)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Handle("/ws", transport.Handler(AppFactory, log))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", host, port)
	log.Info("loom: serving", "addr", addr, "dev_mode", cfg.DevMode)
	return http.ListenAndServe(addr, r)
}
