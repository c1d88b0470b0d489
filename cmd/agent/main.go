// The agent is the device-side sync daemon. It owns the durable offline
// queue and keeps draining it toward the ingestion service whenever
// connectivity allows, independent of any visit session's lifetime.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rafaeyza/salestrack/internal/config"
	"github.com/rafaeyza/salestrack/internal/connectivity"
	"github.com/rafaeyza/salestrack/internal/metrics"
	"github.com/rafaeyza/salestrack/internal/queue"
	"github.com/rafaeyza/salestrack/internal/replay"
	"github.com/rafaeyza/salestrack/internal/scheduler"
	"github.com/rafaeyza/salestrack/pkg/clients/salesapi"
	"github.com/rafaeyza/salestrack/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	store, err := queue.Open(cfg.Agent.QueuePath, baseLogger.Named("queue"))
	if err != nil {
		baseLogger.Fatal("failed to open offline queue", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			baseLogger.Error("failed to close offline queue", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	agentMetrics := metrics.New(registry)

	if depth, err := store.Count(context.Background()); err == nil {
		agentMetrics.QueueDepth.Set(float64(depth))
	}

	apiClient := salesapi.NewClient(cfg.API)
	monitor := connectivity.NewMonitor(apiClient, cfg.Sync.ProbeInterval, baseLogger.Named("connectivity"))
	replayer := replay.NewReplayer(store, apiClient, agentMetrics, baseLogger.Named("replay"))

	sched := scheduler.NewScheduler(cfg.Sync, replayer, baseLogger.Named("scheduler"))
	sched.Start()
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go monitor.Run(ctx)
	go replayer.Run(ctx, monitor.Regained())

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         ":" + cfg.Agent.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		baseLogger.Info("agent listener starting", zap.String("port", cfg.Agent.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("agent listener crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
