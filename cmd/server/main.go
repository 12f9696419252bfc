package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atena-labs/sentinel-console/agent/internal/backend"
	"github.com/atena-labs/sentinel-console/agent/internal/config"
	httpapi "github.com/atena-labs/sentinel-console/agent/internal/http"
	"github.com/atena-labs/sentinel-console/agent/internal/logging"
	"github.com/atena-labs/sentinel-console/agent/internal/notify"
	"github.com/atena-labs/sentinel-console/agent/internal/scan"
	"github.com/atena-labs/sentinel-console/agent/internal/storage"
	"github.com/atena-labs/sentinel-console/agent/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := os.MkdirAll(cfg.DBDir(), 0o755); err != nil {
		logger.Error("failed to create db directory", "err", err)
		os.Exit(1)
	}
	repo, err := storage.New(ctx, cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	client := backend.NewClient(cfg.BackendURL, cfg.BackendToken)

	queue := notify.NewQueue(client, repo, logger.With("component", "notify"))
	aggregator := notify.NewAggregator(queue, client, repo, cfg.CycleInterval, logger.With("component", "notify"))

	session := scan.NewSession(client, repo, cfg.StatusInterval, cfg.ResultsInterval, logger.With("component", "scan"))
	monitor := scan.NewMonitor(session, logger.With("component", "monitor"))

	hub := ws.NewHub(logger.With("component", "ws"))
	go forwardQueueEvents(ctx, queue, hub)
	go pushScanStatus(ctx, session, hub, cfg.StatusInterval)

	go aggregator.Run(ctx)
	go session.Run(ctx)

	api := httpapi.New(session, monitor, queue, repo, hub, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("agent starting", "addr", httpServer.Addr, "backend", cfg.BackendURL)
	if err := httpapi.RunServer(ctx, httpServer, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated with error", "err", err)
		os.Exit(1)
	}
	logger.Info("agent stopped")
}

func forwardQueueEvents(ctx context.Context, queue *notify.Queue, hub *ws.Hub) {
	events, cancel := queue.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			hub.Broadcast("toast", event)
		}
	}
}

func pushScanStatus(ctx context.Context, session *scan.Session, hub *ws.Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if hub.ClientCount() == 0 {
				continue
			}
			hub.Broadcast("scan-status", session.Status())
		}
	}
}
