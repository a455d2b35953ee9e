package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/tsawhneybuilds/exploprd/internal/activities"
	"github.com/tsawhneybuilds/exploprd/internal/config"
	"github.com/tsawhneybuilds/exploprd/internal/events"
	"github.com/tsawhneybuilds/exploprd/internal/ingest"
	"github.com/tsawhneybuilds/exploprd/internal/providers"
	"github.com/tsawhneybuilds/exploprd/internal/storage"
	"github.com/tsawhneybuilds/exploprd/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress, Namespace: cfg.TemporalNamespace})
	if err != nil {
		slog.Error("dial temporal", "error", err)
		os.Exit(1)
	}
	defer tc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		slog.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := storage.EnsureSchema(ctx, db); err != nil {
		slog.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	provider, err := providers.New(cfg)
	if err != nil {
		slog.Error("build provider", "error", err)
		os.Exit(1)
	}

	w := worker.New(tc, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(cfg, db, provider, slog.Default()))

	nc, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("connect nats", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	consumer := ingest.NewConsumer(tc, storage.NewDocumentRepo(db), cfg.UploadRoot, cfg.TemporalTaskQueue, slog.Default())
	if err := nc.Subscribe(events.SubjectUploadFinalized, consumer.HandleUploadFinalized); err != nil {
		slog.Error("subscribe upload events", "error", err)
		os.Exit(1)
	}

	slog.Info("worker running", "temporal", cfg.TemporalAddress, "queue", cfg.TemporalTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
