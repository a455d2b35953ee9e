package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/tsawhneybuilds/exploprd/internal/api"
	"github.com/tsawhneybuilds/exploprd/internal/chat"
	"github.com/tsawhneybuilds/exploprd/internal/config"
	"github.com/tsawhneybuilds/exploprd/internal/events"
	"github.com/tsawhneybuilds/exploprd/internal/export"
	"github.com/tsawhneybuilds/exploprd/internal/providers"
	"github.com/tsawhneybuilds/exploprd/internal/retrieval"
	"github.com/tsawhneybuilds/exploprd/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

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

	nc, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("connect nats", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	provider, err := providers.New(cfg)
	if err != nil {
		slog.Error("build provider", "error", err)
		os.Exit(1)
	}

	fragRepo := storage.NewFragmentRepo(db)
	docRepo := storage.NewDocumentRepo(db)
	msgRepo := storage.NewMessageRepo(db)
	engine := retrieval.NewEngine(fragRepo, provider, cfg.RetrieveTopK, cfg.MinSimilarity)
	chatAsm := chat.NewAssembler(msgRepo, engine, provider, cfg.ChatHistoryLimit)
	exportAsm := export.NewAssembler(docRepo, fragRepo, msgRepo, provider, cfg.ExportHistoryLimit)

	srv := api.NewServer(cfg, db, nc, engine, chatAsm, exportAsm, slog.Default())
	slog.Info("api listening", "addr", cfg.APIAddr, "provider", cfg.Provider)
	if err := http.ListenAndServe(cfg.APIAddr, srv.Routes()); err != nil {
		slog.Error("http server stopped", "error", err)
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
