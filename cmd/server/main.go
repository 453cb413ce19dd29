package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fenggwsx/NovaMind/internal/banner"
	"github.com/fenggwsx/NovaMind/internal/completion"
	"github.com/fenggwsx/NovaMind/internal/config"
	"github.com/fenggwsx/NovaMind/internal/logging"
	"github.com/fenggwsx/NovaMind/internal/server"
	"github.com/fenggwsx/NovaMind/internal/storage/gormstore"
)

func main() {
	cfg := config.LoadServerConfig()
	logger := logging.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	store, err := gormstore.NewStore(cfg.Database)
	if err != nil {
		logger.Error("init storage", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var completer completion.Client
	if cfg.Completion.APIKey == "" {
		logger.Warn("no LLM API key configured, replies come from the local stub")
		completer = completion.StubClient{}
	} else {
		completer = completion.NewOpenAIClient(cfg.Completion)
	}

	app := server.NewApp(cfg, store, completer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println(banner.Build(cfg.ListenAddr))
	if err := app.Run(ctx); err != nil {
		logger.Error("server shutdown", "error", err)
		stop()
		_ = store.Close()
		os.Exit(1)
	}
	logger.Info("server stopped")
}
