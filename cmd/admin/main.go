package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fenggwsx/NovaMind/internal/admin"
	"github.com/fenggwsx/NovaMind/internal/config"
	"github.com/fenggwsx/NovaMind/internal/storage"
	"github.com/fenggwsx/NovaMind/internal/storage/gormstore"
)

func main() {
	cfg := config.LoadServerConfig()

	open := func() (storage.Store, error) {
		store, err := gormstore.NewStore(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		if err := store.Migrate(context.Background()); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return store, nil
	}

	if err := admin.NewRootCmd(open).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
