// Command storectl inspects and loads a graph store from the command line.
// It opens the backend named by the usual configuration (STORAGE_BACKEND,
// BADGER_PATH, SQLITE_PATH, TABLE_NAME, ...).
package main

import (
	"context"
	"fmt"
	"os"

	"graphstore/infrastructure/config"
	"graphstore/infrastructure/di"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		return 2
	}
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}

	ctx := context.Background()
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return 2
	}
	defer cleanup()
	defer func() { _ = container.Logger.Sync() }()

	if err := newRootCmd(container.Service).ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
