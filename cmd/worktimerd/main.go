package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/yusari/worktimer/internal/config"
	"github.com/yusari/worktimer/internal/daemon"
	"github.com/yusari/worktimer/internal/db"
	"github.com/yusari/worktimer/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "config file path")
	socketPath := flag.String("socket", "", "UDS path for worktimerd")
	dbPath := flag.String("db", "", "SQLite path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync() //nolint:errcheck

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		fatal(err)
	}
	defer store.Close() //nolint:errcheck

	if err := db.ApplyMigrations(ctx, store.DB()); err != nil {
		fatal(err)
	}

	srv := daemon.NewServer(cfg, store, log)
	if err := srv.LoadState(ctx); err != nil {
		fatal(err)
	}
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("daemon exited", zap.Error(err))
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "worktimerd: %v\n", err)
	os.Exit(1)
}
