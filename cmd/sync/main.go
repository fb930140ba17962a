// Command sync performs a single synchronization run against the BGG play
// feed and prints the resulting summary. Useful for cron setups and for
// backfilling a fresh database without running the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/gamechanger/internal/bgg"
	"github.com/gamechanger/internal/config"
	"github.com/gamechanger/internal/postgres"
	gsync "github.com/gamechanger/internal/sync"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall run timeout")
	verbose := flag.Bool("verbose", false, "Log unchanged records too")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	if cfg.BGG.Username == "" {
		logger.Error("no BGG username configured")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(ctx); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	client := bgg.NewClient(&cfg.BGG, logger)

	plays, err := client.FetchPlays(ctx, cfg.BGG.Username)
	if err != nil {
		logger.Error("failed to fetch plays", "error", err)
		os.Exit(1)
	}

	var summary gsync.Summary
	err = repo.InTx(ctx, func(store gsync.Store) error {
		engine := gsync.NewEngine(store, client, nil, logger)
		sum, err := engine.Run(ctx, plays)
		summary = sum
		return err
	})
	if err != nil {
		logger.Error("sync failed", "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	os.Stdout.Write(append(out, '\n'))
}
