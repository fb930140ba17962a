// Package worker schedules periodic synchronization of the BGG play feed into
// the database.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gamechanger/internal/bgg"
	"github.com/gamechanger/internal/config"
	"github.com/gamechanger/internal/service"
	gsync "github.com/gamechanger/internal/sync"
	"github.com/gamechanger/internal/websocket"
)

// Fetcher is the BGG client surface the worker needs.
type Fetcher interface {
	gsync.Fetcher
	FetchPlays(ctx context.Context, username string) ([]bgg.Play, error)
}

// TxRunner executes a function against a transaction-scoped store.
type TxRunner interface {
	InTx(ctx context.Context, fn func(store gsync.Store) error) error
}

// SyncWorker periodically pulls the play feed and reconciles it into the
// database, then refreshes the standings.
type SyncWorker struct {
	fetcher   Fetcher
	runner    TxRunner
	reporter  gsync.Reporter
	standings *service.StandingsService
	hub       *websocket.Hub
	config    *config.Config
	logger    *slog.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	running   bool

	// syncMu serializes sync runs so a manual trigger cannot overlap the
	// scheduled one.
	syncMu sync.Mutex
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	fetcher Fetcher,
	runner TxRunner,
	reporter gsync.Reporter,
	standings *service.StandingsService,
	cfg *config.Config,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		fetcher:   fetcher,
		runner:    runner,
		reporter:  reporter,
		standings: standings,
		config:    cfg,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// SetHub wires the WebSocket hub for sync notifications.
func (w *SyncWorker) SetHub(hub *websocket.Hub) {
	w.hub = hub
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Sync.Interval, "username", w.config.BGG.Username)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("scheduled sync failed", "error", err)
			}
		}
	}
}

// RunOnce performs a single sync cycle: fetch the play feed, reconcile it in
// one transaction and refresh the standings.
func (w *SyncWorker) RunOnce(ctx context.Context) (gsync.Summary, error) {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	startTime := time.Now()
	w.logger.Info("starting sync cycle")

	plays, err := w.fetcher.FetchPlays(ctx, w.config.BGG.Username)
	if err != nil {
		return gsync.Summary{}, fmt.Errorf("fetching plays: %w", err)
	}

	var summary gsync.Summary
	err = w.runner.InTx(ctx, func(store gsync.Store) error {
		engine := gsync.NewEngine(store, w.fetcher, w.reporter, w.logger)
		sum, err := engine.Run(ctx, plays)
		summary = sum
		return err
	})
	if err != nil {
		return summary, fmt.Errorf("reconciling plays: %w", err)
	}

	w.standings.RefreshAll(ctx)
	if w.hub != nil {
		w.hub.BroadcastSyncFinished(summary)
	}

	w.logger.Info("sync cycle completed",
		"duration", time.Since(startTime),
		"created", summary.Created,
		"updated", summary.Updated,
		"deleted", summary.Deleted,
		"skipped", summary.SkippedRecords,
	)
	return summary, nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
