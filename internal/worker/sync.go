// Package worker reconciles the in-memory score ledgers with the
// durable Postgres store on an interval, repairing any drift left by
// dropped write-behind events.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quizroom/internal/config"
	"github.com/quizroom/internal/domain"
)

// LedgerSource snapshots every live room's standings.
type LedgerSource interface {
	Ledgers() map[string][]domain.LeaderboardEntry
}

// ScoreStore persists absolute ledger snapshots.
type ScoreStore interface {
	BatchReplaceScores(ctx context.Context, roomCode string, entries []domain.LeaderboardEntry) error
}

// SyncWorker periodically flushes ledger snapshots to the score store.
type SyncWorker struct {
	source  LedgerSource
	store   ScoreStore
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(source LedgerSource, store ScoreStore, cfg *config.SyncConfig, logger *slog.Logger) *SyncWorker {
	return &SyncWorker{
		source: source,
		store:  store,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
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

	w.logger.Info("sync worker started", "interval", w.config.Interval)

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

// IsRunning reports whether the worker loop is active.
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce flushes every room's current ledger to the store.
func (w *SyncWorker) RunOnce(ctx context.Context) {
	ledgers := w.source.Ledgers()
	if len(ledgers) == 0 {
		return
	}

	start := time.Now()
	synced := 0
	for roomCode, entries := range ledgers {
		if err := w.store.BatchReplaceScores(ctx, roomCode, entries); err != nil {
			w.logger.Warn("failed to sync room ledger", "room", roomCode, "error", err)
			continue
		}
		synced++
	}
	w.logger.Info("sync cycle completed", "rooms", synced, "duration", time.Since(start))
}
