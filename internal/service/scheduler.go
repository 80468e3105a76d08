package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/otomatty/saedgewell-sample-sub003/internal/config"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/syncrun"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/target"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/database"
)

const staleRunMessage = "run abandoned: exceeded processing deadline"

// Scheduler periodically finds targets whose last successful sync is older
// than the configured threshold and synchronizes them one by one.
type Scheduler struct {
	store database.Store
	sync  *SyncService

	threshold  time.Duration
	interval   time.Duration
	staleAfter time.Duration

	now func() time.Time
}

// AutoSyncSummary reports one pass of the auto-sync scheduler.
type AutoSyncSummary struct {
	Examined int `json:"examined"`
	Synced   int `json:"synced"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Reaped   int `json:"reaped"`
}

// NewScheduler creates a Scheduler.
func NewScheduler(store database.Store, syncSvc *SyncService, cfg config.Sync) *Scheduler {
	return &Scheduler{
		store:      store,
		sync:       syncSvc,
		threshold:  cfg.AutoThreshold,
		interval:   cfg.CheckInterval,
		staleAfter: cfg.StaleRunAfter,
		now:        time.Now,
	}
}

// DueTargets returns the auto-sync targets whose last completed sync is older
// than the threshold (or that never completed one).
func (s *Scheduler) DueTargets(ctx context.Context) ([]target.Target, error) {
	candidates, err := s.store.ListAutoSyncTargets(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	due := make([]target.Target, 0, len(candidates))
	for _, t := range candidates {
		if t.Due(now, s.threshold) {
			due = append(due, t)
		}
	}
	return due, nil
}

// RunAutoSync executes one scheduler pass: reap runs stuck in processing,
// then synchronize every due target. A failing target never prevents the
// remaining targets from being synchronized.
func (s *Scheduler) RunAutoSync(ctx context.Context) (*AutoSyncSummary, error) {
	summary := &AutoSyncSummary{}

	reaped, err := s.store.ReapStaleRuns(ctx, s.now().Add(-s.staleAfter), staleRunMessage)
	if err != nil {
		slog.Error("reap stale runs failed", "error", err)
	} else if reaped > 0 {
		slog.Warn("reaped stale sync runs", "count", reaped)
	}
	summary.Reaped = reaped

	due, err := s.DueTargets(ctx)
	if err != nil {
		return nil, err
	}
	summary.Examined = len(due)

	for _, t := range due {
		report, err := s.sync.StartSync(ctx, t.ID)
		switch {
		case errors.Is(err, domain.ErrSyncInProgress):
			summary.Skipped++
			slog.Debug("auto-sync skipped, run in progress", "target", t.Name)
		case err != nil:
			summary.Failed++
			slog.Error("auto-sync failed to start", "target", t.Name, "error", err)
		case report.Run.Status == syncrun.StatusError:
			summary.Failed++
		default:
			summary.Synced++
		}
	}

	slog.Info("auto-sync pass finished",
		"examined", summary.Examined, "synced", summary.Synced,
		"skipped", summary.Skipped, "failed", summary.Failed, "reaped", summary.Reaped)
	return summary, nil
}

// Start runs the scheduler loop until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("auto-sync scheduler started", "interval", s.interval, "threshold", s.threshold)
	for {
		select {
		case <-ctx.Done():
			slog.Info("auto-sync scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunAutoSync(ctx); err != nil {
				slog.Error("auto-sync pass failed", "error", err)
			}
		}
	}
}
