package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/syncrun"
)

// Cache keys for run history listings. Only the default-limit listing is
// cached; custom limits always hit the store.
const (
	cacheKeyRecentRuns = "runs:recent"
	cacheKeyTargetRuns = "runs:target:" // + target ID
)

// RunHistory returns the most recent runs across all targets.
// A non-positive limit means the configured default.
func (s *SyncService) RunHistory(ctx context.Context, limit int) ([]syncrun.Run, error) {
	useCache := limit <= 0
	if limit <= 0 {
		limit = s.historyLimit
	}

	if useCache {
		if runs, ok := s.cachedRuns(ctx, cacheKeyRecentRuns); ok {
			return runs, nil
		}
	}

	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}

	if useCache {
		s.cacheRuns(ctx, cacheKeyRecentRuns, runs)
	}
	return runs, nil
}

// TargetRunHistory returns the most recent runs of one target.
// A non-positive limit means the configured default.
func (s *SyncService) TargetRunHistory(ctx context.Context, targetID string, limit int) ([]syncrun.Run, error) {
	useCache := limit <= 0
	if limit <= 0 {
		limit = s.historyLimit
	}

	key := cacheKeyTargetRuns + targetID
	if useCache {
		if runs, ok := s.cachedRuns(ctx, key); ok {
			return runs, nil
		}
	}

	runs, err := s.store.ListRunsByTarget(ctx, targetID, limit)
	if err != nil {
		return nil, err
	}

	if useCache {
		s.cacheRuns(ctx, key, runs)
	}
	return runs, nil
}

func (s *SyncService) cachedRuns(ctx context.Context, key string) ([]syncrun.Run, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var runs []syncrun.Run
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, false
	}
	return runs, true
}

func (s *SyncService) cacheRuns(ctx context.Context, key string, runs []syncrun.Run) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(runs)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		slog.Debug("cache set failed", "key", key, "error", err)
	}
}

// invalidateHistory drops cached listings after a run reaches a terminal
// state, so history reads never serve a stale view of a finished run.
func (s *SyncService) invalidateHistory(ctx context.Context, targetID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, cacheKeyRecentRuns)
	_ = s.cache.Delete(ctx, cacheKeyTargetRuns+targetID)
}
