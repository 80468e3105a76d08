// Package service implements the application services of the sync engine:
// target registration, sync run execution, and auto-sync scheduling.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/otomatty/saedgewell-sample-sub003/internal/adapter/otel"
	"github.com/otomatty/saedgewell-sample-sub003/internal/adapter/ws"
	"github.com/otomatty/saedgewell-sample-sub003/internal/config"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/item"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/syncrun"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/target"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/cache"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/database"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/messagequeue"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/source"
	"github.com/otomatty/saedgewell-sample-sub003/internal/resilience"
	"github.com/otomatty/saedgewell-sample-sub003/internal/secrets"
)

// Caller is the retrying upstream call wrapper the sync service depends on.
// Satisfied by *resilience.Caller.
type Caller interface {
	Do(ctx context.Context, op string, fn func(context.Context) error) error
}

var _ Caller = (*resilience.Caller)(nil)

// sourceBuilder creates a Source for a target. Overridable in tests.
type sourceBuilder func(name string, cfg source.Config) (source.Source, error)

// SyncService runs the synchronization process for registered targets.
type SyncService struct {
	store   database.Store
	vault   *secrets.Vault
	caller  Caller
	queue   messagequeue.Queue
	hub     *ws.Hub
	metrics *otel.Metrics
	cache   cache.Cache

	workers      int
	pageSize     int
	historyLimit int
	cacheTTL     time.Duration

	newSource sourceBuilder
	now       func() time.Time
}

// SyncDeps bundles the collaborators of a SyncService. Queue, hub, metrics
// and cache are optional; a nil value disables that concern.
type SyncDeps struct {
	Store   database.Store
	Vault   *secrets.Vault
	Caller  Caller
	Queue   messagequeue.Queue
	Hub     *ws.Hub
	Metrics *otel.Metrics
	Cache   cache.Cache
}

// NewSyncService creates a SyncService.
func NewSyncService(deps SyncDeps, cfg config.Sync, upstream config.Upstream, cacheCfg config.Cache) *SyncService {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	historyLimit := cfg.RunHistoryLimit
	if historyLimit < 1 {
		historyLimit = 20
	}
	cacheTTL := cacheCfg.TTL
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &SyncService{
		store:        deps.Store,
		vault:        deps.Vault,
		caller:       deps.Caller,
		queue:        deps.Queue,
		hub:          deps.Hub,
		metrics:      deps.Metrics,
		cache:        deps.Cache,
		workers:      workers,
		pageSize:     upstream.PageSize,
		historyLimit: historyLimit,
		cacheTTL:     cacheTTL,
		newSource:    source.New,
		now:          time.Now,
	}
}

// StartSync executes a full synchronization run for the target. It returns
// domain.ErrSyncInProgress when a run for the same target is already active
// and domain.ErrNotFound for unknown targets. Item-level failures never fail
// the run; they are collected in the report.
func (s *SyncService) StartSync(ctx context.Context, targetID string) (*syncrun.Report, error) {
	t, err := s.store.GetTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	run, err := s.store.CreateRun(ctx, t.ID, s.now())
	if err != nil {
		return nil, err
	}
	run.TargetName = t.Name

	slog.Info("sync run started", "run_id", run.ID, "target", t.Name, "kind", t.Kind)
	if s.metrics != nil {
		s.metrics.RunsStarted.Add(ctx, 1)
	}
	s.publishRunEvent(ctx, messagequeue.SubjectRunStarted, run)
	s.broadcast(ctx, ws.TypeRunStarted, run)

	// Source construction happens inside the run so configuration failures
	// (missing credentials, unknown kind) leave an errored run record.
	var report *syncrun.Report
	src, err := s.newSource(string(t.Kind), sourceConfigFor(s.vault, t, s.pageSize))
	if err != nil {
		report = s.failRun(ctx, run, 0, 0, nil, fmt.Errorf("build source: %w", err))
	} else {
		report = s.execute(ctx, t, run, src)
	}
	s.invalidateHistory(ctx, t.ID)
	return report, nil
}

// execute drives the paginated listing and per-item reconciliation, then
// finalizes the run exactly once. It never returns an error: a failed run is
// reported through the terminal run state.
func (s *SyncService) execute(ctx context.Context, t *target.Target, run *syncrun.Run, src source.Source) *syncrun.Report {
	var (
		mu        sync.Mutex
		processed int
		updated   int
		itemErrs  []syncrun.ItemError
	)

	token := ""
	for {
		var page *source.Page
		err := s.caller.Do(ctx, "list items", func(ctx context.Context) error {
			var lerr error
			page, lerr = src.ListItems(ctx, t.SourceRef, token)
			return lerr
		})
		if err != nil {
			return s.failRun(ctx, run, processed, updated, itemErrs, err)
		}

		remoteIDs := make([]string, len(page.Items))
		for i := range page.Items {
			remoteIDs[i] = page.Items[i].ID
		}
		stamps, err := s.store.ItemTimestamps(ctx, t.ID, remoteIDs)
		if err != nil {
			return s.failRun(ctx, run, processed, updated, itemErrs, err)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i := range page.Items {
			remote := &page.Items[i]
			g.Go(func() error {
				outcome := s.reconcile(gctx, t, remote, stamps)
				mu.Lock()
				processed++
				if outcome.wrote {
					updated++
				}
				itemErrs = append(itemErrs, outcome.errs...)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		run.ItemsProcessed = processed
		run.ItemsUpdated = updated
		s.broadcast(ctx, ws.TypeRunProgress, run)

		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	return s.completeRun(ctx, t, run, processed, updated, itemErrs)
}

// reconcileOutcome is the result of reconciling a single remote item.
type reconcileOutcome struct {
	wrote bool
	errs  []syncrun.ItemError
}

// reconcile applies change detection and, for new or changed items, upserts
// the item and captures any attachments not yet recorded. Failures are
// isolated to the item and returned, never propagated.
func (s *SyncService) reconcile(ctx context.Context, t *target.Target, remote *source.RemoteItem, stamps map[string]time.Time) reconcileOutcome {
	var local *time.Time
	if ts, ok := stamps[remote.ID]; ok {
		local = &ts
	}

	if item.Decide(remote.UpdatedAt, local) == item.DecisionUnchanged {
		return reconcileOutcome{}
	}

	rec := item.FromRemote(t.ID, remote)
	saved, err := s.store.UpsertItem(ctx, &rec)
	if err != nil {
		return reconcileOutcome{errs: []syncrun.ItemError{{
			Scope:   syncrun.ScopeItem,
			Label:   remote.ID,
			Message: s.redact(err.Error()),
		}}}
	}

	out := reconcileOutcome{wrote: true}
	for _, a := range remote.Attachments {
		att := item.Attachment{
			ItemID:    saved.ID,
			FileName:  a.FileName,
			MimeType:  a.MimeType,
			SizeBytes: a.SizeBytes,
			RemoteRef: a.RemoteRef,
		}
		if _, err := s.store.InsertAttachmentIfAbsent(ctx, &att); err != nil {
			out.errs = append(out.errs, syncrun.ItemError{
				Scope:   syncrun.ScopeAttachment,
				Label:   a.FileName,
				Message: s.redact(err.Error()),
			})
		}
	}
	return out
}

// completeRun finalizes a successful run and refreshes the target's sync
// bookkeeping.
func (s *SyncService) completeRun(ctx context.Context, t *target.Target, run *syncrun.Run, processed, updated int, itemErrs []syncrun.ItemError) *syncrun.Report {
	completedAt := s.now()
	if err := s.store.CompleteRun(ctx, run.ID, completedAt, database.RunCompletion{
		ItemsProcessed: processed,
		ItemsUpdated:   updated,
	}); err != nil {
		slog.Error("complete run failed", "run_id", run.ID, "error", err)
	}

	total, err := s.store.CountItems(ctx, t.ID)
	if err != nil {
		slog.Error("count items failed", "target_id", t.ID, "error", err)
		total = processed
	}
	if err := s.store.UpdateTargetAfterSync(ctx, t.ID, completedAt, total); err != nil {
		slog.Error("update target after sync failed", "target_id", t.ID, "error", err)
	}

	run.Status = syncrun.StatusCompleted
	run.ItemsProcessed = processed
	run.ItemsUpdated = updated
	run.CompletedAt = &completedAt

	slog.Info("sync run completed", "run_id", run.ID, "target", t.Name,
		"items_processed", processed, "items_updated", updated,
		"item_errors", len(itemErrs))
	if s.metrics != nil {
		s.metrics.RunsCompleted.Add(ctx, 1)
		s.metrics.ItemsProcessed.Add(ctx, int64(processed))
		s.metrics.ItemsUpdated.Add(ctx, int64(updated))
		s.metrics.RunDuration.Record(ctx, completedAt.Sub(run.StartedAt).Seconds())
	}
	s.publishRunEvent(ctx, messagequeue.SubjectRunCompleted, run)
	s.broadcast(ctx, ws.TypeRunCompleted, run)

	return &syncrun.Report{Run: *run, Errors: itemErrs}
}

// failRun marks the run errored with a redacted cause. Counters collected so
// far are kept on the in-memory run for the report.
func (s *SyncService) failRun(ctx context.Context, run *syncrun.Run, processed, updated int, itemErrs []syncrun.ItemError, cause error) *syncrun.Report {
	completedAt := s.now()
	msg := s.redact(cause.Error())
	if err := s.store.FailRun(ctx, run.ID, completedAt, msg); err != nil {
		slog.Error("fail run failed", "run_id", run.ID, "error", err)
	}

	run.Status = syncrun.StatusError
	run.ErrorMessage = msg
	run.ItemsProcessed = processed
	run.ItemsUpdated = updated
	run.CompletedAt = &completedAt

	slog.Error("sync run failed", "run_id", run.ID, "target_id", run.TargetID, "error", cause)
	if s.metrics != nil {
		s.metrics.RunsFailed.Add(ctx, 1)
	}
	s.publishRunEvent(ctx, messagequeue.SubjectRunFailed, run)
	s.broadcast(ctx, ws.TypeRunFailed, run)

	return &syncrun.Report{Run: *run, Errors: itemErrs}
}

// sourceConfigFor assembles the source factory config for a target, resolving
// credentials from the target's own override or the shared vault.
func sourceConfigFor(vault *secrets.Vault, t *target.Target, pageSize int) source.Config {
	cfg := source.Config{
		Credentials: map[string]string{},
		PageSize:    pageSize,
	}
	if t.LastSyncedAt != nil {
		cfg.Since = *t.LastSyncedAt
	}

	vaultGet := func(key string) string {
		if vault == nil {
			return ""
		}
		return vault.Get(key)
	}

	switch t.Kind {
	case target.KindWiki:
		cookie := t.Credential
		if cookie == "" {
			cookie = vaultGet(secrets.KeyWikiSessionCookie)
		}
		cfg.Credentials["cookie"] = cookie
	case target.KindMailbox:
		refresh := t.Credential
		if refresh == "" {
			refresh = vaultGet(secrets.KeyMailRefreshToken)
		}
		cfg.Credentials["client_id"] = vaultGet(secrets.KeyMailClientID)
		cfg.Credentials["client_secret"] = vaultGet(secrets.KeyMailClientSecret)
		cfg.Credentials["refresh_token"] = refresh
	}
	return cfg
}

func (s *SyncService) publishRunEvent(ctx context.Context, subject string, run *syncrun.Run) {
	if s.queue == nil {
		return
	}
	payload, err := json.Marshal(messagequeue.RunEventPayload{
		RunID:          run.ID,
		TargetID:       run.TargetID,
		TargetName:     run.TargetName,
		Status:         string(run.Status),
		ItemsProcessed: run.ItemsProcessed,
		ItemsUpdated:   run.ItemsUpdated,
		ErrorMessage:   run.ErrorMessage,
	})
	if err != nil {
		slog.Error("marshal run event failed", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, payload); err != nil {
		slog.Error("publish run event failed", "subject", subject, "error", err)
	}
}

func (s *SyncService) broadcast(ctx context.Context, msgType string, run *syncrun.Run) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastRunEvent(ctx, msgType, ws.RunEvent{
		RunID:          run.ID,
		TargetID:       run.TargetID,
		TargetName:     run.TargetName,
		ItemsProcessed: run.ItemsProcessed,
		ItemsUpdated:   run.ItemsUpdated,
		ErrorMessage:   run.ErrorMessage,
	})
}

func (s *SyncService) redact(msg string) string {
	if s.vault == nil {
		return msg
	}
	return s.vault.RedactString(msg)
}
