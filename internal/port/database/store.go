// Package database defines the persistence port for the sync engine.
package database

import (
	"context"
	"time"

	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/item"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/syncrun"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/target"
)

// RunCompletion carries the final counters persisted when a run finishes
// successfully.
type RunCompletion struct {
	ItemsProcessed int
	ItemsUpdated   int
}

// Store is the port interface over the relational datastore.
type Store interface {
	// --- Targets ---

	CreateTarget(ctx context.Context, req *target.CreateRequest, totalItems int) (*target.Target, error)
	GetTarget(ctx context.Context, id string) (*target.Target, error)
	ListTargets(ctx context.Context) ([]target.Target, error)
	ListAutoSyncTargets(ctx context.Context) ([]target.Target, error)
	UpdateTargetSettings(ctx context.Context, id string, upd target.SettingsUpdate) (*target.Target, error)
	// UpdateTargetAfterSync sets last_synced_at and total_items after a
	// successful run.
	UpdateTargetAfterSync(ctx context.Context, id string, syncedAt time.Time, totalItems int) error
	// DeleteTarget removes the target and cascades to its runs and items.
	DeleteTarget(ctx context.Context, id string) error

	// --- Sync runs ---

	// CreateRun inserts a run in processing state. Returns
	// domain.ErrSyncInProgress when another run for the same target is
	// already processing; the check and the insert are a single atomic
	// statement backed by a partial unique index.
	CreateRun(ctx context.Context, targetID string, startedAt time.Time) (*syncrun.Run, error)
	CompleteRun(ctx context.Context, runID string, completedAt time.Time, result RunCompletion) error
	FailRun(ctx context.Context, runID string, completedAt time.Time, message string) error
	ListRuns(ctx context.Context, limit int) ([]syncrun.Run, error)
	ListRunsByTarget(ctx context.Context, targetID string, limit int) ([]syncrun.Run, error)
	// ReapStaleRuns marks runs stuck in processing since before the cutoff
	// as errored, returning how many were reaped.
	ReapStaleRuns(ctx context.Context, cutoff time.Time, message string) (int, error)

	// --- Items and attachments ---

	// ItemTimestamps returns remote_updated_at for the given remote IDs
	// within a target, keyed by remote ID. Absent keys mean no local record.
	ItemTimestamps(ctx context.Context, targetID string, remoteIDs []string) (map[string]time.Time, error)
	// UpsertItem inserts the item or updates it in place, keyed by
	// (target_id, remote_id). Safe to call twice with the same input.
	UpsertItem(ctx context.Context, it *item.Item) (*item.Item, error)
	// InsertAttachmentIfAbsent inserts the attachment unless one with the
	// same (item_id, file_name) already exists. Existing rows are never
	// touched. Returns true when a row was inserted.
	InsertAttachmentIfAbsent(ctx context.Context, att *item.Attachment) (bool, error)
	ListAttachments(ctx context.Context, itemID string) ([]item.Attachment, error)
	CountItems(ctx context.Context, targetID string) (int, error)
}
