package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/otomatty/saedgewell-sample-sub003/internal/domain"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/syncrun"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/database"
)

// --- Sync runs ---

func scanRun(row scannable) (syncrun.Run, error) {
	var r syncrun.Run
	err := row.Scan(&r.ID, &r.TargetID, &r.TargetName, &r.Status, &r.ItemsProcessed,
		&r.ItemsUpdated, &r.ErrorMessage, &r.StartedAt, &r.CompletedAt)
	return r, err
}

func (s *Store) CreateRun(ctx context.Context, targetID string, startedAt time.Time) (*syncrun.Run, error) {
	var r syncrun.Run
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sync_runs (target_id, started_at)
		 VALUES ($1, $2)
		 RETURNING id, target_id, status, items_processed, items_updated, error_message, started_at, completed_at`,
		targetID, startedAt,
	).Scan(&r.ID, &r.TargetID, &r.Status, &r.ItemsProcessed, &r.ItemsUpdated,
		&r.ErrorMessage, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		switch pgErrCode(err) {
		case codeUniqueViolation:
			return nil, fmt.Errorf("create run for target %s: %w", targetID, domain.ErrSyncInProgress)
		case codeForeignKeyViolation:
			return nil, fmt.Errorf("create run for target %s: %w", targetID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("create run for target %s: %w", targetID, err)
	}
	return &r, nil
}

func (s *Store) CompleteRun(ctx context.Context, runID string, completedAt time.Time, result database.RunCompletion) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_runs
		 SET status = $1, items_processed = $2, items_updated = $3, completed_at = $4
		 WHERE id = $5 AND status = $6`,
		string(syncrun.StatusCompleted), result.ItemsProcessed, result.ItemsUpdated,
		completedAt, runID, string(syncrun.StatusProcessing))
	return execExpectOne(tag, err, "complete run %s", runID)
}

func (s *Store) FailRun(ctx context.Context, runID string, completedAt time.Time, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_runs
		 SET status = $1, error_message = $2, completed_at = $3
		 WHERE id = $4 AND status = $5`,
		string(syncrun.StatusError), message, completedAt, runID, string(syncrun.StatusProcessing))
	return execExpectOne(tag, err, "fail run %s", runID)
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]syncrun.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.target_id, t.name, r.status, r.items_processed, r.items_updated,
		        r.error_message, r.started_at, r.completed_at
		 FROM sync_runs r
		 JOIN targets t ON t.id = r.target_id
		 ORDER BY r.started_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return collectRuns(rows)
}

func (s *Store) ListRunsByTarget(ctx context.Context, targetID string, limit int) ([]syncrun.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.id, r.target_id, t.name, r.status, r.items_processed, r.items_updated,
		        r.error_message, r.started_at, r.completed_at
		 FROM sync_runs r
		 JOIN targets t ON t.id = r.target_id
		 WHERE r.target_id = $1
		 ORDER BY r.started_at DESC
		 LIMIT $2`, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs for target %s: %w", targetID, err)
	}
	return collectRuns(rows)
}

func (s *Store) ReapStaleRuns(ctx context.Context, cutoff time.Time, message string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_runs
		 SET status = $1, error_message = $2, completed_at = now()
		 WHERE status = $3 AND started_at < $4`,
		string(syncrun.StatusError), message, string(syncrun.StatusProcessing), cutoff)
	if err != nil {
		return 0, fmt.Errorf("reap stale runs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func collectRuns(rows pgx.Rows) ([]syncrun.Run, error) {
	defer rows.Close()

	var runs []syncrun.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
