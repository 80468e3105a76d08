package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otomatty/saedgewell-sample-sub003/internal/domain"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/target"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Targets ---

const targetColumns = `id, name, kind, source_ref, auto_sync, private, credential, last_synced_at, total_items, created_at, updated_at`

func scanTarget(row scannable) (target.Target, error) {
	var t target.Target
	err := row.Scan(&t.ID, &t.Name, &t.Kind, &t.SourceRef, &t.AutoSync, &t.Private,
		&t.Credential, &t.LastSyncedAt, &t.TotalItems, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (s *Store) CreateTarget(ctx context.Context, req *target.CreateRequest, totalItems int) (*target.Target, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO targets (name, kind, source_ref, auto_sync, private, credential, total_items)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+targetColumns,
		req.Name, string(req.Kind), req.SourceRef, req.AutoSync, req.Private, req.Credential, totalItems)

	t, err := scanTarget(row)
	if err != nil {
		if pgErrCode(err) == codeUniqueViolation {
			return nil, fmt.Errorf("create target %s/%s: %w", req.Kind, req.SourceRef, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create target: %w", err)
	}
	return &t, nil
}

func (s *Store) GetTarget(ctx context.Context, id string) (*target.Target, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE id = $1`, id)

	t, err := scanTarget(row)
	if err != nil {
		return nil, notFoundWrap(err, "get target %s", id)
	}
	return &t, nil
}

func (s *Store) ListTargets(ctx context.Context) ([]target.Target, error) {
	return s.listTargets(ctx,
		`SELECT `+targetColumns+` FROM targets ORDER BY created_at DESC`)
}

func (s *Store) ListAutoSyncTargets(ctx context.Context) ([]target.Target, error) {
	return s.listTargets(ctx,
		`SELECT `+targetColumns+` FROM targets WHERE auto_sync ORDER BY created_at DESC`)
}

func (s *Store) listTargets(ctx context.Context, query string) ([]target.Target, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []target.Target
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan target: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (s *Store) UpdateTargetSettings(ctx context.Context, id string, upd target.SettingsUpdate) (*target.Target, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if upd.AutoSync != nil {
		tag, err := tx.Exec(ctx,
			`UPDATE targets SET auto_sync = $1, updated_at = now() WHERE id = $2`,
			*upd.AutoSync, id)
		if err := execExpectOne(tag, err, "update target %s auto_sync", id); err != nil {
			return nil, err
		}
	}
	if upd.Private != nil {
		tag, err := tx.Exec(ctx,
			`UPDATE targets SET private = $1, updated_at = now() WHERE id = $2`,
			*upd.Private, id)
		if err := execExpectOne(tag, err, "update target %s private", id); err != nil {
			return nil, err
		}
	}
	if upd.Credential != nil {
		tag, err := tx.Exec(ctx,
			`UPDATE targets SET credential = $1, updated_at = now() WHERE id = $2`,
			*upd.Credential, id)
		if err := execExpectOne(tag, err, "update target %s credential", id); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.GetTarget(ctx, id)
}

func (s *Store) UpdateTargetAfterSync(ctx context.Context, id string, syncedAt time.Time, totalItems int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE targets SET last_synced_at = $1, total_items = $2, updated_at = now() WHERE id = $3`,
		syncedAt, totalItems, id)
	return execExpectOne(tag, err, "update target %s after sync", id)
}

func (s *Store) DeleteTarget(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete target %s", id)
}
