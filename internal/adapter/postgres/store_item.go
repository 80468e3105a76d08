package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/item"
)

// --- Items and attachments ---

func (s *Store) ItemTimestamps(ctx context.Context, targetID string, remoteIDs []string) (map[string]time.Time, error) {
	if len(remoteIDs) == 0 {
		return map[string]time.Time{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT remote_id, remote_updated_at
		 FROM items
		 WHERE target_id = $1 AND remote_id = ANY($2)`,
		targetID, remoteIDs)
	if err != nil {
		return nil, fmt.Errorf("item timestamps for target %s: %w", targetID, err)
	}
	defer rows.Close()

	stamps := make(map[string]time.Time, len(remoteIDs))
	for rows.Next() {
		var (
			remoteID string
			updated  time.Time
		)
		if err := rows.Scan(&remoteID, &updated); err != nil {
			return nil, fmt.Errorf("scan item timestamp: %w", err)
		}
		stamps[remoteID] = updated
	}
	return stamps, rows.Err()
}

func (s *Store) UpsertItem(ctx context.Context, it *item.Item) (*item.Item, error) {
	var saved item.Item
	err := s.pool.QueryRow(ctx,
		`INSERT INTO items (target_id, remote_id, title, author, excerpt, views, linked_count,
		                    pinned, labels, has_attachments, remote_updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (target_id, remote_id) DO UPDATE SET
		     title = EXCLUDED.title,
		     author = EXCLUDED.author,
		     excerpt = EXCLUDED.excerpt,
		     views = EXCLUDED.views,
		     linked_count = EXCLUDED.linked_count,
		     pinned = EXCLUDED.pinned,
		     labels = EXCLUDED.labels,
		     has_attachments = EXCLUDED.has_attachments,
		     remote_updated_at = EXCLUDED.remote_updated_at,
		     updated_at = now()
		 RETURNING id, target_id, remote_id, title, author, excerpt, views, linked_count,
		           pinned, labels, has_attachments, remote_updated_at, created_at, updated_at`,
		it.TargetID, it.RemoteID, it.Title, it.Author, it.Excerpt, it.Views, it.LinkedCount,
		it.Pinned, pgTextArray(it.Labels), it.HasAttachments, it.RemoteUpdatedAt,
	).Scan(&saved.ID, &saved.TargetID, &saved.RemoteID, &saved.Title, &saved.Author,
		&saved.Excerpt, &saved.Views, &saved.LinkedCount, &saved.Pinned, &saved.Labels,
		&saved.HasAttachments, &saved.RemoteUpdatedAt, &saved.CreatedAt, &saved.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert item %s: %w", it.RemoteID, err)
	}
	return &saved, nil
}

func (s *Store) InsertAttachmentIfAbsent(ctx context.Context, att *item.Attachment) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO attachments (item_id, file_name, mime_type, size_bytes, remote_ref)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (item_id, file_name) DO NOTHING`,
		att.ItemID, att.FileName, att.MimeType, att.SizeBytes, att.RemoteRef)
	if err != nil {
		return false, fmt.Errorf("insert attachment %s: %w", att.FileName, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListAttachments(ctx context.Context, itemID string) ([]item.Attachment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, item_id, file_name, mime_type, size_bytes, remote_ref, created_at
		 FROM attachments WHERE item_id = $1 ORDER BY file_name ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list attachments for item %s: %w", itemID, err)
	}
	defer rows.Close()

	var atts []item.Attachment
	for rows.Next() {
		var a item.Attachment
		if err := rows.Scan(&a.ID, &a.ItemID, &a.FileName, &a.MimeType, &a.SizeBytes,
			&a.RemoteRef, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		atts = append(atts, a)
	}
	return atts, rows.Err()
}

func (s *Store) CountItems(ctx context.Context, targetID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM items WHERE target_id = $1`, targetID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count items for target %s: %w", targetID, err)
	}
	return n, nil
}
