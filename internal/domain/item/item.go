// Package item defines the local projection of remote entities (wiki pages,
// emails) together with change detection against the upstream timestamp.
package item

import (
	"time"

	"github.com/otomatty/saedgewell-sample-sub003/internal/port/source"
)

// Item is the locally persisted projection of one remote entity.
// (target_id, remote_id) is unique; the row is updated in place whenever the
// remote last-modified timestamp advances.
type Item struct {
	ID              string    `json:"id"`
	TargetID        string    `json:"target_id"`
	RemoteID        string    `json:"remote_id"`
	Title           string    `json:"title"`
	Author          string    `json:"author,omitempty"`
	Excerpt         string    `json:"excerpt,omitempty"`
	Views           int64     `json:"views"`
	LinkedCount     int64     `json:"linked_count"`
	Pinned          bool      `json:"pinned"`
	Labels          []string  `json:"labels,omitempty"`
	HasAttachments  bool      `json:"has_attachments"`
	RemoteUpdatedAt time.Time `json:"remote_updated_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Attachment is a child record of an Item keyed by file name within the
// parent. Once captured it is never re-inserted, mutated, or deleted.
type Attachment struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type,omitempty"`
	SizeBytes int64     `json:"size_bytes"`
	RemoteRef string    `json:"remote_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromRemote maps a remote item into the local record shape. The mapping is
// total: optional upstream fields get explicit defaults so a partially
// populated remote item always produces a valid row.
func FromRemote(targetID string, r *source.RemoteItem) Item {
	labels := r.Labels
	if labels == nil {
		labels = []string{}
	}
	return Item{
		TargetID:        targetID,
		RemoteID:        r.ID,
		Title:           r.Title,
		Author:          r.Author,
		Excerpt:         r.Excerpt,
		Views:           r.Views,
		LinkedCount:     r.Linked,
		Pinned:          r.Pinned,
		Labels:          labels,
		HasAttachments:  len(r.Attachments) > 0,
		RemoteUpdatedAt: NormalizeTimestamp(r.UpdatedAt),
	}
}
