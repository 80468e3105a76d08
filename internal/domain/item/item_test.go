package item

import (
	"testing"
	"time"

	"github.com/otomatty/saedgewell-sample-sub003/internal/port/source"
)

func TestFromRemote(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	remote := &source.RemoteItem{
		ID:      "p1",
		Title:   "Release Notes",
		Author:  "alice",
		Excerpt: "v2 shipped",
		Views:   10,
		Linked:  2,
		Pinned:  true,
		Labels:  []string{"INBOX"},
		UpdatedAt: updated,
		Attachments: []source.RemoteAttachment{
			{FileName: "notes.pdf"},
		},
	}

	it := FromRemote("t1", remote)

	if it.TargetID != "t1" || it.RemoteID != "p1" {
		t.Errorf("keys = %s/%s", it.TargetID, it.RemoteID)
	}
	if !it.HasAttachments {
		t.Error("HasAttachments = false, want true")
	}
	if !it.RemoteUpdatedAt.Equal(NormalizeTimestamp(updated)) {
		t.Errorf("RemoteUpdatedAt = %v, want normalized timestamp", it.RemoteUpdatedAt)
	}
}

func TestFromRemoteDefaults(t *testing.T) {
	it := FromRemote("t1", &source.RemoteItem{ID: "p1", UpdatedAt: time.Now()})

	if it.Labels == nil {
		t.Error("Labels = nil, want empty slice")
	}
	if it.HasAttachments {
		t.Error("HasAttachments = true for item without attachments")
	}
}
