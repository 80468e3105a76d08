// Package target defines the SyncTarget domain entity: one external source
// (a wiki project, a mailbox) configured for periodic import.
package target

import (
	"fmt"
	"strings"
	"time"

	"github.com/otomatty/saedgewell-sample-sub003/internal/domain"
)

// Kind identifies which source adapter a target is synchronized through.
type Kind string

const (
	KindWiki    Kind = "wiki"
	KindMailbox Kind = "mailbox"
)

// Target represents one external source registered for synchronization.
type Target struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	SourceRef  string `json:"source_ref"` // project name for wiki, label/query for mailbox
	AutoSync   bool   `json:"auto_sync_enabled"`
	Private    bool   `json:"is_private"`
	Credential string `json:"-"` // per-target override; empty means use the shared vault credential

	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	TotalItems   int        `json:"total_items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest holds the fields needed to register a new target.
type CreateRequest struct {
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	SourceRef  string `json:"source_ref"`
	AutoSync   bool   `json:"auto_sync_enabled"`
	Private    bool   `json:"is_private"`
	Credential string `json:"credential,omitempty"` // per-target override; optional
}

// SettingsUpdate carries a partial update of a target's sync settings.
// Nil fields are left unchanged.
type SettingsUpdate struct {
	AutoSync   *bool   `json:"auto_sync_enabled,omitempty"`
	Private    *bool   `json:"is_private,omitempty"`
	Credential *string `json:"credential,omitempty"`
}

// Validate checks a create request for well-formedness.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	switch r.Kind {
	case KindWiki, KindMailbox:
	default:
		return fmt.Errorf("%w: unknown target kind %q", domain.ErrValidation, r.Kind)
	}
	if r.Kind == KindWiki && strings.TrimSpace(r.SourceRef) == "" {
		return fmt.Errorf("%w: source_ref is required for wiki targets", domain.ErrValidation)
	}
	return nil
}

// Due reports whether the target should be picked up by the auto-sync
// scheduler at the given instant. Targets that never completed a sync are
// always due.
func (t *Target) Due(now time.Time, threshold time.Duration) bool {
	if !t.AutoSync {
		return false
	}
	if t.LastSyncedAt == nil {
		return true
	}
	return now.Sub(*t.LastSyncedAt) > threshold
}
