// Package source defines the port interface for remote item sources
// (the Scrapbox wiki API, the Gmail mailbox API).
package source

import (
	"context"
	"fmt"
	"time"
)

// RemoteItem is one entity fetched from an upstream API, already parsed and
// validated into a typed shape at the adapter boundary. Adapters must fill
// ID and UpdatedAt; everything else is optional payload.
type RemoteItem struct {
	ID          string
	Title       string
	Author      string
	Excerpt     string
	Views       int64
	Linked      int64
	Pinned      bool
	Labels      []string
	UpdatedAt   time.Time
	Attachments []RemoteAttachment
}

// RemoteAttachment describes a sub-entity of a remote item. FileName is the
// natural key within the parent item.
type RemoteAttachment struct {
	FileName  string
	MimeType  string
	SizeBytes int64
	RemoteRef string // upstream handle for fetching the content later
}

// Page is one page of a paginated item listing. An empty NextToken means the
// listing is exhausted.
type Page struct {
	Items          []RemoteItem
	NextToken      string
	EstimatedTotal int
}

// Source is the port interface for upstream item listings.
type Source interface {
	// Name returns the source identifier (e.g. "scrapbox", "gmail").
	Name() string

	// ListItems returns one page of items for the given source reference.
	// Pass an empty pageToken for the first page and the previous page's
	// NextToken afterwards.
	ListItems(ctx context.Context, sourceRef, pageToken string) (*Page, error)
}

// UpstreamError carries the HTTP status of a failed upstream call so the
// retry layer can classify it without knowing the wire format.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream returned %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
