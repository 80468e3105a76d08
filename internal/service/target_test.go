package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/otomatty/saedgewell-sample-sub003/internal/config"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/target"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/source"
)

func newTestTargetService(store *mockStore, src source.Source, srcErr error) *TargetService {
	s := NewTargetService(store, nil, stubCaller{}, config.Upstream{PageSize: 50})
	s.newSource = func(string, source.Config) (source.Source, error) {
		if srcErr != nil {
			return nil, srcErr
		}
		return src, nil
	}
	return s
}

func TestCreateTargetProbesSource(t *testing.T) {
	store := newMockStore()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := newFakeSource([]source.RemoteItem{
		remoteItem("p1", base),
		remoteItem("p2", base),
	})

	svc := newTestTargetService(store, src, nil)
	created, err := svc.Create(context.Background(), &target.CreateRequest{
		Name:      "docs",
		Kind:      target.KindWiki,
		SourceRef: "docs-project",
		AutoSync:  true,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if src.calls != 1 {
		t.Errorf("probe calls = %d, want 1", src.calls)
	}
	if created.TotalItems != 2 {
		t.Errorf("total_items = %d, want the probe's estimate 2", created.TotalItems)
	}
	if created.LastSyncedAt != nil {
		t.Error("last_synced_at set before any run")
	}
}

func TestCreateTargetValidation(t *testing.T) {
	svc := newTestTargetService(newMockStore(), newFakeSource([]source.RemoteItem{}), nil)

	tests := []struct {
		name string
		req  target.CreateRequest
	}{
		{"empty name", target.CreateRequest{Kind: target.KindWiki, SourceRef: "p"}},
		{"unknown kind", target.CreateRequest{Name: "x", Kind: "ftp", SourceRef: "p"}},
		{"wiki without ref", target.CreateRequest{Name: "x", Kind: target.KindWiki}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), &tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("Create() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateTargetDefaultsMailboxQuery(t *testing.T) {
	store := newMockStore()
	svc := newTestTargetService(store, newFakeSource([]source.RemoteItem{}), nil)

	created, err := svc.Create(context.Background(), &target.CreateRequest{
		Name: "inbox",
		Kind: target.KindMailbox,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.SourceRef != DefaultMailboxQuery {
		t.Errorf("source_ref = %q, want %q", created.SourceRef, DefaultMailboxQuery)
	}
}

func TestCreateTargetUpstreamNotFound(t *testing.T) {
	store := newMockStore()
	src := newFakeSource([]source.RemoteItem{})
	src.failPage = 0
	src.failErr = &source.UpstreamError{Op: "list pages", StatusCode: http.StatusNotFound, Err: errors.New("no such project")}

	svc := newTestTargetService(store, src, nil)
	_, err := svc.Create(context.Background(), &target.CreateRequest{
		Name:      "ghost",
		Kind:      target.KindWiki,
		SourceRef: "missing-project",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Create() error = %v, want ErrValidation for missing upstream source", err)
	}

	// Nothing persisted on probe failure.
	targets, _ := store.ListTargets(context.Background())
	if len(targets) != 0 {
		t.Errorf("targets persisted = %d, want 0", len(targets))
	}
}

func TestCreateTargetDuplicate(t *testing.T) {
	store := newMockStore()
	svc := newTestTargetService(store, newFakeSource([]source.RemoteItem{}), nil)

	req := &target.CreateRequest{Name: "docs", Kind: target.KindWiki, SourceRef: "docs-project"}
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	_, err := svc.Create(context.Background(), &target.CreateRequest{Name: "other", Kind: target.KindWiki, SourceRef: "docs-project"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second Create() error = %v, want ErrConflict", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	store := newMockStore()
	tgt := store.addTarget(&target.Target{Name: "docs", Kind: target.KindWiki, SourceRef: "p", AutoSync: true})

	svc := newTestTargetService(store, nil, nil)
	off := false
	cred := "new-cookie"
	updated, err := svc.UpdateSettings(context.Background(), tgt.ID, target.SettingsUpdate{
		AutoSync:   &off,
		Credential: &cred,
	})
	if err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}
	if updated.AutoSync {
		t.Error("auto_sync still enabled")
	}
	if updated.Credential != "new-cookie" {
		t.Errorf("credential = %q", updated.Credential)
	}
	// Untouched fields stay.
	if updated.Name != "docs" {
		t.Errorf("name = %q, want docs", updated.Name)
	}
}
