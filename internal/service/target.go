package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/otomatty/saedgewell-sample-sub003/internal/config"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/target"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/database"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/source"
	"github.com/otomatty/saedgewell-sample-sub003/internal/secrets"
)

// DefaultMailboxQuery scopes mailbox targets that give no query of their own.
const DefaultMailboxQuery = "has:attachment"

// TargetService manages the lifecycle of sync targets.
type TargetService struct {
	store    database.Store
	vault    *secrets.Vault
	caller   Caller
	pageSize int

	newSource sourceBuilder
}

// NewTargetService creates a TargetService.
func NewTargetService(store database.Store, vault *secrets.Vault, caller Caller, upstream config.Upstream) *TargetService {
	return &TargetService{
		store:     store,
		vault:     vault,
		caller:    caller,
		pageSize:  upstream.PageSize,
		newSource: source.New,
	}
}

// Create validates and registers a new target. The upstream source is probed
// with a single listing call first, so registering a nonexistent project or
// an unreachable mailbox fails before anything is persisted.
func (s *TargetService) Create(ctx context.Context, req *target.CreateRequest) (*target.Target, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Kind == target.KindMailbox && req.SourceRef == "" {
		req.SourceRef = DefaultMailboxQuery
	}

	probe := &target.Target{
		Kind:       req.Kind,
		SourceRef:  req.SourceRef,
		Credential: req.Credential,
	}
	src, err := s.newSource(string(req.Kind), sourceConfigFor(s.vault, probe, s.pageSize))
	if err != nil {
		return nil, fmt.Errorf("build source for %s: %w", req.Kind, err)
	}

	var page *source.Page
	err = s.caller.Do(ctx, "probe source", func(ctx context.Context) error {
		var perr error
		page, perr = src.ListItems(ctx, req.SourceRef, "")
		return perr
	})
	if err != nil {
		var ue *source.UpstreamError
		if errors.As(err, &ue) && ue.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: source %q not found upstream", domain.ErrValidation, req.SourceRef)
		}
		return nil, fmt.Errorf("probe source %q: %w", req.SourceRef, err)
	}

	return s.store.CreateTarget(ctx, req, page.EstimatedTotal)
}

// Get returns one target by ID.
func (s *TargetService) Get(ctx context.Context, id string) (*target.Target, error) {
	return s.store.GetTarget(ctx, id)
}

// List returns all registered targets.
func (s *TargetService) List(ctx context.Context) ([]target.Target, error) {
	return s.store.ListTargets(ctx)
}

// UpdateSettings applies a partial settings update.
func (s *TargetService) UpdateSettings(ctx context.Context, id string, upd target.SettingsUpdate) (*target.Target, error) {
	return s.store.UpdateTargetSettings(ctx, id, upd)
}

// Delete removes a target together with its runs and items.
func (s *TargetService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteTarget(ctx, id)
}

// Sources returns the names of all registered source adapters.
func (s *TargetService) Sources() []string {
	return source.Available()
}
