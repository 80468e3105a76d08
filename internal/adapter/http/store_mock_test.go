package http_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/otomatty/saedgewell-sample-sub003/internal/domain"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/item"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/syncrun"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/target"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/database"
)

// mockStore implements database.Store in memory for handler tests.
type mockStore struct {
	mu      sync.Mutex
	seq     int
	targets map[string]*target.Target
	runs    map[string]*syncrun.Run
	items   map[string]*item.Item // keyed by targetID|remoteID
	atts    map[string]bool       // keyed by itemID|fileName
}

var _ database.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		targets: map[string]*target.Target{},
		runs:    map[string]*syncrun.Run{},
		items:   map[string]*item.Item{},
		atts:    map[string]bool{},
	}
}

func (m *mockStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *mockStore) addTarget(t *target.Target) *target.Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = m.nextID("target")
	}
	m.targets[t.ID] = t
	return t
}

func (m *mockStore) CreateTarget(_ context.Context, req *target.CreateRequest, totalItems int) (*target.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.targets {
		if t.Kind == req.Kind && t.SourceRef == req.SourceRef {
			return nil, domain.ErrConflict
		}
	}
	t := &target.Target{
		ID:         m.nextID("target"),
		Name:       req.Name,
		Kind:       req.Kind,
		SourceRef:  req.SourceRef,
		AutoSync:   req.AutoSync,
		Private:    req.Private,
		Credential: req.Credential,
		TotalItems: totalItems,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	m.targets[t.ID] = t
	return t, nil
}

func (m *mockStore) GetTarget(_ context.Context, id string) (*target.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockStore) ListTargets(_ context.Context) ([]target.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]target.Target, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) ListAutoSyncTargets(_ context.Context) ([]target.Target, error) {
	all, _ := m.ListTargets(context.Background())
	out := all[:0]
	for _, t := range all {
		if t.AutoSync {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateTargetSettings(_ context.Context, id string, upd target.SettingsUpdate) (*target.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.AutoSync != nil {
		t.AutoSync = *upd.AutoSync
	}
	if upd.Private != nil {
		t.Private = *upd.Private
	}
	if upd.Credential != nil {
		t.Credential = *upd.Credential
	}
	t.UpdatedAt = time.Now()
	cp := *t
	return &cp, nil
}

func (m *mockStore) UpdateTargetAfterSync(_ context.Context, id string, syncedAt time.Time, totalItems int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.LastSyncedAt = &syncedAt
	t.TotalItems = totalItems
	return nil
}

func (m *mockStore) DeleteTarget(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.targets, id)
	for rid, r := range m.runs {
		if r.TargetID == id {
			delete(m.runs, rid)
		}
	}
	return nil
}

func (m *mockStore) CreateRun(_ context.Context, targetID string, startedAt time.Time) (*syncrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[targetID]; !ok {
		return nil, domain.ErrNotFound
	}
	for _, r := range m.runs {
		if r.TargetID == targetID && r.Status == syncrun.StatusProcessing {
			return nil, domain.ErrSyncInProgress
		}
	}
	r := &syncrun.Run{
		ID:        m.nextID("run"),
		TargetID:  targetID,
		Status:    syncrun.StatusProcessing,
		StartedAt: startedAt,
	}
	m.runs[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m *mockStore) CompleteRun(_ context.Context, runID string, completedAt time.Time, result database.RunCompletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok || r.Status != syncrun.StatusProcessing {
		return domain.ErrNotFound
	}
	r.Status = syncrun.StatusCompleted
	r.ItemsProcessed = result.ItemsProcessed
	r.ItemsUpdated = result.ItemsUpdated
	r.CompletedAt = &completedAt
	return nil
}

func (m *mockStore) FailRun(_ context.Context, runID string, completedAt time.Time, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[runID]
	if !ok || r.Status != syncrun.StatusProcessing {
		return domain.ErrNotFound
	}
	r.Status = syncrun.StatusError
	r.ErrorMessage = message
	r.CompletedAt = &completedAt
	return nil
}

func (m *mockStore) ListRuns(_ context.Context, limit int) ([]syncrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]syncrun.Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ListRunsByTarget(_ context.Context, targetID string, limit int) ([]syncrun.Run, error) {
	all, _ := m.ListRuns(context.Background(), 0)
	out := all[:0]
	for _, r := range all {
		if r.TargetID == targetID {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ReapStaleRuns(_ context.Context, cutoff time.Time, message string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.runs {
		if r.Status == syncrun.StatusProcessing && r.StartedAt.Before(cutoff) {
			r.Status = syncrun.StatusError
			r.ErrorMessage = message
			now := time.Now()
			r.CompletedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *mockStore) ItemTimestamps(_ context.Context, targetID string, remoteIDs []string) (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]time.Time{}
	for _, rid := range remoteIDs {
		if it, ok := m.items[targetID+"|"+rid]; ok {
			out[rid] = it.RemoteUpdatedAt
		}
	}
	return out, nil
}

func (m *mockStore) UpsertItem(_ context.Context, it *item.Item) (*item.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := it.TargetID + "|" + it.RemoteID
	stored := *it
	if prev, ok := m.items[key]; ok {
		stored.ID = prev.ID
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.ID = m.nextID("item")
		stored.CreatedAt = time.Now()
	}
	stored.UpdatedAt = time.Now()
	m.items[key] = &stored
	cp := stored
	return &cp, nil
}

func (m *mockStore) InsertAttachmentIfAbsent(_ context.Context, att *item.Attachment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := att.ItemID + "|" + att.FileName
	if m.atts[key] {
		return false, nil
	}
	m.atts[key] = true
	return true, nil
}

func (m *mockStore) ListAttachments(_ context.Context, _ string) ([]item.Attachment, error) {
	return nil, nil
}

func (m *mockStore) CountItems(_ context.Context, targetID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key := range m.items {
		if len(key) > len(targetID) && key[:len(targetID)+1] == targetID+"|" {
			n++
		}
	}
	return n, nil
}
