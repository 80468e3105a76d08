package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/otomatty/saedgewell-sample-sub003/internal/domain"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/item"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/syncrun"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/target"
	"github.com/otomatty/saedgewell-sample-sub003/internal/port/database"
)

// mockStore is an in-memory database.Store with the same exclusivity and
// idempotence semantics as the real one.
type mockStore struct {
	mu          sync.Mutex
	targets     map[string]*target.Target
	runs        map[string]*syncrun.Run
	items       map[string]*item.Item       // keyed by targetID|remoteID
	attachments map[string]*item.Attachment // keyed by itemID|fileName

	upsertErr      map[string]error // remoteID -> forced failure
	attachmentErr  map[string]error // fileName -> forced failure
	timestampsErr  error
	listRunsCalls  int
	upsertCalls    int
	attachmentTrys int

	seq int
}

func newMockStore() *mockStore {
	return &mockStore{
		targets:       make(map[string]*target.Target),
		runs:          make(map[string]*syncrun.Run),
		items:         make(map[string]*item.Item),
		attachments:   make(map[string]*item.Attachment),
		upsertErr:     make(map[string]error),
		attachmentErr: make(map[string]error),
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

// --- Targets ---

func (m *mockStore) CreateTarget(_ context.Context, req *target.CreateRequest, totalItems int) (*target.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.targets {
		if t.Kind == req.Kind && t.SourceRef == req.SourceRef {
			return nil, fmt.Errorf("create target: %w", domain.ErrConflict)
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
		return nil, fmt.Errorf("get target %s: %w", id, domain.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *mockStore) ListTargets(_ context.Context) ([]target.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []target.Target
	for _, t := range m.targets {
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockStore) ListAutoSyncTargets(_ context.Context) ([]target.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []target.Target
	for _, t := range m.targets {
		if t.AutoSync {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateTargetSettings(_ context.Context, id string, upd target.SettingsUpdate) (*target.Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, fmt.Errorf("update target %s: %w", id, domain.ErrNotFound)
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
	cp := *t
	return &cp, nil
}

func (m *mockStore) UpdateTargetAfterSync(_ context.Context, id string, syncedAt time.Time, totalItems int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[id]
	if !ok {
		return fmt.Errorf("update target %s after sync: %w", id, domain.ErrNotFound)
	}
	t.LastSyncedAt = &syncedAt
	t.TotalItems = totalItems
	return nil
}

func (m *mockStore) DeleteTarget(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.targets[id]; !ok {
		return fmt.Errorf("delete target %s: %w", id, domain.ErrNotFound)
	}
	delete(m.targets, id)
	return nil
}

// --- Sync runs ---

func (m *mockStore) CreateRun(_ context.Context, targetID string, startedAt time.Time) (*syncrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.TargetID == targetID && r.Status == syncrun.StatusProcessing {
			return nil, fmt.Errorf("create run for target %s: %w", targetID, domain.ErrSyncInProgress)
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
		return fmt.Errorf("complete run %s: %w", runID, domain.ErrNotFound)
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
		return fmt.Errorf("fail run %s: %w", runID, domain.ErrNotFound)
	}
	r.Status = syncrun.StatusError
	r.ErrorMessage = message
	r.CompletedAt = &completedAt
	return nil
}

func (m *mockStore) ListRuns(_ context.Context, limit int) ([]syncrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listRunsCalls++
	var out []syncrun.Run
	for _, r := range m.runs {
		out = append(out, *r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *mockStore) ListRunsByTarget(_ context.Context, targetID string, limit int) ([]syncrun.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []syncrun.Run
	for _, r := range m.runs {
		if r.TargetID == targetID {
			out = append(out, *r)
			if len(out) == limit {
				break
			}
		}
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

// --- Items and attachments ---

func itemKey(targetID, remoteID string) string { return targetID + "|" + remoteID }

func (m *mockStore) ItemTimestamps(_ context.Context, targetID string, remoteIDs []string) (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timestampsErr != nil {
		return nil, m.timestampsErr
	}
	stamps := make(map[string]time.Time)
	for _, rid := range remoteIDs {
		if it, ok := m.items[itemKey(targetID, rid)]; ok {
			stamps[rid] = it.RemoteUpdatedAt
		}
	}
	return stamps, nil
}

func (m *mockStore) UpsertItem(_ context.Context, it *item.Item) (*item.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if err, ok := m.upsertErr[it.RemoteID]; ok {
		return nil, err
	}
	key := itemKey(it.TargetID, it.RemoteID)
	if existing, ok := m.items[key]; ok {
		id, created := existing.ID, existing.CreatedAt
		*existing = *it
		existing.ID = id
		existing.CreatedAt = created
		existing.UpdatedAt = time.Now()
		cp := *existing
		return &cp, nil
	}
	saved := *it
	saved.ID = m.nextID("item")
	saved.CreatedAt = time.Now()
	saved.UpdatedAt = saved.CreatedAt
	m.items[key] = &saved
	cp := saved
	return &cp, nil
}

func (m *mockStore) InsertAttachmentIfAbsent(_ context.Context, att *item.Attachment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachmentTrys++
	if err, ok := m.attachmentErr[att.FileName]; ok {
		return false, err
	}
	key := att.ItemID + "|" + att.FileName
	if _, ok := m.attachments[key]; ok {
		return false, nil
	}
	saved := *att
	saved.ID = m.nextID("att")
	saved.CreatedAt = time.Now()
	m.attachments[key] = &saved
	return true, nil
}

func (m *mockStore) ListAttachments(_ context.Context, itemID string) ([]item.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []item.Attachment
	for _, a := range m.attachments {
		if a.ItemID == itemID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *mockStore) CountItems(_ context.Context, targetID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, it := range m.items {
		if it.TargetID == targetID {
			n++
		}
	}
	return n, nil
}

var _ database.Store = (*mockStore)(nil)
