// Package http provides the REST and WebSocket adapter for the sync engine.
package http

import (
	"net/http"

	"github.com/otomatty/saedgewell-sample-sub003/internal/adapter/ws"
	"github.com/otomatty/saedgewell-sample-sub003/internal/domain/target"
	"github.com/otomatty/saedgewell-sample-sub003/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Targets   *service.TargetService
	Sync      *service.SyncService
	Scheduler *service.Scheduler
	Hub       *ws.Hub
}

// --- Targets ---

func (h *Handlers) ListTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := h.Targets.List(r.Context())
	if err != nil {
		writeDomainError(w, err, "failed to list targets")
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (h *Handlers) CreateTarget(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[target.CreateRequest](w, r)
	if !ok {
		return
	}

	created, err := h.Targets.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "failed to create target")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handlers) GetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := h.Targets.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "target not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) UpdateTargetSettings(w http.ResponseWriter, r *http.Request) {
	upd, ok := readJSON[target.SettingsUpdate](w, r)
	if !ok {
		return
	}

	updated, err := h.Targets.UpdateSettings(r.Context(), urlParam(r, "id"), upd)
	if err != nil {
		writeDomainError(w, err, "target not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handlers) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	if err := h.Targets.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "target not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sync runs ---

func (h *Handlers) StartSync(w http.ResponseWriter, r *http.Request) {
	report, err := h.Sync.StartSync(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "target not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Sync.RunHistory(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeDomainError(w, err, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *Handlers) ListTargetRuns(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	// 404 for unknown targets rather than an empty history.
	if _, err := h.Targets.Get(r.Context(), id); err != nil {
		writeDomainError(w, err, "target not found")
		return
	}

	runs, err := h.Sync.TargetRunHistory(r.Context(), id, queryInt(r, "limit", 0))
	if err != nil {
		writeDomainError(w, err, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// --- Scheduling ---

func (h *Handlers) ListDueTargets(w http.ResponseWriter, r *http.Request) {
	due, err := h.Scheduler.DueTargets(r.Context())
	if err != nil {
		writeDomainError(w, err, "failed to list due targets")
		return
	}
	writeJSON(w, http.StatusOK, due)
}

func (h *Handlers) RunAutoSync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Scheduler.RunAutoSync(r.Context())
	if err != nil {
		writeDomainError(w, err, "auto-sync pass failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// --- Misc ---

func (h *Handlers) ListSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sources": h.Targets.Sources()})
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.Hub != nil {
		resp["ws_connections"] = h.Hub.ConnectionCount()
	}
	writeJSON(w, http.StatusOK, resp)
}
