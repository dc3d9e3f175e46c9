package checklists

import (
	"net/http"
	"strings"

	corechecklists "checkops/core/checklists"
	"checkops/core/store"
)

func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.ListInstances(r.Context(), currentActor(r), store.InstanceFilter{
		PropertyID: parseInt64Default(q.Get("property_id"), 0),
		TemplateID: parseInt64Default(q.Get("template_id"), 0),
		Status:     strings.TrimSpace(q.Get("status")),
		AssignedTo: strings.TrimSpace(q.Get("assigned_to")),
		Limit:      parseIntDefault(q.Get("limit"), 100),
		Offset:     parseIntDefault(q.Get("offset"), 0),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	var payload corechecklists.InstanceInput
	if !decodeJSON(w, r, &payload) {
		return
	}
	inst, err := h.svc.CreateInstance(r.Context(), currentActor(r), payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": inst})
}

func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	view, err := h.svc.GetInstance(r.Context(), currentActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": view})
}

func (h *Handler) UpdateInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var payload corechecklists.InstanceUpdate
	if !decodeJSON(w, r, &payload) {
		return
	}
	inst, err := h.svc.UpdateInstance(r.Context(), currentActor(r), id, payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": inst})
}

func (h *Handler) RecomputeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	inst, err := h.svc.RecomputeStatus(r.Context(), currentActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": inst})
}

func (h *Handler) DeleteInstance(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	report, err := h.svc.DeleteInstance(r.Context(), currentActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "report": report})
}
