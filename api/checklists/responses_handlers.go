package checklists

import (
	"net/http"

	corechecklists "checkops/core/checklists"
)

func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListResponses(r.Context(), currentActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) RecordResponse(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var payload corechecklists.ResponseInput
	if !decodeJSON(w, r, &payload) {
		return
	}
	result, err := h.svc.RecordResponse(r.Context(), currentActor(r), id, payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SubmitForApproval(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	result, err := h.svc.SubmitForApproval(r.Context(), currentActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var payload corechecklists.DecisionInput
	if !decodeJSON(w, r, &payload) {
		return
	}
	result, err := h.svc.Decide(r.Context(), currentActor(r), id, payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListApprovals(r.Context(), currentActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ListPendingApprovals(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListPendingApprovals(r.Context(), currentActor(r), parseIntDefault(r.URL.Query().Get("limit"), 100))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
