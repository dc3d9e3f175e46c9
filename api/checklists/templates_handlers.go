package checklists

import (
	"net/http"
	"strings"

	corechecklists "checkops/core/checklists"
	"checkops/core/store"
)

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := h.svc.ListTemplates(r.Context(), currentActor(r), store.TemplateFilter{
		Category:     strings.TrimSpace(q.Get("category")),
		PropertyType: strings.TrimSpace(q.Get("property_type")),
		Active:       parseBoolPtr(q.Get("active")),
		Limit:        parseIntDefault(q.Get("limit"), 100),
		Offset:       parseIntDefault(q.Get("offset"), 0),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	tpl, err := h.svc.GetTemplate(r.Context(), currentActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": tpl})
}

func (h *Handler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var payload corechecklists.TemplateInput
	if !decodeJSON(w, r, &payload) {
		return
	}
	tpl, err := h.svc.CreateTemplate(r.Context(), currentActor(r), payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": tpl})
}

func (h *Handler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var payload corechecklists.TemplateInput
	if !decodeJSON(w, r, &payload) {
		return
	}
	tpl, err := h.svc.UpdateTemplate(r.Context(), currentActor(r), id, payload)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": tpl})
}

func (h *Handler) ActivateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	tpl, err := h.svc.ActivateTemplate(r.Context(), currentActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": tpl})
}

func (h *Handler) DeactivateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	tpl, err := h.svc.DeactivateTemplate(r.Context(), currentActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": tpl})
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteTemplate(r.Context(), currentActor(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
