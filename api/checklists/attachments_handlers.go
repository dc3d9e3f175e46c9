package checklists

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	corechecklists "checkops/core/checklists"
)

// multipartOverhead covers boundaries and the small form fields sent with the file.
const multipartOverhead = 1 << 20

func (h *Handler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	items, err := h.svc.ListAttachments(r.Context(), currentActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// UploadAttachment streams the "file" part of a multipart body into the blob store.
// An optional "file_size" field sent before the file lets oversized uploads fail early.
func (h *Handler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, corechecklists.ErrorCodeValidation, "multipart/form-data body expected", nil)
		return
	}
	var declared int64
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, corechecklists.ErrorCodeValidation, "file part is required", map[string]string{"file": "required"})
			return
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, corechecklists.ErrorCodeValidation, "malformed multipart body", nil)
			return
		}
		switch part.FormName() {
		case "file_size":
			raw, _ := io.ReadAll(io.LimitReader(part, 32))
			declared = parseInt64Default(string(raw), 0)
			_ = part.Close()
			continue
		case "file":
		default:
			_ = part.Close()
			continue
		}
		meta := corechecklists.FileMeta{
			FileName:    part.FileName(),
			ContentType: partContentType(part.Header.Get("Content-Type"), part.FileName()),
			Size:        declared,
		}
		att, err := h.svc.AddAttachment(r.Context(), currentActor(r), id, meta, part)
		_ = part.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, corechecklists.ErrorCodeValidation, "upload too large", nil)
				return
			}
			h.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"item": att})
		return
	}
}

func partContentType(declared, fileName string) string {
	ct := strings.TrimSpace(declared)
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}

func (h *Handler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	att, rc, err := h.svc.OpenAttachment(r.Context(), currentActor(r), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := att.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": sanitizeDownloadFilename(att.FileName)}))
	if att.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(att.FileSize, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.CopyBuffer(w, rc, make([]byte, 32*1024)); err != nil {
		h.logger.Warnw("attachment download interrupted", "attachment_id", id, "error", err.Error())
	}
}

func (h *Handler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteAttachment(r.Context(), currentActor(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func sanitizeDownloadFilename(in string) string {
	out := strings.TrimSpace(in)
	if out == "" {
		return "attachment"
	}
	out = strings.ReplaceAll(out, "\\", "_")
	out = strings.ReplaceAll(out, "/", "_")
	out = strings.ReplaceAll(out, "\"", "_")
	return out
}
