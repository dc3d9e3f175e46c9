package checklists

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"checkops/core/auth"
	corechecklists "checkops/core/checklists"
	"checkops/core/store"
	"checkops/core/utils"

	"github.com/go-chi/chi/v5"
)

// ServicePort is the part of the checklist service the HTTP layer drives.
type ServicePort interface {
	CreateTemplate(ctx context.Context, actor auth.Actor, in corechecklists.TemplateInput) (*store.ChecklistTemplate, error)
	UpdateTemplate(ctx context.Context, actor auth.Actor, id int64, in corechecklists.TemplateInput) (*store.ChecklistTemplate, error)
	ActivateTemplate(ctx context.Context, actor auth.Actor, id int64) (*store.ChecklistTemplate, error)
	DeactivateTemplate(ctx context.Context, actor auth.Actor, id int64) (*store.ChecklistTemplate, error)
	DeleteTemplate(ctx context.Context, actor auth.Actor, id int64) error
	ListTemplates(ctx context.Context, actor auth.Actor, filter store.TemplateFilter) ([]store.ChecklistTemplate, error)
	GetTemplate(ctx context.Context, actor auth.Actor, id int64) (*store.ChecklistTemplate, error)

	CreateInstance(ctx context.Context, actor auth.Actor, in corechecklists.InstanceInput) (*store.ChecklistInstance, error)
	GetInstance(ctx context.Context, actor auth.Actor, id int64) (*corechecklists.InstanceView, error)
	ListInstances(ctx context.Context, actor auth.Actor, filter store.InstanceFilter) ([]store.ChecklistInstance, error)
	UpdateInstance(ctx context.Context, actor auth.Actor, id int64, in corechecklists.InstanceUpdate) (*store.ChecklistInstance, error)
	RecomputeStatus(ctx context.Context, actor auth.Actor, id int64) (*store.ChecklistInstance, error)
	DeleteInstance(ctx context.Context, actor auth.Actor, id int64) (*store.DeletionReport, error)

	RecordResponse(ctx context.Context, actor auth.Actor, instanceID int64, in corechecklists.ResponseInput) (*corechecklists.ResponseResult, error)
	ListResponses(ctx context.Context, actor auth.Actor, instanceID int64) ([]store.ItemResponse, error)
	SubmitForApproval(ctx context.Context, actor auth.Actor, instanceID int64) (*corechecklists.SubmissionResult, error)
	Decide(ctx context.Context, actor auth.Actor, responseID int64, in corechecklists.DecisionInput) (*corechecklists.DecisionResult, error)
	ListApprovals(ctx context.Context, actor auth.Actor, responseID int64) ([]store.Approval, error)
	ListPendingApprovals(ctx context.Context, actor auth.Actor, limit int) ([]store.Approval, error)

	AddAttachment(ctx context.Context, actor auth.Actor, responseID int64, meta corechecklists.FileMeta, r io.Reader) (*store.Attachment, error)
	ListAttachments(ctx context.Context, actor auth.Actor, responseID int64) ([]store.Attachment, error)
	OpenAttachment(ctx context.Context, actor auth.Actor, id int64) (*store.Attachment, io.ReadCloser, error)
	DeleteAttachment(ctx context.Context, actor auth.Actor, id int64) error
}

type Handler struct {
	svc            ServicePort
	maxUploadBytes int64
	logger         *utils.Logger
}

func NewHandler(svc ServicePort, maxUploadBytes int64, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

func currentActor(r *http.Request) auth.Actor {
	actor, _ := auth.ActorFromContext(r.Context())
	return actor
}

func pathInt64(raw string) (int64, bool) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseIntDefault(raw string, def int) int {
	value := strings.TrimSpace(raw)
	if value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

func parseInt64Default(raw string, def int64) int64 {
	value := strings.TrimSpace(raw)
	if value == "" {
		return def
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func parseBoolPtr(raw string) *bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &value
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := pathInt64(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, corechecklists.ErrorCodeValidation, "invalid id", nil)
	}
	return id, ok
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, corechecklists.ErrorCodeValidation, "request body is required", nil)
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, corechecklists.ErrorCodeValidation, "request body too large", nil)
			return false
		}
		writeError(w, http.StatusBadRequest, corechecklists.ErrorCodeValidation, "malformed json: "+err.Error(), nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	body := map[string]any{"error": code, "message": message}
	if details != nil {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

// writeServiceError renders a service error; anything outside the domain taxonomy is a 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	de, ok := corechecklists.AsDomainError(err)
	if !ok {
		h.logger.Errorw("checklists request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeError(w, http.StatusInternalServerError, corechecklists.ErrorCodeInternal, "internal error", nil)
		return
	}
	var details any
	switch e := de.(type) {
	case *corechecklists.ValidationError:
		if len(e.Fields) > 0 {
			details = e.Fields
		}
		writeError(w, domainErrorHTTPStatus(de.Code()), de.Code(), e.Message, details)
		return
	case *corechecklists.ConflictError:
		details = map[string]any{"count": e.Count, "ids": e.IDs}
	case *corechecklists.StorageError:
		h.logger.Errorw("checklists storage failure", "method", r.Method, "path", r.URL.Path, "op", e.Op, "error", e.Err.Error())
		writeError(w, domainErrorHTTPStatus(de.Code()), de.Code(), "storage "+e.Op+" failed", nil)
		return
	}
	writeError(w, domainErrorHTTPStatus(de.Code()), de.Code(), de.Error(), details)
}

func domainErrorHTTPStatus(code string) int {
	switch code {
	case corechecklists.ErrorCodeValidation:
		return http.StatusBadRequest
	case corechecklists.ErrorCodeNotFound:
		return http.StatusNotFound
	case corechecklists.ErrorCodeConflict:
		return http.StatusConflict
	case corechecklists.ErrorCodePrecondition:
		return http.StatusPreconditionFailed
	case corechecklists.ErrorCodeStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
