package checklists

import (
	"net/http"

	"checkops/core/auth"

	"github.com/go-chi/chi/v5"
)

type RouteDeps struct {
	WithSession       func(http.HandlerFunc) http.HandlerFunc
	RequirePermission func(auth.Permission) func(http.HandlerFunc) http.HandlerFunc
	Handler           *Handler
}

func RegisterRoutes(deps RouteDeps) http.Handler {
	r := chi.NewRouter()
	h := deps.Handler
	withSession := deps.WithSession
	require := deps.RequirePermission

	r.MethodFunc(http.MethodGet, "/checklists/templates", withSession(require(auth.PermTemplatesRead)(h.ListTemplates)))
	r.MethodFunc(http.MethodPost, "/checklists/templates", withSession(require(auth.PermTemplatesManage)(h.CreateTemplate)))
	r.MethodFunc(http.MethodGet, "/checklists/templates/{id:[0-9]+}", withSession(require(auth.PermTemplatesRead)(h.GetTemplate)))
	r.MethodFunc(http.MethodPut, "/checklists/templates/{id:[0-9]+}", withSession(require(auth.PermTemplatesManage)(h.UpdateTemplate)))
	r.MethodFunc(http.MethodDelete, "/checklists/templates/{id:[0-9]+}", withSession(require(auth.PermTemplatesManage)(h.DeleteTemplate)))
	r.MethodFunc(http.MethodPost, "/checklists/templates/{id:[0-9]+}/activate", withSession(require(auth.PermTemplatesManage)(h.ActivateTemplate)))
	r.MethodFunc(http.MethodPost, "/checklists/templates/{id:[0-9]+}/deactivate", withSession(require(auth.PermTemplatesManage)(h.DeactivateTemplate)))

	r.MethodFunc(http.MethodGet, "/checklists/instances", withSession(require(auth.PermChecklistsRead)(h.ListInstances)))
	r.MethodFunc(http.MethodPost, "/checklists/instances", withSession(require(auth.PermChecklistsWrite)(h.CreateInstance)))
	r.MethodFunc(http.MethodGet, "/checklists/instances/{id:[0-9]+}", withSession(require(auth.PermChecklistsRead)(h.GetInstance)))
	r.MethodFunc(http.MethodPatch, "/checklists/instances/{id:[0-9]+}", withSession(require(auth.PermChecklistsWrite)(h.UpdateInstance)))
	r.MethodFunc(http.MethodDelete, "/checklists/instances/{id:[0-9]+}", withSession(require(auth.PermChecklistsDelete)(h.DeleteInstance)))
	r.MethodFunc(http.MethodPost, "/checklists/instances/{id:[0-9]+}/recompute", withSession(require(auth.PermChecklistsWrite)(h.RecomputeStatus)))
	r.MethodFunc(http.MethodGet, "/checklists/instances/{id:[0-9]+}/responses", withSession(require(auth.PermChecklistsRead)(h.ListResponses)))
	r.MethodFunc(http.MethodPost, "/checklists/instances/{id:[0-9]+}/responses", withSession(require(auth.PermChecklistsWrite)(h.RecordResponse)))
	r.MethodFunc(http.MethodPost, "/checklists/instances/{id:[0-9]+}/submit", withSession(require(auth.PermChecklistsWrite)(h.SubmitForApproval)))

	r.MethodFunc(http.MethodGet, "/checklists/approvals/pending", withSession(require(auth.PermChecklistsApprove)(h.ListPendingApprovals)))
	r.MethodFunc(http.MethodGet, "/checklists/responses/{id:[0-9]+}/approvals", withSession(require(auth.PermChecklistsRead)(h.ListApprovals)))
	r.MethodFunc(http.MethodPost, "/checklists/responses/{id:[0-9]+}/approvals", withSession(require(auth.PermChecklistsApprove)(h.Decide)))

	r.MethodFunc(http.MethodGet, "/checklists/responses/{id:[0-9]+}/attachments", withSession(require(auth.PermChecklistsRead)(h.ListAttachments)))
	r.MethodFunc(http.MethodPost, "/checklists/responses/{id:[0-9]+}/attachments", withSession(require(auth.PermAttachmentsWrite)(h.UploadAttachment)))
	r.MethodFunc(http.MethodGet, "/checklists/attachments/{id:[0-9]+}/download", withSession(require(auth.PermChecklistsRead)(h.DownloadAttachment)))
	r.MethodFunc(http.MethodDelete, "/checklists/attachments/{id:[0-9]+}", withSession(require(auth.PermAttachmentsWrite)(h.DeleteAttachment)))
	return r
}
