package api

import (
	"net/http"

	checklistshttp "checkops/api/checklists"

	"github.com/go-chi/chi/v5"
)

func (s *Server) registerChecklistsRoutes(apiRouter chi.Router) {
	handler := checklistshttp.NewHandler(s.checklists, s.cfg.Attachments.MaxBytes, s.logger)
	router := checklistshttp.RegisterRoutes(checklistshttp.RouteDeps{
		WithSession:       s.withSession,
		RequirePermission: s.requirePermission,
		Handler:           handler,
	})
	apiRouter.Handle("/checklists/*", http.StripPrefix("/api", router))
}
