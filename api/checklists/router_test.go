package checklists

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"checkops/config"
	"checkops/core/auth"
	"checkops/core/blob"
	corechecklists "checkops/core/checklists"
	"checkops/core/store"
	"checkops/core/utils"
)

var (
	manager   = auth.Actor{TenantID: "tenant-a", UserID: "manager-1", Roles: []string{auth.RoleManager}}
	inspector = auth.Actor{TenantID: "tenant-a", UserID: "inspector-1", Roles: []string{auth.RoleInspector}}
	viewer    = auth.Actor{TenantID: "tenant-a", UserID: "viewer-1", Roles: []string{auth.RoleViewer}}
	outsider  = auth.Actor{TenantID: "tenant-b", UserID: "manager-9", Roles: []string{auth.RoleManager}}
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBURL:    "file:" + filepath.Join(t.TempDir(), "api.db"),
		Attachments: config.AttachmentsConfig{
			RequireCompleteResponse: true,
			MaxBytes:                64,
		},
	}
	logger := utils.NewNopLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	blobs, err := blob.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	policy, err := auth.NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	svc := corechecklists.NewService(store.NewStore(db), blobs, cfg, logger)
	return RegisterRoutes(RouteDeps{
		WithSession: func(next http.HandlerFunc) http.HandlerFunc {
			return func(w http.ResponseWriter, r *http.Request) {
				actor := auth.Actor{
					TenantID: r.Header.Get("X-Tenant-ID"),
					UserID:   r.Header.Get("X-User-ID"),
					Roles:    auth.ParseRoles(r.Header.Get("X-User-Roles")),
				}
				if actor.TenantID == "" {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				next(w, r.WithContext(auth.WithActor(r.Context(), actor)))
			}
		},
		RequirePermission: func(perm auth.Permission) func(http.HandlerFunc) http.HandlerFunc {
			return func(next http.HandlerFunc) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					actor, _ := auth.ActorFromContext(r.Context())
					if !policy.Allowed(actor.Roles, perm) {
						http.Error(w, "forbidden", http.StatusForbidden)
						return
					}
					next(w, r)
				}
			}
		},
		Handler: NewHandler(svc, cfg.Attachments.MaxBytes, logger),
	})
}

func identify(req *http.Request, actor *auth.Actor) {
	if actor == nil {
		return
	}
	req.Header.Set("X-Tenant-ID", actor.TenantID)
	req.Header.Set("X-User-ID", actor.UserID)
	req.Header.Set("X-User-Roles", strings.Join(actor.Roles, ","))
}

func call(t *testing.T, router http.Handler, method, path string, actor *auth.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	identify(req, actor)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func upload(t *testing.T, router http.Handler, responseID int64, actor *auth.Actor, name, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/checklists/responses/"+strconv.FormatInt(responseID, 10)+"/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	identify(req, actor)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

type templateEnvelope struct {
	Item store.ChecklistTemplate `json:"item"`
}

type instanceEnvelope struct {
	Item store.ChecklistInstance `json:"item"`
}

type errorEnvelope struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

func createGateTemplate(t *testing.T, router http.Handler) store.ChecklistTemplate {
	t.Helper()
	rr := call(t, router, http.MethodPost, "/checklists/templates", &manager, map[string]any{
		"name":     "Gate inspection",
		"category": "security",
		"items": []map[string]any{
			{"text": "Gate locked", "type": "boolean", "is_required": true, "sort_order": 1},
			{"text": "Gate photo", "type": "photo", "sort_order": 2, "config": map[string]any{"accepted_types": []string{"image/*"}}},
		},
	})
	expectStatus(t, rr, http.StatusCreated)
	var created templateEnvelope
	decodeBody(t, rr, &created)
	if len(created.Item.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", created.Item.Items)
	}
	return created.Item
}

func TestChecklistsRoutesAuthAndPermissionGuards(t *testing.T) {
	router := setupRouter(t)

	rr := call(t, router, http.MethodGet, "/checklists/templates", nil, nil)
	expectStatus(t, rr, http.StatusUnauthorized)

	rr = call(t, router, http.MethodPost, "/checklists/templates", &inspector, map[string]any{"name": "x", "category": "security"})
	expectStatus(t, rr, http.StatusForbidden)

	tpl := createGateTemplate(t, router)
	rr = call(t, router, http.MethodGet, "/checklists/templates", &viewer, nil)
	expectStatus(t, rr, http.StatusOK)

	rr = call(t, router, http.MethodPost, "/checklists/instances", &viewer, map[string]any{"property_id": 4, "template_id": tpl.ID})
	expectStatus(t, rr, http.StatusForbidden)

	rr = call(t, router, http.MethodGet, "/checklists/approvals/pending", &inspector, nil)
	expectStatus(t, rr, http.StatusForbidden)

	rr = call(t, router, http.MethodDelete, "/checklists/instances/1", &inspector, nil)
	expectStatus(t, rr, http.StatusForbidden)
}

func TestChecklistsRoutesWorkflow(t *testing.T) {
	router := setupRouter(t)
	tpl := createGateTemplate(t, router)

	rr := call(t, router, http.MethodPost, "/checklists/instances", &inspector, map[string]any{"property_id": 4, "template_id": tpl.ID, "assigned_to": "inspector-1"})
	expectStatus(t, rr, http.StatusCreated)
	var inst instanceEnvelope
	decodeBody(t, rr, &inst)
	if inst.Item.Status != corechecklists.StatusPending {
		t.Fatalf("expected pending, got %s", inst.Item.Status)
	}
	instPath := "/checklists/instances/" + strconv.FormatInt(inst.Item.ID, 10)

	rr = call(t, router, http.MethodPost, instPath+"/responses", &inspector, map[string]any{"item_id": tpl.Items[0].ID, "value": "true"})
	expectStatus(t, rr, http.StatusOK)
	var recorded corechecklists.ResponseResult
	decodeBody(t, rr, &recorded)
	if recorded.Instance.Status != corechecklists.StatusCompleted {
		t.Fatalf("only required item answered, expected completed, got %s", recorded.Instance.Status)
	}

	rr = call(t, router, http.MethodPost, instPath+"/responses", &inspector, map[string]any{"item_id": tpl.Items[0].ID, "value": "maybe"})
	expectStatus(t, rr, http.StatusBadRequest)
	var verr errorEnvelope
	decodeBody(t, rr, &verr)
	if verr.Error != corechecklists.ErrorCodeValidation {
		t.Fatalf("unexpected error code %q", verr.Error)
	}

	rr = upload(t, router, recorded.Response.ID, &inspector, "gate.png", "image/png", []byte("png-bytes"))
	expectStatus(t, rr, http.StatusCreated)
	var att struct {
		Item store.Attachment `json:"item"`
	}
	decodeBody(t, rr, &att)
	if att.Item.FileName != "gate.png" || att.Item.FileSize != int64(len("png-bytes")) {
		t.Fatalf("unexpected attachment %+v", att.Item)
	}

	rr = upload(t, router, recorded.Response.ID, &inspector, "big.bin", "application/octet-stream", bytes.Repeat([]byte("x"), 65))
	expectStatus(t, rr, http.StatusBadRequest)

	attPath := "/checklists/attachments/" + strconv.FormatInt(att.Item.ID, 10)
	rr = call(t, router, http.MethodGet, attPath+"/download", &viewer, nil)
	expectStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "png-bytes" || rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected download %q %q", rr.Header().Get("Content-Type"), rr.Body.String())
	}
	rr = call(t, router, http.MethodGet, attPath+"/download", &outsider, nil)
	expectStatus(t, rr, http.StatusNotFound)

	rr = call(t, router, http.MethodDelete, "/checklists/templates/"+strconv.FormatInt(tpl.ID, 10), &manager, nil)
	expectStatus(t, rr, http.StatusConflict)
	var conflict errorEnvelope
	decodeBody(t, rr, &conflict)
	var details struct {
		Count int     `json:"count"`
		IDs   []int64 `json:"ids"`
	}
	if err := json.Unmarshal(conflict.Details, &details); err != nil {
		t.Fatalf("conflict details: %v", err)
	}
	if details.Count != 1 || len(details.IDs) != 1 || details.IDs[0] != inst.Item.ID {
		t.Fatalf("unexpected conflict details %+v", details)
	}

	rr = call(t, router, http.MethodPost, "/checklists/responses/"+strconv.FormatInt(recorded.Response.ID, 10)+"/approvals", &manager, map[string]any{"status": "approved"})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = call(t, router, http.MethodDelete, instPath, &manager, nil)
	expectStatus(t, rr, http.StatusOK)
	var deleted struct {
		Report store.DeletionReport `json:"report"`
	}
	decodeBody(t, rr, &deleted)
	if deleted.Report.Attachments != 1 || deleted.Report.Responses != 1 {
		t.Fatalf("unexpected deletion report %+v", deleted.Report)
	}
	rr = call(t, router, http.MethodGet, instPath, &manager, nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestChecklistsRoutesRejectMalformedRequests(t *testing.T) {
	router := setupRouter(t)

	rr := call(t, router, http.MethodPost, "/checklists/templates", &manager, `{"name":`)
	expectStatus(t, rr, http.StatusBadRequest)

	rr = call(t, router, http.MethodPost, "/checklists/templates", &manager, `{"name":"x","category":"security","colour":"red"}`)
	expectStatus(t, rr, http.StatusBadRequest)

	rr = call(t, router, http.MethodPost, "/checklists/templates", &manager, map[string]any{"name": "", "category": "security"})
	expectStatus(t, rr, http.StatusBadRequest)

	rr = call(t, router, http.MethodGet, "/checklists/templates/999", &manager, nil)
	expectStatus(t, rr, http.StatusNotFound)

	rr = call(t, router, http.MethodGet, "/checklists/templates/abc", &manager, nil)
	expectStatus(t, rr, http.StatusNotFound)

	req := httptest.NewRequest(http.MethodPost, "/checklists/responses/1/attachments", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	identify(req, &inspector)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestDomainErrorHTTPStatus(t *testing.T) {
	cases := map[string]int{
		corechecklists.ErrorCodeValidation:   http.StatusBadRequest,
		corechecklists.ErrorCodeNotFound:     http.StatusNotFound,
		corechecklists.ErrorCodeConflict:     http.StatusConflict,
		corechecklists.ErrorCodePrecondition: http.StatusPreconditionFailed,
		corechecklists.ErrorCodeStorage:      http.StatusBadGateway,
		"something.else":                     http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := domainErrorHTTPStatus(code); got != want {
			t.Fatalf("%s: expected %d, got %d", code, want, got)
		}
	}
}

func TestPartContentType(t *testing.T) {
	if got := partContentType("image/jpeg", "a.png"); got != "image/jpeg" {
		t.Fatalf("declared type should win, got %s", got)
	}
	if got := partContentType("", "scan.pdf"); got != "application/pdf" {
		t.Fatalf("expected extension fallback, got %s", got)
	}
	if got := partContentType("application/octet-stream", "blob"); got != "application/octet-stream" {
		t.Fatalf("expected octet-stream, got %s", got)
	}
}
