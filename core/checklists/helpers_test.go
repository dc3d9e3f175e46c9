package checklists

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"checkops/config"
	"checkops/core/auth"
	"checkops/core/blob"
	"checkops/core/store"
	"checkops/core/utils"
)

var (
	tenantA   = auth.Actor{TenantID: "tenant-a", UserID: "inspector-1", Roles: []string{auth.RoleInspector}}
	tenantB   = auth.Actor{TenantID: "tenant-b", UserID: "inspector-9", Roles: []string{auth.RoleInspector}}
	approverA = auth.Actor{TenantID: "tenant-a", UserID: "approver-1", Roles: []string{auth.RoleApprover}}
)

type memBlobs struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPut    bool
	failDelete bool
	onPut      func()
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (m *memBlobs) Put(_ context.Context, key string, r io.Reader, _ blob.Meta) (string, int64, error) {
	if m.failPut {
		return "", 0, errors.New("bucket unavailable")
	}
	if m.onPut != nil {
		m.onPut()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return key, int64(len(data)), nil
}

func (m *memBlobs) Open(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, blob.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) Delete(_ context.Context, path string) error {
	if m.failDelete {
		return errors.New("bucket unavailable")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *memBlobs) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

type testEnv struct {
	svc   *Service
	store *store.Store
	blobs *memBlobs
	cfg   *config.AppConfig
}

func setupService(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.AppConfig{
		DBDriver: "sqlite",
		DBURL:    "file:" + filepath.Join(t.TempDir(), "checklists.db"),
		Attachments: config.AttachmentsConfig{
			RequireCompleteResponse: true,
			MaxBytes:                1024,
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
	st := store.NewStore(db)
	blobs := newMemBlobs()
	svc := NewService(st, blobs, cfg, logger)
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	return &testEnv{svc: svc, store: st, blobs: blobs, cfg: cfg}
}

func boolItem(text string, order int) TemplateItemInput {
	return TemplateItemInput{Text: text, Type: ItemBoolean, IsRequired: true, SortOrder: order}
}

func approvalItem(text string, order int) TemplateItemInput {
	return TemplateItemInput{Text: text, Type: ItemBoolean, IsRequired: true, SortOrder: order, Config: json.RawMessage(`{"requires_approval":true}`)}
}

func mustTemplate(t *testing.T, env *testEnv, actor auth.Actor, in TemplateInput) *store.ChecklistTemplate {
	t.Helper()
	tpl, err := env.svc.CreateTemplate(context.Background(), actor, in)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return tpl
}

func mustInstance(t *testing.T, env *testEnv, actor auth.Actor, templateID, propertyID int64) *store.ChecklistInstance {
	t.Helper()
	inst, err := env.svc.CreateInstance(context.Background(), actor, InstanceInput{PropertyID: propertyID, TemplateID: templateID, AssignedTo: actor.UserID})
	if err != nil {
		t.Fatalf("create instance: %v", err)
	}
	return inst
}

func mustRecord(t *testing.T, env *testEnv, actor auth.Actor, instanceID, itemID int64, value string) *ResponseResult {
	t.Helper()
	res, err := env.svc.RecordResponse(context.Background(), actor, instanceID, ResponseInput{ItemID: itemID, Value: value})
	if err != nil {
		t.Fatalf("record response: %v", err)
	}
	return res
}

func fireSafety() TemplateInput {
	return TemplateInput{
		Name:     "Fire Safety",
		Category: CategoryEmergency,
		Items: []TemplateItemInput{
			boolItem("Alarm panel checked", 1),
			boolItem("Exits clear", 2),
			boolItem("Extinguishers sealed", 3),
		},
	}
}
