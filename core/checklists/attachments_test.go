package checklists

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func evidenceSetup(t *testing.T) (*testEnv, int64, int64) {
	t.Helper()
	env := setupService(t)
	tpl := mustTemplate(t, env, tenantA, TemplateInput{
		Name:     "Perimeter",
		Category: CategorySecurity,
		Items: []TemplateItemInput{
			boolItem("Fence intact", 1),
			{Text: "Fence photo", Type: ItemPhoto, SortOrder: 2, Config: json.RawMessage(`{"max_files":2,"accepted_types":["image/*"]}`)},
		},
	})
	inst := mustInstance(t, env, tenantA, tpl.ID, 21)
	res := mustRecord(t, env, tenantA, inst.ID, tpl.Items[0].ID, "true")
	return env, inst.ID, res.Response.ID
}

func TestAttachmentLifecycle(t *testing.T) {
	env, instanceID, responseID := evidenceSetup(t)
	ctx := context.Background()

	att, err := env.svc.AddAttachment(ctx, tenantA, responseID, FileMeta{FileName: "../../etc/gate.jpg", ContentType: "image/jpeg"}, strings.NewReader("jpeg-bytes"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if att.FileName != "gate.jpg" || att.FileSize != int64(len("jpeg-bytes")) || att.UploadedBy != tenantA.UserID {
		t.Fatalf("unexpected attachment %+v", att)
	}
	if !strings.HasPrefix(att.StoragePath, tenantA.TenantID+"/") || !env.blobs.has(att.StoragePath) {
		t.Fatalf("blob not stored under the tenant prefix: %s", att.StoragePath)
	}

	list, err := env.svc.ListAttachments(ctx, tenantA, responseID)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected one attachment, got %d (%v)", len(list), err)
	}
	meta, rc, err := env.svc.OpenAttachment(ctx, tenantA, att.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "jpeg-bytes" || meta.FileType != "image/jpeg" {
		t.Fatalf("unexpected content %q (%s)", body, meta.FileType)
	}
	view, err := env.svc.GetInstance(ctx, tenantA, instanceID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Items[0].Attachments) != 1 {
		t.Fatalf("instance view must carry the attachment")
	}

	if _, _, err := env.svc.OpenAttachment(ctx, tenantB, att.ID); !IsNotFound(err) {
		t.Fatalf("cross-tenant open must be not found, got %v", err)
	}
	if err := env.svc.DeleteAttachment(ctx, tenantA, att.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if env.blobs.has(att.StoragePath) {
		t.Fatalf("blob must be removed with the row")
	}
	if err := env.svc.DeleteAttachment(ctx, tenantA, att.ID); !IsNotFound(err) {
		t.Fatalf("second delete must be not found, got %v", err)
	}
}

func TestAttachmentRequiresCompletedResponse(t *testing.T) {
	env, instanceID, _ := evidenceSetup(t)
	ctx := context.Background()
	view, err := env.svc.GetInstance(ctx, tenantA, instanceID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res := mustRecord(t, env, tenantA, instanceID, view.Items[0].Item.ID, "false")

	_, err = env.svc.AddAttachment(ctx, tenantA, res.Response.ID, FileMeta{FileName: "a.jpg", ContentType: "image/jpeg"}, strings.NewReader("x"))
	if !IsPrecondition(err) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if len(env.blobs.objects) != 0 {
		t.Fatalf("nothing must be stored on a failed precondition")
	}

	env.cfg.Attachments.RequireCompleteResponse = false
	if _, err := env.svc.AddAttachment(ctx, tenantA, res.Response.ID, FileMeta{FileName: "a.jpg", ContentType: "image/jpeg"}, strings.NewReader("x")); err != nil {
		t.Fatalf("policy off must allow evidence on incomplete items: %v", err)
	}
}

func TestAttachmentRejectedWhenResponseUncheckedDuringUpload(t *testing.T) {
	env, instanceID, responseID := evidenceSetup(t)
	ctx := context.Background()
	view, err := env.svc.GetInstance(ctx, tenantA, instanceID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	env.blobs.onPut = func() {
		env.blobs.onPut = nil
		mustRecord(t, env, tenantA, instanceID, view.Items[0].Item.ID, "false")
	}

	_, err = env.svc.AddAttachment(ctx, tenantA, responseID, FileMeta{FileName: "fence.jpg", ContentType: "image/jpeg"}, strings.NewReader("jpeg"))
	if !IsPrecondition(err) {
		t.Fatalf("expected precondition error after the response was unchecked, got %v", err)
	}
	list, err := env.svc.ListAttachments(ctx, tenantA, responseID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("no attachment row may be written, got %d", len(list))
	}
	if len(env.blobs.objects) != 0 {
		t.Fatalf("uploaded blob must be removed again")
	}
}

func TestAttachmentPhotoPolicy(t *testing.T) {
	env, instanceID, _ := evidenceSetup(t)
	ctx := context.Background()
	view, err := env.svc.GetInstance(ctx, tenantA, instanceID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	photo := mustRecord(t, env, tenantA, instanceID, view.Items[1].Item.ID, "2 photos")

	if _, err := env.svc.AddAttachment(ctx, tenantA, photo.Response.ID, FileMeta{FileName: "report.pdf", ContentType: "application/pdf"}, strings.NewReader("pdf")); !IsValidation(err) {
		t.Fatalf("expected content type rejection, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := env.svc.AddAttachment(ctx, tenantA, photo.Response.ID, FileMeta{FileName: "p.png", ContentType: "image/png"}, strings.NewReader("png")); err != nil {
			t.Fatalf("add photo %d: %v", i, err)
		}
	}
	if _, err := env.svc.AddAttachment(ctx, tenantA, photo.Response.ID, FileMeta{FileName: "p.png", ContentType: "image/png"}, strings.NewReader("png")); !IsValidation(err) {
		t.Fatalf("expected max_files rejection, got %v", err)
	}
}

func TestAttachmentSizeLimit(t *testing.T) {
	env, _, responseID := evidenceSetup(t)
	ctx := context.Background()

	if _, err := env.svc.AddAttachment(ctx, tenantA, responseID, FileMeta{FileName: "big.bin", Size: 4096}, strings.NewReader("x")); !IsValidation(err) {
		t.Fatalf("declared size over the limit must be rejected, got %v", err)
	}
	payload := bytes.Repeat([]byte("a"), 2048)
	if _, err := env.svc.AddAttachment(ctx, tenantA, responseID, FileMeta{FileName: "big.bin"}, bytes.NewReader(payload)); !IsValidation(err) {
		t.Fatalf("streamed size over the limit must be rejected, got %v", err)
	}
	if len(env.blobs.objects) != 0 {
		t.Fatalf("oversized upload left a blob behind")
	}
	list, err := env.svc.ListAttachments(ctx, tenantA, responseID)
	if err != nil || len(list) != 0 {
		t.Fatalf("oversized upload left a row behind: %d (%v)", len(list), err)
	}
}

func TestAttachmentStorageFailures(t *testing.T) {
	env, _, responseID := evidenceSetup(t)
	ctx := context.Background()

	env.blobs.failPut = true
	if _, err := env.svc.AddAttachment(ctx, tenantA, responseID, FileMeta{FileName: "a.txt"}, strings.NewReader("a")); !IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
	list, err := env.svc.ListAttachments(ctx, tenantA, responseID)
	if err != nil || len(list) != 0 {
		t.Fatalf("failed upload must not create a row: %d (%v)", len(list), err)
	}

	env.blobs.failPut = false
	att, err := env.svc.AddAttachment(ctx, tenantA, responseID, FileMeta{FileName: "a.txt"}, strings.NewReader("a"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	env.blobs.failDelete = true
	if err := env.svc.DeleteAttachment(ctx, tenantA, att.ID); !IsStorage(err) {
		t.Fatalf("expected storage error on delete, got %v", err)
	}
	list, err = env.svc.ListAttachments(ctx, tenantA, responseID)
	if err != nil || len(list) != 1 {
		t.Fatalf("row must survive a failed blob delete: %d (%v)", len(list), err)
	}
	if !env.blobs.has(att.StoragePath) {
		t.Fatalf("blob must survive a failed delete")
	}
}

func TestDeleteInstanceRemovesEverything(t *testing.T) {
	env, instanceID, responseID := evidenceSetup(t)
	ctx := context.Background()
	tpl := mustTemplate(t, env, tenantA, TemplateInput{Name: "Gated", Category: CategoryOther, Items: []TemplateItemInput{approvalItem("Signed off", 1)}})
	other := mustInstance(t, env, tenantA, tpl.ID, 21)
	gated := mustRecord(t, env, tenantA, other.ID, tpl.Items[0].ID, "true")
	if _, err := env.svc.SubmitForApproval(ctx, tenantA, other.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	first, err := env.svc.AddAttachment(ctx, tenantA, responseID, FileMeta{FileName: "one.txt"}, strings.NewReader("1"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := env.svc.AddAttachment(ctx, tenantA, responseID, FileMeta{FileName: "two.txt"}, strings.NewReader("2"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	report, err := env.svc.DeleteInstance(ctx, tenantA, instanceID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if report.Attachments != 2 || report.Responses != 1 || report.Approvals != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if env.blobs.has(first.StoragePath) || env.blobs.has(second.StoragePath) {
		t.Fatalf("blobs of deleted attachments must be removed")
	}
	if _, err := env.svc.GetInstance(ctx, tenantA, instanceID); !IsNotFound(err) {
		t.Fatalf("deleted instance must be gone, got %v", err)
	}
	if _, err := env.svc.ListAttachments(ctx, tenantA, responseID); !IsNotFound(err) {
		t.Fatalf("responses of a deleted instance must be gone, got %v", err)
	}

	orphansBefore := testutil.ToFloat64(orphanedBlobs)
	att, err := env.svc.AddAttachment(ctx, tenantA, gated.Response.ID, FileMeta{FileName: "sig.png"}, strings.NewReader("s"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	env.blobs.failDelete = true
	report, err = env.svc.DeleteInstance(ctx, tenantA, other.ID)
	if err != nil {
		t.Fatalf("blob cleanup failures must not fail the deletion: %v", err)
	}
	if report.Approvals != 1 || report.Attachments != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := testutil.ToFloat64(orphanedBlobs) - orphansBefore; got != 1 {
		t.Fatalf("expected one orphaned blob counted, got %v", got)
	}
	if !env.blobs.has(att.StoragePath) {
		t.Fatalf("blob is left behind when its delete fails")
	}
	if _, err := env.svc.DeleteInstance(ctx, tenantA, other.ID); !IsNotFound(err) {
		t.Fatalf("second delete must be not found, got %v", err)
	}
}
