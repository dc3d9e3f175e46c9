package checklists

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"checkops/core/auth"
	"checkops/core/blob"
	"checkops/core/store"
)

const defaultMaxAttachmentBytes = 25 << 20

// AddAttachment stores the bytes first and inserts the metadata row afterwards.
// If the row cannot be written the stored blob is removed again.
func (s *Service) AddAttachment(ctx context.Context, actor auth.Actor, responseID int64, meta FileMeta, r io.Reader) (*store.Attachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if s.blobs == nil {
		return nil, &StorageError{Op: "store", Err: errors.New("blob store is not configured")}
	}
	meta.FileName = filepath.Base(strings.TrimSpace(strings.ReplaceAll(meta.FileName, "\\", "/")))
	if meta.FileName == "" || meta.FileName == "." || meta.FileName == "/" {
		return nil, invalidField("file_name", "required")
	}
	maxBytes := s.cfg.Attachments.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxAttachmentBytes
	}
	if meta.Size > maxBytes {
		return nil, invalidField("file_size", fmt.Sprintf("exceeds %d bytes", maxBytes))
	}

	q := s.store.Queries()
	resp, err := q.GetResponse(ctx, actor.TenantID, responseID)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, notFound("response", responseID)
	}
	if s.cfg.Attachments.RequireCompleteResponse && !resp.Complete() {
		return nil, &PreconditionError{Message: "the item must be completed before evidence can be attached"}
	}
	item, err := q.GetTemplateItem(ctx, actor.TenantID, resp.ItemID)
	if err != nil {
		return nil, err
	}
	if item != nil {
		cfg, err := ParseItemConfig(item.ItemType, item.Config)
		if err != nil {
			return nil, err
		}
		if fc, ok := cfg.(FileConfig); ok {
			if !fc.Accepts(meta.ContentType) {
				return nil, invalidField("file_type", "not accepted for this item")
			}
			if fc.MaxFiles > 0 {
				n, err := q.CountAttachmentsByResponse(ctx, actor.TenantID, responseID)
				if err != nil {
					return nil, err
				}
				if n >= fc.MaxFiles {
					return nil, invalidField("file", fmt.Sprintf("at most %d files allowed", fc.MaxFiles))
				}
			}
		}
	}

	limited := &io.LimitedReader{R: r, N: maxBytes + 1}
	path, size, err := s.blobs.Put(ctx, blob.NewKey(actor.TenantID, meta.FileName), limited, blob.Meta{ContentType: meta.ContentType, FileName: meta.FileName})
	if err != nil {
		Log(s.logger, actor, AuditAttachmentAdd, "failed", "response_id", responseID, "error", err.Error())
		return nil, &StorageError{Op: "store", Err: err}
	}
	if size > maxBytes {
		s.removeBlob(ctx, path)
		return nil, invalidField("file_size", fmt.Sprintf("exceeds %d bytes", maxBytes))
	}

	att := &store.Attachment{
		TenantID:    actor.TenantID,
		ResponseID:  responseID,
		FileName:    meta.FileName,
		StoragePath: path,
		FileType:    meta.ContentType,
		FileSize:    size,
		UploadedBy:  actor.UserID,
		CreatedAt:   s.now(),
	}
	err = s.store.WithTx(ctx, func(q *store.Queries) error {
		// the response may have been unchecked while the bytes were uploading
		if _, err := q.LockInstance(ctx, actor.TenantID, resp.InstanceID); err != nil {
			return err
		}
		current, err := q.GetResponse(ctx, actor.TenantID, responseID)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound("response", responseID)
		}
		if s.cfg.Attachments.RequireCompleteResponse && !current.Complete() {
			return &PreconditionError{Message: "the item must be completed before evidence can be attached"}
		}
		return q.InsertAttachment(ctx, att)
	})
	if err != nil {
		s.removeBlob(context.WithoutCancel(ctx), path)
		Log(s.logger, actor, AuditAttachmentAdd, "failed", "response_id", responseID, "error", err.Error())
		return nil, err
	}
	Log(s.logger, actor, AuditAttachmentAdd, "success", "response_id", responseID, "attachment_id", att.ID, "size", size)
	return att, nil
}

// DeleteAttachment removes the row and the blob together: if the blob cannot be
// removed the row deletion is rolled back and a StorageError is returned.
func (s *Service) DeleteAttachment(ctx context.Context, actor auth.Actor, id int64) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		att, err := q.GetAttachment(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if att == nil {
			return notFound("attachment", id)
		}
		if err := q.DeleteAttachment(ctx, actor.TenantID, id); err != nil {
			return translateStoreErr(err, "attachment", id)
		}
		if s.blobs == nil {
			return nil
		}
		if err := s.blobs.Delete(ctx, att.StoragePath); err != nil && !errors.Is(err, blob.ErrNotExist) {
			return &StorageError{Op: "delete", Err: err}
		}
		return nil
	})
	if err != nil {
		Log(s.logger, actor, AuditAttachmentDelete, "failed", "attachment_id", id, "error", err.Error())
		return err
	}
	Log(s.logger, actor, AuditAttachmentDelete, "success", "attachment_id", id)
	return nil
}

func (s *Service) ListAttachments(ctx context.Context, actor auth.Actor, responseID int64) ([]store.Attachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	q := s.store.Queries()
	resp, err := q.GetResponse(ctx, actor.TenantID, responseID)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, notFound("response", responseID)
	}
	items, err := q.ListAttachmentsByResponse(ctx, actor.TenantID, responseID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.Attachment{}
	}
	return items, nil
}

// OpenAttachment returns the metadata and a reader over the stored bytes; the caller closes it.
func (s *Service) OpenAttachment(ctx context.Context, actor auth.Actor, id int64) (*store.Attachment, io.ReadCloser, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	att, err := s.store.Queries().GetAttachment(ctx, actor.TenantID, id)
	if err != nil {
		return nil, nil, err
	}
	if att == nil {
		return nil, nil, notFound("attachment", id)
	}
	if s.blobs == nil {
		return nil, nil, &StorageError{Op: "open", Err: errors.New("blob store is not configured")}
	}
	rc, err := s.blobs.Open(ctx, att.StoragePath)
	if err != nil {
		if errors.Is(err, blob.ErrNotExist) {
			return nil, nil, notFound("attachment content", id)
		}
		return nil, nil, &StorageError{Op: "open", Err: err}
	}
	return att, rc, nil
}

func (s *Service) removeBlob(ctx context.Context, path string) {
	if s.blobs == nil || path == "" {
		return
	}
	if err := s.blobs.Delete(ctx, path); err != nil && !errors.Is(err, blob.ErrNotExist) {
		orphanedBlobs.Inc()
		s.logger.Errorf("blob cleanup failed: path=%s err=%v", path, err)
	}
}
