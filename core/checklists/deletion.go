package checklists

import (
	"context"
	"errors"

	"checkops/core/auth"
	"checkops/core/store"
)

// DeleteInstance removes the instance and all dependent rows in one transaction.
// Blobs of removed attachments are deleted after commit; failures there are logged
// and counted but do not undo the deletion.
func (s *Service) DeleteInstance(ctx context.Context, actor auth.Actor, id int64) (*store.DeletionReport, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var report *store.DeletionReport
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		var err error
		report, err = q.DeleteInstanceCascade(ctx, actor.TenantID, id)
		if errors.Is(err, store.ErrNotFound) {
			return notFound("instance", id)
		}
		return err
	})
	if err != nil {
		Log(s.logger, actor, AuditInstanceDelete, "failed", "instance_id", id, "error", err.Error())
		return nil, err
	}
	cleanupCtx := context.WithoutCancel(ctx)
	for _, path := range report.StoragePaths {
		s.removeBlob(cleanupCtx, path)
	}
	Log(s.logger, actor, AuditInstanceDelete, "success",
		"instance_id", id,
		"attachments", report.Attachments,
		"approvals", report.Approvals,
		"responses", report.Responses,
		"alert_links", report.AlertLinks,
	)
	return report, nil
}
