package checklists

import (
	"context"

	"checkops/core/auth"
	"checkops/core/store"
)

// RecordResponse writes the single response for (instance, item), overwriting any
// earlier one. When the earlier response already had a decided approval, a fresh
// pending approval supersedes it. Instance status is recomputed in the same transaction.
func (s *Service) RecordResponse(ctx context.Context, actor auth.Actor, instanceID int64, in ResponseInput) (*ResponseResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	var result ResponseResult
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		inst, err := q.LockInstance(ctx, actor.TenantID, instanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return notFound("instance", instanceID)
		}
		item, err := q.GetTemplateItem(ctx, actor.TenantID, in.ItemID)
		if err != nil {
			return err
		}
		if item == nil || item.TemplateID != inst.TemplateID || !item.InEffectAt(inst.CreatedAt) {
			return invalidField("item_id", "item does not belong to this checklist")
		}
		cfg, err := ParseItemConfig(item.ItemType, item.Config)
		if err != nil {
			return err
		}
		if err := cfg.ValidateValue(in.Value); err != nil {
			return err
		}
		existing, err := q.GetResponseByItem(ctx, actor.TenantID, instanceID, in.ItemID)
		if err != nil {
			return err
		}
		now := s.now()
		resp := store.ItemResponse{
			TenantID:         actor.TenantID,
			InstanceID:       instanceID,
			ItemID:           in.ItemID,
			Value:            in.Value,
			Notes:            in.Notes,
			RequiresApproval: cfg.NeedsApproval(),
			UpdatedBy:        actor.UserID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if existing != nil {
			resp.RequiresApproval = existing.RequiresApproval
		}
		if responseComplete(item.ItemType, in.Value) {
			resp.CompletedBy = actor.UserID
			resp.CompletedAt = &now
		}
		if err := q.UpsertResponse(ctx, &resp); err != nil {
			return err
		}
		result.Response = resp
		if resp.RequiresApproval {
			latest, err := q.LatestApproval(ctx, actor.TenantID, resp.ID)
			if err != nil {
				return err
			}
			if existing != nil && latest != nil && latest.Status != ApprovalPending {
				superseding := &store.Approval{
					TenantID:   actor.TenantID,
					ResponseID: resp.ID,
					Status:     ApprovalPending,
					Notes:      "response changed after " + latest.Status + " decision",
					CreatedAt:  now,
				}
				if err := q.InsertApproval(ctx, superseding); err != nil {
					return err
				}
				latest = superseding
			}
			result.Approval = latest
		}
		updated, err := s.recompute(ctx, q, actor, inst)
		if err != nil {
			return err
		}
		result.Instance = *updated
		return nil
	})
	if err != nil {
		Log(s.logger, actor, AuditResponseRecord, "failed", "instance_id", instanceID, "item_id", in.ItemID, "error", err.Error())
		return nil, err
	}
	Log(s.logger, actor, AuditResponseRecord, "success", "instance_id", instanceID, "item_id", in.ItemID, "response_id", result.Response.ID, "complete", result.Response.Complete())
	return &result, nil
}

// ListResponses returns every response recorded for an instance.
func (s *Service) ListResponses(ctx context.Context, actor auth.Actor, instanceID int64) ([]store.ItemResponse, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	q := s.store.Queries()
	inst, err := q.GetInstance(ctx, actor.TenantID, instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, notFound("instance", instanceID)
	}
	items, err := q.ListResponsesByInstance(ctx, actor.TenantID, instanceID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.ItemResponse{}
	}
	return items, nil
}
