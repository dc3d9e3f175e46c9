package checklists

import (
	"context"
	"strconv"

	"checkops/core/auth"
	"checkops/core/store"
)

// SubmitForApproval requires every required item to be complete, then opens a
// pending approval for each approval-gated response that has none or was rejected.
func (s *Service) SubmitForApproval(ctx context.Context, actor auth.Actor, instanceID int64) (*SubmissionResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	result := SubmissionResult{Submitted: []store.Approval{}}
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		inst, err := q.LockInstance(ctx, actor.TenantID, instanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return notFound("instance", instanceID)
		}
		items, err := itemsInEffect(ctx, q, inst)
		if err != nil {
			return err
		}
		responses, err := q.ListResponsesByInstance(ctx, actor.TenantID, instanceID)
		if err != nil {
			return err
		}
		byItem := make(map[int64]store.ItemResponse, len(responses))
		for _, r := range responses {
			byItem[r.ItemID] = r
		}
		missing := map[string]string{}
		for _, it := range items {
			if !it.IsRequired {
				continue
			}
			if r, ok := byItem[it.ID]; !ok || !r.Complete() {
				missing["item_"+strconv.FormatInt(it.ID, 10)] = it.Text
			}
		}
		if len(missing) > 0 {
			return &ValidationError{Message: "required items are incomplete", Fields: missing}
		}
		latest, err := q.LatestApprovalsByInstance(ctx, actor.TenantID, instanceID)
		if err != nil {
			return err
		}
		now := s.now()
		for _, r := range responses {
			if !r.RequiresApproval {
				continue
			}
			if a, ok := latest[r.ID]; ok && a.Status != ApprovalRejected {
				continue
			}
			approval := store.Approval{
				TenantID:   actor.TenantID,
				ResponseID: r.ID,
				Status:     ApprovalPending,
				CreatedAt:  now,
			}
			if err := q.InsertApproval(ctx, &approval); err != nil {
				return err
			}
			result.Submitted = append(result.Submitted, approval)
		}
		updated, err := s.recompute(ctx, q, actor, inst)
		if err != nil {
			return err
		}
		result.Instance = *updated
		return nil
	})
	if err != nil {
		Log(s.logger, actor, AuditApprovalSubmit, "failed", "instance_id", instanceID, "error", err.Error())
		return nil, err
	}
	Log(s.logger, actor, AuditApprovalSubmit, "success", "instance_id", instanceID, "submitted", len(result.Submitted))
	return &result, nil
}

// Decide appends a decision for a response. Earlier approval rows are never changed.
func (s *Service) Decide(ctx context.Context, actor auth.Actor, responseID int64, in DecisionInput) (*DecisionResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	var result DecisionResult
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		resp, err := q.GetResponse(ctx, actor.TenantID, responseID)
		if err != nil {
			return err
		}
		if resp == nil {
			return notFound("response", responseID)
		}
		if !resp.RequiresApproval {
			return invalidField("response_id", "response does not require approval")
		}
		inst, err := q.LockInstance(ctx, actor.TenantID, resp.InstanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return notFound("instance", resp.InstanceID)
		}
		now := s.now()
		result.Approval = store.Approval{
			TenantID:   actor.TenantID,
			ResponseID: responseID,
			ApproverID: actor.UserID,
			Status:     in.Status,
			Notes:      in.Notes,
			DecidedAt:  &now,
			CreatedAt:  now,
		}
		if err := q.InsertApproval(ctx, &result.Approval); err != nil {
			return err
		}
		updated, err := s.recompute(ctx, q, actor, inst)
		if err != nil {
			return err
		}
		result.Instance = *updated
		return nil
	})
	if err != nil {
		Log(s.logger, actor, AuditApprovalDecide, "failed", "response_id", responseID, "error", err.Error())
		return nil, err
	}
	Log(s.logger, actor, AuditApprovalDecide, "success", "response_id", responseID, "decision", in.Status, "instance_id", result.Instance.ID)
	return &result, nil
}

// ListApprovals returns the full decision history of a response, oldest first.
func (s *Service) ListApprovals(ctx context.Context, actor auth.Actor, responseID int64) ([]store.Approval, error) {
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
	items, err := q.ListApprovals(ctx, actor.TenantID, responseID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.Approval{}
	}
	return items, nil
}

func (s *Service) ListPendingApprovals(ctx context.Context, actor auth.Actor, limit int) ([]store.Approval, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	items, err := s.store.Queries().ListPendingApprovals(ctx, actor.TenantID, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.Approval{}
	}
	return items, nil
}
