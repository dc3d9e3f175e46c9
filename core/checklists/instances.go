package checklists

import (
	"context"
	"strings"
	"time"

	"checkops/core/auth"
	"checkops/core/store"
	"checkops/core/utils"
)

// AfterCreate runs inside the instance creation transaction. Returning an error
// rolls back the instance as well.
type AfterCreate func(ctx context.Context, q *store.Queries, inst *store.ChecklistInstance) error

func (s *Service) CreateInstance(ctx context.Context, actor auth.Actor, in InstanceInput) (*store.ChecklistInstance, error) {
	return s.CreateInstanceWith(ctx, actor, in, nil)
}

// CreateInstanceWith is CreateInstance with a hook sharing its transaction.
func (s *Service) CreateInstanceWith(ctx context.Context, actor auth.Actor, in InstanceInput, after AfterCreate) (*store.ChecklistInstance, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	in.AssignedTo = strings.TrimSpace(in.AssignedTo)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	now := s.now()
	inst := &store.ChecklistInstance{
		TenantID:   actor.TenantID,
		PropertyID: in.PropertyID,
		TemplateID: in.TemplateID,
		AssignedTo: in.AssignedTo,
		Status:     StatusPending,
		DueDate:    in.DueDate,
		CreatedBy:  actor.UserID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		tpl, err := q.LockTemplate(ctx, actor.TenantID, in.TemplateID)
		if err != nil {
			return err
		}
		if tpl == nil {
			return notFound("template", in.TemplateID)
		}
		if !tpl.IsActive {
			return invalidField("template_id", "template is inactive")
		}
		// items are matched to the instance by time; it must postdate the last template edit
		inst.CreatedAt = utils.After(now, tpl.UpdatedAt)
		inst.UpdatedAt = inst.CreatedAt
		if err := q.InsertInstance(ctx, inst); err != nil {
			return err
		}
		if after != nil {
			return after(ctx, q, inst)
		}
		return nil
	})
	if err != nil {
		Log(s.logger, actor, AuditInstanceCreate, "failed", "template_id", in.TemplateID, "property_id", in.PropertyID, "error", err.Error())
		return nil, err
	}
	Log(s.logger, actor, AuditInstanceCreate, "success", "instance_id", inst.ID, "template_id", inst.TemplateID, "property_id", inst.PropertyID)
	return inst, nil
}

// GetInstance returns the instance with every item in effect for it, each with its
// current response, latest approval and attachments.
func (s *Service) GetInstance(ctx context.Context, actor auth.Actor, id int64) (*InstanceView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	q := s.store.Queries()
	inst, err := q.GetInstance(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, notFound("instance", id)
	}
	items, err := itemsInEffect(ctx, q, inst)
	if err != nil {
		return nil, err
	}
	responses, err := q.ListResponsesByInstance(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	latest, err := q.LatestApprovalsByInstance(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	attachments, err := q.ListAttachmentsByInstance(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	byItem := make(map[int64]store.ItemResponse, len(responses))
	for _, r := range responses {
		byItem[r.ItemID] = r
	}
	byResponse := make(map[int64][]store.Attachment)
	for _, a := range attachments {
		byResponse[a.ResponseID] = append(byResponse[a.ResponseID], a)
	}
	view := &InstanceView{ChecklistInstance: *inst, Items: make([]ItemView, 0, len(items))}
	for _, it := range items {
		iv := ItemView{Item: it}
		if r, ok := byItem[it.ID]; ok {
			resp := r
			iv.Response = &resp
			if a, ok := latest[r.ID]; ok {
				approval := a
				iv.LatestApproval = &approval
			}
			iv.Attachments = byResponse[r.ID]
		}
		view.Items = append(view.Items, iv)
	}
	return view, nil
}

func (s *Service) ListInstances(ctx context.Context, actor auth.Actor, filter store.InstanceFilter) ([]store.ChecklistInstance, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, invalidField("status", "unknown status")
	}
	items, err := s.store.Queries().ListInstances(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.ChecklistInstance{}
	}
	return items, nil
}

// UpdateInstance changes assignment and due date. Status is derived and never written here.
func (s *Service) UpdateInstance(ctx context.Context, actor auth.Actor, id int64, in InstanceUpdate) (*store.ChecklistInstance, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	var inst *store.ChecklistInstance
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		var err error
		inst, err = q.LockInstance(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if inst == nil {
			return notFound("instance", id)
		}
		if in.AssignedTo != nil {
			inst.AssignedTo = strings.TrimSpace(*in.AssignedTo)
		}
		if in.ClearDueDate {
			inst.DueDate = nil
		} else if in.DueDate != nil {
			due := in.DueDate.UTC()
			inst.DueDate = &due
		}
		inst.UpdatedAt = s.now()
		return q.UpdateInstanceAssignment(ctx, inst)
	})
	if err != nil {
		Log(s.logger, actor, AuditInstanceUpdate, "failed", "instance_id", id, "error", err.Error())
		return nil, err
	}
	Log(s.logger, actor, AuditInstanceUpdate, "success", "instance_id", id, "assigned_to", inst.AssignedTo)
	return inst, nil
}

// RecomputeStatus re-derives the instance status from its responses and approvals.
// Calling it again without intervening writes changes nothing.
func (s *Service) RecomputeStatus(ctx context.Context, actor auth.Actor, id int64) (*store.ChecklistInstance, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var inst *store.ChecklistInstance
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		current, err := q.LockInstance(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound("instance", id)
		}
		inst, err = s.recompute(ctx, q, actor, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// recompute must run inside the transaction of the mutation that triggered it.
func (s *Service) recompute(ctx context.Context, q *store.Queries, actor auth.Actor, inst *store.ChecklistInstance) (*store.ChecklistInstance, error) {
	items, err := itemsInEffect(ctx, q, inst)
	if err != nil {
		return nil, err
	}
	responses, err := q.ListResponsesByInstance(ctx, inst.TenantID, inst.ID)
	if err != nil {
		return nil, err
	}
	latest, err := q.LatestApprovalsByInstance(ctx, inst.TenantID, inst.ID)
	if err != nil {
		return nil, err
	}
	status := DeriveStatus(items, responses, latest)
	completedAt := inst.CompletedAt
	if status == StatusCompleted {
		if completedAt == nil {
			now := s.now()
			completedAt = &now
		}
	} else {
		completedAt = nil
	}
	if status == inst.Status && sameTime(completedAt, inst.CompletedAt) {
		return inst, nil
	}
	now := s.now()
	if err := q.UpdateInstanceStatus(ctx, inst.TenantID, inst.ID, status, completedAt, now); err != nil {
		return nil, err
	}
	statusTransitions.WithLabelValues(inst.Status, status).Inc()
	Log(s.logger, actor, AuditInstanceStatus, "success", "instance_id", inst.ID, "from", inst.Status, "to", status)
	updated := *inst
	updated.Status = status
	updated.CompletedAt = completedAt
	updated.UpdatedAt = now
	return &updated, nil
}

// DeriveStatus is the instance status rule:
//   - no responses: pending
//   - every required item complete and every approval-gated response approved: completed
//   - otherwise: in_progress
func DeriveStatus(items []store.TemplateItem, responses []store.ItemResponse, latest map[int64]store.Approval) string {
	if len(responses) == 0 {
		return StatusPending
	}
	inEffect := make(map[int64]bool, len(items))
	for _, it := range items {
		inEffect[it.ID] = true
	}
	byItem := make(map[int64]store.ItemResponse, len(responses))
	for _, r := range responses {
		byItem[r.ItemID] = r
	}
	for _, it := range items {
		if !it.IsRequired {
			continue
		}
		r, ok := byItem[it.ID]
		if !ok || !r.Complete() {
			return StatusInProgress
		}
	}
	for _, r := range responses {
		if !r.RequiresApproval || !inEffect[r.ItemID] {
			continue
		}
		a, ok := latest[r.ID]
		if !ok || a.Status != ApprovalApproved {
			return StatusInProgress
		}
	}
	return StatusCompleted
}

// itemsInEffect lists the template items that belonged to the template when the
// instance was created, ordered by sort_order.
func itemsInEffect(ctx context.Context, q *store.Queries, inst *store.ChecklistInstance) ([]store.TemplateItem, error) {
	all, err := q.ListTemplateItems(ctx, inst.TenantID, inst.TemplateID, true)
	if err != nil {
		return nil, err
	}
	out := make([]store.TemplateItem, 0, len(all))
	for _, it := range all {
		if it.InEffectAt(inst.CreatedAt) {
			out = append(out, it)
		}
	}
	return out, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
