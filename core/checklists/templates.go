package checklists

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"checkops/core/auth"
	"checkops/core/store"
	"checkops/core/utils"
)

func (s *Service) CreateTemplate(ctx context.Context, actor auth.Actor, in TemplateInput) (*store.ChecklistTemplate, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	in = normalizeTemplateInput(in)
	if err := validateTemplateInput(in); err != nil {
		return nil, err
	}
	configs := make([]ItemConfig, len(in.Items))
	for i, it := range in.Items {
		if it.ID != 0 {
			return nil, invalidField(itemField(i, "id"), "must be empty on create")
		}
		cfg, err := ParseItemConfig(it.Type, it.Config)
		if err != nil {
			return nil, prefixFields(err, itemField(i, ""))
		}
		configs[i] = cfg
	}
	now := s.now()
	tpl := &store.ChecklistTemplate{
		TenantID:     actor.TenantID,
		Name:         in.Name,
		Description:  in.Description,
		Category:     in.Category,
		PropertyType: in.PropertyType,
		IsActive:     true,
		CreatedBy:    actor.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		if err := q.InsertTemplate(ctx, tpl); err != nil {
			return err
		}
		for i, it := range in.Items {
			item := store.TemplateItem{
				TenantID:   actor.TenantID,
				TemplateID: tpl.ID,
				Text:       it.Text,
				ItemType:   it.Type,
				IsRequired: it.IsRequired,
				SortOrder:  it.SortOrder,
				Config:     canonicalConfig(configs[i]),
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := q.InsertTemplateItem(ctx, &item); err != nil {
				return err
			}
			tpl.Items = append(tpl.Items, item)
		}
		return nil
	})
	if err != nil {
		Log(s.logger, actor, AuditTemplateCreate, "failed", "error", err.Error())
		return nil, err
	}
	sortItems(tpl.Items)
	Log(s.logger, actor, AuditTemplateCreate, "success", "template_id", tpl.ID, "items", len(tpl.Items))
	return tpl, nil
}

// UpdateTemplate replaces the template's fields and active item set. Items omitted
// from in.Items are deactivated, never removed. Type, is_required and config of an
// existing item cannot change.
func (s *Service) UpdateTemplate(ctx context.Context, actor auth.Actor, id int64, in TemplateInput) (*store.ChecklistTemplate, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	in = normalizeTemplateInput(in)
	if err := validateTemplateInput(in); err != nil {
		return nil, err
	}
	var tpl *store.ChecklistTemplate
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		var err error
		tpl, err = q.LockTemplate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if tpl == nil {
			return notFound("template", id)
		}
		latest, err := q.LatestInstanceCreatedAt(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		current, err := q.ListTemplateItems(ctx, actor.TenantID, id, false)
		if err != nil {
			return err
		}
		byID := make(map[int64]store.TemplateItem, len(current))
		for _, it := range current {
			byID[it.ID] = it
		}
		now := s.now()
		if latest != nil {
			// a lagging clock must not pull item changes into existing instances
			now = utils.After(now, *latest)
		}
		kept := make(map[int64]bool, len(in.Items))
		var items []store.TemplateItem
		for i, it := range in.Items {
			cfg, err := ParseItemConfig(it.Type, it.Config)
			if err != nil {
				return prefixFields(err, itemField(i, ""))
			}
			if it.ID == 0 {
				item := store.TemplateItem{
					TenantID:   actor.TenantID,
					TemplateID: id,
					Text:       it.Text,
					ItemType:   it.Type,
					IsRequired: it.IsRequired,
					SortOrder:  it.SortOrder,
					Config:     canonicalConfig(cfg),
					CreatedAt:  now,
					UpdatedAt:  now,
				}
				if err := q.InsertTemplateItem(ctx, &item); err != nil {
					return err
				}
				items = append(items, item)
				continue
			}
			existing, ok := byID[it.ID]
			if !ok {
				return invalidField(itemField(i, "id"), "not an active item of this template")
			}
			if kept[it.ID] {
				return invalidField(itemField(i, "id"), "listed twice")
			}
			kept[it.ID] = true
			if existing.ItemType != it.Type || existing.IsRequired != it.IsRequired {
				return invalidField(itemField(i, "type"), "type and is_required are immutable; deactivate the item and add a new one")
			}
			if len(bytes.TrimSpace(it.Config)) > 0 {
				prev, err := ParseItemConfig(existing.ItemType, existing.Config)
				if err != nil {
					return err
				}
				if !bytes.Equal(canonicalConfig(prev), canonicalConfig(cfg)) {
					return invalidField(itemField(i, "config"), "config is immutable; deactivate the item and add a new one")
				}
			}
			if existing.Text != it.Text || existing.SortOrder != it.SortOrder {
				existing.Text = it.Text
				existing.SortOrder = it.SortOrder
				existing.UpdatedAt = now
				if err := q.UpdateTemplateItem(ctx, &existing); err != nil {
					return err
				}
			}
			items = append(items, existing)
		}
		for _, it := range current {
			if kept[it.ID] {
				continue
			}
			if err := q.DeactivateTemplateItem(ctx, actor.TenantID, it.ID, now); err != nil {
				return err
			}
		}
		tpl.Name = in.Name
		tpl.Description = in.Description
		tpl.Category = in.Category
		tpl.PropertyType = in.PropertyType
		tpl.UpdatedAt = now
		if err := q.UpdateTemplate(ctx, tpl); err != nil {
			return err
		}
		sortItems(items)
		tpl.Items = items
		return nil
	})
	if err != nil {
		Log(s.logger, actor, AuditTemplateUpdate, "failed", "template_id", id, "error", err.Error())
		return nil, err
	}
	Log(s.logger, actor, AuditTemplateUpdate, "success", "template_id", id, "items", len(tpl.Items))
	return tpl, nil
}

func (s *Service) DeactivateTemplate(ctx context.Context, actor auth.Actor, id int64) (*store.ChecklistTemplate, error) {
	return s.setTemplateActive(ctx, actor, id, false)
}

func (s *Service) ActivateTemplate(ctx context.Context, actor auth.Actor, id int64) (*store.ChecklistTemplate, error) {
	return s.setTemplateActive(ctx, actor, id, true)
}

func (s *Service) setTemplateActive(ctx context.Context, actor auth.Actor, id int64, active bool) (*store.ChecklistTemplate, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	action := AuditTemplateDeactivate
	if active {
		action = AuditTemplateActivate
	}
	if err := s.store.Queries().SetTemplateActive(ctx, actor.TenantID, id, active, s.now()); err != nil {
		err = translateStoreErr(err, "template", id)
		Log(s.logger, actor, action, "failed", "template_id", id, "error", err.Error())
		return nil, err
	}
	Log(s.logger, actor, action, "success", "template_id", id)
	return s.GetTemplate(ctx, actor, id)
}

// DeleteTemplate removes a template nothing references. Referenced templates
// yield a ConflictError with the blocking instance count and ids.
func (s *Service) DeleteTemplate(ctx context.Context, actor auth.Actor, id int64) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		tpl, err := q.GetTemplate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if tpl == nil {
			return notFound("template", id)
		}
		count, err := q.CountInstancesByTemplate(ctx, actor.TenantID, id)
		if err != nil {
			return err
		}
		if count > 0 {
			ids, err := q.ListInstanceIDsByTemplate(ctx, actor.TenantID, id, 50)
			if err != nil {
				return err
			}
			return &ConflictError{
				Message: "template is referenced by checklist instances; deactivate it instead",
				Count:   count,
				IDs:     ids,
			}
		}
		return translateStoreErr(q.DeleteTemplate(ctx, actor.TenantID, id), "template", id)
	})
	if err != nil {
		Log(s.logger, actor, AuditTemplateDelete, "failed", "template_id", id, "error", err.Error())
		return err
	}
	Log(s.logger, actor, AuditTemplateDelete, "success", "template_id", id)
	return nil
}

func (s *Service) ListTemplates(ctx context.Context, actor auth.Actor, filter store.TemplateFilter) ([]store.ChecklistTemplate, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if filter.Category != "" && !ValidCategory(filter.Category) {
		return nil, invalidField("category", "unknown category")
	}
	items, err := s.store.Queries().ListTemplates(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.ChecklistTemplate{}
	}
	return items, nil
}

// GetTemplate returns the template with its active items ordered by sort_order.
func (s *Service) GetTemplate(ctx context.Context, actor auth.Actor, id int64) (*store.ChecklistTemplate, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	q := s.store.Queries()
	tpl, err := q.GetTemplate(ctx, actor.TenantID, id)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, notFound("template", id)
	}
	items, err := q.ListTemplateItems(ctx, actor.TenantID, id, false)
	if err != nil {
		return nil, err
	}
	tpl.Items = items
	return tpl, nil
}

func normalizeTemplateInput(in TemplateInput) TemplateInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	in.PropertyType = strings.TrimSpace(in.PropertyType)
	items := make([]TemplateItemInput, len(in.Items))
	for i, it := range in.Items {
		it.Text = strings.TrimSpace(it.Text)
		it.Type = strings.ToLower(strings.TrimSpace(it.Type))
		items[i] = it
	}
	in.Items = items
	return in
}

func validateTemplateInput(in TemplateInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	seen := make(map[int]int, len(in.Items))
	for i, it := range in.Items {
		if prev, dup := seen[it.SortOrder]; dup {
			return invalidField(itemField(i, "sort_order"), fmt.Sprintf("duplicates items[%d]", prev))
		}
		seen[it.SortOrder] = i
	}
	return nil
}

func itemField(i int, field string) string {
	name := "items[" + strconv.Itoa(i) + "]"
	if field == "" {
		return name
	}
	return name + "." + field
}

// prefixFields scopes a nested ValidationError to the item it came from.
func prefixFields(err error, prefix string) error {
	ve, ok := err.(*ValidationError)
	if !ok {
		return err
	}
	out := &ValidationError{Message: ve.Message, Fields: make(map[string]string, len(ve.Fields))}
	for k, v := range ve.Fields {
		out.Fields[prefix+"."+k] = v
	}
	return out
}

func sortItems(items []store.TemplateItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortOrder != items[j].SortOrder {
			return items[i].SortOrder < items[j].SortOrder
		}
		return items[i].ID < items[j].ID
	})
}
