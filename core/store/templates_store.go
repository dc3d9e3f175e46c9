package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const templateColumns = `id, tenant_id, name, description, category, property_type, is_active, created_by, created_at, updated_at`

const templateItemColumns = `id, tenant_id, template_id, text, item_type, is_required, sort_order, config, created_at, updated_at, deactivated_at`

func (q *Queries) InsertTemplate(ctx context.Context, t *ChecklistTemplate) error {
	row := q.queryRow(ctx, `
		INSERT INTO checklist_templates(tenant_id, name, description, category, property_type, is_active, created_by, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?)
		RETURNING id`,
		t.TenantID, t.Name, t.Description, t.Category, t.PropertyType, t.IsActive, t.CreatedBy, t.CreatedAt.UTC(), t.UpdatedAt.UTC())
	return row.Scan(&t.ID)
}

func (q *Queries) UpdateTemplate(ctx context.Context, t *ChecklistTemplate) error {
	res, err := q.exec(ctx, `
		UPDATE checklist_templates SET name=?, description=?, category=?, property_type=?, updated_at=?
		WHERE tenant_id=? AND id=?`,
		t.Name, t.Description, t.Category, t.PropertyType, t.UpdatedAt.UTC(), t.TenantID, t.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) SetTemplateActive(ctx context.Context, tenantID string, id int64, active bool, now time.Time) error {
	res, err := q.exec(ctx, `UPDATE checklist_templates SET is_active=?, updated_at=? WHERE tenant_id=? AND id=?`,
		active, now.UTC(), tenantID, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) GetTemplate(ctx context.Context, tenantID string, id int64) (*ChecklistTemplate, error) {
	row := q.queryRow(ctx, `SELECT `+templateColumns+` FROM checklist_templates WHERE tenant_id=? AND id=?`, tenantID, id)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

// LockTemplate is GetTemplate holding a row lock on postgres. Template edits and
// instance creation both take it, so an instance and an item change never
// commit in an order that contradicts their timestamps.
func (q *Queries) LockTemplate(ctx context.Context, tenantID string, id int64) (*ChecklistTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM checklist_templates WHERE tenant_id=? AND id=?`
	if q.dialect == DialectPostgres {
		query += ` FOR UPDATE`
	}
	t, err := scanTemplate(q.queryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (q *Queries) ListTemplates(ctx context.Context, tenantID string, filter TemplateFilter) ([]ChecklistTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM checklist_templates`
	clauses := []string{"tenant_id=?"}
	args := []any{tenantID}
	if filter.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, filter.Category)
	}
	if filter.PropertyType != "" {
		clauses = append(clauses, "property_type=?")
		args = append(args, filter.PropertyType)
	}
	if filter.Active != nil {
		clauses = append(clauses, "is_active=?")
		args = append(args, *filter.Active)
	}
	query += " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY updated_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ChecklistTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *t)
	}
	return res, rows.Err()
}

// ListActiveTemplatesByCategory returns candidates newest first; property_type
// matching is left to the caller.
func (q *Queries) ListActiveTemplatesByCategory(ctx context.Context, tenantID, category string) ([]ChecklistTemplate, error) {
	active := true
	return q.ListTemplates(ctx, tenantID, TemplateFilter{Category: category, Active: &active})
}

// DeleteTemplate removes the items and then the template row.
func (q *Queries) DeleteTemplate(ctx context.Context, tenantID string, id int64) error {
	if _, err := q.exec(ctx, `DELETE FROM template_items WHERE tenant_id=? AND template_id=?`, tenantID, id); err != nil {
		return err
	}
	res, err := q.exec(ctx, `DELETE FROM checklist_templates WHERE tenant_id=? AND id=?`, tenantID, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) InsertTemplateItem(ctx context.Context, it *TemplateItem) error {
	cfg := string(it.Config)
	if strings.TrimSpace(cfg) == "" {
		cfg = "{}"
	}
	row := q.queryRow(ctx, `
		INSERT INTO template_items(tenant_id, template_id, text, item_type, is_required, sort_order, config, created_at, updated_at, deactivated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		RETURNING id`,
		it.TenantID, it.TemplateID, it.Text, it.ItemType, it.IsRequired, it.SortOrder, cfg, it.CreatedAt.UTC(), it.UpdatedAt.UTC(), nullableTime(it.DeactivatedAt))
	return row.Scan(&it.ID)
}

// UpdateTemplateItem rewrites only the mutable presentation fields.
func (q *Queries) UpdateTemplateItem(ctx context.Context, it *TemplateItem) error {
	res, err := q.exec(ctx, `UPDATE template_items SET text=?, sort_order=?, updated_at=? WHERE tenant_id=? AND id=? AND template_id=?`,
		it.Text, it.SortOrder, it.UpdatedAt.UTC(), it.TenantID, it.ID, it.TemplateID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) DeactivateTemplateItem(ctx context.Context, tenantID string, id int64, at time.Time) error {
	_, err := q.exec(ctx, `UPDATE template_items SET deactivated_at=?, updated_at=? WHERE tenant_id=? AND id=? AND deactivated_at IS NULL`,
		at.UTC(), at.UTC(), tenantID, id)
	return err
}

func (q *Queries) GetTemplateItem(ctx context.Context, tenantID string, id int64) (*TemplateItem, error) {
	row := q.queryRow(ctx, `SELECT `+templateItemColumns+` FROM template_items WHERE tenant_id=? AND id=?`, tenantID, id)
	it, err := scanTemplateItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return it, nil
}

// ListTemplateItems returns items ordered by sort_order, insertion order breaking ties.
func (q *Queries) ListTemplateItems(ctx context.Context, tenantID string, templateID int64, includeInactive bool) ([]TemplateItem, error) {
	query := `SELECT ` + templateItemColumns + ` FROM template_items WHERE tenant_id=? AND template_id=?`
	if !includeInactive {
		query += ` AND deactivated_at IS NULL`
	}
	query += ` ORDER BY sort_order ASC, id ASC`
	rows, err := q.query(ctx, query, tenantID, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []TemplateItem
	for rows.Next() {
		it, err := scanTemplateItem(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *it)
	}
	return res, rows.Err()
}

func (q *Queries) CountInstancesByTemplate(ctx context.Context, tenantID string, templateID int64) (int, error) {
	var n int
	err := q.queryRow(ctx, `SELECT COUNT(1) FROM checklist_instances WHERE tenant_id=? AND template_id=?`, tenantID, templateID).Scan(&n)
	return n, err
}

// LatestInstanceCreatedAt returns the creation time of the newest instance of the
// template, or nil when there is none.
func (q *Queries) LatestInstanceCreatedAt(ctx context.Context, tenantID string, templateID int64) (*time.Time, error) {
	var at time.Time
	err := q.queryRow(ctx, `SELECT created_at FROM checklist_instances WHERE tenant_id=? AND template_id=? ORDER BY created_at DESC LIMIT 1`, tenantID, templateID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	at = at.UTC()
	return &at, nil
}

func (q *Queries) ListInstanceIDsByTemplate(ctx context.Context, tenantID string, templateID int64, limit int) ([]int64, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.query(ctx, `SELECT id FROM checklist_instances WHERE tenant_id=? AND template_id=? ORDER BY id ASC LIMIT ?`, tenantID, templateID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*ChecklistTemplate, error) {
	var t ChecklistTemplate
	if err := row.Scan(&t.ID, &t.TenantID, &t.Name, &t.Description, &t.Category, &t.PropertyType, &t.IsActive, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

func scanTemplateItem(row rowScanner) (*TemplateItem, error) {
	var it TemplateItem
	var cfg string
	var deactivated sql.NullTime
	if err := row.Scan(&it.ID, &it.TenantID, &it.TemplateID, &it.Text, &it.ItemType, &it.IsRequired, &it.SortOrder, &cfg, &it.CreatedAt, &it.UpdatedAt, &deactivated); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg) == "" {
		cfg = "{}"
	}
	it.Config = json.RawMessage(cfg)
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	it.DeactivatedAt = timePtr(deactivated)
	return &it, nil
}
