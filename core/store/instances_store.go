package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

const instanceColumns = `id, tenant_id, property_id, template_id, assigned_to, status, due_date, completed_at, created_by, created_at, updated_at`

func (q *Queries) InsertInstance(ctx context.Context, inst *ChecklistInstance) error {
	row := q.queryRow(ctx, `
		INSERT INTO checklist_instances(tenant_id, property_id, template_id, assigned_to, status, due_date, completed_at, created_by, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)
		RETURNING id`,
		inst.TenantID, inst.PropertyID, inst.TemplateID, inst.AssignedTo, inst.Status, nullableTime(inst.DueDate), nullableTime(inst.CompletedAt), inst.CreatedBy, inst.CreatedAt.UTC(), inst.UpdatedAt.UTC())
	return row.Scan(&inst.ID)
}

func (q *Queries) GetInstance(ctx context.Context, tenantID string, id int64) (*ChecklistInstance, error) {
	row := q.queryRow(ctx, `SELECT `+instanceColumns+` FROM checklist_instances WHERE tenant_id=? AND id=?`, tenantID, id)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return inst, nil
}

// LockInstance reads the instance row and, on postgres, holds a row lock until the
// transaction ends. Every transaction that derives instance status from its
// responses and approvals reads the instance through here first. SQLite already
// runs one transaction at a time.
func (q *Queries) LockInstance(ctx context.Context, tenantID string, id int64) (*ChecklistInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM checklist_instances WHERE tenant_id=? AND id=?`
	if q.dialect == DialectPostgres {
		query += ` FOR UPDATE`
	}
	inst, err := scanInstance(q.queryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return inst, nil
}

func (q *Queries) ListInstances(ctx context.Context, tenantID string, filter InstanceFilter) ([]ChecklistInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM checklist_instances`
	clauses := []string{"tenant_id=?"}
	args := []any{tenantID}
	if filter.PropertyID > 0 {
		clauses = append(clauses, "property_id=?")
		args = append(args, filter.PropertyID)
	}
	if filter.TemplateID > 0 {
		clauses = append(clauses, "template_id=?")
		args = append(args, filter.TemplateID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.AssignedTo != "" {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, filter.AssignedTo)
	}
	query += " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ChecklistInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *inst)
	}
	return res, rows.Err()
}

func (q *Queries) UpdateInstanceAssignment(ctx context.Context, inst *ChecklistInstance) error {
	res, err := q.exec(ctx, `UPDATE checklist_instances SET assigned_to=?, due_date=?, updated_at=? WHERE tenant_id=? AND id=?`,
		inst.AssignedTo, nullableTime(inst.DueDate), inst.UpdatedAt.UTC(), inst.TenantID, inst.ID)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) UpdateInstanceStatus(ctx context.Context, tenantID string, id int64, status string, completedAt *time.Time, now time.Time) error {
	res, err := q.exec(ctx, `UPDATE checklist_instances SET status=?, completed_at=?, updated_at=? WHERE tenant_id=? AND id=?`,
		status, nullableTime(completedAt), now.UTC(), tenantID, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanInstance(row rowScanner) (*ChecklistInstance, error) {
	var inst ChecklistInstance
	var due, completed sql.NullTime
	if err := row.Scan(&inst.ID, &inst.TenantID, &inst.PropertyID, &inst.TemplateID, &inst.AssignedTo, &inst.Status, &due, &completed, &inst.CreatedBy, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
		return nil, err
	}
	inst.DueDate = timePtr(due)
	inst.CompletedAt = timePtr(completed)
	inst.CreatedAt = inst.CreatedAt.UTC()
	inst.UpdatedAt = inst.UpdatedAt.UTC()
	return &inst, nil
}
