package store

import (
	"context"
	"database/sql"
	"errors"
)

const responseColumns = `id, tenant_id, instance_id, item_id, value, notes, completed_by, completed_at, requires_approval, updated_by, created_at, updated_at`

const approvalColumns = `id, tenant_id, response_id, approver_id, status, notes, decided_at, created_at`

// UpsertResponse inserts or overwrites the single response for (instance, item).
// r.ID and r.CreatedAt are filled from the stored row.
func (q *Queries) UpsertResponse(ctx context.Context, r *ItemResponse) error {
	row := q.queryRow(ctx, `
		INSERT INTO item_responses(tenant_id, instance_id, item_id, value, notes, completed_by, completed_at, requires_approval, updated_by, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(instance_id, item_id) DO UPDATE SET
			value=excluded.value,
			notes=excluded.notes,
			completed_by=excluded.completed_by,
			completed_at=excluded.completed_at,
			requires_approval=excluded.requires_approval,
			updated_by=excluded.updated_by,
			updated_at=excluded.updated_at
		RETURNING id, created_at`,
		r.TenantID, r.InstanceID, r.ItemID, r.Value, r.Notes, r.CompletedBy, nullableTime(r.CompletedAt), r.RequiresApproval, r.UpdatedBy, r.CreatedAt.UTC(), r.UpdatedAt.UTC())
	if err := row.Scan(&r.ID, &r.CreatedAt); err != nil {
		return err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return nil
}

func (q *Queries) GetResponse(ctx context.Context, tenantID string, id int64) (*ItemResponse, error) {
	row := q.queryRow(ctx, `SELECT `+responseColumns+` FROM item_responses WHERE tenant_id=? AND id=?`, tenantID, id)
	return oneResponse(row)
}

func (q *Queries) GetResponseByItem(ctx context.Context, tenantID string, instanceID, itemID int64) (*ItemResponse, error) {
	row := q.queryRow(ctx, `SELECT `+responseColumns+` FROM item_responses WHERE tenant_id=? AND instance_id=? AND item_id=?`, tenantID, instanceID, itemID)
	return oneResponse(row)
}

func (q *Queries) ListResponsesByInstance(ctx context.Context, tenantID string, instanceID int64) ([]ItemResponse, error) {
	rows, err := q.query(ctx, `SELECT `+responseColumns+` FROM item_responses WHERE tenant_id=? AND instance_id=? ORDER BY id ASC`, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ItemResponse
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *r)
	}
	return res, rows.Err()
}

func (q *Queries) InsertApproval(ctx context.Context, a *Approval) error {
	row := q.queryRow(ctx, `
		INSERT INTO approvals(tenant_id, response_id, approver_id, status, notes, decided_at, created_at)
		VALUES(?,?,?,?,?,?,?)
		RETURNING id`,
		a.TenantID, a.ResponseID, a.ApproverID, a.Status, a.Notes, nullableTime(a.DecidedAt), a.CreatedAt.UTC())
	return row.Scan(&a.ID)
}

// LatestApproval returns the newest approval row for a response, or nil when none exist.
func (q *Queries) LatestApproval(ctx context.Context, tenantID string, responseID int64) (*Approval, error) {
	row := q.queryRow(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE tenant_id=? AND response_id=? ORDER BY id DESC LIMIT 1`, tenantID, responseID)
	a, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// ListApprovals returns the full approval history of a response, oldest first.
func (q *Queries) ListApprovals(ctx context.Context, tenantID string, responseID int64) ([]Approval, error) {
	rows, err := q.query(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE tenant_id=? AND response_id=? ORDER BY id ASC`, tenantID, responseID)
	if err != nil {
		return nil, err
	}
	return collectApprovals(rows)
}

// LatestApprovalsByInstance maps response id to its newest approval for every
// response of the instance that has at least one.
func (q *Queries) LatestApprovalsByInstance(ctx context.Context, tenantID string, instanceID int64) (map[int64]Approval, error) {
	rows, err := q.query(ctx, `
		SELECT a.id, a.tenant_id, a.response_id, a.approver_id, a.status, a.notes, a.decided_at, a.created_at
		FROM approvals a
		JOIN item_responses r ON r.id = a.response_id
		WHERE a.tenant_id=? AND r.instance_id=?
		ORDER BY a.response_id ASC, a.id ASC`, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	list, err := collectApprovals(rows)
	if err != nil {
		return nil, err
	}
	latest := make(map[int64]Approval, len(list))
	for _, a := range list {
		latest[a.ResponseID] = a
	}
	return latest, nil
}

// ListPendingApprovals is the approver queue across all instances of a tenant.
func (q *Queries) ListPendingApprovals(ctx context.Context, tenantID string, limit int) ([]Approval, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.query(ctx, `
		SELECT `+approvalColumns+` FROM approvals a
		WHERE a.tenant_id=? AND a.status='pending'
		AND a.id = (SELECT MAX(b.id) FROM approvals b WHERE b.response_id = a.response_id)
		ORDER BY a.created_at ASC, a.id ASC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	return collectApprovals(rows)
}

func collectApprovals(rows *sql.Rows) ([]Approval, error) {
	defer rows.Close()
	var res []Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *a)
	}
	return res, rows.Err()
}

func oneResponse(row *sql.Row) (*ItemResponse, error) {
	r, err := scanResponse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

func scanResponse(row rowScanner) (*ItemResponse, error) {
	var r ItemResponse
	var completed sql.NullTime
	if err := row.Scan(&r.ID, &r.TenantID, &r.InstanceID, &r.ItemID, &r.Value, &r.Notes, &r.CompletedBy, &completed, &r.RequiresApproval, &r.UpdatedBy, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.CompletedAt = timePtr(completed)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return &r, nil
}

func scanApproval(row rowScanner) (*Approval, error) {
	var a Approval
	var decided sql.NullTime
	if err := row.Scan(&a.ID, &a.TenantID, &a.ResponseID, &a.ApproverID, &a.Status, &a.Notes, &decided, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.DecidedAt = timePtr(decided)
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
