package store

import (
	"context"
	"database/sql"
	"errors"
)

const attachmentColumns = `id, tenant_id, response_id, file_name, storage_path, file_type, file_size, uploaded_by, created_at`

func (q *Queries) InsertAttachment(ctx context.Context, a *Attachment) error {
	row := q.queryRow(ctx, `
		INSERT INTO attachments(tenant_id, response_id, file_name, storage_path, file_type, file_size, uploaded_by, created_at)
		VALUES(?,?,?,?,?,?,?,?)
		RETURNING id`,
		a.TenantID, a.ResponseID, a.FileName, a.StoragePath, a.FileType, a.FileSize, a.UploadedBy, a.CreatedAt.UTC())
	return row.Scan(&a.ID)
}

func (q *Queries) GetAttachment(ctx context.Context, tenantID string, id int64) (*Attachment, error) {
	row := q.queryRow(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE tenant_id=? AND id=?`, tenantID, id)
	a, err := scanAttachment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func (q *Queries) ListAttachmentsByResponse(ctx context.Context, tenantID string, responseID int64) ([]Attachment, error) {
	rows, err := q.query(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE tenant_id=? AND response_id=? ORDER BY id ASC`, tenantID, responseID)
	if err != nil {
		return nil, err
	}
	return collectAttachments(rows)
}

func (q *Queries) ListAttachmentsByInstance(ctx context.Context, tenantID string, instanceID int64) ([]Attachment, error) {
	rows, err := q.query(ctx, `
		SELECT a.id, a.tenant_id, a.response_id, a.file_name, a.storage_path, a.file_type, a.file_size, a.uploaded_by, a.created_at
		FROM attachments a
		JOIN item_responses r ON r.id = a.response_id
		WHERE a.tenant_id=? AND r.instance_id=?
		ORDER BY a.id ASC`, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	return collectAttachments(rows)
}

func (q *Queries) CountAttachmentsByResponse(ctx context.Context, tenantID string, responseID int64) (int, error) {
	var n int
	err := q.queryRow(ctx, `SELECT COUNT(1) FROM attachments WHERE tenant_id=? AND response_id=?`, tenantID, responseID).Scan(&n)
	return n, err
}

func (q *Queries) DeleteAttachment(ctx context.Context, tenantID string, id int64) error {
	res, err := q.exec(ctx, `DELETE FROM attachments WHERE tenant_id=? AND id=?`, tenantID, id)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func collectAttachments(rows *sql.Rows) ([]Attachment, error) {
	defer rows.Close()
	var res []Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *a)
	}
	return res, rows.Err()
}

func scanAttachment(row rowScanner) (*Attachment, error) {
	var a Attachment
	if err := row.Scan(&a.ID, &a.TenantID, &a.ResponseID, &a.FileName, &a.StoragePath, &a.FileType, &a.FileSize, &a.UploadedBy, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}
