package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const alertLinkColumns = `id, tenant_id, alert_id, instance_id, trigger_reason, created_at`

// ErrDuplicateAlert is returned when a link for (tenant, alert) already exists.
var ErrDuplicateAlert = errors.New("alert already linked")

func (q *Queries) InsertAlertLink(ctx context.Context, l *AlertGeneratedLink) error {
	row := q.queryRow(ctx, `
		INSERT INTO alert_generated_links(tenant_id, alert_id, instance_id, trigger_reason, created_at)
		VALUES(?,?,?,?,?)
		RETURNING id`,
		l.TenantID, l.AlertID, l.InstanceID, l.TriggerReason, l.CreatedAt.UTC())
	if err := row.Scan(&l.ID); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAlert
		}
		return err
	}
	return nil
}

func (q *Queries) GetAlertLink(ctx context.Context, tenantID, alertID string) (*AlertGeneratedLink, error) {
	row := q.queryRow(ctx, `SELECT `+alertLinkColumns+` FROM alert_generated_links WHERE tenant_id=? AND alert_id=?`, tenantID, alertID)
	l, err := scanAlertLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

func (q *Queries) ListAlertLinksByInstance(ctx context.Context, tenantID string, instanceID int64) ([]AlertGeneratedLink, error) {
	rows, err := q.query(ctx, `SELECT `+alertLinkColumns+` FROM alert_generated_links WHERE tenant_id=? AND instance_id=? ORDER BY id ASC`, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AlertGeneratedLink
	for rows.Next() {
		l, err := scanAlertLink(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *l)
	}
	return res, rows.Err()
}

func scanAlertLink(row rowScanner) (*AlertGeneratedLink, error) {
	var l AlertGeneratedLink
	if err := row.Scan(&l.ID, &l.TenantID, &l.AlertID, &l.InstanceID, &l.TriggerReason, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

// isUniqueViolation matches both the sqlite and the postgres wording.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint")
}
