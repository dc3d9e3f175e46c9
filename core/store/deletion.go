package store

import (
	"context"
	"fmt"
)

// DeleteInstanceCascade removes an instance and everything that references it,
// children first: attachments, approvals, responses, alert links, the instance.
// It must run inside WithTx; the caller owns commit and blob cleanup.
func (q *Queries) DeleteInstanceCascade(ctx context.Context, tenantID string, id int64) (*DeletionReport, error) {
	report := &DeletionReport{InstanceID: id}

	rows, err := q.query(ctx, `
		SELECT a.storage_path FROM attachments a
		JOIN item_responses r ON r.id = a.response_id
		WHERE a.tenant_id=? AND r.instance_id=?
		ORDER BY a.id ASC`, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("collect attachments: %w", err)
	}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return nil, err
		}
		report.StoragePaths = append(report.StoragePaths, path)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	steps := []struct {
		name  string
		query string
		count *int64
	}{
		{"attachments", `DELETE FROM attachments WHERE tenant_id=? AND response_id IN (SELECT id FROM item_responses WHERE instance_id=?)`, &report.Attachments},
		{"approvals", `DELETE FROM approvals WHERE tenant_id=? AND response_id IN (SELECT id FROM item_responses WHERE instance_id=?)`, &report.Approvals},
		{"responses", `DELETE FROM item_responses WHERE tenant_id=? AND instance_id=?`, &report.Responses},
		{"alert links", `DELETE FROM alert_generated_links WHERE tenant_id=? AND instance_id=?`, &report.AlertLinks},
	}
	for _, step := range steps {
		res, err := q.exec(ctx, step.query, tenantID, id)
		if err != nil {
			return nil, fmt.Errorf("delete %s: %w", step.name, err)
		}
		n, _ := res.RowsAffected()
		*step.count = n
	}

	res, err := q.exec(ctx, `DELETE FROM checklist_instances WHERE tenant_id=? AND id=?`, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("delete instance: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, ErrNotFound
	}
	return report, nil
}
