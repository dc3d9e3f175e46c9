package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"checkops/core/utils"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// sqlite schema mirrors migrations/postgres. Foreign keys deliberately carry no ON DELETE
// actions: dependent rows are removed by DeleteInstanceCascade in a fixed order.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS checklist_templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		property_type TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS template_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		template_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		item_type TEXT NOT NULL,
		is_required INTEGER NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL,
		config TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		deactivated_at TIMESTAMP,
		FOREIGN KEY(template_id) REFERENCES checklist_templates(id)
	);`,
	`CREATE TABLE IF NOT EXISTS checklist_instances (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		property_id INTEGER NOT NULL,
		template_id INTEGER NOT NULL,
		assigned_to TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		due_date TIMESTAMP,
		completed_at TIMESTAMP,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		FOREIGN KEY(template_id) REFERENCES checklist_templates(id)
	);`,
	`CREATE TABLE IF NOT EXISTS item_responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		instance_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		value TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		completed_by TEXT NOT NULL DEFAULT '',
		completed_at TIMESTAMP,
		requires_approval INTEGER NOT NULL DEFAULT 0,
		updated_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(instance_id, item_id),
		FOREIGN KEY(instance_id) REFERENCES checklist_instances(id),
		FOREIGN KEY(item_id) REFERENCES template_items(id)
	);`,
	`CREATE TABLE IF NOT EXISTS approvals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		response_id INTEGER NOT NULL,
		approver_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		decided_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY(response_id) REFERENCES item_responses(id)
	);`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		response_id INTEGER NOT NULL,
		file_name TEXT NOT NULL,
		storage_path TEXT NOT NULL,
		file_type TEXT NOT NULL DEFAULT '',
		file_size INTEGER NOT NULL DEFAULT 0,
		uploaded_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY(response_id) REFERENCES item_responses(id)
	);`,
	`CREATE TABLE IF NOT EXISTS alert_generated_links (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tenant_id TEXT NOT NULL,
		alert_id TEXT NOT NULL,
		instance_id INTEGER NOT NULL,
		trigger_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		UNIQUE(tenant_id, alert_id),
		FOREIGN KEY(instance_id) REFERENCES checklist_instances(id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_checklist_templates_tenant_category ON checklist_templates(tenant_id, category, is_active);`,
	`CREATE INDEX IF NOT EXISTS idx_template_items_template ON template_items(tenant_id, template_id, sort_order);`,
	`CREATE INDEX IF NOT EXISTS idx_checklist_instances_tenant_property ON checklist_instances(tenant_id, property_id);`,
	`CREATE INDEX IF NOT EXISTS idx_checklist_instances_template ON checklist_instances(tenant_id, template_id);`,
	`CREATE INDEX IF NOT EXISTS idx_item_responses_instance ON item_responses(tenant_id, instance_id);`,
	`CREATE INDEX IF NOT EXISTS idx_approvals_response ON approvals(tenant_id, response_id, id);`,
	`CREATE INDEX IF NOT EXISTS idx_attachments_response ON attachments(tenant_id, response_id);`,
	`CREATE INDEX IF NOT EXISTS idx_alert_generated_links_instance ON alert_generated_links(tenant_id, instance_id);`,
}

func ApplyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if isPostgresDB(db) {
		return applyGooseMigrations(ctx, db, logger)
	}
	return applySQLiteMigrations(ctx, db, logger)
}

func applySQLiteMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if logger != nil {
		logger.Printf("applying sqlite migrations")
	}
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migration #%d failed: %w", i+1, err)
		}
	}
	if logger != nil {
		logger.Printf("sqlite migrations applied")
	}
	return nil
}

func applyGooseMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	goose.SetBaseFS(postgresMigrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if logger != nil {
		goose.SetLogger(gooseLogger{logger})
	}
	if err := goose.UpContext(ctx, db, "migrations/postgres"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

type gooseLogger struct {
	l *utils.Logger
}

func (g gooseLogger) Fatalf(format string, v ...any) { g.l.Errorf(format, v...) }
func (g gooseLogger) Printf(format string, v ...any) { g.l.Printf(format, v...) }
