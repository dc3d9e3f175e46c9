package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsFromEnv(t *testing.T) {
	t.Setenv("CHECKOPS_DB_DRIVER", "sqlite")
	t.Setenv("CHECKOPS_DB_URL", "file:test.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsSQLite() {
		t.Fatalf("expected sqlite driver, got %q", cfg.DBDriver)
	}
	if !cfg.Attachments.RequireCompleteResponse {
		t.Fatalf("attachments must require complete responses by default")
	}
	if cfg.Alerts.Source != "none" || cfg.Blob.Driver != "local" {
		t.Fatalf("unexpected defaults: alerts=%q blob=%q", cfg.Alerts.Source, cfg.Blob.Driver)
	}
	if cfg.Alerts.RetryIdle != 30*time.Second {
		t.Fatalf("unexpected retry idle %s", cfg.Alerts.RetryIdle)
	}
	if cfg.Alerts.DueWithin != 24*time.Hour {
		t.Fatalf("unexpected due window %s", cfg.Alerts.DueWithin)
	}
	if cfg.Security.MaxBodyBytes != 1<<20 || len(cfg.Security.TrustedProxies) != 0 {
		t.Fatalf("unexpected security defaults: %+v", cfg.Security)
	}
}

func TestLoadTrustedProxiesFromEnv(t *testing.T) {
	t.Setenv("CHECKOPS_DB_DRIVER", "sqlite")
	t.Setenv("CHECKOPS_TRUSTED_PROXIES", "10.0.0.0/24,10.1.0.5")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Security.TrustedProxies) != 2 || cfg.Security.TrustedProxies[1] != "10.1.0.5" {
		t.Fatalf("unexpected trusted proxies %v", cfg.Security.TrustedProxies)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkops.yaml")
	body := `
db_driver: sqlite
db_url: "file:x.db"
alerts:
  source: redis
  default_assignee: "night-shift"
  critical_due_within: 2h
properties:
  cameras:
    cam-7: 7
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Alerts.Source != "redis" || cfg.Alerts.DefaultAssignee != "night-shift" {
		t.Fatalf("alerts section not read: %+v", cfg.Alerts)
	}
	if got := cfg.Alerts.DueFor("critical"); got != 2*time.Hour {
		t.Fatalf("critical due window: %s", got)
	}
	if got := cfg.Alerts.DueFor("low"); got != 24*time.Hour {
		t.Fatalf("default due window: %s", got)
	}
	if cfg.Properties.Cameras["cam-7"] != 7 {
		t.Fatalf("camera map not read: %+v", cfg.Properties.Cameras)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("CHECKOPS_DB_DRIVER", "oracle")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
