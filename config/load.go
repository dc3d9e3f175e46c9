package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads the YAML file at path when it exists and overlays environment variables.
// An empty path reads the environment only.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
			return &cfg, cfg.validate()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	return &cfg, cfg.validate()
}

func (c *AppConfig) validate() error {
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}
	switch c.Blob.Driver {
	case "local", "gcs":
	default:
		return fmt.Errorf("unsupported blob.driver %q", c.Blob.Driver)
	}
	if c.Blob.Driver == "gcs" && c.Blob.Bucket == "" {
		return errors.New("blob.bucket is required for the gcs driver")
	}
	switch c.Alerts.Source {
	case "none", "redis", "mqtt":
	default:
		return fmt.Errorf("unsupported alerts.source %q", c.Alerts.Source)
	}
	return nil
}
