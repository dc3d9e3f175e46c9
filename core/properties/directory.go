package properties

import (
	"context"
	"errors"

	"checkops/config"
	"checkops/core/utils"

	"github.com/go-redis/redis/v8"
)

var (
	ErrUnknownCamera   = errors.New("camera is not mapped to a property")
	ErrUnknownProperty = errors.New("property not found")
)

type Property struct {
	ID   int64  `json:"id"`
	Type string `json:"property_type"`
	Name string `json:"name,omitempty"`
}

// Directory resolves surveillance cameras to properties and describes properties.
type Directory interface {
	ResolveProperty(ctx context.Context, tenantID, cameraID string) (int64, error)
	GetProperty(ctx context.Context, tenantID string, propertyID int64) (*Property, error)
}

// New wires the configured directory: the HTTP directory service when a URL is set,
// cached through redis when a client is given, otherwise the static camera map.
func New(cfg config.PropertiesConfig, rdb *redis.Client, logger *utils.Logger) Directory {
	if cfg.DirectoryURL == "" {
		return NewStaticDirectory(cfg.Cameras)
	}
	var dir Directory = NewHTTPDirectory(cfg.DirectoryURL, cfg.Timeout, logger)
	if rdb != nil {
		dir = NewCachedDirectory(dir, rdb, cfg.CacheTTL, logger)
	}
	return dir
}

// StaticDirectory serves the camera map from configuration; property types are unknown.
type StaticDirectory struct {
	cameras map[string]int64
}

func NewStaticDirectory(cameras map[string]int64) *StaticDirectory {
	m := make(map[string]int64, len(cameras))
	for k, v := range cameras {
		m[k] = v
	}
	return &StaticDirectory{cameras: m}
}

func (d *StaticDirectory) ResolveProperty(_ context.Context, _ string, cameraID string) (int64, error) {
	id, ok := d.cameras[cameraID]
	if !ok || id <= 0 {
		return 0, ErrUnknownCamera
	}
	return id, nil
}

func (d *StaticDirectory) GetProperty(_ context.Context, _ string, propertyID int64) (*Property, error) {
	return &Property{ID: propertyID}, nil
}
