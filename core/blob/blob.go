package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"checkops/config"

	"github.com/gofrs/uuid/v5"
)

var ErrNotExist = errors.New("blob does not exist")

// Meta describes an object being written.
type Meta struct {
	ContentType string
	FileName    string
}

// Store persists attachment bytes. Paths returned by Put are opaque to callers.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, meta Meta) (storagePath string, size int64, err error)
	Open(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storagePath string) error
}

// NewKey builds a collision free object key scoped to a tenant.
func NewKey(tenantID, fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	if len(ext) > 16 {
		ext = ""
	}
	return path.Join(sanitizeSegment(tenantID), uuid.Must(uuid.NewV4()).String()+ext)
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

// New picks the backend configured in cfg.Blob.
func New(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.Dir)
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unsupported blob driver %q", cfg.Driver)
	}
}
