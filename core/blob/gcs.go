package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCSStore(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("gcs bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *GCSStore) objectName(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, meta Meta) (string, int64, error) {
	name := s.objectName(key)
	// cancel aborts the upload without committing what was written
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := s.client.Bucket(s.bucket).Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = meta.ContentType
	if w.ContentType == "" {
		w.ContentType = "application/octet-stream"
	}
	if meta.FileName != "" {
		w.Metadata = map[string]string{"file_name": meta.FileName}
	}
	n, err := io.Copy(w, r)
	if err != nil {
		cancel()
		return "", 0, fmt.Errorf("failed to copy to GCS object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close GCS writer for %s: %w", name, err)
	}
	return name, n, nil
}

func (s *GCSStore) Open(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	rc, err := s.client.Bucket(s.bucket).Object(storagePath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotExist
		}
		return nil, err
	}
	return rc, nil
}

func (s *GCSStore) Delete(ctx context.Context, storagePath string) error {
	err := s.client.Bucket(s.bucket).Object(storagePath).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
