package blob

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"
	"time"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGCSStorePutAbortsUploadOnReadError(t *testing.T) {
	var committed atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err == nil && strings.Contains(r.URL.Path, "/upload/") && strings.Contains(string(body), "partial-evidence") {
			committed.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"bucket":"evidence","name":"tenant-1/x.jpg","size":"16"}`)
	}))
	defer srv.Close()
	t.Setenv("STORAGE_EMULATOR_HOST", strings.TrimPrefix(srv.URL, "http://"))

	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	require.NoError(t, err)
	defer client.Close()
	s := &GCSStore{client: client, bucket: "evidence"}

	readErr := errors.New("connection reset by peer")
	body := io.MultiReader(strings.NewReader("partial-evidence"), iotest.ErrReader(readErr))
	_, n, err := s.Put(ctx, "tenant-1/x.jpg", body, Meta{ContentType: "image/jpeg"})
	require.Error(t, err)
	assert.ErrorIs(t, err, readErr)
	assert.Equal(t, int64(0), n)
	assert.Never(t, func() bool { return committed.Load() > 0 }, 300*time.Millisecond, 20*time.Millisecond,
		"a failed copy must not upload the partial object")
}

func TestGCSStoreObjectName(t *testing.T) {
	s := &GCSStore{bucket: "evidence", prefix: "checkops"}
	assert.Equal(t, "checkops/tenant-1/a.pdf", s.objectName("tenant-1/a.pdf"))
	s.prefix = ""
	assert.Equal(t, "tenant-1/a.pdf", s.objectName("tenant-1/a.pdf"))
}
