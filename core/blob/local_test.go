package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"checkops/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutOpenDelete(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := NewKey("tenant-1", "panel.JPG")
	assert.True(t, strings.HasPrefix(key, "tenant-1/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	p, n, err := s.Put(ctx, key, bytes.NewBufferString("hello"), Meta{ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, key, p)

	rc, err := s.Open(ctx, p)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(body))

	require.NoError(t, s.Delete(ctx, p))
	require.NoError(t, s.Delete(ctx, p), "deleting twice is not an error")
	_, err = s.Open(ctx, p)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalStoreRejectsEscapingPaths(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	for _, bad := range []string{"../x", "/etc/passwd", "..", ""} {
		_, _, err := s.Put(context.Background(), bad, strings.NewReader("x"), Meta{})
		assert.Error(t, err, bad)
	}
}

func TestLocalStoreHonoursCancelledContext(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = s.Put(ctx, "t/a.bin", strings.NewReader("data"), Meta{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewKeySanitizesTenant(t *testing.T) {
	key := NewKey("../evil tenant", "x")
	assert.True(t, strings.HasPrefix(key, "___evil_tenant/"), key)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.BlobConfig{Driver: "ftp"})
	assert.Error(t, err)
}
