package properties

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"checkops/config"
	"checkops/core/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDirectoryServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/tenants/t1/cameras/cam-1", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"property_id":7}`))
	})
	mux.HandleFunc("/tenants/t1/properties/7", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7,"property_type":"warehouse","name":"North depot"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPDirectoryResolvesCamera(t *testing.T) {
	var hits int32
	srv := newDirectoryServer(t, &hits)
	dir := NewHTTPDirectory(srv.URL, time.Second, utils.NewNopLogger())

	id, err := dir.ResolveProperty(context.Background(), "t1", "cam-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	p, err := dir.GetProperty(context.Background(), "t1", 7)
	require.NoError(t, err)
	assert.Equal(t, "warehouse", p.Type)

	_, err = dir.ResolveProperty(context.Background(), "t1", "cam-unknown")
	assert.ErrorIs(t, err, ErrUnknownCamera)
	_, err = dir.GetProperty(context.Background(), "t1", 8)
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestCachedDirectoryServesRepeatLookupsFromRedis(t *testing.T) {
	var hits int32
	srv := newDirectoryServer(t, &hits)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	dir := New(config.PropertiesConfig{DirectoryURL: srv.URL, Timeout: time.Second, CacheTTL: time.Minute}, rdb, utils.NewNopLogger())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		id, err := dir.ResolveProperty(ctx, "t1", "cam-1")
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
		p, err := dir.GetProperty(ctx, "t1", 7)
		require.NoError(t, err)
		assert.Equal(t, "warehouse", p.Type)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.True(t, mr.Exists(cameraKey("t1", "cam-1")))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists(cameraKey("t1", "cam-1")))
}

func TestStaticDirectory(t *testing.T) {
	dir := New(config.PropertiesConfig{Cameras: map[string]int64{"lobby": 3}}, nil, utils.NewNopLogger())
	id, err := dir.ResolveProperty(context.Background(), "any", "lobby")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	_, err = dir.ResolveProperty(context.Background(), "any", "roof")
	assert.ErrorIs(t, err, ErrUnknownCamera)
	p, err := dir.GetProperty(context.Background(), "any", 3)
	require.NoError(t, err)
	assert.Equal(t, "", p.Type)
}
