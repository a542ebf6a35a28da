package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	home := t.TempDir()
	t.Setenv("GNS3_CONFIG_DIR", filepath.Join(home, "config"))
	t.Setenv("GNS3_PROJECTS_PATH", filepath.Join(home, "projects"))
	t.Setenv("GNS3_IMAGES_PATH", filepath.Join(home, "projects"))
	t.Setenv("GNS3_CONFIGS_PATH", filepath.Join(home, "projects"))
	t.Setenv("GNS3_APPLIANCES_PATH", filepath.Join(home, "appliances"))
	t.Setenv("GNS3_ASSET_DIR", filepath.Join(home, "assets"))
	t.Setenv("GNS3_OTEL_ENABLED", "")
	return &Config{Port: 0}
}

func TestNewWithConfig_WiresHandlerAndController(t *testing.T) {
	pubCfg := newTestConfig(t)

	srv, err := NewWithConfig(context.Background(), pubCfg)
	require.NoError(t, err)
	require.NotNil(t, srv.Handler)
	require.NotNil(t, srv.Controller)
	require.NotNil(t, srv.janitor)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_StartAndStopLifecycle(t *testing.T) {
	pubCfg := newTestConfig(t)

	srv, err := NewWithConfig(context.Background(), pubCfg)
	require.NoError(t, err)

	ctx := context.Background()
	srv.Start(ctx)

	local, err := srv.Controller.Computes.Get("local")
	require.NoError(t, err)
	assert.Equal(t, "local", local.ID())

	require.NoError(t, srv.Stop(ctx))
}
