package retention

import (
	"path/filepath"
	"testing"

	"github.com/netsim/controller/internal/appliance"
	"github.com/netsim/controller/internal/config"
	"github.com/netsim/controller/internal/paths"
	"github.com/stretchr/testify/require"
)

func newTestJanitor(t *testing.T) (*Janitor, *paths.Resolver) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("GNS3_CONFIG_DIR", filepath.Join(home, "config"))
	t.Setenv("GNS3_PROJECTS_PATH", filepath.Join(home, "projects"))
	t.Setenv("GNS3_IMAGES_PATH", filepath.Join(home, "images"))
	t.Setenv("GNS3_CONFIGS_PATH", filepath.Join(home, "configs"))
	t.Setenv("GNS3_APPLIANCES_PATH", filepath.Join(home, "appliances"))
	t.Setenv("GNS3_ASSET_DIR", filepath.Join(home, "assets"))
	t.Setenv("GNS3_SERVER_PORT", "0")

	cfg := config.Load()
	p := paths.NewResolver(cfg)
	templates := appliance.NewTemplateStore("", "")

	return NewJanitor(templates, p), p
}

func TestJanitor_StartAndStopSchedulesJobs(t *testing.T) {
	j, _ := newTestJanitor(t)
	require.NoError(t, j.Start(t.Context()))
	j.Stop()
}
