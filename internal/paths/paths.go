// Package paths resolves the directories the controller reads and writes:
// images, configs, appliances, and projects, plus the built-in asset
// directory shipped alongside the binary (spec §4.J).
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/netsim/controller/internal/config"
)

// Resolver resolves on-disk directories from the config store, creating
// them on first access the way the original controller does (os.makedirs
// equivalent).
type Resolver struct {
	cfg *config.Config
	// AssetDir is the built-in read-only asset directory shipped with the
	// binary (equivalent of get_resource() in the source this was ported
	// from). Defaults to "assets" relative to the working directory.
	AssetDir string
}

func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg, AssetDir: envOr("GNS3_ASSET_DIR", "assets")}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func expand(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

func ensureDir(p string) (string, error) {
	p = expand(p)
	if err := os.MkdirAll(p, 0o755); err != nil {
		return p, err
	}
	return p, nil
}

// ImagesPath returns the image storage directory, creating it if absent.
func (r *Resolver) ImagesPath() (string, error) {
	return ensureDir(r.cfg.GetServer().ImagesPath)
}

// ConfigsPath returns the configs storage directory, creating it if absent.
func (r *Resolver) ConfigsPath() (string, error) {
	return ensureDir(r.cfg.GetServer().ConfigsPath)
}

// AppliancesPath returns the user appliance-template directory, creating
// it if absent.
func (r *Resolver) AppliancesPath() (string, error) {
	return ensureDir(r.cfg.GetServer().AppliancesPath)
}

// ProjectsPath returns the projects directory, creating it if absent.
func (r *Resolver) ProjectsPath() (string, error) {
	return ensureDir(r.cfg.GetServer().ProjectsPath)
}

// BuiltinAppliancesDir returns the read-only built-in appliance-template
// asset directory shipped with the binary.
func (r *Resolver) BuiltinAppliancesDir() string {
	return filepath.Join(r.AssetDir, "appliances")
}

// BuiltinConfigsDir returns the read-only built-in default-config asset
// directory shipped with the binary.
func (r *Resolver) BuiltinConfigsDir() string {
	return filepath.Join(r.AssetDir, "configs")
}

// ConfigFilePath returns the full path to gns3_controller.conf.
func (r *Resolver) ConfigFilePath() string {
	return filepath.Join(r.cfg.ConfigDir, "gns3_controller.conf")
}

// LegacyConfigFilePath returns the full path to the legacy gns3_gui.conf
// sibling file, if one exists.
func (r *Resolver) LegacyConfigFilePath() string {
	return filepath.Join(r.cfg.ConfigDir, "gns3_gui.conf")
}
