// Package config provides typed, layered access to the controller's static
// configuration (spec §4.A). Values are read once at startup from
// environment variables with documented defaults, then held behind a
// mutex so runtime updates (e.g. Server.User/Server.Password) can be
// applied and fanned out to registered change-notify callbacks.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// ServerConfig holds the "Server" section read by the controller facade.
type ServerConfig struct {
	Host           string
	Port           int
	ProjectsPath   string
	ImagesPath     string
	ConfigsPath    string
	AppliancesPath string
	User           string
	Password       string
	Protocol       string
}

// TelemetryConfig holds the OpenTelemetry tracing settings, read once at
// startup like the rest of Config (spec §9's observability is ambient, not
// part of the core's scope, but carried the way the teacher carries it).
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Config is the controller's sectioned configuration store.
type Config struct {
	mu        sync.RWMutex
	ConfigDir string
	Server    ServerConfig
	Telemetry TelemetryConfig

	cbMu      sync.Mutex
	callbacks []func()
}

// Load reads configuration from environment variables with the documented
// defaults from spec.md §4.A.
func Load() *Config {
	home, err := os.UserHomeDir()
	defaultProjectsPath := "~/GNS3/projects"
	if err == nil {
		defaultProjectsPath = filepath.Join(home, "GNS3", "projects")
	}

	configDir := envStr("GNS3_CONFIG_DIR", "")
	if configDir == "" && home != "" {
		configDir = filepath.Join(home, ".config", "GNS3")
	}

	return &Config{
		ConfigDir: configDir,
		Server: ServerConfig{
			Host: envStr("GNS3_SERVER_HOST", "localhost"),
			Port: envInt("GNS3_SERVER_PORT", 3080),
			// NOTE: images_path/configs_path/appliances_path all default to
			// the projects directory in the source this was ported from.
			// Preserved verbatim — see DESIGN.md Open Question.
			ProjectsPath:   envStr("GNS3_PROJECTS_PATH", defaultProjectsPath),
			ImagesPath:     envStr("GNS3_IMAGES_PATH", defaultProjectsPath),
			ConfigsPath:    envStr("GNS3_CONFIGS_PATH", defaultProjectsPath),
			AppliancesPath: envStr("GNS3_APPLIANCES_PATH", defaultProjectsPath),
			User:           envStr("GNS3_SERVER_USER", ""),
			Password:       envStr("GNS3_SERVER_PASSWORD", ""),
			Protocol:       envStr("GNS3_SERVER_PROTOCOL", "http"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("GNS3_OTEL_ENABLED", false),
			OTLPEndpoint: envStr("GNS3_OTEL_ENDPOINT", ""),
			ServiceName:  envStr("GNS3_OTEL_SERVICE_NAME", "gns3-controller"),
		},
	}
}

// GetServer returns a copy of the current Server section.
func (c *Config) GetServer() ServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Server
}

// UpdateServerCredentials applies new user/password and notifies every
// registered change-notify callback. This is how the "local" compute
// picks up a live config edit without a restart (spec §4.A).
func (c *Config) UpdateServerCredentials(user, password string) {
	c.mu.Lock()
	c.Server.User = user
	c.Server.Password = password
	c.mu.Unlock()
	c.notify()
}

// RegisterChangeCallback registers a callback invoked whenever the config
// changes. Callbacks are invoked in registration order, synchronously.
func (c *Config) RegisterChangeCallback(cb func()) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

func (c *Config) notify() {
	c.cbMu.Lock()
	cbs := make([]func(), len(c.callbacks))
	copy(cbs, c.callbacks)
	c.cbMu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
