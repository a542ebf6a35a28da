// Package server is the composition root for the controller daemon: it
// wires config, the controller facade, and the thin HTTP demonstration
// surface together the way the teacher's pkg/server.New wires its own
// services (mirroring its Config/LoadConfig/New/buildServer shape), so
// that an embedder can construct the whole process with one call and
// swap pieces afterward via the exposed fields.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/netsim/controller/internal/api"
	"github.com/netsim/controller/internal/config"
	"github.com/netsim/controller/internal/controller"
	"github.com/netsim/controller/internal/gns3vm"
	"github.com/netsim/controller/internal/retention"
	"github.com/netsim/controller/internal/telemetry"
	"github.com/netsim/controller/pkg/contracts"
	"github.com/netsim/controller/pkg/models"

	"github.com/rs/zerolog/log"
)

// Config is the public configuration for the controller daemon.
type Config struct {
	Port         int
	OTELEnabled  bool
	OTELEndpoint string
	ServiceName  string
}

// Server holds the initialized controller daemon. Fields are exported so
// an embedder can reach into sub-registries (Computes, Projects,
// Appliances, Templates, VM) after construction, the way the teacher
// exposes Store/Router/Notifier for downstream overrides.
type Server struct {
	// Handler is the HTTP handler with the demonstration REST surface.
	Handler http.Handler

	// Controller is the orchestration facade: compute/project/appliance
	// registries, the notification bus, and persistence.
	Controller *controller.Controller

	Config *Config
	Port   int

	janitor           *retention.Janitor
	shutdownTelemetry func(context.Context) error
}

// LoadConfig loads the public server config from the environment.
func LoadConfig() *Config {
	cfg := config.Load()
	return &Config{
		Port:         cfg.Server.Port,
		OTELEnabled:  cfg.Telemetry.Enabled,
		OTELEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
	}
}

// New initializes the controller daemon with configuration read from the
// environment. This is the primary entry point for cmd/controllerd.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, LoadConfig())
}

// NewWithConfig initializes the controller daemon with an explicit
// configuration, letting an embedder override the listen port or
// telemetry settings before the process-wide env read.
func NewWithConfig(ctx context.Context, pubCfg *Config) (*Server, error) {
	cfg := config.Load()
	if pubCfg.Port > 0 {
		cfg.Server.Port = pubCfg.Port
	}
	cfg.Telemetry.Enabled = pubCfg.OTELEnabled
	if pubCfg.OTELEndpoint != "" {
		cfg.Telemetry.OTLPEndpoint = pubCfg.OTELEndpoint
	}
	if pubCfg.ServiceName != "" {
		cfg.Telemetry.ServiceName = pubCfg.ServiceName
	}

	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	// Only a remote embedded-VM driver is wired: VMware/VirtualBox control
	// is out of scope (spec §1) and has no compute-interface-shaped
	// collaborator in this pack to drive it through.
	vmDrivers := map[models.VMEngine]contracts.Hypervisor{
		models.VMEngineRemote: &gns3vm.RemoteDriver{},
	}

	c := controller.New(cfg, contracts.SystemClock, vmDrivers)
	log.Info().Msg("controller facade initialized")

	router := api.NewRouter(c)

	janitor := retention.NewJanitor(c.Templates, c.Paths)

	return &Server{
		Handler:           router,
		Controller:        c,
		Config:            pubCfg,
		Port:              cfg.Server.Port,
		janitor:           janitor,
		shutdownTelemetry: shutdown,
	}, nil
}

// Start runs the controller facade's startup sequence (spec §4.H) and
// begins the background retention schedule (periodic appliance-template
// refresh).
func (s *Server) Start(ctx context.Context) {
	s.Controller.Start(ctx)
	if err := s.janitor.Start(ctx); err != nil {
		log.Warn().Err(err).Msg("retention janitor failed to start")
	}
}

// Stop runs the controller facade's shutdown sequence and flushes
// telemetry.
func (s *Server) Stop(ctx context.Context) error {
	s.janitor.Stop()
	s.Controller.Stop(ctx)
	if s.shutdownTelemetry != nil {
		return s.shutdownTelemetry(ctx)
	}
	return nil
}
