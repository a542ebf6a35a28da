// Package gns3vm implements the embedded-VM supervisor adapter (spec
// §4.G): on startup, if enabled, it brings up a hypervisor-backed VM and
// registers a compute with the reserved ID "vm" pointing at it; on
// shutdown it honors the configured when_exit policy. Every failure here
// is logged and demoted to a warning — it must never abort controller
// startup or shutdown.
package gns3vm

import (
	"context"

	"github.com/netsim/controller/internal/compute"
	"github.com/netsim/controller/pkg/contracts"
	"github.com/netsim/controller/pkg/models"
	"github.com/rs/zerolog/log"
)

// RegisterVMComputeFunc adds (or updates) the reserved "vm" compute
// pointing at the hypervisor handle. Injected by the controller facade so
// this package never imports internal/compute's registry directly.
type RegisterVMComputeFunc func(ctx context.Context, handle contracts.HypervisorHandle) error

// UnregisterVMComputeFunc removes the "vm" compute on shutdown/disable.
type UnregisterVMComputeFunc func(ctx context.Context) error

// Supervisor owns the embedded-VM configuration and dispatches to the
// hypervisor driver registered for its configured Engine.
type Supervisor struct {
	settings models.VMSettings
	drivers  map[models.VMEngine]contracts.Hypervisor

	registerVM   RegisterVMComputeFunc
	unregisterVM UnregisterVMComputeFunc

	running bool
}

// NewSupervisor constructs a Supervisor with the given hypervisor drivers
// registered by engine name. A "none" engine is implicit and never drives
// anything.
func NewSupervisor(settings models.VMSettings, drivers map[models.VMEngine]contracts.Hypervisor, registerVM RegisterVMComputeFunc, unregisterVM UnregisterVMComputeFunc) *Supervisor {
	return &Supervisor{
		settings:     settings,
		drivers:      drivers,
		registerVM:   registerVM,
		unregisterVM: unregisterVM,
	}
}

// Settings returns the supervisor's current configuration.
func (s *Supervisor) Settings() models.VMSettings { return s.settings }

// UpdateSettings replaces the supervisor's configuration, e.g. from a
// settings-document reload.
func (s *Supervisor) UpdateSettings(settings models.VMSettings) { s.settings = settings }

// Start brings up the embedded VM if enabled (startup step 9, spec §4.H).
// Failures never propagate: they are logged as warnings and the supervisor
// simply stays not-running.
func (s *Supervisor) Start(ctx context.Context) {
	if !s.settings.Enable || s.settings.Engine == models.VMEngineNone {
		return
	}

	driver, ok := s.drivers[s.settings.Engine]
	if !ok {
		log.Warn().Str("engine", string(s.settings.Engine)).Msg("gns3vm: no hypervisor driver registered for engine, VM will not start")
		return
	}

	handle, err := driver.EnsureRunning(ctx, s.settings.VMName, s.settings.Headless)
	if err != nil {
		log.Warn().Str("engine", string(s.settings.Engine)).Err(err).Msg("gns3vm: failed to start embedded VM")
		return
	}

	if s.registerVM != nil {
		if err := s.registerVM(ctx, *handle); err != nil {
			log.Warn().Err(err).Msg("gns3vm: failed to register \"vm\" compute")
			return
		}
	}

	s.running = true
	log.Info().Str("engine", string(s.settings.Engine)).Msg("gns3vm: embedded VM ready")
}

// Stop honors the configured when_exit policy (spec §4.G). Like Start,
// every failure is swallowed into a warning log.
func (s *Supervisor) Stop(ctx context.Context) {
	if !s.running {
		return
	}
	driver, ok := s.drivers[s.settings.Engine]
	if !ok {
		return
	}

	if s.unregisterVM != nil {
		if err := s.unregisterVM(ctx); err != nil {
			log.Warn().Err(err).Msg("gns3vm: failed to unregister \"vm\" compute")
		}
	}

	if err := driver.Stop(ctx, s.settings.VMName, string(s.settings.WhenExit)); err != nil {
		log.Warn().Str("when_exit", string(s.settings.WhenExit)).Err(err).Msg("gns3vm: failed to stop embedded VM cleanly")
	}
	s.running = false
}

// Running reports whether the supervisor believes the embedded VM is up.
func (s *Supervisor) Running() bool { return s.running }

// ComputeConfigFromHandle adapts a hypervisor handle into the compute.Config
// the "vm" compute is registered with.
func ComputeConfigFromHandle(handle contracts.HypervisorHandle) compute.Config {
	return compute.Config{
		ID:       models.ComputeIDVM,
		Name:     "GNS3 VM",
		Protocol: "http",
		Host:     handle.Host,
		Port:     handle.Port,
	}
}
