// Package controller implements the controller facade (spec §4.H): it owns
// the compute/project/appliance registries and the notification bus, and
// sequences startup and shutdown. This is the composition root's single
// entry point — pkg/server wires it into the HTTP surface.
package controller

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/netsim/controller/internal/appliance"
	"github.com/netsim/controller/internal/compute"
	"github.com/netsim/controller/internal/config"
	"github.com/netsim/controller/internal/gns3vm"
	"github.com/netsim/controller/internal/notify"
	"github.com/netsim/controller/internal/paths"
	"github.com/netsim/controller/internal/persistence"
	"github.com/netsim/controller/internal/project"
	"github.com/netsim/controller/pkg/contracts"
	"github.com/netsim/controller/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Version is the controller's reported settings-document schema version.
const Version = "3.0.0"

// Controller is the facade spec §4.H describes: one struct owning every
// registry plus the notification bus, with an explicit startup/shutdown
// sequence.
type Controller struct {
	Bus         *notify.Bus
	Config      *config.Config
	Paths       *paths.Resolver
	Computes    *compute.Registry
	Projects    *project.Store
	Appliances  *appliance.Store
	Templates   *appliance.TemplateStore
	VM          *gns3vm.Supervisor
	Persistence *persistence.Manager

	iouLicense models.IOULicenseSettings
	clock      contracts.Clock
}

// New constructs a Controller with every registry wired together but does
// not start anything; call Start to run the startup sequence.
func New(cfg *config.Config, clock contracts.Clock, vmDrivers map[models.VMEngine]contracts.Hypervisor) *Controller {
	if clock == nil {
		clock = contracts.SystemClock
	}
	bus := notify.NewBus()
	p := paths.NewResolver(cfg)

	c := &Controller{
		Bus:        bus,
		Config:     cfg,
		Paths:      p,
		iouLicense: models.DefaultIOULicenseSettings(),
		clock:      clock,
	}

	c.Projects = project.NewStore(bus, cfg.GetServer().ProjectsPath)
	c.Appliances = appliance.NewStore(bus, c.save)
	c.Templates = appliance.NewTemplateStore("", "")
	c.Computes = compute.NewRegistry(bus, c.save, c.Projects.CloseComputeProjects)
	c.VM = gns3vm.NewSupervisor(models.DefaultVMSettings(), vmDrivers, c.registerVMCompute, c.unregisterVMCompute)

	c.Persistence = persistence.NewManager(p.ConfigFilePath(), c.snapshot)
	return c
}

func (c *Controller) save() { c.Persistence.Save() }

func (c *Controller) snapshot() models.SettingsDocument {
	var etag *string
	if t := c.Templates.ETag(); t != "" {
		etag = &t
	}

	computes := make([]models.ComputePersistRecord, 0)
	for _, cl := range c.Computes.List() {
		cfg := cl.Config()
		if cfg.ID == models.ComputeIDLocal || cfg.ID == models.ComputeIDVM {
			continue
		}
		computes = append(computes, models.ComputePersistRecord{
			ComputeID: cfg.ID, Name: cfg.Name, Protocol: cfg.Protocol,
			Host: cfg.Host, Port: cfg.Port, User: cfg.User, Password: cfg.Password,
		})
	}

	return models.SettingsDocument{
		Version:                Version,
		IOULicense:             c.iouLicense,
		GNS3VM:                 c.VM.Settings(),
		ApplianceTemplatesETag: etag,
		Computes:               computes,
		Appliances:             c.Appliances.Persisted(),
	}
}

func (c *Controller) registerVMCompute(ctx context.Context, handle contracts.HypervisorHandle) error {
	cfg := gns3vm.ComputeConfigFromHandle(handle)
	_, err := c.Computes.Add(ctx, compute.AddOptions{
		ComputeID: cfg.ID, Name: cfg.Name, Force: true, Connect: true,
		Protocol: cfg.Protocol, Host: cfg.Host, Port: cfg.Port,
	})
	return err
}

func (c *Controller) unregisterVMCompute(ctx context.Context) error {
	return c.Computes.Delete(ctx, models.ComputeIDVM)
}

// Start runs the ten-step startup sequence from spec §4.H. Every step is
// fail-soft except step 6 (registering the "local" compute), which exits
// the process on a port conflict — the only fatal startup error.
func (c *Controller) Start(ctx context.Context) {
	// 1. Copy default config files from the built-in asset dir to the user
	// configs dir for any file not already present.
	c.loadBaseFiles()

	// 2. Read server config, register config-change callback.
	c.Config.RegisterChangeCallback(c.onConfigChanged)

	// 4. Derive the local compute's advertised name from the hostname
	// (DisplayName maps the embedded-VM hostname to "Main server").
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	displayName := DisplayName(hostname)

	// 3. Derive the client/console-visible hosts from the bind host
	// (ExternalHost applies the loopback-for-wildcard-bind rule).
	server := c.Config.GetServer()
	clientHost, consoleHost := ExternalHost(server.Host)

	// 5. Load controller settings from disk, importing legacy config first
	// if the settings file doesn't exist yet.
	c.loadSettings(ctx)

	// 6. Register the "local" compute (force=true). Fatal on port conflict.
	if _, err := c.Computes.Add(ctx, compute.AddOptions{
		ComputeID: models.ComputeIDLocal, Name: displayName, Force: true, Connect: true,
		Protocol: server.Protocol, Host: clientHost, Port: server.Port, ConsoleHost: consoleHost,
		User: server.User, Password: server.Password,
	}); err != nil {
		log.Fatal().Err(err).Int("port", server.Port).Msg("cannot bind local compute: make sure something else is not running on this port")
		os.Exit(1)
	}

	// 7. For each persisted remote compute, attempt to add it concurrently
	// (bounded fan-out; a slow/unreachable compute must not delay the
	// others); skip failures.
	if doc, err := c.Persistence.Load(); err == nil {
		g := new(errgroup.Group)
		g.SetLimit(8)
		for _, cr := range doc.Computes {
			cr := cr
			g.Go(func() error {
				if _, err := c.Computes.Add(ctx, compute.AddOptions{
					ComputeID: cr.ComputeID, Name: cr.Name, Protocol: cr.Protocol,
					Host: cr.Host, Port: cr.Port, User: cr.User, Password: cr.Password,
					Connect: true,
				}); err != nil {
					log.Warn().Str("compute", cr.ComputeID).Err(err).Msg("skipping unavailable compute at startup")
				}
				return nil
			})
		}
		g.Wait()
	}

	// 8. Preload all projects under the projects directory without opening
	// them; skip incompatible ones.
	c.preloadProjects(ctx)

	// 9. Start the embedded-VM supervisor.
	c.VM.Start(ctx)

	// 10. Open every project whose auto_open flag is set.
	c.Projects.AutoOpenAll(ctx)
}

// Stop runs the shutdown sequence: close every project, close every
// compute (swallowing per-compute errors), stop the embedded VM, clear
// registries (spec §4.H).
func (c *Controller) Stop(ctx context.Context) {
	log.Info().Msg("controller stopping")

	g := new(errgroup.Group)
	for _, p := range c.Projects.List() {
		p := p
		g.Go(func() error {
			if err := p.Close(ctx); err != nil {
				log.Warn().Str("project", p.ID()).Err(err).Msg("error closing project during shutdown")
			}
			return nil
		})
	}
	g.Wait()

	for _, cl := range c.Computes.List() {
		if err := cl.Close(); err != nil {
			log.Warn().Str("compute", cl.ID()).Err(err).Msg("error closing compute during shutdown")
		}
	}
	c.VM.Stop(ctx)
}

func (c *Controller) onConfigChanged() {
	server := c.Config.GetServer()
	if local, err := c.Computes.Get(models.ComputeIDLocal); err == nil {
		local.UpdateCredentials(server.User, server.Password)
	}
}

func (c *Controller) loadBaseFiles() {
	dst := c.Paths.BuiltinConfigsDir()
	userDir, err := c.Paths.ConfigsPath()
	if err != nil {
		log.Warn().Err(err).Msg("cannot resolve configs path, skipping base file copy")
		return
	}
	entries, err := os.ReadDir(dst)
	if err != nil {
		return // no bundled defaults shipped with this binary
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		target := filepath.Join(userDir, e.Name())
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if err := copyFile(filepath.Join(dst, e.Name()), target); err != nil {
			log.Warn().Str("file", e.Name()).Err(err).Msg("cannot copy default config file")
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func (c *Controller) loadSettings(ctx context.Context) {
	if !c.Persistence.Exists() {
		c.importLegacyOrDefaults(ctx)
		c.loadAppliancesAndTemplates("")
		c.Persistence.MarkLoaded()
		c.Persistence.Save()
		return
	}

	doc, err := c.Persistence.Load()
	if err != nil {
		log.Error().Err(err).Msg("cannot load controller configuration file")
		c.Persistence.MarkLoaded()
		return
	}

	c.iouLicense = doc.IOULicense
	c.VM.UpdateSettings(doc.GNS3VM)
	c.Appliances.Restore(doc.Appliances)

	etag := ""
	if doc.ApplianceTemplatesETag != nil {
		etag = *doc.ApplianceTemplatesETag
	}
	c.loadAppliancesAndTemplates(etag)

	c.Persistence.MarkLoaded()
}

func (c *Controller) loadAppliancesAndTemplates(etag string) {
	appliancesPath, err := c.Paths.AppliancesPath()
	if err != nil {
		log.Warn().Err(err).Msg("cannot resolve appliances path")
		appliancesPath = ""
	}
	c.Templates.SetDirs(c.Paths.BuiltinAppliancesDir(), appliancesPath)
	if etag != "" {
		c.Templates.SetETag(etag)
	}
	c.Templates.LoadFromDisk()
}

func (c *Controller) importLegacyOrDefaults(ctx context.Context) {
	legacyPath := c.Paths.LegacyConfigFilePath()
	result, err := persistence.ImportLegacyConfig(legacyPath)
	if err != nil {
		log.Warn().Err(err).Msg("legacy config import failed, continuing with defaults")
		return
	}
	if result == nil {
		return
	}

	for _, r := range result.RemoteServers {
		protocol := r.Protocol
		if protocol == "" {
			protocol = "http"
		}
		host := r.Host
		if host == "" {
			host = "localhost"
		}
		port := r.Port
		if port == 0 {
			port = 3080
		}
		if _, err := c.Computes.Add(ctx, compute.AddOptions{
			Name: r.URL, Protocol: protocol, Host: host, Port: port,
			User: r.User, Password: r.Password,
		}); err != nil {
			log.Debug().Err(err).Msg("skipping broken legacy remote server")
		}
	}

	if result.VMSettings != nil {
		c.VM.UpdateSettings(*result.VMSettings)
	}

	for _, a := range result.Appliances {
		if _, err := c.Appliances.Add(a); err != nil {
			log.Warn().Str("appliance", a.Name).Err(err).Msg("cannot import legacy appliance")
		}
	}
}

func (c *Controller) preloadProjects(ctx context.Context) {
	root := c.Config.GetServer().ProjectsPath
	entries, err := os.ReadDir(expandHome(root))
	if err != nil {
		log.Error().Err(err).Str("path", root).Msg("cannot list projects directory")
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(expandHome(root), e.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			if strings.HasSuffix(f.Name(), ".gns3") {
				if _, err := c.Projects.Load(ctx, filepath.Join(dir, f.Name()), false); err != nil {
					log.Warn().Str("file", f.Name()).Err(err).Msg("skipping incompatible project")
				}
			}
		}
	}
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}

// DisplayName derives the controller's advertised name from the OS
// hostname, mapping the reserved "gns3vm" hostname to "Main server"
// (spec §4.H step 4).
func DisplayName(hostname string) string {
	if hostname == "gns3vm" {
		return "Main server"
	}
	return hostname
}

// ExternalHost computes the client-visible host and console-advertised
// host from a bind host (spec §4.H step 3): binding to 0.0.0.0 advertises
// 127.0.0.1 to clients while the console hint stays 0.0.0.0.
func ExternalHost(bindHost string) (clientHost, consoleHost string) {
	if bindHost == "0.0.0.0" {
		return "127.0.0.1", "0.0.0.0"
	}
	return bindHost, bindHost
}
