// Package retention runs the controller's periodic background job: an
// appliance-template refresh against the public registry (spec §9 mentions
// a production controller would run "refresh every N hours" in addition to
// the on-demand, ETag-gated refresh the core itself performs).
//
// This package intentionally does not touch the projects directory: the
// controller never assumes exclusive ownership of subdirectories it did
// not create (spec §5), so there is no disk-reclaiming sweep here. A
// project directory whose .gns3 topology file cannot be loaded is left for
// an operator to clean up, not silently removed on a timer.
package retention

import (
	"context"
	"time"

	"github.com/netsim/controller/internal/appliance"
	"github.com/netsim/controller/internal/paths"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// TemplateRefreshSchedule is a robfig/cron "@every" interval descriptor
// (not a 5-field cron expression).
const TemplateRefreshSchedule = "@every 6h"

// Janitor owns the background schedule. It never mutates the registries
// directly outside of the TemplateStore methods already safe for
// concurrent use.
type Janitor struct {
	cron      *cron.Cron
	templates *appliance.TemplateStore
	paths     *paths.Resolver
}

// NewJanitor constructs a janitor. Call Start to begin scheduling.
func NewJanitor(templates *appliance.TemplateStore, p *paths.Resolver) *Janitor {
	return &Janitor{
		cron:      cron.New(),
		templates: templates,
		paths:     p,
	}
}

// Start registers the template refresh job and begins running it on its
// schedule. It does not block.
func (j *Janitor) Start(ctx context.Context) error {
	if _, err := j.cron.AddFunc(TemplateRefreshSchedule, func() { j.refreshTemplates(ctx) }); err != nil {
		return err
	}
	j.cron.Start()
	log.Info().Str("template_refresh", TemplateRefreshSchedule).Msg("retention janitor started")
	return nil
}

// Stop waits for any in-flight job to finish, then stops the scheduler.
func (j *Janitor) Stop() {
	stopCtx := j.cron.Stop()
	<-stopCtx.Done()
}

// refreshTemplates re-downloads the appliance registry listing. The
// TemplateStore's own ETag guard makes a refresh that finds nothing new a
// cheap 304 round trip. The store's mutex guards only the ETag and the
// template map; a download is not serialized against a caller-triggered
// refresh on the same store, so two refreshes can run and issue their
// registry requests at the same time.
func (j *Janitor) refreshTemplates(ctx context.Context) {
	dir, err := j.paths.AppliancesPath()
	if err != nil {
		log.Warn().Err(err).Msg("janitor: cannot resolve appliances path, skipping template refresh")
		return
	}
	if err := j.templates.Download(ctx, dir); err != nil {
		log.Warn().Err(err).Msg("janitor: appliance template refresh failed")
		return
	}
	j.templates.LoadFromDisk()
}
