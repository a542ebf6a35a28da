// Package project implements the project store (spec §4.F): topology
// lifecycle, name/location uniqueness, and the opening→opened transition
// get_loaded callers wait on.
package project

import (
	"context"
	"sync"

	"github.com/netsim/controller/internal/notify"
	"github.com/netsim/controller/internal/telemetry"
	"github.com/netsim/controller/pkg/models"
	"go.opentelemetry.io/otel/attribute"
)

// Project is one in-memory project handle. Node/link materialization is
// out of scope (the controller does not itself run emulation — spec §1
// Non-goals), so Open/Close only drive the status state machine and emit
// the corresponding notifications; they never fail once invoked.
type Project struct {
	mu       sync.RWMutex
	id       string
	name     string
	path     string
	filename string
	status   models.ProjectStatus
	autoOpen bool
	computes map[string]struct{}

	bus      *notify.Bus
	openedCh chan struct{} // closed when the project leaves "opening"
}

func newProject(id, name, path, filename string, autoOpen bool, bus *notify.Bus) *Project {
	return &Project{
		id:       id,
		name:     name,
		path:     path,
		filename: filename,
		status:   models.ProjectClosed,
		autoOpen: autoOpen,
		computes: make(map[string]struct{}),
		bus:      bus,
	}
}

func (p *Project) ID() string { return p.id }

// JSON returns the wire/persisted representation of this project.
func (p *Project) JSON() models.Project {
	p.mu.RLock()
	defer p.mu.RUnlock()
	computes := make([]string, 0, len(p.computes))
	for c := range p.computes {
		computes = append(computes, c)
	}
	return models.Project{
		ID: p.id, Name: p.name, Path: p.path, Filename: p.filename,
		Status: p.status, AutoOpen: p.autoOpen, Computes: computes,
	}
}

// Status reports the project's current lifecycle state.
func (p *Project) Status() models.ProjectStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// UsesCompute reports whether the project currently references the given
// compute ID (spec §4.D's CloseProjectsFunc hook relies on this).
func (p *Project) UsesCompute(computeID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.computes[computeID]
	return ok
}

// Open transitions closed → opening → opened, emitting "project.opened"
// once the transition is complete, and releases anyone blocked in
// WaitLoaded. Re-opening an already-opened project is a no-op.
func (p *Project) Open(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "project.open", attribute.String("project.id", p.id))
	defer span.End()

	p.mu.Lock()
	if p.status == models.ProjectOpened || p.status == models.ProjectOpening {
		p.mu.Unlock()
		return nil
	}
	p.status = models.ProjectOpening
	p.openedCh = make(chan struct{})
	p.mu.Unlock()

	p.bus.PublishProject(p.id, "project.opening", nil)

	p.mu.Lock()
	p.status = models.ProjectOpened
	close(p.openedCh)
	p.mu.Unlock()

	p.bus.PublishProject(p.id, "project.opened", map[string]interface{}{"project_id": p.id, "name": p.name})
	return nil
}

// Close transitions opened → closing → closed, emitting "project.closed".
// Closing an already-closed project is a no-op.
func (p *Project) Close(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "project.close", attribute.String("project.id", p.id))
	defer span.End()

	p.mu.Lock()
	if p.status == models.ProjectClosed {
		p.mu.Unlock()
		return nil
	}
	p.status = models.ProjectClosing
	p.mu.Unlock()

	p.bus.PublishProject(p.id, "project.closing", nil)

	p.mu.Lock()
	p.status = models.ProjectClosed
	p.mu.Unlock()

	p.bus.PublishProject(p.id, "project.closed", map[string]interface{}{"project_id": p.id, "name": p.name})
	return nil
}

// WaitLoaded blocks until the project leaves the "opening" state, or the
// context is cancelled, matching get_loaded_project's "wait for it".
func (p *Project) WaitLoaded(ctx context.Context) error {
	p.mu.RLock()
	ch := p.openedCh
	status := p.status
	p.mu.RUnlock()

	if status != models.ProjectOpening || ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Project) setAutoOpen(v bool) {
	p.mu.Lock()
	p.autoOpen = v
	p.mu.Unlock()
}
