package compute

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/netsim/controller/internal/errs"
	"github.com/netsim/controller/internal/notify"
	"github.com/netsim/controller/pkg/models"
	"github.com/rs/zerolog/log"
)

// reservedGNS3VMName is rejected as a user-chosen compute name because it
// is reserved for the embedded-VM supervisor's own "vm" compute.
const reservedGNS3VMName = "gns3vm"

// AddOptions mirrors the kwargs accepted by add_compute in the source this
// was ported from.
type AddOptions struct {
	ComputeID   string
	Name        string
	Force       bool
	Connect     bool
	Protocol    string
	Host        string
	Port        int
	ConsoleHost string
	User        string
	Password    string
}

// CloseProjectsFunc closes every open project touching the given compute.
// The registry does not own the project store, so the controller facade
// injects this hook (spec §3: computes do not reference projects).
type CloseProjectsFunc func(ctx context.Context, computeID string) error

// SaveFunc persists the current settings document to disk.
type SaveFunc func()

// Registry is the compute registry (spec §4.D): add/remove/lookup
// computes, conflict checks, and persistence triggers.
type Registry struct {
	mu        sync.Mutex
	computes  map[string]*Client
	bus       *notify.Bus
	save      SaveFunc
	closeProj CloseProjectsFunc
}

// NewRegistry constructs an empty compute registry.
func NewRegistry(bus *notify.Bus, save SaveFunc, closeProjects CloseProjectsFunc) *Registry {
	return &Registry{
		computes:  make(map[string]*Client),
		bus:       bus,
		save:      save,
		closeProj: closeProjects,
	}
}

// Add adds or reconnects-and-updates a compute (spec §4.D). Returns
// (nil, nil) for the silently-rejected cases (reserved ID without force,
// or the reserved "gns3vm" name).
func (r *Registry) Add(ctx context.Context, opts AddOptions) (*Client, error) {
	r.mu.Lock()

	if opts.ComputeID != "" {
		if existing, ok := r.computes[opts.ComputeID]; ok {
			r.mu.Unlock()
			if opts.Connect {
				_ = existing.Connect(ctx)
			}
			r.bus.Publish("compute.updated", eventPayload(existing.JSON()))
			return existing, nil
		}
	}

	if (opts.ComputeID == models.ComputeIDLocal || opts.ComputeID == models.ComputeIDVM) && !opts.Force {
		r.mu.Unlock()
		return nil, nil
	}

	if opts.Name == reservedGNS3VMName {
		r.mu.Unlock()
		return nil, nil
	}

	for _, c := range r.computes {
		if opts.Name != "" && c.Config().Name == opts.Name && !opts.Force {
			r.mu.Unlock()
			return nil, &errs.Conflict{Message: "Compute name \"" + opts.Name + "\" already exists"}
		}
	}

	id := opts.ComputeID
	if id == "" {
		id = uuid.NewString()
	}

	client := NewClient(Config{
		ID:          id,
		Name:        opts.Name,
		Protocol:    opts.Protocol,
		Host:        opts.Host,
		Port:        opts.Port,
		ConsoleHost: opts.ConsoleHost,
		User:        opts.User,
		Password:    opts.Password,
	}, r.bus)
	r.computes[id] = client
	r.mu.Unlock()

	r.save()
	if opts.Connect {
		_ = client.Connect(ctx)
	}
	r.bus.Publish("compute.created", eventPayload(client.JSON()))
	return client, nil
}

// Get returns the compute or a NotFound/GNS3VMNotConfigured error.
func (r *Registry) Get(id string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.computes[id]
	if !ok {
		if id == models.ComputeIDVM {
			return nil, &errs.GNS3VMNotConfigured{}
		}
		return nil, &errs.NotFound{Entity: "compute", ID: id}
	}
	return c, nil
}

// Has reports whether the given compute ID is registered.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.computes[id]
	return ok
}

// List returns every registered compute. A no-op when empty.
func (r *Registry) List() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.computes))
	for _, c := range r.computes {
		out = append(out, c)
	}
	return out
}

// Delete removes a compute, first closing every project that touches it.
// Deleting an unknown ID is a no-op, not an error (spec §4.D).
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	client, ok := r.computes[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if r.closeProj != nil {
		if err := r.closeProj(ctx, id); err != nil {
			log.Warn().Str("compute", id).Err(err).Msg("error closing projects before compute delete")
		}
	}

	if err := client.Close(); err != nil {
		log.Warn().Str("compute", id).Err(err).Msg("error closing compute client")
	}

	r.mu.Lock()
	delete(r.computes, id)
	r.mu.Unlock()

	r.save()
	r.bus.Publish("compute.deleted", eventPayload(client.JSON()))
	return nil
}

func eventPayload(c models.Compute) map[string]interface{} {
	return map[string]interface{}{
		"compute_id":    c.ID,
		"name":          c.Name,
		"protocol":      c.Protocol,
		"host":          c.Host,
		"port":          c.Port,
		"console_host":  c.ConsoleHost,
		"connection_state": string(c.State),
	}
}
