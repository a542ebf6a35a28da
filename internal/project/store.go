package project

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/netsim/controller/internal/errs"
	"github.com/netsim/controller/internal/notify"
	"github.com/rs/zerolog/log"
)

// maxFreeNameAttempts bounds free_name's search (spec §4.F).
const maxFreeNameAttempts = 1000000

// AddOptions mirrors add_project's kwargs in the original controller.
type AddOptions struct {
	ProjectID string
	Name      string
	Path      string
	Filename  string
	Status    string
	AutoOpen  bool
}

// Store is the project store (spec §4.F).
type Store struct {
	mu           sync.RWMutex
	projects     map[string]*Project
	bus          *notify.Bus
	projectsPath string
}

// NewStore constructs an empty project store. projectsPath is the root
// directory searched for free-name collisions; the store itself never
// creates directories under it.
func NewStore(bus *notify.Bus, projectsPath string) *Store {
	return &Store{
		projects:     make(map[string]*Project),
		bus:          bus,
		projectsPath: projectsPath,
	}
}

// Add creates a project or returns an existing one matching project_id
// (spec §4.F). Name collisions are rejected: name+path together is a
// "location conflict", name alone is a "name conflict".
func (s *Store) Add(opts AddOptions) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.ProjectID != "" {
		if existing, ok := s.projects[opts.ProjectID]; ok {
			return existing, nil
		}
	}

	for _, p := range s.projects {
		if opts.Name != "" && p.name == opts.Name {
			if opts.Path != "" && opts.Path == p.path {
				return nil, &errs.Conflict{Message: "Project \"" + opts.Name + "\" already exists in location \"" + opts.Path + "\""}
			}
			return nil, &errs.Conflict{Message: "Project \"" + opts.Name + "\" already exists"}
		}
	}

	id := opts.ProjectID
	if id == "" {
		id = uuid.NewString()
	}
	p := newProject(id, opts.Name, opts.Path, opts.Filename, opts.AutoOpen, s.bus)
	s.projects[id] = p

	s.bus.Publish("project.created", map[string]interface{}{"project_id": id, "name": opts.Name})
	return p, nil
}

// Get returns a project or NotFound.
func (s *Store) Get(id string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return nil, &errs.NotFound{Entity: "project", ID: id}
	}
	return p, nil
}

// GetLoaded returns a project, waiting for it to leave "opening" first.
func (s *Store) GetLoaded(ctx context.Context, id string) (*Project, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := p.WaitLoaded(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns every known project.
func (s *Store) List() []*Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	return out
}

// Remove drops a project from the in-memory registry. It does not touch
// on-disk files; Delete is the full-delete entry point callers should use
// when the project's directory must also be reclaimed.
func (s *Store) Remove(p *Project) {
	s.mu.Lock()
	delete(s.projects, p.id)
	s.mu.Unlock()
}

// Delete closes the project if it's open, removes its on-disk directory,
// and drops it from the registry (spec §3: a deleted project is "destroyed
// on delete — files on disk are also removed"). Deleting an unknown ID is
// NotFound, matching Get.
func (s *Store) Delete(ctx context.Context, id string) error {
	p, err := s.Get(id)
	if err != nil {
		return err
	}

	if err := p.Close(ctx); err != nil {
		log.Warn().Str("project", id).Err(err).Msg("error closing project before delete")
	}

	path := p.JSON().Path
	if path != "" {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove project directory %s: %w", path, err)
		}
	}

	s.Remove(p)
	s.bus.Publish("project.deleted", map[string]interface{}{"project_id": id, "name": p.name})
	return nil
}

// Load parses a topology file, strips its envelope, and either reuses an
// in-memory project with the same project_id or instantiates a new closed
// one. If loadTopology is true or the project's auto_open flag is set, it
// is then opened (spec §4.F).
func (s *Store) Load(ctx context.Context, path string, loadTopology bool) (*Project, error) {
	env, err := ParseTopologyFile(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	existing, ok := s.projects[env.ProjectID]
	s.mu.Unlock()
	if ok {
		if loadTopology || existing.autoOpen {
			if err := existing.Open(ctx); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	p, err := s.Add(AddOptions{
		ProjectID: env.ProjectID,
		Name:      env.Name,
		Path:      filepath.Dir(path),
		Filename:  filepath.Base(path),
		AutoOpen:  env.AutoOpen,
	})
	if err != nil {
		return nil, err
	}

	if loadTopology || p.autoOpen {
		if err := p.Open(ctx); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AutoOpenAll opens every project whose auto_open flag is set (startup
// step 10, spec §4.H).
func (s *Store) AutoOpenAll(ctx context.Context) {
	for _, p := range s.List() {
		if p.autoOpen {
			if err := p.Open(ctx); err != nil {
				log.Warn().Str("project", p.id).Err(err).Msg("auto-open failed")
			}
		}
	}
}

// FreeName returns the first of base, base-1, base-2, … not used by an
// in-memory project and not already present on disk under the projects
// directory (spec §4.F). Bounded at maxFreeNameAttempts.
func (s *Store) FreeName(base string) (string, error) {
	s.mu.RLock()
	used := make(map[string]bool, len(s.projects))
	for _, p := range s.projects {
		used[p.name] = true
	}
	s.mu.RUnlock()

	if !used[base] {
		if s.projectsPath == "" {
			return base, nil
		}
		if _, err := os.Stat(filepath.Join(s.projectsPath, base)); err != nil {
			return base, nil
		}
	}
	for i := 1; i <= maxFreeNameAttempts; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if used[candidate] {
			continue
		}
		if s.projectsPath != "" {
			if _, err := os.Stat(filepath.Join(s.projectsPath, candidate)); err == nil {
				continue
			}
		}
		return candidate, nil
	}
	return "", &errs.CapacityError{Message: "could not find a free project name based on \"" + base + "\""}
}

// CloseComputeProjects closes every project touching the given compute,
// implementing the CloseProjectsFunc hook the compute registry calls
// before deleting a compute (spec §4.D).
func (s *Store) CloseComputeProjects(ctx context.Context, computeID string) error {
	for _, p := range s.List() {
		if p.UsesCompute(computeID) {
			if err := p.Close(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// ComputeHasOpenProject reports whether any opened project references the
// given compute.
func (s *Store) ComputeHasOpenProject(computeID string) bool {
	for _, p := range s.List() {
		if p.UsesCompute(computeID) && p.Status() == "opened" {
			return true
		}
	}
	return false
}
