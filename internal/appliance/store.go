// Package appliance implements the appliance store (spec §4.E): user-defined
// node appliances, a fixed set of built-in appliances recreated on every
// startup, and downloadable appliance templates fetched from the GNS3
// registry on GitHub.
package appliance

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/netsim/controller/internal/errs"
	"github.com/netsim/controller/internal/notify"
	"github.com/netsim/controller/pkg/models"
)

// SaveFunc persists the current settings document to disk.
type SaveFunc func()

// Store is the appliance store (spec §4.E). Built-in appliances are
// recreated on NewStore and are never deleted or persisted; user appliances
// are added, removed and saved to the settings document.
type Store struct {
	mu         sync.RWMutex
	appliances map[string]*models.Appliance
	bus        *notify.Bus
	save       SaveFunc
}

// NewStore creates an appliance store pre-populated with the built-in
// appliances (spec §3 supplemented features).
func NewStore(bus *notify.Bus, save SaveFunc) *Store {
	s := &Store{
		appliances: make(map[string]*models.Appliance),
		bus:        bus,
		save:       save,
	}
	s.loadBuiltins()
	return s
}

// loadBuiltins recreates the fixed set of built-in appliances using
// UUIDv3/NAMESPACE_DNS so their IDs are stable across restarts, matching
// load_appliances in the original controller.
func (s *Store) loadBuiltins() {
	builtins := []*models.Appliance{
		builtin("cloud", models.ApplianceCloud, "Cloud", 2, ":/symbols/cloud.svg", "", nil),
		builtin("nat", models.ApplianceNAT, "NAT", 2, ":/symbols/cloud.svg", "", nil),
		builtin("vpcs", models.ApplianceVPCS, "VPCS", 2, ":/symbols/vpcs_guest.svg", "PC-{0}",
			map[string]interface{}{"base_script_file": "vpcs_base_config.txt"}),
		builtin("ethernet_switch", models.ApplianceEthernetSwitch, "Ethernet switch", 1, ":/symbols/ethernet_switch.svg", "", nil),
		builtin("ethernet_hub", models.ApplianceEthernetHub, "Ethernet hub", 1, ":/symbols/hub.svg", "", nil),
		builtin("frame_relay_switch", models.ApplianceFrameRelaySwitch, "Frame Relay switch", 1, ":/symbols/frame_relay_switch.svg", "", nil),
		builtin("atm_switch", models.ApplianceATMSwitch, "ATM switch", 1, ":/symbols/atm_switch.svg", "", nil),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range builtins {
		s.appliances[b.ID] = b
	}
}

// builtinID derives a built-in appliance's ID from its name seed the same
// way the original controller derives built-in node IDs: uuid.uuid3 against
// the DNS namespace (UUIDv3/MD5 — Go's uuid.NewMD5, not uuid.NewSHA1/UUIDv5).
func builtinID(nameSeed string) string {
	return uuid.NewMD5(uuid.NameSpaceDNS, []byte(nameSeed)).String()
}

func builtin(nameSeed string, t models.ApplianceType, name string, category int, symbol, nameFormat string, props map[string]interface{}) *models.Appliance {
	return &models.Appliance{
		ID:                builtinID(nameSeed),
		Name:              name,
		ApplianceType:     t,
		Category:          category,
		Symbol:            symbol,
		DefaultNameFormat: nameFormat,
		Properties:        props,
		Builtin:           true,
	}
}

// Add creates a user appliance. An explicit ID that already exists is a
// Conflict (spec §4.E); otherwise a fresh UUIDv4 is assigned.
func (s *Store) Add(settings models.Appliance) (*models.Appliance, error) {
	s.mu.Lock()
	if settings.ID != "" {
		if _, exists := s.appliances[settings.ID]; exists {
			s.mu.Unlock()
			return nil, &errs.Conflict{Message: "Appliance ID '" + settings.ID + "' already exists"}
		}
	} else {
		settings.ID = uuid.NewString()
	}
	settings.Builtin = false
	a := settings
	s.appliances[a.ID] = &a
	s.mu.Unlock()

	s.save()
	s.bus.Publish("appliance.created", applianceJSON(&a))
	return &a, nil
}

// Get returns an appliance by ID or NotFound.
func (s *Store) Get(id string) (*models.Appliance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appliances[id]
	if !ok {
		return nil, &errs.NotFound{Entity: "appliance", ID: id}
	}
	return a, nil
}

// List returns every appliance (built-in and user-defined).
func (s *Store) List() []*models.Appliance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Appliance, 0, len(s.appliances))
	for _, a := range s.appliances {
		out = append(out, a)
	}
	return out
}

// Update replaces a user appliance's settings in place.
func (s *Store) Update(id string, settings models.Appliance) (*models.Appliance, error) {
	s.mu.Lock()
	existing, ok := s.appliances[id]
	if !ok {
		s.mu.Unlock()
		return nil, &errs.NotFound{Entity: "appliance", ID: id}
	}
	if existing.Builtin {
		s.mu.Unlock()
		return nil, &errs.Conflict{Message: "Appliance ID " + id + " cannot be modified because it is a builtin"}
	}
	settings.ID = id
	settings.Builtin = false
	s.appliances[id] = &settings
	s.mu.Unlock()

	s.save()
	s.bus.Publish("appliance.updated", applianceJSON(&settings))
	return &settings, nil
}

// Delete removes a user appliance. Deleting a builtin is a Conflict
// (spec §4.E — builtins are recreated on every startup regardless).
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	a, ok := s.appliances[id]
	if !ok {
		s.mu.Unlock()
		return &errs.NotFound{Entity: "appliance", ID: id}
	}
	if a.Builtin {
		s.mu.Unlock()
		return &errs.Conflict{Message: "Appliance ID " + id + " cannot be deleted because it is a builtin"}
	}
	delete(s.appliances, id)
	s.mu.Unlock()

	s.save()
	s.bus.Publish("appliance.deleted", applianceJSON(a))
	return nil
}

// Persisted returns the user-defined (non-builtin) appliances for the
// settings document (spec §4.E: builtins are never persisted).
func (s *Store) Persisted() []models.Appliance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Appliance, 0, len(s.appliances))
	for _, a := range s.appliances {
		if !a.Builtin {
			out = append(out, *a)
		}
	}
	return out
}

// Restore loads persisted user appliances from a settings document, e.g. on
// startup (spec §4.I). Every entry is stored as given, keyed by its ID and
// marked non-builtin; no entry is validated or skipped, and Restore never
// fails.
func (s *Store) Restore(saved []models.Appliance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range saved {
		cp := a
		cp.Builtin = false
		s.appliances[cp.ID] = &cp
	}
}

func applianceJSON(a *models.Appliance) map[string]interface{} {
	return map[string]interface{}{
		"appliance_id":   a.ID,
		"name":           a.Name,
		"appliance_type": string(a.ApplianceType),
		"category":       a.Category,
		"symbol":         a.Symbol,
	}
}
