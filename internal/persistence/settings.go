// Package persistence implements the controller's single-JSON-document
// settings file (spec §4.I) and the one-time legacy gns3_gui.conf import.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/netsim/controller/pkg/models"
	"github.com/rs/zerolog/log"
)

// SnapshotFunc builds the current in-memory state into the persisted
// document shape. The controller facade supplies this, since persistence
// itself owns none of the registries.
type SnapshotFunc func() models.SettingsDocument

// Manager owns the on-disk settings file and the config_loaded guard that
// suppresses saves until the initial load has completed (spec §4.I — "to
// avoid overwriting the file with a partial in-memory state").
type Manager struct {
	mu       sync.Mutex
	path     string
	loaded   bool
	snapshot SnapshotFunc
}

// NewManager constructs a Manager bound to the given settings file path.
func NewManager(path string, snapshot SnapshotFunc) *Manager {
	return &Manager{path: path, snapshot: snapshot}
}

// MarkLoaded lifts the config_loaded guard, allowing Save to actually
// write. Call this once the initial Load (or legacy import) has completed.
func (m *Manager) MarkLoaded() {
	m.mu.Lock()
	m.loaded = true
	m.mu.Unlock()
}

// Loaded reports whether the config_loaded guard has been lifted.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Exists reports whether the settings file is already present on disk.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Load reads and parses the settings document. Returns os.ErrNotExist
// (wrapped) if the file does not exist yet, so callers can trigger legacy
// import instead.
func (m *Manager) Load() (*models.SettingsDocument, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	var doc models.SettingsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", m.path, err)
	}
	return &doc, nil
}

// Save writes the current snapshot atomically (write-temp-then-rename,
// spec §5). A no-op until MarkLoaded has been called.
func (m *Manager) Save() {
	m.mu.Lock()
	if !m.loaded {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	doc := m.snapshot()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("persistence: cannot marshal settings document")
		return
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		log.Error().Err(err).Str("path", m.path).Msg("persistence: cannot create config directory")
		return
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("persistence: cannot write settings file")
		return
	}
	if err := os.Rename(tmp, m.path); err != nil {
		log.Error().Err(err).Str("path", m.path).Msg("persistence: cannot rename settings file into place")
	}
}
