package appliance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/netsim/controller/internal/errs"
	"github.com/rs/zerolog/log"
)

// applianceRegistryURL is the GNS3 registry's appliances directory listing,
// matching download_appliance_templates in the original controller.
const applianceRegistryURL = "https://api.github.com/repos/GNS3/gns3-registry/contents/appliances"

// TemplateStore holds the appliance templates loaded from the built-in
// resource directory and the user's appliances_path, plus the GitHub ETag
// used to skip re-downloading an up-to-date registry (spec §4.E, §3).
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*Template
	etag      string

	builtinDir string
	userDir    string
	client     *http.Client
}

// Template is a loaded .gns3a/.gns3appliance file.
type Template struct {
	ID      string
	Path    string
	Builtin bool
	Status  string // "stable" or "broken"
	Raw     map[string]interface{}
}

// NewTemplateStore constructs an empty template store. Call LoadFromDisk to
// populate it from the builtin and user directories.
func NewTemplateStore(builtinDir, userDir string) *TemplateStore {
	return &TemplateStore{
		templates:  make(map[string]*Template),
		builtinDir: builtinDir,
		userDir:    userDir,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// SetDirs updates the directories LoadFromDisk scans, e.g. once the real
// paths are resolved after construction.
func (s *TemplateStore) SetDirs(builtinDir, userDir string) {
	s.mu.Lock()
	s.builtinDir = builtinDir
	s.userDir = userDir
	s.mu.Unlock()
}

// ETag returns the last GitHub registry ETag observed, for persistence
// (spec §6: "appliance_templates_etag" in the settings document).
func (s *TemplateStore) ETag() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.etag
}

// SetETag seeds the store's ETag from a loaded settings document.
func (s *TemplateStore) SetETag(etag string) {
	s.mu.Lock()
	s.etag = etag
	s.mu.Unlock()
}

// Get returns a loaded template by ID.
func (s *TemplateStore) Get(id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, &errs.NotFound{Entity: "appliance template", ID: id}
	}
	return t, nil
}

// List returns every loaded template, builtin and user alike.
func (s *TemplateStore) List() []*Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t)
	}
	return out
}

// LoadFromDisk scans the builtin directory and the user's appliances_path
// for .gns3a/.gns3appliance files, generating a stable UUIDv3 ID from each
// file's path so IDs survive restarts (spec §4.E, ported from
// load_appliance_templates). Malformed files are marked broken rather than
// rejected outright, mirroring the original's best-effort loading.
func (s *TemplateStore) LoadFromDisk() {
	s.mu.Lock()
	s.templates = make(map[string]*Template)
	s.mu.Unlock()

	for _, dir := range []struct {
		path    string
		builtin bool
	}{
		{s.builtinDir, true},
		{s.userDir, false},
	} {
		if dir.path == "" {
			continue
		}
		entries, err := os.ReadDir(dir.path)
		if err != nil {
			log.Debug().Str("dir", dir.path).Err(err).Msg("appliance template directory not readable")
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if !strings.HasSuffix(name, ".gns3a") && !strings.HasSuffix(name, ".gns3appliance") {
				continue
			}
			full := filepath.Join(dir.path, name)
			s.loadFile(full, dir.builtin)
		}
	}
}

// templateID derives a template's ID from its file path the same way the
// original controller's download_appliance_templates does: uuid.uuid3
// against the URL namespace (UUIDv3/MD5, not UUIDv5/SHA1 — Go's uuid.NewMD5
// is the matching constructor). This keeps the ID stable across reloads of
// the same path and identical to what any other GNS3-compatible tool
// computes for the same seed.
func templateID(path string) string {
	return uuid.NewMD5(uuid.NameSpaceURL, []byte(path)).String()
}

func (s *TemplateStore) loadFile(path string, builtin bool) {
	id := templateID(path)
	status := "stable"

	raw, err := os.ReadFile(path)
	var doc map[string]interface{}
	if err != nil {
		status = "broken"
		log.Warn().Str("path", path).Err(err).Msg("cannot read appliance template file")
	} else if jerr := json.Unmarshal(raw, &doc); jerr != nil {
		status = "broken"
		log.Warn().Str("path", path).Err(jerr).Msg("cannot parse appliance template file")
	}

	t := &Template{ID: id, Path: path, Builtin: builtin, Status: status, Raw: doc}
	s.mu.Lock()
	s.templates[id] = t
	s.mu.Unlock()
}

// Download refreshes the appliance templates from the GNS3 registry on
// GitHub, conditional on the stored ETag (spec §4.E, §3). A 304 response
// is treated as success with nothing to do. Downloaded files are written
// into destDir (the user's builtin resource override directory) and
// LoadFromDisk should be called again afterward to pick them up.
func (s *TemplateStore) Download(ctx context.Context, destDir string) error {
	return s.downloadFrom(ctx, applianceRegistryURL, destDir)
}

func (s *TemplateStore) downloadFrom(ctx context.Context, registryURL, destDir string) error {
	s.mu.RLock()
	etag := s.etag
	s.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, registryURL, nil)
	if err != nil {
		return fmt.Errorf("build registry request: %w", err)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		log.Info().Str("etag", etag).Msg("checking if appliance templates are up-to-date")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &errs.ConfigLoadError{Path: registryURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		log.Info().Str("etag", etag).Msg("appliance templates are already up-to-date")
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return &errs.BadRequest{Message: fmt.Sprintf("could not retrieve appliance templates on GitHub due to HTTP error code %d", resp.StatusCode)}
	}

	var listing []struct {
		Type        string `json:"type"`
		Name        string `json:"name"`
		DownloadURL string `json:"download_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return &errs.BadRequest{Message: "could not read appliance templates information from GitHub: " + err.Error()}
	}

	if newETag := resp.Header.Get("ETag"); newETag != "" {
		s.mu.Lock()
		s.etag = newETag
		s.mu.Unlock()
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create appliances dir: %w", err)
	}

	for _, entry := range listing {
		if entry.Type != "file" {
			continue
		}
		if err := s.downloadOne(ctx, entry.Name, entry.DownloadURL, destDir); err != nil {
			log.Warn().Str("file", entry.Name).Err(err).Msg("could not download appliance template file")
		}
	}
	return nil
}

func (s *TemplateStore) downloadOne(ctx context.Context, name, url, destDir string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error code %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	path := filepath.Join(destDir, name)
	log.Info().Str("file", name).Str("path", path).Msg("saving appliance template file")

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s into place: %w", tmp, err)
	}
	return nil
}
