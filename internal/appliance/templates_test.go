package appliance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateStore_LoadFromDiskGeneratesStableIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cisco-router.gns3a")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"cisco-router"}`), 0o644))

	s1 := NewTemplateStore("", dir)
	s1.LoadFromDisk()
	list1 := s1.List()
	require.Len(t, list1, 1)

	s2 := NewTemplateStore("", dir)
	s2.LoadFromDisk()
	list2 := s2.List()
	require.Len(t, list2, 1)

	assert.Equal(t, list1[0].ID, list2[0].ID)
	assert.Equal(t, "stable", list1[0].Status)
}

func TestTemplateID_MatchesKnownUUIDv3(t *testing.T) {
	// Pinned against Python's
	// uuid.uuid3(uuid.NAMESPACE_URL, "/opt/gns3/appliances/cisco-3725.gns3a")
	// so a regression to UUIDv5/SHA1 (uuid.NewSHA1) fails loudly instead of
	// only breaking ID stability, which an SHA1-based swap would preserve.
	assert.Equal(t, "0f715e07-4185-37b8-a3de-49891f9cf3e8",
		templateID("/opt/gns3/appliances/cisco-3725.gns3a"))
}

func TestTemplateStore_LoadFromDiskMarksBrokenOnInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.gns3a")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))

	s := NewTemplateStore("", dir)
	s.LoadFromDisk()
	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "broken", list[0].Status)
}

func TestTemplateStore_DownloadHonorsETagNotModified(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, `"abc"`, r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	s := NewTemplateStore("", t.TempDir())
	s.SetETag(`"abc"`)
	s.client = srv.Client()

	err := s.downloadFrom(context.Background(), srv.URL, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestTemplateStore_DownloadSavesListedFiles(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"cisco-router"}`))
	})
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"new-etag"`)
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"type": "file", "name": "cisco-router.gns3a", "download_url": srv.URL + "/file"},
		})
	})

	dest := t.TempDir()
	s := NewTemplateStore("", dest)
	s.client = srv.Client()

	err := s.downloadFrom(context.Background(), srv.URL+"/list", dest)
	require.NoError(t, err)
	assert.Equal(t, `"new-etag"`, s.ETag())

	data, err := os.ReadFile(filepath.Join(dest, "cisco-router.gns3a"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "cisco-router")
}
