package project

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/netsim/controller/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *notify.Bus) {
	bus := notify.NewBus()
	return NewStore(bus, t.TempDir()), bus
}

func TestStore_AddReturnsExistingOnMatchingID(t *testing.T) {
	s, _ := newTestStore(t)
	p1, err := s.Add(AddOptions{ProjectID: "p1", Name: "net-a"})
	require.NoError(t, err)

	p2, err := s.Add(AddOptions{ProjectID: "p1"})
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}

func TestStore_DeleteRemovesDirectoryAndRegistryEntry(t *testing.T) {
	s, _ := newTestStore(t)
	dir := filepath.Join(t.TempDir(), "lab1")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	p, err := s.Add(AddOptions{ProjectID: "p1", Name: "lab1", Path: dir})
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), p.ID()))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "project directory should be removed")

	_, err = s.Get(p.ID())
	assert.Error(t, err, "deleted project should no longer be in the registry")
}

func TestStore_DeleteUnknownIsNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.Delete(context.Background(), "missing")
	assert.Error(t, err)
}

func TestStore_AddNameLocationConflict(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Add(AddOptions{Name: "lab1", Path: "/data/lab1"})
	require.NoError(t, err)

	_, err = s.Add(AddOptions{Name: "lab1", Path: "/data/lab1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists in location")
}

func TestStore_AddNameOnlyConflict(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Add(AddOptions{Name: "lab1", Path: "/data/a"})
	require.NoError(t, err)

	_, err = s.Add(AddOptions{Name: "lab1", Path: "/data/b"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "location")
}

func TestStore_GetLoadedWaitsForOpeningToComplete(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.Add(AddOptions{Name: "lab1"})
	require.NoError(t, err)

	go func() {
		_ = p.Open(context.Background())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	loaded, err := s.GetLoaded(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, "opened", string(loaded.Status()))
}

func TestStore_FreeNameReturnsBaseWhenUnused(t *testing.T) {
	s, _ := newTestStore(t)
	name, err := s.FreeName("lab")
	require.NoError(t, err)
	assert.Equal(t, "lab", name)
}

func TestStore_FreeNameIncrementsOnCollision(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Add(AddOptions{Name: "lab"})
	require.NoError(t, err)

	name, err := s.FreeName("lab")
	require.NoError(t, err)
	assert.Equal(t, "lab-1", name)
}

func TestStore_FreeNameSkipsOnDiskDirectories(t *testing.T) {
	s, bus := newTestStore(t)
	_ = bus
	_, err := s.Add(AddOptions{Name: "lab"})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(s.projectsPath, "lab-1"), 0o755))

	name, err := s.FreeName("lab")
	require.NoError(t, err)
	assert.Equal(t, "lab-2", name)
}

func TestStore_LoadParsesTopologyAndOpens(t *testing.T) {
	s, _ := newTestStore(t)
	path := filepath.Join(t.TempDir(), "topo.gns3")
	doc := map[string]interface{}{
		"project_id": "11111111-1111-1111-1111-111111111111",
		"name":       "loaded-lab",
		"version":    "2.2",
		"revision":   9,
		"type":       "topology",
		"topology":   map[string]interface{}{},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p, err := s.Load(context.Background(), path, true)
	require.NoError(t, err)
	assert.Equal(t, "loaded-lab", p.JSON().Name)
	assert.Equal(t, "opened", string(p.Status()))
}

func TestStore_CloseComputeProjectsClosesOnlyMatching(t *testing.T) {
	s, _ := newTestStore(t)
	p1, err := s.Add(AddOptions{Name: "a"})
	require.NoError(t, err)
	require.NoError(t, p1.Open(context.Background()))
	p1.computes["c1"] = struct{}{}

	p2, err := s.Add(AddOptions{Name: "b"})
	require.NoError(t, err)
	require.NoError(t, p2.Open(context.Background()))

	require.NoError(t, s.CloseComputeProjects(context.Background(), "c1"))
	assert.Equal(t, "closed", string(p1.Status()))
	assert.Equal(t, "opened", string(p2.Status()))
}
