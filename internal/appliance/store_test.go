package appliance

import (
	"context"
	"testing"

	"github.com/netsim/controller/internal/notify"
	"github.com/netsim/controller/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*Store, *notify.Bus, *int) {
	bus := notify.NewBus()
	saves := 0
	save := func() { saves++ }
	return NewStore(bus, save), bus, &saves
}

func TestStore_BuiltinsArePresentAndStable(t *testing.T) {
	s1, _, _ := newTestStore()
	s2, _, _ := newTestStore()

	list1 := s1.List()
	list2 := s2.List()
	require.Len(t, list1, 7)
	require.Len(t, list2, 7)

	ids1 := make(map[string]bool)
	for _, a := range list1 {
		ids1[a.ID] = true
		assert.True(t, a.Builtin)
	}
	for _, a := range list2 {
		assert.True(t, ids1[a.ID], "builtin IDs must be stable across store instances")
	}
}

func TestBuiltinID_MatchesKnownUUIDv3(t *testing.T) {
	// Pinned against Python's uuid.uuid3(uuid.NAMESPACE_DNS, "ethernet_switch")
	// so a regression to UUIDv5/SHA1 (uuid.NewSHA1) fails loudly instead of
	// only breaking ID stability, which an SHA1-based swap would preserve.
	assert.Equal(t, "1966b864-93e7-32d5-965f-001384eec461", builtinID("ethernet_switch"))
}

func TestStore_AddAssignsUUIDWhenIDOmitted(t *testing.T) {
	s, _, saves := newTestStore()
	a, err := s.Add(models.Appliance{Name: "r1", ApplianceType: models.ApplianceQemu})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, 1, *saves)
}

func TestStore_AddRejectsDuplicateID(t *testing.T) {
	s, _, _ := newTestStore()
	_, err := s.Add(models.Appliance{ID: "dup", Name: "r1"})
	require.NoError(t, err)

	_, err = s.Add(models.Appliance{ID: "dup", Name: "r2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestStore_DeleteBuiltinIsConflict(t *testing.T) {
	s, _, _ := newTestStore()
	var builtinID string
	for _, a := range s.List() {
		builtinID = a.ID
		break
	}
	err := s.Delete(context.Background(), builtinID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "builtin")
}

func TestStore_DeleteUserApplianceSucceeds(t *testing.T) {
	s, _, _ := newTestStore()
	a, err := s.Add(models.Appliance{Name: "r1"})
	require.NoError(t, err)

	err = s.Delete(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = s.Get(a.ID)
	require.Error(t, err)
}

func TestStore_PersistedExcludesBuiltins(t *testing.T) {
	s, _, _ := newTestStore()
	_, err := s.Add(models.Appliance{Name: "r1"})
	require.NoError(t, err)

	persisted := s.Persisted()
	require.Len(t, persisted, 1)
	assert.Equal(t, "r1", persisted[0].Name)
}

func TestStore_UpdateBuiltinIsConflict(t *testing.T) {
	s, _, _ := newTestStore()
	var builtinID string
	for _, a := range s.List() {
		builtinID = a.ID
		break
	}
	_, err := s.Update(builtinID, models.Appliance{Name: "renamed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "builtin")
}
