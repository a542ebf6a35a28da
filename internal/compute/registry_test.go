package compute

import (
	"context"
	"testing"

	"github.com/netsim/controller/internal/notify"
	"github.com/netsim/controller/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *notify.Bus, *int) {
	bus := notify.NewBus()
	saves := 0
	save := func() { saves++ }
	reg := NewRegistry(bus, save, func(ctx context.Context, computeID string) error { return nil })
	return reg, bus, &saves
}

func TestRegistry_AddRejectsReservedIDWithoutForce(t *testing.T) {
	reg, _, _ := newTestRegistry()
	c, err := reg.Add(context.Background(), AddOptions{ComputeID: "local", Connect: false})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.False(t, reg.Has("local"))
}

func TestRegistry_AddReservedIDWithForceSucceeds(t *testing.T) {
	reg, _, saves := newTestRegistry()
	c, err := reg.Add(context.Background(), AddOptions{ComputeID: "local", Force: true, Host: "localhost", Port: 3080, Protocol: "http"})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "local", c.ID())
	assert.Equal(t, 1, *saves)
}

func TestRegistry_AddRejectsReservedGNS3VMName(t *testing.T) {
	reg, _, _ := newTestRegistry()
	c, err := reg.Add(context.Background(), AddOptions{Name: "gns3vm"})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRegistry_AddNameConflict(t *testing.T) {
	reg, _, _ := newTestRegistry()
	_, err := reg.Add(context.Background(), AddOptions{ComputeID: "c1", Name: "edge1", Connect: false})
	require.NoError(t, err)

	_, err = reg.Add(context.Background(), AddOptions{ComputeID: "c2", Name: "edge1", Connect: false})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	c3, err := reg.Add(context.Background(), AddOptions{ComputeID: "c3", Name: "edge1", Force: true, Connect: false})
	require.NoError(t, err)
	require.NotNil(t, c3)
}

func TestRegistry_AddExistingIDReconnectsAndUpdates(t *testing.T) {
	reg, bus, _ := newTestRegistry()
	sub := bus.Subscribe()
	defer sub.Close()

	_, err := reg.Add(context.Background(), AddOptions{ComputeID: "c1", Name: "edge1", Connect: false})
	require.NoError(t, err)
	// Drain the compute.created event.
	<-sub.Events()

	c, err := reg.Add(context.Background(), AddOptions{ComputeID: "c1", Connect: false})
	require.NoError(t, err)
	require.NotNil(t, c)

	ev := <-sub.Events()
	assert.Equal(t, "compute.updated", ev.Action)
}

func TestRegistry_GetMissingVMIsDistinguished(t *testing.T) {
	reg, _, _ := newTestRegistry()
	_, err := reg.Get(models.ComputeIDVM)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GNS3 VM")
}

func TestRegistry_GetMissingOtherIsNotFound(t *testing.T) {
	reg, _, _ := newTestRegistry()
	_, err := reg.Get("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "doesn't exist")
}

func TestRegistry_DeleteUnknownIsNoOp(t *testing.T) {
	reg, _, _ := newTestRegistry()
	err := reg.Delete(context.Background(), "nope")
	assert.NoError(t, err)
}

func TestRegistry_DeleteClosesProjectsFirst(t *testing.T) {
	bus := notify.NewBus()
	var closedBefore, deletedAfter bool
	reg := NewRegistry(bus, func() {}, func(ctx context.Context, computeID string) error {
		closedBefore = true
		return nil
	})
	_, err := reg.Add(context.Background(), AddOptions{ComputeID: "c2", Connect: false})
	require.NoError(t, err)

	err = reg.Delete(context.Background(), "c2")
	require.NoError(t, err)
	deletedAfter = !reg.Has("c2")

	assert.True(t, closedBefore)
	assert.True(t, deletedAfter)
}
