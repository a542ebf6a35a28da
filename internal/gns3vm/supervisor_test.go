package gns3vm

import (
	"context"
	"testing"

	"github.com/netsim/controller/pkg/contracts"
	"github.com/netsim/controller/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_DisabledNeverStarts(t *testing.T) {
	var registered bool
	s := NewSupervisor(models.DefaultVMSettings(), nil,
		func(ctx context.Context, h contracts.HypervisorHandle) error { registered = true; return nil },
		nil)
	s.Start(context.Background())
	assert.False(t, registered)
	assert.False(t, s.Running())
}

func TestSupervisor_EnabledRegistersVMCompute(t *testing.T) {
	settings := models.VMSettings{Engine: models.VMEngineRemote, Enable: true, WhenExit: models.VMWhenExitKeep}
	driver := &RemoteDriver{Host: "192.168.1.50", Port: 9000}
	var registeredHandle contracts.HypervisorHandle
	s := NewSupervisor(settings, map[models.VMEngine]contracts.Hypervisor{models.VMEngineRemote: driver},
		func(ctx context.Context, h contracts.HypervisorHandle) error { registeredHandle = h; return nil },
		func(ctx context.Context) error { return nil })

	s.Start(context.Background())
	require.True(t, s.Running())
	assert.Equal(t, "192.168.1.50", registeredHandle.Host)
}

func TestSupervisor_MissingDriverWarnsAndDoesNotPanic(t *testing.T) {
	settings := models.VMSettings{Engine: models.VMEngineVMware, Enable: true}
	s := NewSupervisor(settings, map[models.VMEngine]contracts.Hypervisor{}, nil, nil)
	s.Start(context.Background())
	assert.False(t, s.Running())
}

func TestSupervisor_StopUnregistersAndCallsDriverStop(t *testing.T) {
	settings := models.VMSettings{Engine: models.VMEngineRemote, Enable: true, WhenExit: models.VMWhenExitStop}
	driver := &RemoteDriver{Host: "10.0.0.5", Port: 8000}
	var unregistered bool
	s := NewSupervisor(settings, map[models.VMEngine]contracts.Hypervisor{models.VMEngineRemote: driver},
		func(ctx context.Context, h contracts.HypervisorHandle) error { return nil },
		func(ctx context.Context) error { unregistered = true; return nil })

	s.Start(context.Background())
	require.True(t, s.Running())
	s.Stop(context.Background())
	assert.True(t, unregistered)
	assert.False(t, s.Running())
}
