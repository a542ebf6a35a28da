package gns3vm

import (
	"context"

	"github.com/netsim/controller/internal/errs"
	"github.com/netsim/controller/pkg/contracts"
)

// RemoteDriver implements contracts.Hypervisor for the "remote" engine: the
// VM is assumed to already be running on a user-supplied host/port rather
// than locally controlled. It is the only driver this repo ships fully
// wired, since VMware/VirtualBox control is out of scope (spec §1).
type RemoteDriver struct {
	Host string
	Port int
}

func (d *RemoteDriver) Engine() string { return "remote" }

func (d *RemoteDriver) EnsureRunning(ctx context.Context, vmName string, headless bool) (*contracts.HypervisorHandle, error) {
	if d.Host == "" {
		return nil, &errs.GNS3VMNotConfigured{}
	}
	return &contracts.HypervisorHandle{Host: d.Host, Port: d.Port}, nil
}

func (d *RemoteDriver) Stop(ctx context.Context, vmName string, mode string) error {
	// A remote VM is managed outside this controller; "stopping" it is a
	// no-op regardless of when_exit.
	return nil
}
