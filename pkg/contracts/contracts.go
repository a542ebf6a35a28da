// Package contracts defines the interfaces at the controller's external
// boundaries: the per-compute REST agent (treated as a black-box RPC
// endpoint) and the embedded-VM hypervisor supervisor. Both collaborators
// are out of scope for this repo (spec §1) — these interfaces are the
// seam the core programs against, the way the teacher's pkg/contracts
// defines the seam between OSS and Pro implementations.
package contracts

import (
	"context"
	"time"
)

// ── Compute backend ──────────────────────────────────────────

// ComputeBackend is the per-compute REST surface the controller drives.
// internal/compute's *Client satisfies it; internal/controller and the
// compute registry use *compute.Client directly rather than this interface.
type ComputeBackend interface {
	// Get issues an authenticated GET against the compute's REST API.
	Get(ctx context.Context, path string, out interface{}) error

	// Post issues an authenticated POST with a JSON body.
	Post(ctx context.Context, path string, body, out interface{}) error

	// Put issues an authenticated PUT with a JSON body.
	Put(ctx context.Context, path string, body, out interface{}) error

	// Delete issues an authenticated DELETE.
	Delete(ctx context.Context, path string) error

	// State reports the backend's current connection state.
	State() string

	// Close tears down the backend's connections (event stream).
	Close() error
}

// ── Embedded-VM hypervisor ───────────────────────────────────

// HypervisorHandle describes how to reach a compute hosted inside a local
// hypervisor once it is running.
type HypervisorHandle struct {
	Host string
	Port int
}

// Hypervisor is the small "ensure running" seam the embedded-VM supervisor
// adapter (internal/gns3vm) programs against. The actual VMware/VirtualBox
// control logic is out of scope (spec §1); this is the contract a real
// driver would satisfy.
type Hypervisor interface {
	// Engine identifies which hypervisor this driver controls.
	Engine() string

	// EnsureRunning starts the VM if needed and returns how to reach it.
	// Idempotent: calling it while already running just returns the handle.
	EnsureRunning(ctx context.Context, vmName string, headless bool) (*HypervisorHandle, error)

	// Stop stops, suspends, or leaves the VM running depending on mode.
	Stop(ctx context.Context, vmName string, mode string) error
}

// ── Clock seam ───────────────────────────────────────────────

// Clock abstracts time.Now so tests can control timestamps deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the production Clock backed by time.Now.
var SystemClock Clock = systemClock{}
