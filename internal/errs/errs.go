// Package errs enumerates the controller's domain error kinds (spec §7).
// Each kind is a concrete type so callers can use errors.As to recover
// structured detail; internal/errs/httpstatus.go maps kinds to HTTP status
// codes at the transport boundary, kept deliberately separate from the
// domain types themselves.
package errs

import "fmt"

// NotFound indicates an unknown compute/project/appliance ID.
type NotFound struct {
	Entity string
	ID     string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %q doesn't exist", e.Entity, e.ID)
}

// Conflict indicates a name collision, duplicate ID, or a builtin-delete
// attempt.
type Conflict struct {
	Message string
}

func (e *Conflict) Error() string { return e.Message }

// BadRequest indicates an appliance payload failed schema validation.
type BadRequest struct {
	Message string
}

func (e *BadRequest) Error() string { return e.Message }

// ComputeUnreachable indicates a network-level failure talking to a compute.
type ComputeUnreachable struct {
	ComputeID string
	Err       error
}

func (e *ComputeUnreachable) Error() string {
	return fmt.Sprintf("compute %q unreachable: %v", e.ComputeID, e.Err)
}

func (e *ComputeUnreachable) Unwrap() error { return e.Err }

// ComputeHTTP indicates a non-2xx HTTP response from a compute.
type ComputeHTTP struct {
	ComputeID string
	Status    int
	Body      string
}

func (e *ComputeHTTP) Error() string {
	return fmt.Sprintf("compute %q returned HTTP %d: %s", e.ComputeID, e.Status, e.Body)
}

// ComputeAuth indicates a 401/403 from a compute.
type ComputeAuth struct {
	ComputeID string
	Status    int
}

func (e *ComputeAuth) Error() string {
	return fmt.Sprintf("compute %q rejected credentials (HTTP %d)", e.ComputeID, e.Status)
}

// ComputeConflict indicates a 409 from a compute.
type ComputeConflict struct {
	ComputeID string
	Body      string
}

func (e *ComputeConflict) Error() string {
	return fmt.Sprintf("compute %q conflict: %s", e.ComputeID, e.Body)
}

// ConfigLoadError indicates the persisted settings document was unreadable
// or invalid. Callers log it at critical severity and continue with an
// empty compute list — it is never fatal.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("cannot load configuration file %q: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }

// PortInUse indicates the local compute's port is already bound. This is
// the only fatal startup error in the whole controller.
type PortInUse struct {
	Port int
}

func (e *PortInUse) Error() string {
	return fmt.Sprintf("cannot bind local compute to port %d: already in use", e.Port)
}

// LegacyImportError wraps any failure parsing the legacy gns3_gui.conf
// file. Legacy import is always best-effort; this error is logged and
// swallowed, never propagated.
type LegacyImportError struct {
	Err error
}

func (e *LegacyImportError) Error() string {
	return fmt.Sprintf("legacy config import failed: %v", e.Err)
}

func (e *LegacyImportError) Unwrap() error { return e.Err }

// CapacityError indicates a bounded allocation loop (e.g. free-name search)
// exhausted its bound.
type CapacityError struct {
	Message string
}

func (e *CapacityError) Error() string { return e.Message }

// GNS3VMNotConfigured is the distinguished NotFound variant returned when
// looking up the reserved "vm" compute before the embedded VM is configured.
type GNS3VMNotConfigured struct{}

func (e *GNS3VMNotConfigured) Error() string {
	return "cannot use a node on the GNS3 VM server with the GNS3 VM not configured"
}
