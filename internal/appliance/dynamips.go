package appliance

import (
	"fmt"
	"regexp"

	"github.com/netsim/controller/internal/errs"
)

// Dynamips request validation, transcribed from schemas/dynamips.py's
// VM_CREATE_SCHEMA (spec §3 supplemented features; spec.md §6). Only the
// constraints that affect controller-side admission are enforced here; the
// rest of the platform/chassis/image bookkeeping belongs to the compute
// node itself.
var (
	dynamipsPlatformPattern = regexp.MustCompile(`^c[0-9]{4}$`)
	dynamipsChassisPattern  = regexp.MustCompile(`^[0-9]{4}(XM)?$`)
	dynamipsIdlePCPattern   = regexp.MustCompile(`^(0x[0-9a-fA-F]+)?$`)
	dynamipsVMIDPattern     = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)
	dynamipsMacAddrPattern  = regexp.MustCompile(`^([0-9a-fA-F]{4}\.){2}[0-9a-fA-F]{4}$`)
	dynamipsConfregPattern  = regexp.MustCompile(`^0x[0-9a-fA-F]{4}$`)
)

var dynamipsNPEValues = map[string]bool{
	"npe-100": true, "npe-150": true, "npe-175": true, "npe-200": true,
	"npe-225": true, "npe-300": true, "npe-400": true, "npe-g2": true,
}

var dynamipsMidplaneValues = map[string]bool{"std": true, "vxr": true}

// DynamipsProperties is the subset of an appliance's properties map that
// the Dynamips backend requires when appliance_type is "dynamips". The
// console/aux/iomem fields are pointers so "absent" can be told apart from
// the field's valid zero value (iomem 0% is legal, console port 0 is not).
type DynamipsProperties struct {
	Platform string
	Chassis  string
	Image    string
	IdlePC   string
	VMID     string
	MacAddr  string
	Confreg  string
	NPE      string
	Midplane string
	Console  *int
	Aux      *int
	IOMem    *int
}

// ValidateDynamipsProperties enforces the subset of the original Dynamips
// VM creation schema that constrains controller-admitted values: platform,
// chassis, idlepc, vm_id, mac_addr, confreg, the console/aux TCP port
// ranges, the npe and midplane enums, and the iomem percentage range.
// image is required by the upstream schema but left for the compute node
// to enforce, since the controller never touches image files; chassis is
// optional (older platforms like c1700 have no chassis concept).
func ValidateDynamipsProperties(p DynamipsProperties) error {
	if p.Platform == "" {
		return &errs.BadRequest{Message: "dynamips appliance requires a platform"}
	}
	if !dynamipsPlatformPattern.MatchString(p.Platform) {
		return &errs.BadRequest{Message: fmt.Sprintf("invalid dynamips platform %q", p.Platform)}
	}
	if p.Chassis != "" && !dynamipsChassisPattern.MatchString(p.Chassis) {
		return &errs.BadRequest{Message: fmt.Sprintf("invalid dynamips chassis %q", p.Chassis)}
	}
	if p.IdlePC != "" && !dynamipsIdlePCPattern.MatchString(p.IdlePC) {
		return &errs.BadRequest{Message: fmt.Sprintf("invalid dynamips idlepc value %q", p.IdlePC)}
	}
	if p.VMID != "" && !dynamipsVMIDPattern.MatchString(p.VMID) {
		return &errs.BadRequest{Message: fmt.Sprintf("invalid dynamips vm_id %q", p.VMID)}
	}
	if p.MacAddr != "" && !dynamipsMacAddrPattern.MatchString(p.MacAddr) {
		return &errs.BadRequest{Message: fmt.Sprintf("invalid dynamips mac_addr %q", p.MacAddr)}
	}
	if p.Confreg != "" && !dynamipsConfregPattern.MatchString(p.Confreg) {
		return &errs.BadRequest{Message: fmt.Sprintf("invalid dynamips confreg %q", p.Confreg)}
	}
	if p.NPE != "" && !dynamipsNPEValues[p.NPE] {
		return &errs.BadRequest{Message: fmt.Sprintf("invalid dynamips npe %q", p.NPE)}
	}
	if p.Midplane != "" && !dynamipsMidplaneValues[p.Midplane] {
		return &errs.BadRequest{Message: fmt.Sprintf("invalid dynamips midplane %q", p.Midplane)}
	}
	if p.Console != nil && (*p.Console < 1 || *p.Console > 65535) {
		return &errs.BadRequest{Message: fmt.Sprintf("invalid dynamips console port %d", *p.Console)}
	}
	if p.Aux != nil && (*p.Aux < 1 || *p.Aux > 65535) {
		return &errs.BadRequest{Message: fmt.Sprintf("invalid dynamips aux port %d", *p.Aux)}
	}
	if p.IOMem != nil && (*p.IOMem < 0 || *p.IOMem > 100) {
		return &errs.BadRequest{Message: fmt.Sprintf("invalid dynamips iomem percentage %d", *p.IOMem)}
	}
	return nil
}

// DynamipsSlotKeys lists the network-module slot/WIC keys the original
// schema allows as a bare string device name or null (slot0-slot6,
// wic0-wic2). The controller doesn't interpret these values itself — only
// their presence as string-or-null is enforced in validateDynamipsPayload.
var DynamipsSlotKeys = []string{
	"slot0", "slot1", "slot2", "slot3", "slot4", "slot5", "slot6",
	"wic0", "wic1", "wic2",
}
