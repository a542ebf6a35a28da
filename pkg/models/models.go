// Package models holds the wire-shape types shared across the controller's
// internal packages: computes, projects, appliances, and the IOU license
// blob. These are the JSON shapes persisted to disk and exchanged with
// compute nodes and clients.
package models

import "time"

// ── Compute ──────────────────────────────────────────────────

type ConnectionState string

const (
	ComputeDisconnected ConnectionState = "disconnected"
	ComputeConnecting   ConnectionState = "connecting"
	ComputeConnected    ConnectionState = "connected"
	ComputeErrored      ConnectionState = "errored"
)

// Reserved compute identifiers with special lifecycle rules.
const (
	ComputeIDLocal = "local"
	ComputeIDVM    = "vm"
)

// Compute is the persisted + in-memory shape of a remote compute node.
type Compute struct {
	ID          string          `json:"compute_id"`
	Name        string          `json:"name"`
	Protocol    string          `json:"protocol"` // http or https
	Host        string          `json:"host"`
	Port        int             `json:"port"`
	ConsoleHost string          `json:"console_host,omitempty"`
	User        string          `json:"user"`
	Password    string          `json:"password"`
	State       ConnectionState `json:"connection_state"`
	LastError   string          `json:"last_error,omitempty"`
}

// ComputePersistRecord is the subset of Compute fields written to the
// settings document ("local" and "vm" are never persisted).
type ComputePersistRecord struct {
	ComputeID string `json:"compute_id"`
	Name      string `json:"name"`
	Protocol  string `json:"protocol"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	User      string `json:"user"`
	Password  string `json:"password"`
}

// ── Project ──────────────────────────────────────────────────

type ProjectStatus string

const (
	ProjectClosed  ProjectStatus = "closed"
	ProjectOpening ProjectStatus = "opening"
	ProjectOpened  ProjectStatus = "opened"
	ProjectClosing ProjectStatus = "closing"
)

// AutoIdlePCProjectName is the reserved, transient project name used by
// the autoidlepc one-shot flow.
const AutoIdlePCProjectName = "AUTOIDLEPC"

// Project is the in-memory representation of a topology + its runtime state.
type Project struct {
	ID       string        `json:"project_id"`
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Filename string        `json:"filename"`
	Status   ProjectStatus `json:"status"`
	AutoOpen bool          `json:"auto_open"`
	Computes []string      `json:"computes"` // derived: compute IDs referenced by nodes
}

// ── Appliance ────────────────────────────────────────────────

// ApplianceType enumerates the emulator backends an appliance can target.
type ApplianceType string

const (
	ApplianceQemu             ApplianceType = "qemu"
	ApplianceIOU              ApplianceType = "iou"
	ApplianceDocker           ApplianceType = "docker"
	ApplianceDynamips         ApplianceType = "dynamips"
	ApplianceVMware           ApplianceType = "vmware"
	ApplianceVirtualBox       ApplianceType = "virtualbox"
	ApplianceVPCS             ApplianceType = "vpcs"
	ApplianceCloud            ApplianceType = "cloud"
	ApplianceNAT              ApplianceType = "nat"
	ApplianceEthernetSwitch   ApplianceType = "ethernet_switch"
	ApplianceEthernetHub      ApplianceType = "ethernet_hub"
	ApplianceFrameRelaySwitch ApplianceType = "frame_relay_switch"
	ApplianceATMSwitch        ApplianceType = "atm_switch"
	ApplianceTraceNG          ApplianceType = "traceng"
)

// Appliance is a concrete node template bound to an emulator backend.
type Appliance struct {
	ID                string                 `json:"appliance_id"`
	Name              string                 `json:"name"`
	ApplianceType     ApplianceType          `json:"appliance_type"`
	Category          int                    `json:"category,omitempty"`
	Symbol            string                 `json:"symbol,omitempty"`
	DefaultNameFormat string                 `json:"default_name_format,omitempty"`
	ConsoleType       string                 `json:"console_type,omitempty"`
	Properties        map[string]interface{} `json:"properties,omitempty"`
	Builtin           bool                   `json:"-"` // never persisted
}

// ── Appliance template ───────────────────────────────────────

type TemplateStatus string

const (
	TemplateStable TemplateStatus = "stable"
	TemplateBroken TemplateStatus = "broken"
)

// ApplianceTemplate is a file-sourced recipe used to derive an Appliance.
type ApplianceTemplate struct {
	ID      string                 `json:"template_id"`
	Path    string                 `json:"path"`
	Builtin bool                   `json:"builtin"`
	Status  TemplateStatus         `json:"status"`
	Raw     map[string]interface{} `json:"-"`
}

// ── IOU license ──────────────────────────────────────────────

type IOULicenseSettings struct {
	IOURCContent string `json:"iourc_content"`
	LicenseCheck bool   `json:"license_check"`
}

func DefaultIOULicenseSettings() IOULicenseSettings {
	return IOULicenseSettings{IOURCContent: "", LicenseCheck: true}
}

// ── Embedded-VM supervisor settings ──────────────────────────

type VMEngine string

const (
	VMEngineVMware     VMEngine = "vmware"
	VMEngineVirtualBox VMEngine = "virtualbox"
	VMEngineRemote     VMEngine = "remote"
	VMEngineNone       VMEngine = "none"
)

type VMWhenExit string

const (
	VMWhenExitStop    VMWhenExit = "stop"
	VMWhenExitKeep    VMWhenExit = "keep"
	VMWhenExitSuspend VMWhenExit = "suspend"
)

type VMSettings struct {
	Engine   VMEngine   `json:"engine"`
	Enable   bool       `json:"enable"`
	WhenExit VMWhenExit `json:"when_exit"`
	Headless bool       `json:"headless"`
	VMName   string     `json:"vmname"`
}

func DefaultVMSettings() VMSettings {
	return VMSettings{
		Engine:   VMEngineNone,
		Enable:   false,
		WhenExit: VMWhenExitStop,
		Headless: false,
		VMName:   "",
	}
}

// ── Notification event ───────────────────────────────────────

// Event is the controller-wide structured notification payload.
type Event struct {
	Action    string                 `json:"action"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ── Settings document (persistence) ──────────────────────────

// SettingsDocument is the top-level shape of gns3_controller.conf.
type SettingsDocument struct {
	Version                string                 `json:"version"`
	IOULicense             IOULicenseSettings     `json:"iou_license"`
	GNS3VM                 VMSettings             `json:"gns3vm"`
	ApplianceTemplatesETag *string                `json:"appliance_templates_etag"`
	Computes               []ComputePersistRecord `json:"computes"`
	Appliances             []Appliance            `json:"appliances"`
}
