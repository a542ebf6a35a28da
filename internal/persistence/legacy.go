package persistence

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/netsim/controller/pkg/models"
)

// legacyDeprecatedKeys are stripped from every imported node unconditionally
// (spec §4.I).
var legacyDeprecatedKeys = []string{"enable_remote_console", "use_ubridge", "acpi_shutdown"}

// legacySymbolKeys are also deprecated but, unlike the above, their removal
// triggers a default "symbol" substitution if none survives.
var legacySymbolKeys = []string{"default_symbol", "hover_symbol"}

const legacyDefaultSymbol = ":/symbols/computer.svg"

// LegacyRemoteServer is one entry of Servers.remote_servers.
type LegacyRemoteServer struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// LegacyImportResult is what _import_gns3_gui_conf produces: computes to
// add, an optional VM settings override, and appliances recovered from the
// per-emulator node lists.
type LegacyImportResult struct {
	RemoteServers []LegacyRemoteServer
	VMSettings    *models.VMSettings
	Appliances    []models.Appliance
}

type legacyDoc struct {
	Servers struct {
		RemoteServers []LegacyRemoteServer `json:"remote_servers"`
		VM            *struct {
			Virtualization string `json:"virtualization"`
			VMName         string `json:"vmname"`
			AutoStart      bool   `json:"auto_start"`
			AutoStop       *bool  `json:"auto_stop"`
			Headless       bool   `json:"headless"`
			RemoteVMHost   string `json:"remote_vm_host"`
			RemoteVMPort   int    `json:"remote_vm_port"`
		} `json:"vm"`
	} `json:"Servers"`
	Qemu struct {
		VMs []map[string]interface{} `json:"vms"`
	} `json:"Qemu"`
	IOU struct {
		Devices []map[string]interface{} `json:"devices"`
	} `json:"IOU"`
	Docker struct {
		Containers []map[string]interface{} `json:"containers"`
	} `json:"Docker"`
	Builtin struct {
		CloudNodes       []map[string]interface{} `json:"cloud_nodes"`
		EthernetSwitches []map[string]interface{} `json:"ethernet_switches"`
		EthernetHubs     []map[string]interface{} `json:"ethernet_hubs"`
	} `json:"Builtin"`
	Dynamips struct {
		Routers []map[string]interface{} `json:"routers"`
	} `json:"Dynamips"`
	VMware struct {
		VMs []map[string]interface{} `json:"vms"`
	} `json:"VMware"`
	VirtualBox struct {
		VMs []map[string]interface{} `json:"vms"`
	} `json:"VirtualBox"`
	VPCS struct {
		Nodes []map[string]interface{} `json:"nodes"`
	} `json:"VPCS"`
	TraceNG struct {
		Nodes []map[string]interface{} `json:"nodes"`
	} `json:"TraceNG"`
}

// ImportLegacyConfig parses a gns3_gui.conf file and produces the computes,
// VM settings, and appliances to seed the controller with (spec §4.I).
func ImportLegacyConfig(path string) (*LegacyImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &legacyReadError{path: path, err: err}
	}

	var doc legacyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &legacyReadError{path: path, err: err}
	}

	result := &LegacyImportResult{RemoteServers: doc.Servers.RemoteServers}

	if doc.Servers.VM != nil {
		result.VMSettings = legacyVMSettings(doc.Servers.VM.Virtualization, doc.Servers.VM.VMName,
			doc.Servers.VM.AutoStart, doc.Servers.VM.AutoStop, doc.Servers.VM.Headless,
			doc.Servers.VM.RemoteVMHost, doc.Servers.VM.RemoteVMPort, result.RemoteServers)
	}

	type tagged struct {
		nodes []map[string]interface{}
		kind  models.ApplianceType
	}
	groups := []tagged{
		{doc.Qemu.VMs, models.ApplianceQemu},
		{doc.IOU.Devices, models.ApplianceIOU},
		{doc.Docker.Containers, models.ApplianceDocker},
		{doc.Builtin.CloudNodes, models.ApplianceCloud},
		{doc.Builtin.EthernetSwitches, models.ApplianceEthernetSwitch},
		{doc.Builtin.EthernetHubs, models.ApplianceEthernetHub},
		{doc.Dynamips.Routers, models.ApplianceDynamips},
		{doc.VMware.VMs, models.ApplianceVMware},
		{doc.VirtualBox.VMs, models.ApplianceVirtualBox},
		{doc.VPCS.Nodes, models.ApplianceVPCS},
		{doc.TraceNG.Nodes, models.ApplianceTraceNG},
	}

	for _, g := range groups {
		for _, node := range g.nodes {
			a, ok := legacyNodeToAppliance(node, g.kind)
			if ok {
				result.Appliances = append(result.Appliances, a)
			}
		}
	}

	return result, nil
}

func legacyVMSettings(virtualization, vmname string, autoStart bool, autoStop *bool, headless bool, remoteHost string, remotePort int, remotes []LegacyRemoteServer) *models.VMSettings {
	var engine models.VMEngine
	name := vmname

	switch virtualization {
	case "VMware":
		engine = models.VMEngineVMware
	case "VirtualBox":
		engine = models.VMEngineVirtualBox
	default:
		engine = models.VMEngineRemote
		name = ""
		for _, r := range remotes {
			if r.Host == remoteHost && r.Port == remotePort {
				name = r.URL
				break
			}
		}
	}

	whenExit := models.VMWhenExitStop
	if autoStop != nil && !*autoStop {
		whenExit = models.VMWhenExitKeep
	}

	return &models.VMSettings{
		Engine:   engine,
		Enable:   autoStart,
		WhenExit: whenExit,
		Headless: headless,
		VMName:   name,
	}
}

// legacyNodeToAppliance strips deprecated keys from one legacy node entry
// and converts it into an Appliance, tagging it with the appliance_type
// its source section implies (spec §4.I). Entries missing a name are
// skipped, mirroring the original's "missing key" warning-and-continue.
func legacyNodeToAppliance(node map[string]interface{}, kind models.ApplianceType) (models.Appliance, bool) {
	for _, key := range legacyDeprecatedKeys {
		delete(node, key)
	}

	hadSymbolKey := false
	for _, key := range legacySymbolKeys {
		if _, ok := node[key]; ok {
			hadSymbolKey = true
			delete(node, key)
		}
	}
	if hadSymbolKey {
		if _, ok := node["symbol"]; !ok {
			node["symbol"] = legacyDefaultSymbol
		}
	}

	name, _ := node["name"].(string)
	if name == "" {
		return models.Appliance{}, false
	}

	id, _ := node["appliance_id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	symbol, _ := node["symbol"].(string)

	delete(node, "name")
	delete(node, "appliance_id")
	delete(node, "symbol")
	delete(node, "appliance_type")

	return models.Appliance{
		ID:            id,
		Name:          name,
		ApplianceType: kind,
		Symbol:        symbol,
		Properties:    node,
	}, true
}

type legacyReadError struct {
	path string
	err  error
}

func (e *legacyReadError) Error() string {
	return "cannot read legacy config file '" + e.path + "': " + e.err.Error()
}

func (e *legacyReadError) Unwrap() error { return e.err }
