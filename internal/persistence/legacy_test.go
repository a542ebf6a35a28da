package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/netsim/controller/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLegacy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gns3_gui.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportLegacyConfig_MissingFileReturnsNilNoError(t *testing.T) {
	res, err := ImportLegacyConfig(filepath.Join(t.TempDir(), "gns3_gui.conf"))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestImportLegacyConfig_RemoteServers(t *testing.T) {
	path := writeLegacy(t, `{
		"Servers": {
			"remote_servers": [{"host": "edge1", "port": 3080, "protocol": "http", "url": "edge1-server", "user": "admin", "password": "pw"}]
		}
	}`)
	res, err := ImportLegacyConfig(path)
	require.NoError(t, err)
	require.Len(t, res.RemoteServers, 1)
	assert.Equal(t, "edge1", res.RemoteServers[0].Host)
}

func TestImportLegacyConfig_VMSettingsVMware(t *testing.T) {
	path := writeLegacy(t, `{
		"Servers": {
			"vm": {"virtualization": "VMware", "vmname": "GNS3 VM", "auto_start": true, "auto_stop": false, "headless": true}
		}
	}`)
	res, err := ImportLegacyConfig(path)
	require.NoError(t, err)
	require.NotNil(t, res.VMSettings)
	assert.Equal(t, models.VMEngineVMware, res.VMSettings.Engine)
	assert.True(t, res.VMSettings.Enable)
	assert.Equal(t, models.VMWhenExitKeep, res.VMSettings.WhenExit)
}

func TestImportLegacyConfig_VMSettingsRemoteMatchesByHostPort(t *testing.T) {
	path := writeLegacy(t, `{
		"Servers": {
			"remote_servers": [{"host": "10.0.0.1", "port": 3080, "url": "edge1"}],
			"vm": {"virtualization": "other", "remote_vm_host": "10.0.0.1", "remote_vm_port": 3080, "auto_start": true}
		}
	}`)
	res, err := ImportLegacyConfig(path)
	require.NoError(t, err)
	require.NotNil(t, res.VMSettings)
	assert.Equal(t, models.VMEngineRemote, res.VMSettings.Engine)
	assert.Equal(t, "edge1", res.VMSettings.VMName)
}

func TestImportLegacyConfig_NodesAreTaggedAndDeprecatedKeysStripped(t *testing.T) {
	path := writeLegacy(t, `{
		"Qemu": {"vms": [{"name": "r1", "enable_remote_console": true, "use_ubridge": true, "ram": 512}]},
		"VPCS": {"nodes": [{"name": "pc1", "default_symbol": ":/old.svg"}]}
	}`)
	res, err := ImportLegacyConfig(path)
	require.NoError(t, err)
	require.Len(t, res.Appliances, 2)

	var qemu, vpcs *models.Appliance
	for i := range res.Appliances {
		switch res.Appliances[i].ApplianceType {
		case models.ApplianceQemu:
			qemu = &res.Appliances[i]
		case models.ApplianceVPCS:
			vpcs = &res.Appliances[i]
		}
	}
	require.NotNil(t, qemu)
	require.NotNil(t, vpcs)

	assert.NotContains(t, qemu.Properties, "enable_remote_console")
	assert.NotContains(t, qemu.Properties, "use_ubridge")
	assert.NotEmpty(t, qemu.ID)

	assert.Equal(t, legacyDefaultSymbol, vpcs.Symbol)
}

func TestImportLegacyConfig_NodeMissingNameIsSkipped(t *testing.T) {
	path := writeLegacy(t, `{"Qemu": {"vms": [{"ram": 512}]}}`)
	res, err := ImportLegacyConfig(path)
	require.NoError(t, err)
	assert.Empty(t, res.Appliances)
}
