package project

import (
	"encoding/json"
	"os"

	"github.com/netsim/controller/internal/errs"
)

// TopologyEnvelope is the stripped-down shape load_topology cares about:
// the project_id/name/auto_open fields that survive envelope-stripping
// (spec §4.F — "topology", "version", "revision", "type" are discarded).
type TopologyEnvelope struct {
	ProjectID string
	Name      string
	AutoOpen  bool
}

// ParseTopologyFile reads a .gns3 file and strips its envelope, matching
// load_project/load_topology in the original controller.
func ParseTopologyFile(path string) (*TopologyEnvelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.ConfigLoadError{Path: path, Err: err}
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &errs.ConfigLoadError{Path: path, Err: err}
	}

	// Envelope fields are intentionally discarded: topology, version,
	// revision, type.
	env := &TopologyEnvelope{}
	if v, ok := raw["project_id"]; ok {
		_ = json.Unmarshal(v, &env.ProjectID)
	}
	if v, ok := raw["name"]; ok {
		_ = json.Unmarshal(v, &env.Name)
	}
	if v, ok := raw["auto_open"]; ok {
		_ = json.Unmarshal(v, &env.AutoOpen)
	}

	if env.ProjectID == "" {
		return nil, &errs.BadRequest{Message: "topology file " + path + " is missing project_id"}
	}
	return env, nil
}
