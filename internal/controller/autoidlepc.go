package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/netsim/controller/internal/project"
	"github.com/netsim/controller/pkg/models"
)

// AutoIdlePC runs the one-shot idle-PC calculation flow from the original
// controller: a throwaway project is created, a single Dynamips node is
// added on the target compute, the compute computes an idle-PC value for
// it, then the node and project are torn down. Any leftover AUTOIDLEPC
// project from an interrupted prior run is deleted first.
func (c *Controller) AutoIdlePC(ctx context.Context, computeID, platform, image string, ram int) (string, error) {
	cl, err := c.Computes.Get(computeID)
	if err != nil {
		return "", err
	}

	for _, p := range c.Projects.List() {
		if p.JSON().Name == models.AutoIdlePCProjectName {
			_ = p.Close(ctx)
			c.Projects.Remove(p)
		}
	}

	proj, err := c.Projects.Add(project.AddOptions{Name: models.AutoIdlePCProjectName})
	if err != nil {
		return "", err
	}
	defer c.Projects.Remove(proj)

	var node struct {
		NodeID string `json:"node_id"`
	}
	if err := cl.Post(ctx, fmt.Sprintf("/projects/%s/dynamips/nodes", proj.ID()), map[string]interface{}{
		"platform": platform,
		"image":    image,
		"ram":      ram,
	}, &node); err != nil {
		return "", err
	}
	defer func() {
		_ = cl.Delete(ctx, fmt.Sprintf("/projects/%s/dynamips/nodes/%s", proj.ID(), node.NodeID))
	}()

	var result struct {
		IdlePC string `json:"idlepc"`
	}
	if err := cl.Post(ctx, fmt.Sprintf("/projects/%s/dynamips/nodes/%s/auto_idlepc", proj.ID(), node.NodeID), nil, &result); err != nil {
		return "", err
	}
	return result.IdlePC, nil
}

// ComputePorts forwards to a compute's own port-usage report, matching the
// original controller's compute_ports(compute_id) passthrough.
func (c *Controller) ComputePorts(ctx context.Context, computeID string) (json.RawMessage, error) {
	cl, err := c.Computes.Get(computeID)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := cl.Get(ctx, "/network/ports", &out); err != nil {
		return nil, err
	}
	return out, nil
}
