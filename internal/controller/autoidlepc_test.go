package controller

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/netsim/controller/internal/compute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeComputeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"version": "test"})
	})
	mux.HandleFunc("/network/ports", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"ports": []int{1, 2}})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && len(r.URL.Path) > 0 && r.URL.Path[len(r.URL.Path)-6:] == "/nodes":
			json.NewEncoder(w).Encode(map[string]string{"node_id": "n1"})
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"idlepc": "0x600207f8"})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	return httptest.NewServer(mux)
}

func addFakeCompute(t *testing.T, c *Controller, srv *httptest.Server) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	_, err = c.Computes.Add(t.Context(), compute.AddOptions{
		ComputeID: "remote-fake", Name: "remote-fake", Connect: true,
		Protocol: "http", Host: host, Port: port,
	})
	require.NoError(t, err)
}

func TestController_AutoIdlePCComputesAndCleansUp(t *testing.T) {
	c := newTestController(t)
	srv := newFakeComputeServer(t)
	defer srv.Close()
	addFakeCompute(t, c, srv)

	idlepc, err := c.AutoIdlePC(t.Context(), "remote-fake", "c7200", "c7200-image.bin", 256)
	require.NoError(t, err)
	assert.Equal(t, "0x600207f8", idlepc)

	for _, p := range c.Projects.List() {
		assert.NotEqual(t, "AUTOIDLEPC", p.JSON().Name)
	}
}

func TestController_ComputePortsForwardsToCompute(t *testing.T) {
	c := newTestController(t)
	srv := newFakeComputeServer(t)
	defer srv.Close()
	addFakeCompute(t, c, srv)

	raw, err := c.ComputePorts(t.Context(), "remote-fake")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "ports")
}
