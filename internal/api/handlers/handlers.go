// Package handlers implements the thin HTTP surface over the controller
// facade (spec §1: the HTTP/WebSocket server itself is out of scope, but a
// minimal REST demonstration proves the facade is callable from outside
// the process).
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/netsim/controller/internal/appliance"
	"github.com/netsim/controller/internal/compute"
	"github.com/netsim/controller/internal/controller"
	"github.com/netsim/controller/internal/errs"
	"github.com/netsim/controller/internal/project"
	"github.com/netsim/controller/pkg/models"
	"github.com/go-chi/chi/v5"
)

// Handlers holds the controller facade every handler dispatches to.
type Handlers struct {
	Controller *controller.Controller
}

func New(c *controller.Controller) *Handlers {
	return &Handlers{Controller: c}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, errs.HTTPStatus(err), map[string]string{"error": err.Error()})
}

// ── Computes ─────────────────────────────────────────────────

func (h *Handlers) ListComputes(w http.ResponseWriter, r *http.Request) {
	clients := h.Controller.Computes.List()
	out := make([]models.Compute, 0, len(clients))
	for _, c := range clients {
		out = append(out, c.JSON())
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) CreateCompute(w http.ResponseWriter, r *http.Request) {
	var req models.Compute
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, &errs.BadRequest{Message: "invalid request body: " + err.Error()})
		return
	}

	c, err := h.Controller.Computes.Add(r.Context(), compute.AddOptions{
		ComputeID:   req.ID,
		Name:        req.Name,
		Connect:     true,
		Protocol:    req.Protocol,
		Host:        req.Host,
		Port:        req.Port,
		ConsoleHost: req.ConsoleHost,
		User:        req.User,
		Password:    req.Password,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	if c == nil {
		respondError(w, &errs.Conflict{Message: "compute was rejected (reserved id or name)"})
		return
	}
	respondJSON(w, http.StatusCreated, c.JSON())
}

func (h *Handlers) GetCompute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "computeID")
	c, err := h.Controller.Computes.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, c.JSON())
}

func (h *Handlers) DeleteCompute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "computeID")
	if err := h.Controller.Computes.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Projects ─────────────────────────────────────────────────

func (h *Handlers) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects := h.Controller.Projects.List()
	out := make([]models.Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.JSON())
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Path     string `json:"path"`
		AutoOpen bool   `json:"auto_open"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, &errs.BadRequest{Message: "invalid request body: " + err.Error()})
		return
	}

	name, err := h.Controller.Projects.FreeName(req.Name)
	if err != nil {
		respondError(w, err)
		return
	}

	p, err := h.Controller.Projects.Add(project.AddOptions{
		Name:     name,
		Path:     req.Path,
		AutoOpen: req.AutoOpen,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p.JSON())
}

func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	p, err := h.Controller.Projects.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p.JSON())
}

func (h *Handlers) OpenProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	p, err := h.Controller.Projects.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := p.Open(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p.JSON())
}

func (h *Handlers) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	if err := h.Controller.Projects.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CloseProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "projectID")
	p, err := h.Controller.Projects.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := p.Close(r.Context()); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p.JSON())
}

// ── Appliances ───────────────────────────────────────────────

func (h *Handlers) ListAppliances(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Controller.Appliances.List())
}

func (h *Handlers) CreateAppliance(w http.ResponseWriter, r *http.Request) {
	var req models.Appliance
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, &errs.BadRequest{Message: "invalid request body: " + err.Error()})
		return
	}
	if req.ApplianceType == models.ApplianceDynamips {
		if err := validateDynamipsPayload(req.Properties); err != nil {
			respondError(w, err)
			return
		}
	}
	a, err := h.Controller.Appliances.Add(req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *Handlers) GetAppliance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "applianceID")
	a, err := h.Controller.Appliances.Get(id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handlers) UpdateAppliance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "applianceID")
	var req models.Appliance
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, &errs.BadRequest{Message: "invalid request body: " + err.Error()})
		return
	}
	if req.ApplianceType == models.ApplianceDynamips {
		if err := validateDynamipsPayload(req.Properties); err != nil {
			respondError(w, err)
			return
		}
	}
	a, err := h.Controller.Appliances.Update(id, req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handlers) DeleteAppliance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "applianceID")
	if err := h.Controller.Appliances.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Appliance templates ──────────────────────────────────────

func (h *Handlers) ListApplianceTemplates(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Controller.Templates.List())
}

func (h *Handlers) RefreshApplianceTemplates(w http.ResponseWriter, r *http.Request) {
	dir, err := h.Controller.Paths.AppliancesPath()
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.Controller.Templates.Download(r.Context(), dir); err != nil {
		respondError(w, err)
		return
	}
	h.Controller.Templates.LoadFromDisk()
	respondJSON(w, http.StatusOK, h.Controller.Templates.List())
}

// ── Notifications ────────────────────────────────────────────

// StreamNotifications long-polls the controller-wide notification bus: it
// blocks until at least one event is queued (or the request context is
// cancelled) and returns whatever batch is ready, mirroring the long-poll
// fallback the compute client itself uses against remote computes.
func (h *Handlers) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	sub := h.Controller.Bus.Subscribe()
	defer sub.Close()

	select {
	case ev := <-sub.Events():
		events := []models.Event{ev}
		draining := true
		for draining {
			select {
			case ev := <-sub.Events():
				events = append(events, ev)
			default:
				draining = false
			}
		}
		respondJSON(w, http.StatusOK, events)
	case <-r.Context().Done():
		respondJSON(w, http.StatusOK, []models.Event{})
	}
}

// ── Compute passthrough ──────────────────────────────────────

func (h *Handlers) ComputePorts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "computeID")
	ports, err := h.Controller.ComputePorts(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(ports)
}

func (h *Handlers) AutoIdlePC(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "computeID")
	var req struct {
		Platform string `json:"platform"`
		Image    string `json:"image"`
		RAM      int    `json:"ram"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, &errs.BadRequest{Message: "invalid request body: " + err.Error()})
		return
	}
	idlepc, err := h.Controller.AutoIdlePC(r.Context(), id, req.Platform, req.Image, req.RAM)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"idlepc": idlepc})
}

func validateDynamipsPayload(props map[string]interface{}) error {
	p := appliance.DynamipsProperties{}
	if v, ok := props["platform"].(string); ok {
		p.Platform = v
	}
	if v, ok := props["chassis"].(string); ok {
		p.Chassis = v
	}
	if v, ok := props["image"].(string); ok {
		p.Image = v
	}
	if v, ok := props["idlepc"].(string); ok {
		p.IdlePC = v
	}
	if v, ok := props["vm_id"].(string); ok {
		p.VMID = v
	}
	if v, ok := props["mac_addr"].(string); ok {
		p.MacAddr = v
	}
	if v, ok := props["confreg"].(string); ok {
		p.Confreg = v
	}
	if v, ok := props["npe"].(string); ok {
		p.NPE = v
	}
	if v, ok := props["midplane"].(string); ok {
		p.Midplane = v
	}
	if v, ok := dynamipsIntProperty(props["console"]); ok {
		p.Console = &v
	}
	if v, ok := dynamipsIntProperty(props["aux"]); ok {
		p.Aux = &v
	}
	if v, ok := dynamipsIntProperty(props["iomem"]); ok {
		p.IOMem = &v
	}

	for _, key := range appliance.DynamipsSlotKeys {
		raw, present := props[key]
		if !present || raw == nil {
			continue
		}
		if _, ok := raw.(string); !ok {
			return &errs.BadRequest{Message: fmt.Sprintf("dynamips %s must be a string or null", key)}
		}
	}

	return appliance.ValidateDynamipsProperties(p)
}

// dynamipsIntProperty extracts an integer-valued appliance property.
// json.Decode produces float64 for JSON numbers, so that's the only
// numeric type seen here in practice.
func dynamipsIntProperty(raw interface{}) (int, bool) {
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
