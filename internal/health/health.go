// Package health answers liveness and readiness for the monitoring
// process itself, independent of any single replica set's state.
package health

import (
	"encoding/json"
	"net/http"

	"github.com/devrev/rsmon/internal/registry"
)

// Checker backs the liveness/readiness HTTP handlers.
type Checker struct {
	reg *registry.MonitorRegistry
}

// NewChecker builds a Checker reporting readiness from reg's monitors.
func NewChecker(reg *registry.MonitorRegistry) *Checker {
	return &Checker{reg: reg}
}

type livenessResponse struct {
	Status string `json:"status"`
}

type readinessResponse struct {
	Status       string   `json:"status"`
	ReplicaSets  []string `json:"replica_sets"`
	AnyPrimary   bool     `json:"any_primary_known"`
}

// LivenessHandler always reports healthy once the process is serving
// HTTP at all — it never depends on replica-set reachability.
func (c *Checker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, livenessResponse{Status: "healthy"})
}

// ReadinessHandler reports ready once at least one registered
// replica-set monitor has a known primary. Before any replica set has
// been registered, it reports ready anyway — readiness here answers
// "can this process do useful work", not "has the first client
// connected yet".
func (c *Checker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	names := c.reg.Names()
	anyPrimary := false
	for _, mon := range c.reg.Snapshot() {
		if mon.HasKnownPrimary() {
			anyPrimary = true
			break
		}
	}

	status := "ready"
	code := http.StatusOK
	if len(names) > 0 && !anyPrimary {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, readinessResponse{Status: status, ReplicaSets: names, AnyPrimary: anyPrimary})
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
