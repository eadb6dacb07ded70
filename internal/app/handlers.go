package app

import (
	"encoding/json"
	"net/http"
)

// HealthStatus is the JSON document served by /v1/healthcheck. The
// daemon is considered ready once at least one region is configured to
// sweep.
type HealthStatus struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Regions     int    `json:"regions"`
	Ready       bool   `json:"ready"`
}

// healthcheckHandler reports availability, environment, version and the
// number of configured regions. Responds 500 while no regions are
// configured so orchestrators hold traffic until config arrives.
func (app *Application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	numRegions := len(app.ConfigService.Config.GetRegions())

	ready := numRegions > 0

	status := HealthStatus{
		Status:      "available",
		Environment: app.ConfigService.Config.Env,
		Version:     app.Version,
		Regions:     numRegions,
		Ready:       ready,
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(status)
}
