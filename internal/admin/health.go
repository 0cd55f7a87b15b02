package admin

import (
	"encoding/json"
	"net/http"

	"github.com/goldstone-mgmt/southd/internal/reconciler"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status   string `json:"status"` // "ok" or "degraded"
	Entities int    `json:"entities"`
	Degraded int    `json:"degraded"`
	Faulted  int    `json:"faulted"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when every entity is steady or provisioning, 503 when any
// entity is degraded or faulted.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if s.manager != nil {
			for _, st := range s.manager.Status() {
				resp.Entities++
				if st.State == reconciler.StateDegraded {
					resp.Degraded++
				}
				if st.Fault {
					resp.Faulted++
				}
			}
			if resp.Degraded > 0 || resp.Faulted > 0 {
				resp.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
