package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/goldstone-mgmt/southd/internal/reconciler"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime   float64                   `json:"uptime_seconds"`
	Entities []reconciler.EntityStatus `json:"entities"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime:   time.Since(s.startedAt).Truncate(time.Second).Seconds(),
			Entities: []reconciler.EntityStatus{},
		}

		if s.manager != nil {
			resp.Entities = s.manager.Status()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
