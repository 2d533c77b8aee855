package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleHealthz reports liveness. A dispatcher that does not answer the
// snapshot in time is reported as degraded.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}
	records, err := s.surfaces.Snapshot(r.Context())
	if err != nil {
		s.logger.Warn("healthz snapshot failed", "error", err)
		resp.Status = "degraded"
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.LiveSurfaces = len(records)
	respondJSON(w, http.StatusOK, resp)
}

// handleSurfaces handles GET /surfaces.
func (s *Server) handleSurfaces(w http.ResponseWriter, r *http.Request) {
	records, err := s.surfaces.Snapshot(r.Context())
	if err != nil {
		s.logger.Warn("surface snapshot failed", "error", err)
		s.writeError(w, http.StatusServiceUnavailable, "dispatcher did not answer")
		return
	}
	respondJSON(w, http.StatusOK, SurfacesResponse{Count: len(records), Surfaces: records})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.config.APIKey != ""))
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
