package api

import "github.com/mattjoyce/vitrine/internal/surface"

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	LiveSurfaces  int    `json:"live_surfaces"`
}

// SurfacesResponse is returned by GET /surfaces.
type SurfacesResponse struct {
	Count    int              `json:"count"`
	Surfaces []surface.Record `json:"surfaces"`
}
