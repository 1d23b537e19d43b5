package api

import (
	"time"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/alerts"
	"github.com/hiketracker/hiketracker/tracker/internal/pipeline"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"` // "ok" | "stopped"
	Running bool   `json:"running"`
}

// StatusResponse is the payload for GET /api/v1/status.
type StatusResponse struct {
	pipeline.EngineStatus
	Alerts      []alerts.Alert `json:"alerts"`
	GeneratedAt string         `json:"generated_at"` // RFC3339
}

// PhotosResponse is the payload for GET /api/v1/photos. Photos are newest first.
type PhotosResponse struct {
	Count  int                 `json:"count"`
	Photos []types.PhotoResult `json:"photos"`
}

// LocationRequest is the body of POST /api/v1/locations.
type LocationRequest struct {
	Longitude *float64  `json:"lon"`
	Latitude  *float64  `json:"lat"`
	Timestamp time.Time `json:"timestamp"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
