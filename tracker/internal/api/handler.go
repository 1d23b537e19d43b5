package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hiketracker/hiketracker/pkg/types"
	"github.com/hiketracker/hiketracker/tracker/internal/alerts"
	"github.com/hiketracker/hiketracker/tracker/internal/journal"
	"github.com/hiketracker/hiketracker/tracker/internal/location"
	"github.com/hiketracker/hiketracker/tracker/internal/pipeline"
)

const maxRequestBytes = 64 << 10

// Engine is the engine surface the API reads.
type Engine interface {
	Status() pipeline.EngineStatus
	Snapshot() []types.PhotoResult
}

// SampleSink accepts location samples posted over HTTP.
type SampleSink interface {
	Push(s types.LocationSample) error
}

// AlertSource lists current alerts.
type AlertSource interface {
	Active() []alerts.Alert
}

// History reads the photo journal.
type History interface {
	Runs(ctx context.Context) ([]journal.Run, error)
	Photos(ctx context.Context, runID string, limit int) ([]journal.Entry, error)
}

// Deps are the components served by the API. Engine is required; the rest
// may be nil, in which case the matching endpoint reports it as disabled.
type Deps struct {
	Engine  Engine
	Ingest  SampleSink
	Alerts  AlertSource
	History History
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	deps Deps
	mux  *http.ServeMux
}

// New creates a Handler wired to deps and registers all routes.
func New(deps Deps) http.Handler {
	h := &Handler{deps: deps, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/photos", h.photos)
	h.mux.HandleFunc("/api/v1/locations", h.locations)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/history", h.history)
	h.mux.HandleFunc("/api/v1/runs", h.runs)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st := h.deps.Engine.Status()
	resp := HealthResponse{Status: "ok", Running: st.Running}
	if !st.Running {
		resp.Status = "stopped"
	}
	jsonResp(w, http.StatusOK, resp)
}

// status returns GET /api/v1/status: engine, fetch and alert state.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp := StatusResponse{
		EngineStatus: h.deps.Engine.Status(),
		Alerts:       []alerts.Alert{},
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if h.deps.Alerts != nil {
		resp.Alerts = h.deps.Alerts.Active()
	}
	jsonResp(w, http.StatusOK, resp)
}

// photos returns GET /api/v1/photos[?limit=N]: stored results, newest first.
func (h *Handler) photos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	snap := h.deps.Engine.Snapshot()
	if limit > 0 && len(snap) > limit {
		snap = snap[:limit]
	}
	jsonResp(w, http.StatusOK, PhotosResponse{Count: len(snap), Photos: snap})
}

// locations accepts POST /api/v1/locations with one LocationRequest body.
func (h *Handler) locations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.deps.Ingest == nil {
		jsonErr(w, http.StatusNotImplemented, "http location ingest is disabled")
		return
	}

	var req LocationRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.Longitude == nil || req.Latitude == nil {
		jsonErr(w, http.StatusBadRequest, "lon and lat are required")
		return
	}
	s := types.LocationSample{Longitude: *req.Longitude, Latitude: *req.Latitude, Timestamp: req.Timestamp}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	if err := h.deps.Ingest.Push(s); err != nil {
		if errors.Is(err, location.ErrInvalidSample) {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		jsonErr(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	jsonResp(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// alerts returns GET /api/v1/alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	out := []alerts.Alert{}
	if h.deps.Alerts != nil {
		out = h.deps.Alerts.Active()
	}
	jsonResp(w, http.StatusOK, out)
}

// history returns GET /api/v1/history[?run=ID][&limit=N] from the journal.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.deps.History == nil {
		jsonErr(w, http.StatusNotFound, "journal is disabled")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := h.deps.History.Photos(r.Context(), r.URL.Query().Get("run"), limit)
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	jsonResp(w, http.StatusOK, entries)
}

// runs returns GET /api/v1/runs from the journal.
func (h *Handler) runs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.deps.History == nil {
		jsonErr(w, http.StatusNotFound, "journal is disabled")
		return
	}
	runs, err := h.deps.History.Runs(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []journal.Run{}
	}
	jsonResp(w, http.StatusOK, runs)
}

// --- helpers ----------------------------------------------------------------

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
