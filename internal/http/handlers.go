package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/mverbeek/windmask-monitor/internal/client"
	"github.com/mverbeek/windmask-monitor/internal/service"
	"github.com/mverbeek/windmask-monitor/internal/validation"
	"github.com/mverbeek/windmask-monitor/internal/views"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	windService *service.WindStatusService
	client      client.DirectionClient
	logger      *zap.Logger

	defaultLookbackHours  int
	defaultRefreshSeconds int

	// cachePing, when set, is called by the health handler to check cache
	// reachability. Used when the backend is memcached.
	cachePing func() error
}

// NewHandler returns a new Handler.
func NewHandler(
	windService *service.WindStatusService,
	directionClient client.DirectionClient,
	logger *zap.Logger,
	defaultLookbackHours int,
	defaultRefreshSeconds int,
	cachePing func() error,
) *Handler {
	return &Handler{
		windService:           windService,
		client:                directionClient,
		logger:                logger,
		defaultLookbackHours:  defaultLookbackHours,
		defaultRefreshSeconds: defaultRefreshSeconds,
		cachePing:             cachePing,
	}
}

// Dashboard handles GET /. Renders the mask advisory banner for the selected
// station and the control panel. Auto-refresh is a server-emitted meta
// refresh tag; an unchecked checkbox is absent from the submitted query, so
// only a bare request (no query at all) falls back to auto-refresh on.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stationID := h.windService.DefaultStation().ID
	if raw := q.Get("station"); raw != "" {
		s, err := validation.ValidateStationID(raw)
		if err != nil {
			http.Error(w, "invalid station id", http.StatusBadRequest)
			return
		}
		stationID = s
	}

	lookback, err := validation.ParseLookbackHours(q.Get("lookback"), h.defaultLookbackHours)
	if err != nil {
		http.Error(w, "lookback must be between 1 and 24 hours", http.StatusBadRequest)
		return
	}
	refresh, err := validation.ParseRefreshSeconds(q.Get("refresh"), h.defaultRefreshSeconds)
	if err != nil {
		http.Error(w, "refresh must be between 10 and 600 seconds", http.StatusBadRequest)
		return
	}
	autoRefresh := true
	if r.URL.RawQuery != "" {
		autoRefresh = q.Get("auto") == "on"
	}

	status, fetchErr := h.windService.StationStatus(r.Context(), stationID, lookback)
	if fetchErr != nil {
		if errors.Is(fetchErr, service.ErrUnknownStation) {
			http.Error(w, "unknown station: "+stationID, http.StatusNotFound)
			return
		}
		// Render the station header and error banner with wall-clock fetch
		// time; the observation fields stay in their "unknown" state.
		status.StationID = stationID
		status.Observation.RetrievedAt = time.Now().UTC()
		for _, st := range h.windService.Stations() {
			if st.ID == stationID {
				status.StationName = st.Name
				status.MinDegrees = st.Threshold.MinDegrees
				status.MaxDegrees = st.Threshold.MaxDegrees
			}
		}
	}

	data := views.BuildDashboardData(status)
	data.LookbackHours = lookback
	data.RefreshSeconds = refresh
	data.AutoRefresh = autoRefresh
	for _, st := range h.windService.Stations() {
		data.Stations = append(data.Stations, views.StationOption{
			ID:       st.ID,
			Name:     st.Name,
			Selected: st.ID == stationID,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if fetchErr != nil {
		// The render cycle fails visibly; the next auto-refresh is an
		// independent attempt.
		data.FetchError = string(client.CategorizeError(fetchErr))
		if logger := loggerFrom(r); logger != nil {
			logger.Warn("dashboard fetch failed", zap.String("station", stationID), zap.Error(fetchErr))
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := views.RenderDashboard(w, &data); err != nil {
		h.logger.Error("render dashboard", zap.Error(err))
	}
}

// GetStatus handles GET /api/status/{station}.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	stationID, err := validation.ValidateStationID(mux.Vars(r)["station"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_STATION", err.Error())
		return
	}
	lookback, err := validation.ParseLookbackHours(r.URL.Query().Get("lookback"), h.defaultLookbackHours)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOOKBACK", "lookback must be between 1 and 24 hours")
		return
	}

	status, err := h.windService.StationStatus(r.Context(), stationID, lookback)
	if err != nil {
		if errors.Is(err, service.ErrUnknownStation) {
			writeError(w, r, http.StatusNotFound, "UNKNOWN_STATION", "no profile configured for station "+stationID)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	statusCode := http.StatusOK
	checks := make(map[string]string)

	if err := h.client.ValidateToken(r.Context()); err != nil {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
		checks["edrApi"] = "unhealthy"
	} else {
		checks["edrApi"] = "healthy"
	}

	if h.cachePing != nil {
		if h.cachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}

	resp := map[string]interface{}{
		"status":    status,
		"service":   "windmask-monitor",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, statusCode, resp)
}

// loggerFrom extracts the request-scoped logger installed by the
// correlation-ID middleware.
func loggerFrom(r *http.Request) *zap.Logger {
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok {
		return logger
	}
	return nil
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with
// code, message, and requestId (correlation ID) if available in context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError writes a 503 error response for upstream failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch wind data")
	if logger := loggerFrom(r); logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}
