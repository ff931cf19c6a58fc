package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tmarchal/climatekit/internal/era5"
	"github.com/tmarchal/climatekit/internal/gdd"
	"github.com/tmarchal/climatekit/internal/lifecycle"
	"github.com/tmarchal/climatekit/internal/openmeteo"
	"github.com/tmarchal/climatekit/internal/parquet"
	"github.com/tmarchal/climatekit/internal/validation"
)

// HealthConfig holds dependencies probed by the health handler.
type HealthConfig struct {
	StartTime time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	gddService      *gdd.Service
	archive         openmeteo.ArchiveClient
	store           *era5.Store
	storeVariable   string
	grid            era5.Grid
	generator       *parquet.Generator
	defaultBaseTemp float64
	healthConfig    *HealthConfig
	logger          *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(
	gddService *gdd.Service,
	archive openmeteo.ArchiveClient,
	store *era5.Store,
	storeVariable string,
	generator *parquet.Generator,
	defaultBaseTemp float64,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		gddService:      gddService,
		archive:         archive,
		store:           store,
		storeVariable:   storeVariable,
		grid:            era5.DefaultGrid(),
		generator:       generator,
		defaultBaseTemp: defaultBaseTemp,
		healthConfig:    healthConfig,
		logger:          logger,
	}
}

// GetGDD handles GET /gdd?lat=&lon=&date=&base=.
func (h *Handler) GetGDD(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "lon must be a number")
		return
	}
	target, err := validation.ValidateTargetDate(q.Get("date"), time.Now().UTC())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DATE", err.Error())
		return
	}

	tBase := h.defaultBaseTemp
	if s := q.Get("base"); s != "" {
		tBase, err = strconv.ParseFloat(s, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_BASE_TEMP", "base must be a number")
			return
		}
	}

	result, err := h.gddService.Cumulative(r.Context(), lat, lon, target, tBase)
	if err != nil {
		writeGDDError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetParquetURLs handles GET /parquet-urls?start=&end=.
func (h *Handler) GetParquetURLs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := strconv.Atoi(q.Get("start"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_YEAR", "start must be a year")
		return
	}
	end, err := strconv.Atoi(q.Get("end"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_YEAR", "end must be a year")
		return
	}

	cat, err := h.generator.Catalog(start, end)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_YEAR_RANGE", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

// GetERA5Summary handles GET /era5/summary with coordinate-range parameters.
func (h *Handler) GetERA5Summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sel := era5.Selection{}
	var err error
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"min_lat", &sel.LatMin},
		{"max_lat", &sel.LatMax},
		{"min_lon", &sel.LonMin},
		{"max_lon", &sel.LonMax},
	} {
		*p.dst, err = strconv.ParseFloat(q.Get(p.name), 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", p.name+" must be a number")
			return
		}
	}
	sel.Start, err = validation.ParseDate(q.Get("start"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DATE", "start must be YYYY-MM-DD")
		return
	}
	sel.End, err = validation.ParseDate(q.Get("end"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DATE", "end must be YYYY-MM-DD")
		return
	}

	variable := q.Get("variable")
	if variable == "" {
		variable = h.storeVariable
	}

	arr, err := h.store.Variable(r.Context(), variable)
	if err != nil {
		switch {
		case errors.Is(err, era5.ErrVariableNotFound):
			writeError(w, r, http.StatusNotFound, "VARIABLE_NOT_FOUND", "no such variable: "+variable)
		case errors.Is(err, era5.ErrMalformedMetadata), errors.Is(err, era5.ErrUnsupportedFormat):
			writeError(w, r, http.StatusBadGateway, "MALFORMED_STORE", "store metadata could not be read")
		default:
			writeServiceError(w, r, err)
		}
		return
	}

	summary, err := arr.Select(sel, h.grid)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_SELECTION", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	checks := make(map[string]string)
	if result.reason == "archive_unreachable" {
		checks["archiveApi"] = "unhealthy"
	} else {
		checks["archiveApi"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "climatekit",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates health conditions in priority order:
// shutting-down > archive unreachable > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.archive != nil {
		if err := h.archive.Ping(ctx); err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "archive_unreachable"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
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

// writeGDDError maps GDD service errors onto HTTP status codes.
func writeGDDError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, validation.ErrInvalidLatitude), errors.Is(err, validation.ErrInvalidLongitude):
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
	case errors.Is(err, validation.ErrInvalidBaseTemp):
		writeError(w, r, http.StatusBadRequest, "INVALID_BASE_TEMP", err.Error())
	case errors.Is(err, gdd.ErrInvalidRange), errors.Is(err, openmeteo.ErrBadRequest):
		writeError(w, r, http.StatusBadRequest, "INVALID_RANGE", err.Error())
	case errors.Is(err, openmeteo.ErrDataUnavailable):
		writeError(w, r, http.StatusNotFound, "DATA_UNAVAILABLE", "archive has no records for part of the range")
	case errors.Is(err, openmeteo.ErrMalformedResponse):
		writeError(w, r, http.StatusBadGateway, "MALFORMED_RESPONSE", "archive returned an unexpected payload")
	default:
		writeServiceError(w, r, err)
	}
}

// writeServiceError writes a 503 for upstream failures and logs the cause at
// DEBUG if a request logger is present.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch climate data")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}
