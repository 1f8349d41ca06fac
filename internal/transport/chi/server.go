package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/zonemap/internal/domain"
	"github.com/kailas-cloud/zonemap/internal/domain/feature"
	"github.com/kailas-cloud/zonemap/internal/domain/geo"
	logpkg "github.com/kailas-cloud/zonemap/internal/logger"
	healthuc "github.com/kailas-cloud/zonemap/internal/usecase/health"
	"github.com/kailas-cloud/zonemap/internal/usecase/page"
)

const maxBodyBytes = 1 << 16

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// FeatureCatalog exposes the published feature collection.
type FeatureCatalog interface {
	Collection() *feature.Collection
	Get(id feature.ID) (feature.Feature, error)
}

// Server serves the map page API.
type Server struct {
	features      FeatureCatalog
	pages         *page.Manager
	health        *healthuc.Service
	view          ViewResponse
	waitTimeout   time.Duration
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	features FeatureCatalog,
	pages *page.Manager,
	health *healthuc.Service,
	view geo.LngLat, zoom float64,
	waitTimeout time.Duration,
	logger *zap.Logger,
) *Server {
	s := &Server{
		features:    features,
		pages:       pages,
		health:      health,
		view:        ViewResponse{Lng: view.Lng, Lat: view.Lat, Zoom: zoom},
		waitTimeout: waitTimeout,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrPageNotFound, http.StatusNotFound, ErrorCodePageNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeFeatureNotFound),
		sentinelHandler(domain.ErrInvalidCoordinates, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrTooManyPages, http.StatusTooManyRequests, ErrorCodeTooManyPages),
		sentinelHandler(domain.ErrCollectionNotLoaded, http.StatusServiceUnavailable, ErrorCodeCollectionNotReady),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/view", s.GetView)
		r.Get("/features", s.GetFeatures)
		r.Get("/features/{featureID}", s.GetFeature)

		r.Post("/pages", s.CreatePage)
		r.Route("/pages/{pageID}", func(r chi.Router) {
			r.Get("/", s.GetPage)
			r.Delete("/", s.DeletePage)
			r.Post("/pointer/move", s.PointerMove)
			r.Post("/pointer/leave", s.PointerLeave)
			r.Post("/click", s.Click)
			r.Get("/query", s.GetQuery)
		})
	})
}

// GetView handles GET /api/v1/view.
func (s *Server) GetView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.view)
}

// GetFeatures handles GET /api/v1/features.
// Before the collection loads the response is an empty FeatureCollection.
func (s *Server) GetFeatures(w http.ResponseWriter, _ *http.Request) {
	var fc *geojson.FeatureCollection
	if c := s.features.Collection(); c != nil {
		fc = c.GeoJSON()
	} else {
		fc = geojson.NewFeatureCollection()
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		s.handleDomainError(w, fmt.Errorf("marshal features: %w", err))
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// GetFeature handles GET /api/v1/features/{featureID}.
func (s *Server) GetFeature(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "featureID")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "feature id must be a non-negative integer")
		return
	}

	f, err := s.features.Get(feature.ID(n))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	gf := geojson.NewFeature(f.Geometry())
	gf.ID = int(f.ID())
	gf.Properties = f.Properties()
	if gf.Properties == nil {
		gf.Properties = geojson.Properties{}
	}
	data, err := gf.MarshalJSON()
	if err != nil {
		s.handleDomainError(w, fmt.Errorf("marshal feature %d: %w", n, err))
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// CreatePage handles POST /api/v1/pages.
func (s *Server) CreatePage(w http.ResponseWriter, _ *http.Request) {
	id, _, err := s.pages.Create()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreatePageResponse{ID: id})
}

// GetPage handles GET /api/v1/pages/{pageID}.
func (s *Server) GetPage(w http.ResponseWriter, r *http.Request) {
	c, ok := s.page(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshotToDTO(c.Snapshot()))
}

// DeletePage handles DELETE /api/v1/pages/{pageID}.
func (s *Server) DeletePage(w http.ResponseWriter, r *http.Request) {
	if err := s.pages.Delete(chi.URLParam(r, "pageID")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PointerMove handles POST /api/v1/pages/{pageID}/pointer/move.
func (s *Server) PointerMove(w http.ResponseWriter, r *http.Request) {
	c, ok := s.page(w, r)
	if !ok {
		return
	}

	var req PointerMoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if (req.Lng == nil) != (req.Lat == nil) {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "lng and lat must be given together")
		return
	}

	if err := c.PointerMove(req.toPointer()); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotToDTO(c.Snapshot()))
}

// PointerLeave handles POST /api/v1/pages/{pageID}/pointer/leave.
func (s *Server) PointerLeave(w http.ResponseWriter, r *http.Request) {
	c, ok := s.page(w, r)
	if !ok {
		return
	}
	c.PointerLeave()
	writeJSON(w, http.StatusOK, snapshotToDTO(c.Snapshot()))
}

// Click handles POST /api/v1/pages/{pageID}/click.
func (s *Server) Click(w http.ResponseWriter, r *http.Request) {
	c, ok := s.page(w, r)
	if !ok {
		return
	}

	var req ClickRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Lng == nil || req.Lat == nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "lng and lat are required")
		return
	}

	accepted, err := c.Click(geo.LngLat{Lng: *req.Lng, Lat: *req.Lat})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	_, l := logpkg.With(r.Context(), zap.String("page_id", chi.URLParam(r, "pageID")))
	l.Debug("Click handled", zap.Bool("accepted", accepted))

	status := http.StatusOK
	if accepted {
		status = http.StatusAccepted
	}
	writeJSON(w, status, ClickResponse{SnapshotResponse: snapshotToDTO(c.Snapshot()), Accepted: accepted})
}

// GetQuery handles GET /api/v1/pages/{pageID}/query.
// With wait=1 it blocks until the query settles, the wait timeout passes or the client goes away.
func (s *Server) GetQuery(w http.ResponseWriter, r *http.Request) {
	c, ok := s.page(w, r)
	if !ok {
		return
	}

	snap := c.Snapshot()
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		ctx, l := logpkg.With(r.Context(), zap.String("page_id", chi.URLParam(r, "pageID")))
		ctx, cancel := context.WithTimeout(ctx, s.waitTimeout)
		defer cancel()
		l.Debug("Waiting for query", zap.String("status", string(snap.Query.Status)))
		// A timed-out wait still reports the current state.
		snap, _ = c.WaitQuery(ctx)
	}
	writeJSON(w, http.StatusOK, snapshotToDTO(snap).Query)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) (*page.Controller, bool) {
	c, err := s.pages.Get(chi.URLParam(r, "pageID"))
	if err != nil {
		s.handleDomainError(w, err)
		return nil, false
	}
	return c, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrPageNotFound,
		domain.ErrNotFound,
		domain.ErrTooManyPages,
		domain.ErrCollectionNotLoaded,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	if errors.Is(err, domain.ErrInvalidCoordinates) {
		// validation detail is safe to show
		return err.Error()
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
