// Package httpapi serves snapshots, settings changes, health and metrics over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pairwatch/internal/engine"
	"pairwatch/internal/metrics"
	"pairwatch/internal/tickstore"
	"pairwatch/pkg/storage/postgres"

	"go.uber.org/zap"
)

// Session is the part of engine.Session the API reads and mutates.
type Session interface {
	Snapshot() engine.Snapshot
	Settings() engine.Settings
	UpdateSettings(u engine.SettingsUpdate) (engine.Settings, error)
}

// AlertLister reads persisted alerts, newest first.
type AlertLister interface {
	ListAlerts(ctx context.Context, x, y string, limit int) ([]postgres.AlertRecord, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

const (
	defaultAlertLimit  = 50
	maxAlertLimit      = 500
	healthCheckTimeout = 2 * time.Second
)

// Server represents an HTTP server with all routes configured
type Server struct {
	session     Session
	broadcaster *Broadcaster
	mux         *http.ServeMux
	server      *http.Server
	logger      *zap.Logger

	checks map[string]HealthCheck
	alerts AlertLister
}

func NewServer(addr string, session Session, broadcaster *Broadcaster, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		session:     session,
		broadcaster: broadcaster,
		mux:         mux,
		logger:      logger,
		checks:      make(map[string]HealthCheck),
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /settings", s.handleGetSettings)
	s.mux.HandleFunc("PUT /settings", s.handlePutSettings)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())
	if s.broadcaster != nil {
		s.mux.HandleFunc("GET /ws", s.broadcaster.Handler())
	}
}

// AddHealthCheck registers a dependency reported by /healthz. Call it before
// Start. Any failing check turns /healthz into a 503.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// ServeAlerts registers GET /alerts backed by store. Call it before Start.
func (s *Server) ServeAlerts(store AlertLister) {
	s.alerts = store
	s.mux.HandleFunc("GET /alerts", s.handleAlerts)
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewSnapshotView(s.session.Snapshot()))
}

type settingsView struct {
	Pair         engine.Pair `json:"pair"`
	Timeframe    string      `json:"timeframe"`
	Window       int         `json:"window"`
	Threshold    float64     `json:"threshold"`
	Stationarity bool        `json:"stationarity"`
}

func newSettingsView(set engine.Settings) settingsView {
	return settingsView{
		Pair:         set.Pair,
		Timeframe:    set.Timeframe.String(),
		Window:       set.Window,
		Threshold:    set.Threshold,
		Stationarity: set.Stationarity,
	}
}

// settingsRequest holds optional changes; omitted fields keep their value.
type settingsRequest struct {
	Pair      *engine.Pair `json:"pair"`
	Timeframe *string      `json:"timeframe"`
	Window    *int         `json:"window"`
	Threshold *float64     `json:"threshold"`
}

func (r settingsRequest) update() engine.SettingsUpdate {
	u := engine.SettingsUpdate{
		Pair:      r.Pair,
		Window:    r.Window,
		Threshold: r.Threshold,
	}
	if r.Timeframe != nil {
		tf := tickstore.Timeframe(*r.Timeframe)
		u.Timeframe = &tf
	}
	return u
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, newSettingsView(s.session.Settings()))
}

// handlePutSettings applies all requested changes or none of them.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	set, err := s.session.UpdateSettings(req.update())
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	s.logger.Info("settings updated",
		zap.String("pair", set.Pair.String()),
		zap.String("timeframe", set.Timeframe.String()),
		zap.Int("window", set.Window),
		zap.Float64("threshold", set.Threshold))
	s.writeJSON(w, http.StatusOK, newSettingsView(set))
}

// handleAlerts lists persisted alerts for ?x=&y= (default: the current pair).
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	pair := s.session.Settings().Pair
	q := r.URL.Query()
	if x := q.Get("x"); x != "" {
		pair.X = x
	}
	if y := q.Get("y"); y != "" {
		pair.Y = y
	}

	limit := defaultAlertLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAlertLimit {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be in [1, %d], got %q", maxAlertLimit, raw))
			return
		}
		limit = n
	}

	records, err := s.alerts.ListAlerts(r.Context(), pair.X, pair.Y, limit)
	if err != nil {
		s.logger.Warn("failed to list alerts", zap.String("pair", pair.String()), zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, errors.New("alert store unavailable"))
		return
	}

	views := make([]AlertView, 0, len(records))
	for _, rec := range records {
		views = append(views, NewAlertView(rec))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	body := map[string]any{
		"status":     "ok",
		"cycle_id":   snap.CycleID,
		"analytics":  snap.Status,
		"tick_count": snap.TickCount,
	}
	if s.broadcaster != nil {
		body["ws_clients"] = s.broadcaster.Clients()
	}

	code := http.StatusOK
	if len(s.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		results := make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			if check(ctx) {
				results[name] = "ok"
				continue
			}
			results[name] = "down"
			body["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
		body["checks"] = results
	}
	s.writeJSON(w, code, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.broadcaster != nil {
		s.broadcaster.Close()
	}
	return s.server.Shutdown(ctx)
}
