// Package web serves the thermostat HTTP API, the status page and metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/handlers"

	"github.com/sweeney/thermostat/internal/metrics"
	"github.com/sweeney/thermostat/internal/status"
	"github.com/sweeney/thermostat/internal/thermostat"
)

// Controller is the set of thermostat operations exposed over HTTP.
type Controller interface {
	Temperature(ctx context.Context) float64
	State() thermostat.State
	TargetTemperature() float64
	SetTargetTemperature(v float64) error
	Hysteresis() float64
	SetHysteresis(v float64) error
	Start(p thermostat.PartialConfig) error
	Stop() error
	Reset() error
	LastError() string
}

// ScriptFile is the MQTT client library the status page loads for live
// updates. It is served from the assets directory, never from a CDN.
const ScriptFile = "mqtt.min.js"

// Server serves the API and status page over HTTP.
type Server struct {
	httpServer *http.Server
	ctrl       Controller
	tracker    *status.Tracker
	assets     string
}

// Option configures a Server.
type Option func(*Server)

// WithAssets serves static files such as ScriptFile from dir.
func WithAssets(dir string) Option {
	return func(s *Server) { s.assets = dir }
}

// New creates a Server. m may be nil, in which case /metrics is 404.
func New(addr string, ctrl Controller, tracker *status.Tracker, m *metrics.Metrics, opts ...Option) *Server {
	s := &Server{ctrl: ctrl, tracker: tracker}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	mux.HandleFunc("GET /"+ScriptFile, s.handleScript)
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/temperature", s.handleTemperature)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/target-temperature", s.handleGetTarget)
	mux.HandleFunc("POST /api/target-temperature", s.handleSetTarget)
	mux.HandleFunc("GET /api/hysteresis", s.handleGetHysteresis)
	mux.HandleFunc("POST /api/hysteresis", s.handleSetHysteresis)
	mux.HandleFunc("POST /api/thermostat/start", s.handleStart)
	mux.HandleFunc("POST /api/thermostat/stop", s.handleStop)
	mux.HandleFunc("POST /api/thermostat/reset", s.handleReset)
	mux.HandleFunc("GET /api/thermostat/error", s.handleLastError)

	var h http.Handler = handlers.LoggingHandler(log.Writer(), mux)
	h = handlers.RecoveryHandler(handlers.RecoveryLogger(log.Default()))(h)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, s.tracker.Snapshot()); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	if s.assets == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	http.ServeFile(w, r, filepath.Join(s.assets, ScriptFile))
}

func (s *Server) handleJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

// ---- API ----

type stateDTO struct {
	State              string  `json:"state"`
	CurrentTemperature float64 `json:"current_temperature"`
	TargetTemperature  float64 `json:"target_temperature"`
	Hysteresis         float64 `json:"hysteresis"`
	IsHeating          bool    `json:"is_heating"`
	IsRunning          bool    `json:"is_running"`
	LastUpdated        string  `json:"last_updated"`
	LastError          string  `json:"last_error,omitempty"`
	ConsecutiveErrors  int     `json:"consecutive_errors"`
}

func (s *Server) stateDTO() stateDTO {
	st := s.ctrl.State()
	return stateDTO{
		State:              string(st.Status),
		CurrentTemperature: st.CurrentTemperature,
		TargetTemperature:  s.ctrl.TargetTemperature(),
		Hysteresis:         s.ctrl.Hysteresis(),
		IsHeating:          st.IsHeating,
		IsRunning:          st.IsRunning,
		LastUpdated:        st.LastUpdated.UTC().Format(time.RFC3339),
		LastError:          st.LastError,
		ConsecutiveErrors:  st.ConsecutiveErrors,
	}
}

func (s *Server) handleTemperature(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"temperature": s.ctrl.Temperature(r.Context())})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]stateDTO{"status": s.stateDTO()})
}

func (s *Server) handleGetTarget(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"target_temperature": s.ctrl.TargetTemperature()})
}

func (s *Server) handleSetTarget(w http.ResponseWriter, r *http.Request) {
	postValue(w, r, "temperature", func(v float64) (any, error) {
		if err := s.ctrl.SetTargetTemperature(v); err != nil {
			return nil, err
		}
		return map[string]float64{"target_temperature": s.ctrl.TargetTemperature()}, nil
	})
}

func (s *Server) handleGetHysteresis(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"hysteresis": s.ctrl.Hysteresis()})
}

func (s *Server) handleSetHysteresis(w http.ResponseWriter, r *http.Request) {
	postValue(w, r, "hysteresis", func(v float64) (any, error) {
		if err := s.ctrl.SetHysteresis(v); err != nil {
			return nil, err
		}
		return map[string]float64{"hysteresis": s.ctrl.Hysteresis()}, nil
	})
}

// startRequest is the optional body of POST /api/thermostat/start. Durations
// are Go duration strings such as "2s".
type startRequest struct {
	TargetTemperature    *float64  `json:"target_temperature"`
	TargetTemperatureAlt *float64  `json:"targetTemperature"`
	Hysteresis           *float64  `json:"hysteresis"`
	PollInterval         *duration `json:"poll_interval"`
	MaxConsecutiveErrors *int      `json:"max_consecutive_errors"`
	MinActuationInterval *duration `json:"min_actuation_interval"`
	ReadTimeout          *duration `json:"read_timeout"`
}

func (req startRequest) partial() thermostat.PartialConfig {
	p := thermostat.PartialConfig{
		TargetTemperature:    req.TargetTemperature,
		Hysteresis:           req.Hysteresis,
		MaxConsecutiveErrors: req.MaxConsecutiveErrors,
		PollInterval:         req.PollInterval.ptr(),
		MinActuationInterval: req.MinActuationInterval.ptr(),
		ReadTimeout:          req.ReadTimeout.ptr(),
	}
	if p.TargetTemperature == nil {
		p.TargetTemperature = req.TargetTemperatureAlt
	}
	return p
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := s.ctrl.Start(req.partial()); err != nil {
		writeErr(w, statusCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "started", "state": s.stateDTO()})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.Stop(); err != nil {
		writeErr(w, statusCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "stopped", "state": s.stateDTO()})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.Reset(); err != nil {
		writeErr(w, statusCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "reset", "state": s.stateDTO()})
}

func (s *Server) handleLastError(w http.ResponseWriter, _ *http.Request) {
	var lastErr *string
	if msg := s.ctrl.LastError(); msg != "" {
		lastErr = &msg
	}
	writeJSON(w, http.StatusOK, map[string]*string{"last_error": lastErr})
}

// ---- helpers ----

// postValue decodes the number in field from a JSON object body and passes
// it to apply, whose result is written as the response.
func postValue[T any](w http.ResponseWriter, r *http.Request, field string, apply func(T) (any, error)) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	raw, ok := body[field]
	if !ok || string(raw) == "null" {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("missing field '%s'", field))
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("field '%s': %v", field, err))
		return
	}

	resp, err := apply(v)
	if err != nil {
		writeErr(w, statusCode(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusCode maps controller errors: bad input is the caller's fault, a
// closed controller means the daemon is shutting down, anything else is ours.
func statusCode(err error) int {
	switch {
	case errors.Is(err, thermostat.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, thermostat.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type duration time.Duration

func (d *duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"2s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

func (d *duration) ptr() *time.Duration {
	if d == nil {
		return nil
	}
	v := time.Duration(*d)
	return &v
}
