// Package api exposes the audio manager over loopback HTTP. Handlers are
// thin translations between JSON and coordinator calls; the coordinator is
// injected, never reached through package state.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicedesk/voicedesk/internal/observe"
	"github.com/voicedesk/voicedesk/internal/service"
)

// defaultWaitTimeout applies when /wait is called without a timeout query
// parameter.
const defaultWaitTimeout = 120 * time.Second

// Server routes HTTP requests to a [service.Service].
type Server struct {
	svc     *service.Service
	version string
	start   time.Time
}

// NewServer creates a [Server] over the given coordinator.
func NewServer(svc *service.Service, version string) *Server {
	return &Server{
		svc:     svc,
		version: version,
		start:   time.Now(),
	}
}

// Handler returns the full HTTP handler: all routes plus the observability
// middleware and the Prometheus scrape endpoint.
func (s *Server) Handler(metrics *observe.Metrics) http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return observe.Middleware(metrics)(mux)
}

// Register adds all audio manager routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /reserve", s.handleReserve)
	mux.HandleFunc("POST /fill/{item_id}", s.handleFill)
	mux.HandleFunc("POST /wait/{item_id}", s.handleWait)
	mux.HandleFunc("POST /speak", s.handleSpeak)
	mux.HandleFunc("POST /pause", s.handlePause)
	mux.HandleFunc("POST /resume", s.handleResume)
	mux.HandleFunc("POST /clear", s.handleClear)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("POST /chime-allowed", s.handleChimeAllowed)
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}

// writeError sends a {error} body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
