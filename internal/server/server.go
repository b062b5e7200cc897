// Package server exposes the device-registration and health API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudspend/sentinel/pkg/health"
	"github.com/cloudspend/sentinel/pkg/model"
	"github.com/cloudspend/sentinel/pkg/registry"
	"github.com/cloudspend/sentinel/pkg/retry"
	"github.com/cloudspend/sentinel/pkg/storage"
)

// Server provides the device-registration and health API endpoints.
type Server struct {
	registry *registry.Registry
	store    storage.TokenStore
	monitor  *health.Monitor
	mux      *http.ServeMux
	logger   *slog.Logger
}

// NewServer creates an API server. monitor may be nil; the health
// endpoint then reports liveness only.
func NewServer(reg *registry.Registry, store storage.TokenStore, monitor *health.Monitor, logger *slog.Logger) *Server {
	s := &Server{
		registry: reg,
		store:    store,
		monitor:  monitor,
		mux:      http.NewServeMux(),
		logger:   logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/v1/devices", s.handleRegister)
	s.mux.HandleFunc("POST /api/v1/devices/rotate", s.handleRotate)
	s.mux.HandleFunc("GET /api/v1/devices", s.handleList)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

type registerRequest struct {
	Token  string `json:"token"`
	UserID string `json:"user_id,omitempty"`
}

type rotateRequest struct {
	EndpointARN string `json:"endpoint_arn"`
	NewToken    string `json:"new_token"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	report := s.monitor.Run(ctx)
	code := http.StatusOK
	if report.Status == model.StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, report)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	reg, err := s.registry.Register(ctx, req.Token, req.UserID)
	if err != nil {
		if retry.IsValidation(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("register device", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req rotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	reg, err := s.registry.RotateToken(ctx, req.EndpointARN, req.NewToken)
	if err != nil {
		if retry.IsValidation(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("rotate token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, reg)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	regs, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("list devices", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, regs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
