// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the search engine over HTTP: a search endpoint, a
// source listing, health, and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pdiddy/grant-engine/internal/aggregate"
	"github.com/pdiddy/grant-engine/internal/metrics"
	"github.com/pdiddy/grant-engine/pkg/types"
)

// Searcher is the engine surface the server needs. *engine.Engine satisfies it.
type Searcher interface {
	Search(ctx context.Context, query types.Query) (*types.Envelope, error)
	Sources() []string
}

// Server handles the HTTP API. Construct with New, mount with Router.
type Server struct {
	engine Searcher
	logger *zap.Logger
}

// New creates an HTTP API server around a search engine.
func New(engine Searcher, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: engine, logger: logger}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(s.recoverer())
	r.Use(s.requestLogger())
	r.Use(metrics.Middleware())

	r.Post("/v1/search", s.handleSearch)
	r.Get("/v1/sources", s.handleSources)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}

type errorResponse struct {
	Code     string                `json:"code"`
	Message  string                `json:"message"`
	Failures []types.SourceFailure `json:"failures,omitempty"`
}

// handleSearch handles POST /v1/search. Total source failure maps to 502 so
// callers can tell "all sources down" from "no grants matched".
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query types.Query
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if query.OpportunityType != "" && !query.OpportunityType.Valid() {
		writeError(w, http.StatusBadRequest, "validation_failed",
			"unknown opportunity type "+string(query.OpportunityType))
		return
	}

	env, err := s.engine.Search(r.Context(), query)
	if err != nil {
		s.handleSearchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleSearchError(w http.ResponseWriter, err error) {
	var all *aggregate.AllSourcesFailedError
	switch {
	case errors.As(err, &all):
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Code:     "all_sources_failed",
			Message:  err.Error(),
			Failures: all.Failures,
		})
	case errors.Is(err, aggregate.ErrNoSources):
		writeError(w, http.StatusServiceUnavailable, "no_sources_enabled", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	default:
		s.logger.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// handleSources handles GET /v1/sources.
func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sources": s.engine.Sources()})
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// recoverer returns JSON instead of a plain text stacktrace on panic.
func (s *Server) recoverer() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					s.logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"))
					writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger emits one canonical log line per request and echoes the
// request id back in X-Request-ID.
func (s *Server) requestLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			s.logger.Info("http_request",
				zap.String("request_id", requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("response_bytes", ww.BytesWritten()))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
