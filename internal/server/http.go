/*-------------------------------------------------------------------------
 *
 * http.go
 *    HTTP transport for MCP
 *
 * POST /mcp carries one JSON-RPC message per request. GET /health reports
 * database reachability and GET /metrics serves Prometheus metrics.
 *
 * Copyright (c) 2024-2026, neurondb, Inc. <support@neurondb.ai>
 *
 * IDENTIFICATION
 *    NeuronDynamic/internal/server/http.go
 *
 *-------------------------------------------------------------------------
 */

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/neurondb/NeuronDynamic/internal/logging"
	"github.com/neurondb/NeuronDynamic/pkg/mcp"
)

/* HTTPTransport handles MCP over HTTP */
type HTTPTransport struct {
	server    *http.Server
	router    *mux.Router
	mcpServer *mcp.Server
	logger    *logging.Logger
	health    func(ctx context.Context) error
	maxBody   int64
}

/* NewHTTPTransport creates a new HTTP transport */
func NewHTTPTransport(addr string, mcpServer *mcp.Server, metricsHandler http.Handler, health func(ctx context.Context) error, jwtSecret string, maxBody int64, logger *logging.Logger) *HTTPTransport {
	t := &HTTPTransport{
		mcpServer: mcpServer,
		logger:    logger,
		health:    health,
		maxBody:   maxBody,
	}

	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(t.loggingMiddleware)

	api := router.Path("/mcp").Subrouter()
	api.Use(AuthMiddleware(jwtSecret, logger))
	api.Methods(http.MethodPost).HandlerFunc(t.handleMCP)

	router.HandleFunc("/health", t.handleHealth).Methods(http.MethodGet)
	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}
	t.router = router

	t.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return t
}

/* Handler returns the routed handler */
func (t *HTTPTransport) Handler() http.Handler {
	return t.router
}

/* Start serves until Shutdown; it returns nil after a clean shutdown */
func (t *HTTPTransport) Start() error {
	t.logger.Info("HTTP transport listening", map[string]interface{}{"address": t.server.Addr})
	if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP transport failed on %s: %w", t.server.Addr, err)
	}
	return nil
}

/* Shutdown gracefully shuts down the HTTP server */
func (t *HTTPTransport) Shutdown(ctx context.Context) error {
	return t.server.Shutdown(ctx)
}

/* handleMCP handles one JSON-RPC message */
func (t *HTTPTransport) handleMCP(w http.ResponseWriter, r *http.Request) {
	body := io.Reader(r.Body)
	if t.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, t.maxBody)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, mcp.CreateErrorResponse(nil, mcp.ErrCodeInvalidRequest, fmt.Sprintf("request exceeds %d bytes", t.maxBody), nil))
			return
		}
		writeJSON(w, http.StatusBadRequest, mcp.CreateErrorResponse(nil, mcp.ErrCodeParseError, err.Error(), nil))
		return
	}

	req, err := mcp.ParseRequest(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, mcp.CreateErrorResponse(nil, mcp.ErrCodeParseError, err.Error(), nil))
		return
	}

	resp := t.mcpServer.HandleMessage(r.Context(), req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

/* handleHealth reports whether the database answers */
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if t.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := t.health(ctx); err != nil {
			status["status"] = "unhealthy"
			status["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

/* requestIDMiddleware tags every response with an X-Request-ID */
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (t *HTTPTransport) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		t.logger.Debug("HTTP request", map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  w.Header().Get("X-Request-ID"),
		})
	})
}
