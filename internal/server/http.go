package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/petii/mp3-magic-machine/internal/config"
	"github.com/petii/mp3-magic-machine/internal/event"
	"github.com/petii/mp3-magic-machine/internal/metrics"
	"github.com/petii/mp3-magic-machine/internal/pipeline"
	"github.com/petii/mp3-magic-machine/internal/store"
)

const (
	serviceName    = "mp3-magic-machine"
	serviceVersion = "1.0.0"

	// maxNotificationSize bounds the body of POST /notifications
	maxNotificationSize = 1 << 20
)

// Handler processes the records of one invocation
type Handler interface {
	Handle(ctx context.Context, records []event.Record) (*pipeline.Result, error)
}

// HTTPServer accepts object-created notifications over HTTP and exposes
// health and metrics endpoints
type HTTPServer struct {
	server  *http.Server
	logger  *slog.Logger
	handler Handler
	metrics *metrics.Metrics

	// Serializes pipeline invocations
	invokeMu sync.Mutex

	// Server state
	startTime   time.Time
	mu          sync.RWMutex
	invocations uint64
	failures    uint64
	lastID      string
}

// NewHTTPServer creates a new HTTP notification server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, handler Handler, m *metrics.Metrics) *HTTPServer {
	h := &HTTPServer{
		logger:    logger,
		handler:   handler,
		metrics:   m,
		startTime: time.Now(),
	}

	h.server = &http.Server{
		Addr:         cfg.GetAddress(),
		Handler:      h.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Routes returns the request multiplexer of the server
func (h *HTTPServer) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/notifications", h.withMetrics("/notifications", h.handleNotifications))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}

	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
	return mux
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)
		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]interface{}{
			"name":    serviceName,
			"version": serviceVersion,
		},
	}

	writeJSON(w, http.StatusOK, health)
}

// notificationResponse is returned by a successful POST /notifications
type notificationResponse struct {
	InvocationID string   `json:"invocation_id,omitempty"`
	Records      int      `json:"records"`
	Files        []string `json:"files"`
	Delivered    []string `json:"delivered"`
	ArchiveKey   string   `json:"archive_key,omitempty"`
	Duration     string   `json:"duration"`
}

// errorResponse describes a failed invocation
type errorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Stage  string `json:"stage,omitempty"`
	Bucket string `json:"bucket,omitempty"`
	Key    string `json:"key,omitempty"`
}

// handleNotifications implements the /notifications endpoint. The body has the
// shape of an S3 event notification.
func (h *HTTPServer) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var notification events.S3Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNotificationSize)).Decode(&notification); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid notification: %v", err)})
		return
	}

	records, err := event.FromS3Event(notification)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	h.invokeMu.Lock()
	result, err := h.handler.Handle(r.Context(), records)
	h.invokeMu.Unlock()

	h.mu.Lock()
	h.invocations++
	if err != nil {
		h.failures++
	}
	if result != nil && result.InvocationID != "" {
		h.lastID = result.InvocationID
	}
	h.mu.Unlock()

	if err != nil {
		h.logger.Error("Notification failed",
			slog.Int("records", len(records)),
			slog.String("error", err.Error()),
		)
		writeJSON(w, statusFor(err), newErrorResponse(err))
		return
	}

	response := notificationResponse{
		InvocationID: result.InvocationID,
		Records:      result.Records,
		Files:        make([]string, 0, len(result.Files)),
		Delivered:    result.Delivered,
		ArchiveKey:   result.ArchiveKey,
		Duration:     result.Duration.String(),
	}
	for _, f := range result.Files {
		response.Files = append(response.Files, f.Name)
	}
	if response.Delivered == nil {
		response.Delivered = []string{}
	}

	writeJSON(w, http.StatusOK, response)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.RLock()
	stats := map[string]interface{}{
		"uptime":             time.Since(h.startTime).String(),
		"timestamp":          time.Now().UTC(),
		"invocations":        h.invocations,
		"failures":           h.failures,
		"last_invocation_id": h.lastID,
	}
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": serviceName,
		"version": serviceVersion,
		"endpoints": map[string]interface{}{
			"GET /":               "API documentation",
			"GET /health":         "Service health check",
			"POST /notifications": "Transcode the objects named by an S3 event notification",
			"GET /stats":          "Invocation statistics",
			"GET /metrics":        "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	writeJSON(w, http.StatusOK, apiDoc)
}

// statusFor maps a pipeline failure to an HTTP status code
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrDelivery):
		return http.StatusBadGateway
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrContainerFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrSourceRead):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newErrorResponse(err error) errorResponse {
	resp := errorResponse{Error: err.Error()}

	var recErr *pipeline.RecordError
	if errors.As(err, &recErr) {
		resp.Kind = recErr.Kind.Error()
		resp.Stage = string(recErr.Stage)
		resp.Bucket = recErr.Bucket
		resp.Key = recErr.Key
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
