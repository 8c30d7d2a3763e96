package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"cheshire/internal/core"
	"cheshire/internal/health"
	"cheshire/internal/plugin"
	"cheshire/pkg/logging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// httpRequestBody is the JSON wire shape of an action invocation.
type httpRequestBody struct {
	Data       map[string]interface{} `json:"data"`
	Parameters map[string]interface{} `json:"parameters"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// HTTPJSONServer serves one capability's actions over HTTP/JSON, plus the
// health and metrics endpoints.
type HTTPJSONServer struct {
	binding     plugin.ServerBinding
	monitor     *health.Monitor
	metrics     *health.Metrics
	promHandler http.Handler

	router     chi.Router
	httpServer *http.Server
	running    atomic.Bool
}

// NewHTTPJSONServer creates an HTTP/JSON server for one capability binding.
func NewHTTPJSONServer(binding plugin.ServerBinding, monitor *health.Monitor, metrics *health.Metrics, promHandler http.Handler) *HTTPJSONServer {
	return &HTTPJSONServer{
		binding:     binding,
		monitor:     monitor,
		metrics:     metrics,
		promHandler: promHandler,
	}
}

// Type implements plugin.Server.
func (s *HTTPJSONServer) Type() string { return "HTTP_JSON" }

// IsRunning implements plugin.Server.
func (s *HTTPJSONServer) IsRunning() bool { return s.running.Load() }

// Init builds the router. Idempotent.
func (s *HTTPJSONServer) Init(ctx context.Context) error {
	if s.router != nil {
		return nil
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	basePath := s.binding.Exposure.Path
	if basePath == "" {
		basePath = "/api"
	}
	if version := s.binding.Exposure.Version; version != "" {
		basePath = basePath + "/" + version
	}

	r.Post(basePath+"/"+s.binding.Capability+"/{action}", s.handleAction)
	r.Get("/healthz", s.handleHealth)
	if s.promHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.promHandler)
	}

	s.router = r
	return nil
}

// Handler returns the router, mainly for tests.
func (s *HTTPJSONServer) Handler() http.Handler { return s.router }

// Start begins accepting requests in the background. Idempotent.
func (s *HTTPJSONServer) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	if s.router == nil {
		if err := s.Init(ctx); err != nil {
			s.running.Store(false)
			return err
		}
	}

	addr := fmt.Sprintf("%s:%d", s.binding.Transport.Host, s.binding.Transport.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}

	go func() {
		logging.Info("HTTPJSON", "serving capability %s on %s", s.binding.Capability, addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTPJSON", err, "server for %s stopped", s.binding.Capability)
			s.running.Store(false)
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the listener down. Idempotent.
func (s *HTTPJSONServer) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *HTTPJSONServer) handleAction(w http.ResponseWriter, r *http.Request) {
	timer := s.metrics.StartRequest()
	defer timer.Close()
	s.metrics.IncComponent(s.binding.Capability)

	action := chi.URLParam(r, "action")

	var body httpRequestBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			timer.Failure(core.StatusBadRequest)
			writeError(w, core.NewResponseError(core.StatusBadRequest, err, "malformed request body"))
			return
		}
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	env, err := core.NewRequestEnvelope(requestID, s.binding.Capability, action,
		core.NewRequestPayload("json", body.Data, body.Parameters, body.Metadata),
		core.RequestContext{
			SessionID: r.Header.Get("X-Session-ID"),
			UserID:    r.Header.Get("X-User-ID"),
			TraceID:   r.Header.Get("X-Trace-ID"),
		})
	if err != nil {
		timer.Failure(core.StatusBadRequest)
		writeError(w, core.NewResponseError(core.StatusBadRequest, err, ""))
		return
	}

	resp := s.binding.Dispatcher.Dispatch(r.Context(), env)
	switch res := resp.(type) {
	case core.ResponseOK:
		timer.Success()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   string(core.StatusSuccess),
			"data":     res.Data,
			"metadata": res.Metadata,
		})
	case core.ResponseError:
		timer.Failure(res.Category)
		writeError(w, res)
	}
}

func (s *HTTPJSONServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.monitor.Snapshot()
	status := http.StatusOK
	if !snap.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, snap)
}

func writeError(w http.ResponseWriter, resp core.ResponseError) {
	writeJSON(w, httpStatusFor(resp.Category), map[string]interface{}{
		"status": string(resp.Category),
		"error":  resp.Message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// httpStatusFor maps status categories to HTTP codes.
func httpStatusFor(category core.StatusCategory) int {
	switch category {
	case core.StatusSuccess:
		return http.StatusOK
	case core.StatusBadRequest:
		return http.StatusBadRequest
	case core.StatusUnauthorized:
		return http.StatusUnauthorized
	case core.StatusForbidden:
		return http.StatusForbidden
	case core.StatusNotFound:
		return http.StatusNotFound
	case core.StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
