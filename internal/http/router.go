package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ederalmeidasantos-byte/sistema-admin/internal/detector"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/service/access"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/service/auth"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/service/batch"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/service/environment"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/supervisor"
	"github.com/ederalmeidasantos-byte/sistema-admin/internal/ws"
)

// Services bundles the dependencies of the router.
type Services struct {
	Auth         auth.Service
	Access       access.Service
	Environments environment.Service
	Detector     *detector.Detector
	Batch        batch.Service
	Hub          *ws.Hub
	// Supervisor is nil when process control is disabled.
	Supervisor   *supervisor.Supervisor
	TemplatePort int
	Health       func(context.Context) error
}

// Router wires HTTP endpoints to services.
type Router struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	auth         auth.Service
	access       access.Service
	environments environment.Service
	detector     *detector.Detector
	batch        batch.Service
	hub          *ws.Hub
	supervisor   *supervisor.Supervisor
	templatePort int
	upgrader     websocket.Upgrader
	limiter      RateLimiter
	metrics      *Metrics
	health       func(context.Context) error
}

const (
	healthCheckTimeout = 2 * time.Second
	maxBodyBytes       = 8 << 20
	sseHeartbeat       = 15 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, services Services, limiter RateLimiter, metrics *Metrics) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:          http.NewServeMux(),
		logger:       logger,
		auth:         services.Auth,
		access:       services.Access,
		environments: services.Environments,
		detector:     services.Detector,
		batch:        services.Batch,
		hub:          services.Hub,
		supervisor:   services.Supervisor,
		templatePort: services.TemplatePort,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter: limiter,
		metrics: metrics,
		health:  services.Health,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.audit(r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/auth/admin", r.audit(r.limited("/auth/admin", policyLogin, r.handleAdminLogin)))
	r.mux.HandleFunc("/auth/login", r.audit(r.limited("/auth/login", policyLogin, r.handleLogin)))
	r.mux.HandleFunc("/auth/me", r.audit(r.authenticated("/auth/me", policyRead, r.handleMe)))
	r.mux.HandleFunc("/ambientes", r.audit(r.authenticated("/ambientes", policyWrite, r.handleEnvironments)))
	r.mux.HandleFunc("/ambientes/sync", r.audit(r.requireAdmin(r.handleSyncAll)))
	r.mux.HandleFunc("/ambientes/", r.audit(r.authenticated("/ambientes/", policyWrite, r.handleEnvironmentSubroutes)))
	r.mux.HandleFunc("/reconcile", r.audit(r.requireAdmin(r.handleReconcile)))
	r.mux.HandleFunc("/detectados", r.audit(r.requireAdmin(r.handleDetected)))
	r.mux.HandleFunc("/bancos", r.audit(r.authenticated("/bancos", policyRead, r.handleIntegrations)))
	r.mux.HandleFunc("/perfis", r.audit(r.authenticated("/perfis", policyWrite, r.handleProfiles)))
	r.mux.HandleFunc("/perfis/", r.audit(r.authenticated("/perfis/", policyWrite, r.handleProfile)))
	r.mux.HandleFunc("/logins", r.audit(r.authenticated("/logins", policyWrite, r.handleLogins)))
	r.mux.HandleFunc("/logins/", r.audit(r.authenticated("/logins/", policyWrite, r.handleLoginItem)))
	r.mux.HandleFunc("/clt/consulta", r.audit(r.authenticated("/clt/consulta", policyLookup, r.handleSingleLookup)))
	r.mux.HandleFunc("/clt/lotes", r.audit(r.authenticated("/clt/lotes", policyWrite, r.handleBatches)))
	r.mux.HandleFunc("/clt/lotes/", r.audit(r.authenticated("/clt/lotes/", policyRead, r.handleBatch)))
	r.mux.HandleFunc("/ws/lotes/", r.audit(r.authenticated("/ws/lotes/", policyStream, r.handleBatchWS)))
	r.mux.HandleFunc("/sse/lotes/", r.audit(r.authenticated("/sse/lotes/", policyStream, r.handleBatchSSE)))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.health != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.health(ctx); err != nil {
			status = "degraded"
			components["store"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["store"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"success":    status == "ok",
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.metrics.recordRequest(req.Method, routeLabel(req.URL.Path), status, duration)
		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if principal, ok := principalFromContext(ctx); ok {
			actor = principal.Role
			if principal.LoginID != "" {
				fields = append(fields, "login_id", principal.LoginID, "environment_id", principal.EnvironmentID)
			}
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

// routeLabel collapses identifiers so metric cardinality stays bounded.
func routeLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch {
	case len(parts) == 0 || parts[0] == "":
		return "/"
	case len(parts) == 1:
		return "/" + parts[0]
	case parts[0] == "clt" || parts[0] == "ws" || parts[0] == "sse" || parts[0] == "auth":
		if len(parts) == 2 {
			return "/" + parts[0] + "/" + parts[1]
		}
		return "/" + parts[0] + "/" + parts[1] + "/:id"
	case parts[0] == "ambientes" && parts[1] == "sync":
		return "/ambientes/sync"
	case len(parts) == 2:
		return "/" + parts[0] + "/:id"
	default:
		return "/" + parts[0] + "/:id/" + parts[2]
	}
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

// decodeJSON reads a bounded JSON body into dst, writing the 400 itself.
func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		writeKind(w, http.StatusBadRequest, "validation", fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	return true
}

// pathSegments splits the path below prefix.
func pathSegments(path, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
