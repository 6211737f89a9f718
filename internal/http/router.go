package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/floodwatch/platform/internal/domain"
	"github.com/floodwatch/platform/internal/repository"
	"github.com/floodwatch/platform/internal/service/auth"
	"github.com/floodwatch/platform/internal/service/report"
	"github.com/floodwatch/platform/internal/service/zone"
	"github.com/floodwatch/platform/internal/ws"
	"github.com/floodwatch/platform/pkg/config"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	reports  report.Service
	zones    zone.Service
	upgrader websocket.Upgrader
	limiter  RateLimiter
	cfg      config.APIConfig
	dbHealth func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateLimitRegister  = 5
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, reportSvc report.Service, zoneSvc zone.Service, limiter RateLimiter, cfg config.APIConfig, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		logger:  logger,
		auth:    authSvc,
		reports: reportSvc,
		zones:   zoneSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		cfg:      cfg,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to the underlying mux.
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
	r.mux.HandleFunc("/healthz", r.instrument("healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/api/user/register", r.instrument("user_register", r.withRateLimit("user_register", rateLimitRegister, rateWindowDefault, rateLimitKeyIP, r.handleRegister)))
	r.mux.HandleFunc("/api/user/login", r.instrument("user_login", r.withRateLimit("user_login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/api/user/logout", r.instrument("user_logout", r.requireSession(r.handleLogout)))
	r.mux.HandleFunc("/api/user/is-auth", r.instrument("user_is_auth", r.requireSession(r.handleIsAuth)))
	r.mux.HandleFunc("/api/reports", r.instrument("reports", r.handleReports))
	r.mux.HandleFunc("/api/zones", r.instrument("zones", r.handleZones))
	r.mux.HandleFunc("/api/zones/", r.instrument("zone_detail", r.handleZoneDetail))
	r.mux.HandleFunc("/api/ws/reports", r.instrument("reports_feed", r.requireSession(r.handleReportsFeed)))
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if _, err := r.auth.Register(req.Context(), payload.Email, payload.Password, payload.Name); err != nil {
		r.writeAuthError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, nil)
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	user, session, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeAuthError(w, err)
		return
	}
	r.setSessionCookie(w, session, r.auth.SessionTTL())
	writeSuccess(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

// handleLogout clears the session cookie. Tokens are stateless, so a copy of
// a still-valid token remains usable until its natural expiry; logout only
// removes the browser's credential.
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	r.clearSessionCookie(w)
	writeSuccess(w, http.StatusOK, nil)
}

func (r *Router) handleIsAuth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := sessionFromContext(req.Context())
	if !ok {
		r.logger.Error("session context missing", "path", req.URL.Path)
		writeFailure(w, http.StatusInternalServerError, "Session context missing")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":    info.UserID,
			"email": info.Email,
			"name":  info.Name,
		},
	})
}

func (r *Router) handleReports(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		r.sessionRate("reports", rateLimitUserWrite, rateWindowDefault, r.handleSubmitReport)(w, req)
	case http.MethodGet:
		r.sessionRate("reports", rateLimitUserRead, rateWindowDefault, r.handleListOwnReports)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleSubmitReport(w http.ResponseWriter, req *http.Request) {
	info, ok := sessionFromContext(req.Context())
	if !ok {
		r.logger.Error("session context missing", "path", req.URL.Path)
		writeFailure(w, http.StatusInternalServerError, "Session context missing")
		return
	}
	var payload struct {
		ZoneID      string   `json:"zone_id"`
		Description string   `json:"description"`
		Severity    string   `json:"severity"`
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	rep, err := r.reports.Submit(req.Context(), info.UserID, report.SubmitInput{
		ZoneID:      payload.ZoneID,
		Description: payload.Description,
		Severity:    payload.Severity,
		Latitude:    payload.Latitude,
		Longitude:   payload.Longitude,
	})
	if err != nil {
		r.writeReportError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{"report": marshalReport(*rep)})
}

func (r *Router) handleListOwnReports(w http.ResponseWriter, req *http.Request) {
	info, ok := sessionFromContext(req.Context())
	if !ok {
		r.logger.Error("session context missing", "path", req.URL.Path)
		writeFailure(w, http.StatusInternalServerError, "Session context missing")
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(req.URL.Query().Get("offset"))
	reports, err := r.reports.ListByReporter(req.Context(), info.UserID, limit, offset)
	if err != nil {
		r.writeReportError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(reports))
	for _, rep := range reports {
		payload = append(payload, marshalReport(rep))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"reports": payload})
}

func (r *Router) handleZones(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	zones, err := r.zones.List(req.Context())
	if err != nil {
		r.writeReportError(w, err)
		return
	}
	payload := make([]map[string]any, 0, len(zones))
	for _, z := range zones {
		payload = append(payload, marshalZone(z))
	}
	writeSuccess(w, http.StatusOK, map[string]any{"zones": payload})
}

func (r *Router) handleZoneDetail(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	zoneID := strings.TrimPrefix(req.URL.Path, "/api/zones/")
	if zoneID == "" || strings.Contains(zoneID, "/") {
		r.notFound(w)
		return
	}
	z, err := r.zones.Get(req.Context(), zoneID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.notFound(w)
			return
		}
		r.writeReportError(w, err)
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	reports, err := r.reports.ListByZone(req.Context(), zoneID, limit)
	if err != nil {
		r.writeReportError(w, err)
		return
	}
	recent := make([]map[string]any, 0, len(reports))
	for _, rep := range reports {
		recent = append(recent, marshalReport(rep))
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"zone":    marshalZone(*z),
		"reports": recent,
	})
}

func (r *Router) handleReportsFeed(w http.ResponseWriter, req *http.Request) {
	zoneID := req.URL.Query().Get("zone_id")
	if zoneID == "" {
		writeFailure(w, http.StatusBadRequest, "zone_id query parameter required")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.reports.Hub().Register(zoneID, client)
	go func() {
		defer func() {
			r.reports.Hub().Unregister(zoneID, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{"status": "down"}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// writeAuthError maps auth service failures to client responses. The mapping
// keeps InvalidCredentials generic and never forwards internal detail.
func (r *Router) writeAuthError(w http.ResponseWriter, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeFailure(w, http.StatusBadRequest, verr.Field+" "+verr.Reason)
	case errors.Is(err, auth.ErrEmailTaken):
		writeFailure(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeFailure(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, repository.ErrUnavailable):
		writeFailure(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		r.logger.Error("unhandled auth error", "error", err)
		writeFailure(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (r *Router) writeReportError(w http.ResponseWriter, err error) {
	var verr *report.ValidationError
	switch {
	case errors.As(err, &verr):
		writeFailure(w, http.StatusBadRequest, verr.Field+" "+verr.Reason)
	case errors.Is(err, report.ErrUnknownZone):
		writeFailure(w, http.StatusNotFound, "Unknown zone")
	case errors.Is(err, repository.ErrUnavailable):
		writeFailure(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		r.logger.Error("unhandled report error", "error", err)
		writeFailure(w, http.StatusInternalServerError, "Internal server error")
	}
}

func marshalReport(rep domain.Report) map[string]any {
	return map[string]any{
		"id":          rep.ID,
		"zone_id":     rep.ZoneID,
		"description": rep.Description,
		"severity":    rep.Severity,
		"latitude":    rep.Latitude,
		"longitude":   rep.Longitude,
		"created_at":  rep.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func marshalZone(z domain.Zone) map[string]any {
	return map[string]any{
		"id":        z.ID,
		"name":      z.Name,
		"district":  z.District,
		"latitude":  z.Latitude,
		"longitude": z.Longitude,
	}
}

// instrument wraps a handler with audit logging and request metrics.
func (r *Router) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
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
		r.recordRequestMetrics(req.Method, route, status, duration)

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
		actor := "anonymous"
		if info, ok := sessionFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
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

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeFailure(w, http.StatusNotFound, "Not found")
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			if ip := strings.TrimSpace(parts[0]); ip != "" {
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
