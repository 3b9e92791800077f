package ajax

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sitesetup/internal/contact"
	"sitesetup/internal/demo"
	"sitesetup/internal/logging"
	"sitesetup/internal/platform"
	"sitesetup/internal/plugins"
	"sitesetup/internal/theme"
	"sitesetup/internal/transparency"
	"sitesetup/internal/wizard"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// MaxRequestBodySize limits POST /ajax bodies.
const MaxRequestBodySize = 1 << 20

// Pinger reports backend health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the handlers call.
type Deps struct {
	Host      platform.Client
	Installer *plugins.Installer
	Writer    *theme.Writer
	Importer  *demo.Importer
	Contact   *contact.Service
	Wizard    *wizard.Service
	Bulk      plugins.BulkOptions
	Health    Pinger

	// OperationTimeout bounds an action once it is running. Actions outlive
	// the client connection; zero leaves them unbounded.
	OperationTimeout time.Duration
}

// Server is the ajax HTTP surface.
type Server struct {
	deps    Deps
	nonces  *NonceIssuer
	auth    *TokenAuth
	metrics *Metrics
	routes  map[Action]route
}

// NewServer wires the dispatch table. metrics may be nil.
func NewServer(deps Deps, nonces *NonceIssuer, auth *TokenAuth, metrics *Metrics) *Server {
	s := &Server{deps: deps, nonces: nonces, auth: auth, metrics: metrics}
	s.routes = s.dispatchTable()
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/ajax", func(r chi.Router) {
		r.Use(recoverEnvelope)
		r.Use(s.authenticate)
		r.With(middleware.AllowContentType("application/x-www-form-urlencoded")).
			Post("/", s.handleAjax)
		r.Get("/nonce", s.handleNonce)
	})
	return r
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID returns the correlation id assigned to the request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.HTTPDebug("[req:%s] %s %s %d %dB %v", RequestID(r.Context()), r.Method, r.URL.Path,
			ww.Status(), ww.BytesWritten(), time.Since(start))
	})
}

// recoverEnvelope turns a handler panic into a JSON failure.
func recoverEnvelope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.Get(logging.CategoryHTTP).Error("[req:%s] panic in %s: %v", RequestID(r.Context()), r.URL.Path, rec)
				writeFailure(w, http.StatusInternalServerError, transparency.ErrorCategoryUnknown,
					"An unexpected error occurred. Please try again.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.auth.Resolve(r)
		if !ok {
			logging.HTTPWarn("[req:%s] rejected unknown bearer token", RequestID(r.Context()))
			writeFailure(w, http.StatusUnauthorized, transparency.ErrorCategoryPermission, "Invalid credentials.")
			return
		}
		ctx := r.Context()
		if user.Name != "" {
			ctx = platform.WithUser(ctx, user)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleNonce issues a nonce for ?action=. Non-public actions require the
// route's capability so a nonce is never handed to a user who cannot use it.
func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	action, err := ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, transparency.ErrorCategoryValidation, err.Error())
		return
	}
	rt := s.routes[action]
	user, _ := platform.UserFrom(r.Context())
	if !rt.public {
		if err := platform.Require(r.Context(), s.deps.Host, rt.capability); err != nil {
			writeError(w, err, nil)
			return
		}
	}

	nonce, exp, err := s.nonces.Issue(action, user.Name)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	writeSuccess(w, map[string]interface{}{
		"action":     action.String(),
		"nonce":      nonce,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAjax(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer s.metrics.track()()
	reqID := RequestID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		s.metrics.observe("invalid", outcomeBadRequest, time.Since(start))
		writeFailure(w, http.StatusBadRequest, transparency.ErrorCategoryValidation, "Malformed request body.")
		return
	}

	action, err := ParseAction(r.PostForm.Get("action"))
	if err != nil {
		s.metrics.observe("invalid", outcomeBadRequest, time.Since(start))
		writeFailure(w, http.StatusBadRequest, transparency.ErrorCategoryValidation, err.Error())
		return
	}
	rt := s.routes[action]
	ctx := r.Context()
	user, _ := platform.UserFrom(ctx)
	log := logging.WithRequestID(logging.CategoryHTTP, reqID).WithField("action", action.String())
	audit := logging.AuditWithRequest(reqID, user.Name, logging.CategoryHTTP)

	if err := s.nonces.Verify(r.PostForm.Get("nonce"), action, user.Name); err != nil {
		log.Warn("nonce rejected: %v", err)
		audit.NonceReject(action.String(), err.Error())
		s.metrics.observe(action.String(), outcomeBadNonce, time.Since(start))
		writeFailure(w, http.StatusForbidden, transparency.ErrorCategoryPermission,
			"Security check failed. Please reload the page and try again.")
		return
	}

	if !rt.public {
		if err := platform.Require(ctx, s.deps.Host, rt.capability); err != nil {
			log.Warn("permission denied: %v", err)
			audit.PermissionDenied(action.String(), string(rt.capability))
			s.metrics.observe(action.String(), outcomeForbidden, time.Since(start))
			writeError(w, err, nil)
			return
		}
	}

	req := &Request{Action: action, Form: r.PostForm, User: user, RequestID: reqID}
	opCtx, cancel := s.operationContext(ctx)
	defer cancel()
	data, err := rt.handle(opCtx, req)
	elapsed := time.Since(start)
	if err != nil {
		cat := writeError(w, err, data)
		outcome := outcomeError
		if cat.Fatal() {
			outcome = outcomeForbidden
		}
		s.metrics.observe(action.String(), outcome, elapsed)
		log.Warn("failed in %v: %v", elapsed, err)
		return
	}
	s.metrics.observe(action.String(), outcomeOK, elapsed)
	log.Info("handled in %v", elapsed)
	writeSuccess(w, data)
}

// operationContext detaches ctx from the connection so a caller that
// navigates away does not abort an install or import halfway. Request values
// (user, request ID) are kept.
func (s *Server) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if s.deps.OperationTimeout > 0 {
		return context.WithTimeout(ctx, s.deps.OperationTimeout)
	}
	return ctx, func() {}
}

// Request is one decoded ajax call.
type Request struct {
	Action    Action
	Form      map[string][]string
	User      platform.User
	RequestID string
}

// Value returns the trimmed first value of a field.
func (r *Request) Value(key string) string {
	if v := r.Form[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

// Values returns every value of a list field, accepting "key[]" and "key".
// Comma-separated single values are split.
func (r *Request) Values(key string) []string {
	raw := append(append([]string(nil), r.Form[key+"[]"]...), r.Form[key]...)
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Bool reads a checkbox-style field.
func (r *Request) Bool(key string) bool {
	switch strings.ToLower(r.Value(key)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func requireField(r *Request, key string) (string, error) {
	v := r.Value(key)
	if v == "" {
		return "", &fieldError{field: key}
	}
	return v, nil
}

type fieldError struct {
	field  string
	reason string // empty means the field is missing
}

func (e *fieldError) Error() string {
	if e.reason != "" {
		return e.reason
	}
	return fmt.Sprintf("Missing required field %q.", e.field)
}

func (e *fieldError) ErrorCategory() transparency.ErrorCategory {
	return transparency.ErrorCategoryValidation
}
