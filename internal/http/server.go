package http

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"casa/internal/aggregate"
	"casa/internal/core"
	applog "casa/internal/log"
	"casa/internal/middleware/ratelimit"
	"casa/internal/middleware/security"
	"casa/internal/middleware/trace"
	"casa/internal/services"
	"casa/internal/store"
	"casa/web"
)

const (
	readTimeout    = 10 * time.Second
	writeTimeout   = 15 * time.Second
	idleTimeout    = 60 * time.Second
	requestTimeout = 7 * time.Second
	staticMaxAge   = 3600
)

// Config is the server-level configuration.
type Config struct {
	Addr               string
	Summary            aggregate.Options
	RateLimitPerMinute int
	TrustedProxies     []string
}

// Dependencies are the services the handlers call into.
type Dependencies struct {
	Ledger     *services.LedgerService
	Households *services.HouseholdService
	Pinger     store.Pinger
	Logger     *applog.Logger
}

type Server struct {
	http.Server
	templates  *template.Template
	ledger     *services.LedgerService
	households *services.HouseholdService
	pinger     store.Pinger
	logger     *applog.Logger
	summary    aggregate.Options

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
	now          func() time.Time
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server. Template parse failures are logged and reported by
// /readyz rather than failing startup.
func NewServer(cfg Config, deps Dependencies) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	detector, err := security.NewDetector(cfg.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("configure trusted proxies: %w", err)
	}

	limitCfg := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = cfg.RateLimitPerMinute
	}

	s := &Server{
		ledger:     deps.Ledger,
		households: deps.Households,
		pinger:     deps.Pinger,
		logger:     logger,
		summary:    cfg.Summary.WithDefaults(),
		limiter:    ratelimit.NewLimiter(limitCfg),
		detector:   detector,
		tracer:     trace.NewMiddleware(logger, detector.ExtractClientIP),
		now:        time.Now,
	}

	t, err := web.ParseTemplates(templateFuncs)
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.middleware(mux),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	if static, err := web.Static(); err == nil {
		mux.Handle("GET /static/", security.StaticAssets(staticMaxAge)(
			http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	// Dashboard
	mux.HandleFunc("GET /{$}", requireUser(s.handleIndex))
	mux.HandleFunc("GET /ui/summary", requireUser(s.handleSummaryPartial))
	mux.HandleFunc("GET /ui/transactions", requireUser(s.handleTransactionsPartial))

	// Personal ledger
	mux.HandleFunc("GET /api/transactions", requireUser(s.handleListPersonal))
	mux.HandleFunc("POST /api/transactions", requireUser(s.handleCreatePersonal))
	mux.HandleFunc("DELETE /api/transactions/{id}", requireUser(s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/summary", requireUser(s.handlePersonalSummary))

	// Household
	mux.HandleFunc("POST /api/households", requireUser(s.handleCreateHousehold))
	mux.HandleFunc("GET /api/household", requireUser(s.handleGetHousehold))
	mux.HandleFunc("GET /api/household/transactions", requireUser(s.handleListHousehold))
	mux.HandleFunc("POST /api/household/transactions", requireUser(s.handleCreateHouseholdTransaction))
	mux.HandleFunc("GET /api/household/summary", requireUser(s.handleHouseholdSummary))
	mux.HandleFunc("POST /api/household/invitations", requireUser(s.handleInvite))
	mux.HandleFunc("GET /api/invitations", requireUser(s.handleListInvitations))
	mux.HandleFunc("POST /api/invitations/{id}/accept", requireUser(s.handleAcceptInvitation))
}

// middleware wraps h as trace → detection → security headers → rate limit →
// identity, outermost first.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = withIdentity(h)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)
	h = s.detector.Middleware(h)
	return s.tracer.Handler(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	if isHTMX(r) {
		HTMLError(http.StatusTooManyRequests, "Too many requests, try again in a minute").Write(w)
		return
	}
	JSONError(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

// Shutdown gracefully shuts down the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady fails while the store is unreachable or templates are missing.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusServiceUnavailable)
		return
	}
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// fail logs err and writes the mapped status. Internal details never reach
// the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	code, show := statusFor(err)
	logger := applog.FromContext(r.Context())
	if code >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), msg, applog.FieldError, err)
	} else {
		logger.DebugContext(r.Context(), msg, applog.FieldError, err, applog.FieldStatusCode, code)
	}

	text := http.StatusText(code)
	if show {
		text = err.Error()
	}
	if isHTMX(r) {
		HTMLError(code, text).Write(w)
		return
	}
	JSONError(code, text).Write(w)
}

func (s *Server) view(user core.User) aggregate.ViewContext {
	return aggregate.ViewContext{UserID: user.ID, DisplayName: user.FullName, Now: s.now()}
}

var templateFuncs = template.FuncMap{
	"money": func(m core.Money) string { return m.String() },
	"pct":   func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
}
