package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// RouterConfig carries the bits of config.Config needed to assemble the
// router without importing the full config package into this signature.
type RouterConfig struct {
	Logger             *slog.Logger
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	RequestTimeout     time.Duration
}

// BuildRouter assembles the HTTP surface: middleware stack, CORS, rate
// limiting, and route registration. Grounded on teacher
// internal/app/router.go::BuildRouter's layering order (recoverer ->
// request id -> access log -> timeout -> cors -> rate limit -> routes ->
// security headers as the outermost wrap).
func BuildRouter(s *Server, rc RouterConfig) http.Handler {
	if rc.RequestTimeout <= 0 {
		rc.RequestTimeout = 30 * time.Second
	}
	if rc.RateLimitRequests <= 0 {
		rc.RateLimitRequests = 60
	}
	if rc.RateLimitWindow <= 0 {
		rc.RateLimitWindow = time.Minute
	}

	r := chi.NewRouter()
	r.Use(Recoverer())
	r.Use(RequestID(rc.Logger))
	r.Use(AccessLog())
	r.Use(chimw.Timeout(rc.RequestTimeout))

	if len(rc.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rc.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Use(httprate.LimitByIP(rc.RateLimitRequests, rc.RateLimitWindow))

	r.Get("/healthz", s.HealthzHandler())
	r.Get("/v1/status", s.StatusHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/evaluate", s.EvaluateHandler())
		r.Post("/compare", s.CompareHandler())
		r.Post("/evaluate-multi-criteria", s.MultiCriteriaHandler())
		r.Post("/maintenance", s.MaintenanceHandler())
	})

	return SecurityHeaders(r)
}

// NewHTTPServer wraps an http.Server with sane timeouts, matching the
// teacher's preference for explicit read/write/idle timeouts over the
// zero-value defaults.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
