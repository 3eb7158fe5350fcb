package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"filedrop/internal/storage"
)

// BuildInfo is reported by /health and /metrics.
type BuildInfo struct {
	Version string
	Commit  string
}

type Config struct {
	Addr string // e.g. ":5000"

	Password       string
	SecretKey      string
	MaxUploadBytes int64
	SessionTTL     time.Duration
	CookieSecure   bool

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	LoginRatePerMinute     int
	MaxConcurrentTransfers int

	Build BuildInfo
}

// loginBurst caps back-to-back login attempts from one client.
const loginBurst = 5

type Server struct {
	httpServer *http.Server
	store      storage.Store
	log        *zap.Logger
	auth       *Guard
	metrics    *Metrics

	transfers    *semaphore.Weighted
	loginLimiter *rateLimiter
	maxUpload    int64

	build   BuildInfo
	started time.Time
}

func New(cfg Config, store storage.Store, log *zap.Logger) (*Server, error) {
	if store == nil {
		return nil, errors.New("server: nil store")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		return nil, errors.New("server: max upload size must be positive")
	}
	if cfg.LoginRatePerMinute <= 0 {
		cfg.LoginRatePerMinute = 10
	}
	if cfg.MaxConcurrentTransfers <= 0 {
		cfg.MaxConcurrentTransfers = 8
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 12 * time.Hour
	}

	guard, err := NewGuard(cfg.Password, cfg.SecretKey, cfg.SessionTTL, cfg.CookieSecure)
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:        store,
		log:          log,
		auth:         guard,
		metrics:      NewMetrics(),
		transfers:    semaphore.NewWeighted(int64(cfg.MaxConcurrentTransfers)),
		loginLimiter: newRateLimiter(cfg.LoginRatePerMinute, min(cfg.LoginRatePerMinute, loginBurst)),
		maxUpload:    cfg.MaxUploadBytes,
		build:        cfg.Build,
		started:      time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(cfg.TrustProxy),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// routes wires middleware: recover -> [realip] -> requestID -> logging ->
// security headers -> router.
func (s *Server) routes(trustProxy bool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(securityHeadersMiddleware)

	r.Get("/health", s.healthHandler)
	r.Get("/health/live", s.liveHandler)
	r.Get("/metrics", s.metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5, "text/html"))
		r.Get("/login", s.loginPage)
		r.Post("/login", s.loginSubmit)
		r.Get("/logout", s.logout)
		r.Post("/logout", s.logout)

		r.With(s.requireAuth).Get("/", s.indexHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/upload", s.uploadHandler)
		r.Get("/download/{filename}", s.downloadHandler)
		r.Head("/download/{filename}", s.downloadHandler)
		r.Post("/delete/{filename}", s.deleteHandler)
	})

	return r
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Metrics returns the server's counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
