package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Clark-Hu/ratings-api/internal/config"
	"github.com/Clark-Hu/ratings-api/internal/domain"
	"github.com/Clark-Hu/ratings-api/internal/logging"
	"github.com/Clark-Hu/ratings-api/internal/repository"
)

// RatingsStore is the persistence the API layer needs.
// *repository.RatingsRepository satisfies it.
type RatingsStore interface {
	Create(ctx context.Context, params repository.RatingCreateParams) (domain.Rating, error)
	List(ctx context.Context) ([]domain.Rating, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	health  HealthChecker
	ratings RatingsStore
	logger  *zap.Logger
	router  chi.Router
	httpSrv *http.Server
	now     func() time.Time
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, health HealthChecker, ratings RatingsStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		cfg:     cfg,
		health:  health,
		ratings: ratings,
		logger:  logger,
		now:     time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(s.recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Device-Id", "X-Tablet-Number"},
		MaxAge:         300,
	}))
	s.router = r

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/ratings", func(r chi.Router) {
			r.Get("/", s.handleGetRatings)
			r.Post("/", s.handleCreateRating)
		})
	})
	s.registerPages()
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until ctx is canceled or listening fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http: listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	if err := s.health.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// recoverer turns handler panics into the JSON error envelope.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			s.logger.Error("panic while handling request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Any("panic", rvr),
				zap.Stack("stack"),
			)
			s.respondError(w, http.StatusInternalServerError, fmt.Sprint(rvr))
		}()
		next.ServeHTTP(w, r)
	})
}
