package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/Nzyazin/schoolwallet/internal/core/handler"
	"github.com/Nzyazin/schoolwallet/internal/core/idempotency"
	"github.com/Nzyazin/schoolwallet/internal/core/logger"
	"github.com/Nzyazin/schoolwallet/internal/core/metrics"
	middlWre "github.com/Nzyazin/schoolwallet/internal/core/middleware"
	"github.com/Nzyazin/schoolwallet/internal/core/repository"
	"github.com/Nzyazin/schoolwallet/internal/core/repository/memory"
	"github.com/Nzyazin/schoolwallet/internal/core/repository/postgres"
	"github.com/Nzyazin/schoolwallet/internal/core/usecase"
	"github.com/Nzyazin/schoolwallet/pkg/config"
	"github.com/Nzyazin/schoolwallet/pkg/postgresdb"
	"github.com/gorilla/mux"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

type Server struct {
	router        *mux.Router
	log           logger.Logger
	httpServer    *http.Server
	walletHandler *handler.WalletHandler
	registry      *prom.Registry
	idempotency   idempotency.Store
	db            *postgresdb.Database
	redis         *redis.Client
}

func NewServer(log logger.Logger, cfg *config.AppConfig) (*Server, error) {
	server := &Server{
		log:      log,
		router:   mux.NewRouter(),
		registry: prom.NewRegistry(),
	}
	server.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	walletRepository, err := server.openRepository(cfg)
	if err != nil {
		return nil, err
	}

	if err := server.openIdempotencyStore(cfg); err != nil {
		server.closeStores()
		return nil, err
	}

	recorder := metrics.NewRecorder(server.registry)
	walletUsecase := usecase.NewWalletUsecase(walletRepository, log,
		usecase.WithLocation(cfg.Location),
		usecase.WithDefaultThreshold(cfg.LowBalanceThreshold),
		usecase.WithObserver(recorder),
		usecase.WithLowBalanceNotifier(recorder),
	)
	server.walletHandler = handler.NewWalletHandler(walletUsecase, log, cfg.Location)

	server.router.Use(loggingMiddleware(server.log))

	mw := middleware.New(middleware.Config{
		Recorder: prometheus.NewRecorder(prometheus.Config{Registry: server.registry}),
	})

	server.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			std.Handler(routeTemplate(r), mw, next).ServeHTTP(w, r)
		})
	})

	server.RegisterRoutes()

	return server, nil
}

func (s *Server) openRepository(cfg *config.AppConfig) (repository.WalletRepository, error) {
	if cfg.Storage == config.StorageMemory {
		s.log.Warn("Using in-memory wallet storage")
		return memory.NewWalletRepo(), nil
	}

	cfgDB, err := config.LoadConfigDB()
	if err != nil {
		return nil, err
	}

	db, err := postgresdb.NewPostgresDB(*cfgDB, s.log)
	if err != nil {
		return nil, err
	}
	s.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := postgres.EnsureSchema(ctx, db.DB); err != nil {
		s.closeStores()
		return nil, err
	}

	return postgres.NewPostgresWalletRepo(db.DB, s.log), nil
}

func (s *Server) openIdempotencyStore(cfg *config.AppConfig) error {
	if cfg.RedisURL == "" {
		s.idempotency = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := idempotency.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	s.redis = client
	s.idempotency = idempotency.NewRedisStore(client, cfg.IdempotencyTTL)
	return nil
}

func (s *Server) RegisterRoutes() {
	s.router.Use(
		middlWre.Recovery(s.log),
		middlWre.Idempotency(s.idempotency, s.log),
	)
	s.router.NotFoundHandler = middlWre.NotFound(s.log)
	s.router.MethodNotAllowedHandler = middlWre.MethodNotAllowed(s.log)

	s.walletHandler.RegisterRoutes(s.router)
	s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      12 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	s.httpServer = srv

	return srv.ListenAndServe()
}

func (s *Server) RunTLS(addr, certFile, keyFile string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       9 * time.Second,
		WriteTimeout:      9 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 6 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	s.httpServer = srv
	return srv.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	var shutdownErr error

	go func() {
		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.log.Error("failed to shutdown HTTP server", logger.ErrorField("error", err))
				shutdownErr = fmt.Errorf("HTTP server shutdown error: %w", err)
			}
		}

		if err := s.closeStores(); err != nil {
			shutdownErr = errors.Join(shutdownErr, err)
		}

		close(done)
	}()

	select {
	case <-done:
		return shutdownErr
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (s *Server) closeStores() error {
	var errs error

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Error("failed to close database connection", logger.ErrorField("error", err))
			errs = errors.Join(errs, fmt.Errorf("database shutdown error: %w", err))
		}
		s.db = nil
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.log.Error("failed to close redis connection", logger.ErrorField("error", err))
			errs = errors.Join(errs, fmt.Errorf("redis shutdown error: %w", err))
		}
		s.redis = nil
	}

	return errs
}

// routeTemplate labels HTTP metrics by route so wallet ids do not explode cardinality.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

func loggingMiddleware(log logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info("HTTP request",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.StringField("remote_addr", r.RemoteAddr),
				logger.StringField("user_agent", r.UserAgent()),
			)
			next.ServeHTTP(w, r)
		})
	}
}
