// Package server собирает relay-сервер: маршруты, middleware, hub рассылки и журнал пакетов.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/iudanet/gophdoc/internal/config"
	"github.com/iudanet/gophdoc/internal/relay"
	"github.com/iudanet/gophdoc/internal/server/handlers"
	"github.com/iudanet/gophdoc/internal/server/middleware"
)

// HealthPath путь health check, исключен из логирования запросов
const HealthPath = "/api/v1/health"

// Пути журнала и потока пакетов документа
const (
	CommitsPath = "/api/v1/docs/{doc}/commits"
	StreamPath  = "/api/v1/docs/{doc}/stream"
)

// Storage журнал пакетов, нужный серверу
type Storage interface {
	handlers.CommitStorage
	handlers.Pinger
}

// Server relay-сервер
type Server struct {
	cfg       *config.ServerConfig
	logger    *slog.Logger
	storage   Storage
	hub       *relay.Hub
	publisher handlers.Publisher
	bridge    *relay.RedisBridge
	redis     *redis.Client
	writes    *middleware.RateLimiter
	reads     *middleware.RateLimiter
	router    *mux.Router
}

// New создает сервер. При заданном RedisURL пакеты дополнительно
// пересылаются другим экземплярам relay через Redis.
func New(cfg *config.ServerConfig, logger *slog.Logger, storage Storage, version string) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		storage: storage,
		hub:     relay.NewHub(logger.With("component", "hub")),
		writes:  middleware.NewRateLimiter(cfg.WriteRate, cfg.RateWindow),
		reads:   middleware.NewRateLimiter(cfg.ReadRate, cfg.RateWindow),
	}
	s.publisher = s.hub

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			s.stopLimiters()
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		s.redis = redis.NewClient(opts)
		s.bridge = relay.NewRedisBridge(s.redis, s.hub, logger.With("component", "redis-bridge"))
		s.publisher = s.bridge
	}

	s.router = s.routes(version)
	return s, nil
}

func (s *Server) routes(version string) *mux.Router {
	commits := handlers.NewCommitHandler(s.logger, s.storage, s.publisher, s.cfg.PullLimit)
	stream := handlers.NewStreamHandler(s.logger, s.storage, s.hub)
	health := handlers.NewHealthHandler(s.logger, s.storage, version)

	router := mux.NewRouter()
	router.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingWithSkip(s.logger, []string{HealthPath}),
		middleware.RateLimitByMethodMiddleware(s.writes, s.reads, s.logger),
	)

	// без вложенных subrouter, чтобы несовпадение метода давало 405
	router.HandleFunc(HealthPath, health.Health).Methods(http.MethodGet)
	router.HandleFunc(CommitsPath, commits.Push).Methods(http.MethodPost)
	router.HandleFunc(CommitsPath, commits.Pull).Methods(http.MethodGet)
	router.HandleFunc(StreamPath, stream.Stream).Methods(http.MethodGet)

	return router
}

// Handler HTTP-обработчик сервера
func (s *Server) Handler() http.Handler {
	return s.router
}

// BridgeReady закрывается после подписки на Redis; без Redis закрыт сразу
func (s *Server) BridgeReady() <-chan struct{} {
	if s.bridge == nil {
		ready := make(chan struct{})
		close(ready)
		return ready
	}
	return s.bridge.Ready()
}

// Run слушает cfg.Address до отмены ctx
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		s.stopLimiters()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает ln до отмены ctx, затем корректно останавливается:
// новые соединения не принимаются, открытые потоки закрываются hub.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.stopLimiters()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)

	bridgeErr := make(chan error, 1)
	if s.bridge != nil {
		defer s.redis.Close()
		go func() { bridgeErr <- s.bridge.Run(hubCtx) }()
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("relay server listening", "address", ln.Addr().String())
		serveErr <- srv.Serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutting down relay server")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case err := <-bridgeErr:
		if err != nil {
			runErr = fmt.Errorf("redis bridge: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("graceful shutdown failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("shutdown: %w", err)
		}
	}

	// hijacked websocket соединения Shutdown не ждет: их закрывает остановка hub
	stopHub()

	s.logger.Info("relay server stopped")
	return runErr
}

func (s *Server) stopLimiters() {
	s.writes.Stop()
	s.reads.Stop()
}
