// internal/collector/server.go
package collector

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/signalnine/threatscope/internal/analysis"
	"github.com/signalnine/threatscope/internal/config"
	"github.com/signalnine/threatscope/internal/ipintel"
	"github.com/signalnine/threatscope/internal/notify"
)

// Server is the central collector
type Server struct {
	cfg       *config.CollectorConfig
	db        *DB
	redis     *redis.Client
	publisher notify.Publisher
	logger    *zap.Logger
	router    chi.Router
	server    *http.Server
	closeOnce sync.Once
	closeErr  error
}

// NewServer creates a new collector server
func NewServer(ctx context.Context, cfg *config.CollectorConfig, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Server{cfg: cfg, db: db, logger: logger}

	var intel ipintel.Provider = ipintel.NewPrefixHeuristic()
	if cfg.RedisURL != "" {
		client, err := ipintel.DialRedis(ctx, cfg.RedisURL)
		if err != nil {
			// lookups still work uncached
			logger.Warn("redis unavailable, intelligence cache disabled", zap.Error(err))
		} else {
			s.redis = client
			intel = ipintel.NewRedisCache(client, intel, cfg.IntelCacheTTL, logger)
		}
	}

	s.publisher = notify.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		s.publisher = notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	}

	// Convert config endpoints to LLM client endpoints
	var endpoints []Endpoint
	for _, ep := range cfg.LLMEndpoints {
		endpoints = append(endpoints, Endpoint{
			URL:    ep.URL,
			Model:  ep.Model,
			APIKey: ep.APIKey,
		})
	}
	llm := NewLLMClient(endpoints, logger.Named("llm"))

	analyzer := analysis.New(
		analysis.WithWorkers(cfg.Workers),
		analysis.WithIntelligence(intel),
		analysis.WithLogger(logger.Named("analysis")),
	)
	pipeline := NewPipeline(db, analyzer, llm, s.publisher, logger)

	s.router = NewRouter(
		NewIngestHandler(pipeline, cfg.APIKey, cfg.MaxPayloadBytes),
		NewAPIHandler(pipeline, cfg.MaxPayloadBytes),
		cfg.AllowedOrigins,
		logger,
	)

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// NewRouter mounts the collector routes behind the shared middleware stack
func NewRouter(ingest *IngestHandler, api *APIHandler, allowedOrigins []string, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	r.Method(http.MethodPost, "/ingest", ingest)

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", api.Analyze)
		r.Post("/analyze/ai", api.AnalyzeAI)
		r.Get("/analyses", api.ListAnalyses)
		r.Get("/analyses/elevated", api.Elevated)
		r.Get("/stats", api.Stats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// LoggerMiddleware logs one line per request
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("user_agent", r.UserAgent()),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// Handler exposes the router for in-process use
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.Close()
		return fmt.Errorf("listen %s: %w", s.cfg.ListenAddr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is cancelled. TLS is used when a cert is
// configured. The server's resources are released on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	useTLS := s.cfg.TLSCert != "" && s.cfg.TLSKey != ""
	if useTLS {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCert, s.cfg.TLSKey)
		if err != nil {
			ln.Close()
			return fmt.Errorf("load TLS cert: %w", err)
		}
		s.server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	s.logger.Info("collector starting",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("tls", useTLS),
	)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if useTLS {
			err = s.server.ServeTLS(ln, "", "")
		} else {
			err = s.server.Serve(ln)
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("collector shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close releases the database, cache and publisher. Safe to call twice.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.release() })
	return s.closeErr
}

func (s *Server) release() error {
	var errs []error
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
