package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoreason"
	"github.com/soundprediction/ontoreason/pkg/config"
	"github.com/soundprediction/ontoreason/pkg/metrics"
	"github.com/soundprediction/ontoreason/pkg/server/handlers"
	"github.com/soundprediction/ontoreason/pkg/types"
)

// Server represents the HTTP server
type Server struct {
	config  *config.Config
	router  *gin.Engine
	client  ontoreason.Ontoreason
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new server instance. m may be nil, in which case
// /metrics is not served.
func New(cfg *config.Config, client ontoreason.Ontoreason, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config:  cfg,
		client:  client,
		metrics: m,
		logger:  logger.With("component", "server"),
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	if s.config.Server.Mode != "" {
		gin.SetMode(s.config.Server.Mode)
	}

	s.router = gin.New()
	s.router.Use(requestLogger(s.logger))
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())
	s.router.Use(contextMiddleware())

	s.setupRoutes()

	s.server = &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.client)

	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck)
	s.router.GET("/health/detailed", healthHandler.DetailedHealthCheck)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	if s.client == nil {
		return
	}
	queryHandler := handlers.NewQueryHandler(s.client)
	factsHandler := handlers.NewFactsHandler(s.client)
	reasonHandler := handlers.NewReasonHandler(s.client)
	graphHandler := handlers.NewGraphHandler(s.client)
	agentHandler := handlers.NewAgentHandler(s.client.Agent())

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/query", queryHandler.Query)

		v1.POST("/facts", factsHandler.InsertFact)
		v1.POST("/facts/query", factsHandler.QueryFacts)
		v1.PUT("/entities/:id/status", factsHandler.UpdateStatus)

		v1.POST("/reason", reasonHandler.Reason)
		v1.POST("/agent/beliefs", agentHandler.UpdateBeliefs)

		v1.POST("/rebuild", graphHandler.Rebuild)
		v1.GET("/graph/stats", graphHandler.Stats)
	}
}

// Start starts the server and blocks until it stops. A graceful Stop is
// not an error.
func (s *Server) Start() error {
	s.logger.Info("Starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping server")
	return s.server.Shutdown(ctx)
}

// requestLogger logs each request after it is served.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "Request served",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"latency", time.Since(start))
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-User-ID, X-Session-ID")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// contextMiddleware extracts context information from headers
func contextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if userID := c.GetHeader("X-User-ID"); userID != "" {
			ctx = context.WithValue(ctx, types.ContextKeyUserID, userID)
		}
		if sessionID := c.GetHeader("X-Session-ID"); sessionID != "" {
			ctx = context.WithValue(ctx, types.ContextKeySessionID, sessionID)
		}
		ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "server")

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
