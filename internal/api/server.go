package api

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reelgate/internal/logging"
	"reelgate/internal/services"
	"reelgate/internal/stage"
	"reelgate/internal/workflow"
)

// HealthSource reports generator readiness per stage.
type HealthSource interface {
	Health(ctx context.Context) []stage.Health
}

// Server holds the handler dependencies.
type Server struct {
	engine   *workflow.Engine
	health   HealthSource
	runStore string
	logger   *slog.Logger
}

// Options configures NewServer.
type Options struct {
	Engine *workflow.Engine
	// Health may be nil; status then reports no generators.
	Health   HealthSource
	RunStore string
	Logger   *slog.Logger
}

// NewServer constructs a Server.
func NewServer(opts Options) *Server {
	return &Server{
		engine:   opts.Engine,
		health:   opts.Health,
		runStore: opts.RunStore,
		logger:   logging.NewComponentLogger(opts.Logger, "api"),
	}
}

// Handler returns the gin router with every route registered.
func (s *Server) Handler() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestContext())

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/status", s.status)

		workflows := apiGroup.Group("/workflows")
		workflows.POST("", s.startWorkflow)
		workflows.GET("", s.listWorkflows)
		workflows.GET("/:id", s.getWorkflow)
		workflows.GET("/:id/stages/:stage", s.getStage)
		workflows.POST("/:id/stages/:stage/generate", s.generateStage)
		workflows.POST("/:id/stages/:stage/approve", s.approveStage)
		workflows.POST("/:id/stages/:stage/reject", s.rejectStage)
		workflows.POST("/:id/upload", s.finalizeUpload)

		videos := apiGroup.Group("/videos")
		videos.GET("", s.listVideos)
		videos.GET("/:id", s.getVideo)
		videos.GET("/:id/file", s.streamVideo)
		videos.POST("/:id/publish", s.publishVideo)
	}
	return router
}

// requestContext tags the request with a correlation id and logs completion.
func (s *Server) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(services.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()
		logging.WithContext(c.Request.Context(), s.logger).Debug("request handled",
			logging.String("method", c.Request.Method),
			logging.String("path", c.FullPath()),
			logging.Int("status", c.Writer.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}
