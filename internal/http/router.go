package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/lumen-backend/internal/domain/content"
	httpH "github.com/yungbote/lumen-backend/internal/http/handlers"
	httpMW "github.com/yungbote/lumen-backend/internal/http/middleware"
	"github.com/yungbote/lumen-backend/internal/observability"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	Metrics        *observability.Metrics
	AuthMiddleware *httpMW.AuthMiddleware

	SessionHandler  *httpH.SessionHandler
	JobHandler      *httpH.JobHandler
	PostHandler     *httpH.PostHandler
	ContentHandler  *httpH.ContentHandler
	RealtimeHandler *httpH.RealtimeHandler
	BalanceHandler  *httpH.BalanceHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "lumen-backend"
	}
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Sessions
	if cfg.SessionHandler != nil {
		api.POST("/sessions", cfg.SessionHandler.CreateSession)
		api.GET("/sessions/:id", cfg.SessionHandler.GetSession)
		api.POST("/sessions/:id/turns", cfg.SessionHandler.StartTurn)
		api.POST("/sessions/:id/persist", cfg.SessionHandler.Persist)
		api.POST("/sessions/:id/publish", cfg.SessionHandler.Publish)
	}

	// Jobs
	if cfg.JobHandler != nil {
		api.POST("/jobs", cfg.JobHandler.CreateJob)
		api.GET("/jobs", cfg.JobHandler.ListJobs)
		api.GET("/jobs/:id", cfg.JobHandler.GetJob)
		api.POST("/jobs/:id/regenerate", cfg.JobHandler.Regenerate)
		api.POST("/jobs/:id/publish", cfg.JobHandler.Publish)
		api.GET("/jobs/:id/artifact", cfg.JobHandler.Artifact)
	}

	// Posts
	if cfg.PostHandler != nil {
		api.GET("/posts/:id", cfg.PostHandler.GetPost)
		api.PATCH("/posts/:id", cfg.PostHandler.UpdatePost)
		api.DELETE("/posts/:id", cfg.PostHandler.DeletePost)
		api.PUT("/posts/:id/like", cfg.PostHandler.SetInteraction(content.InteractionLike))
		api.PUT("/posts/:id/save", cfg.PostHandler.SetInteraction(content.InteractionSave))
	}

	if cfg.ContentHandler != nil {
		api.GET("/content/:kind/:id", cfg.ContentHandler.GetContent)
	}

	// Realtime (SSE)
	if cfg.RealtimeHandler != nil {
		api.GET("/realtime/:channel", cfg.RealtimeHandler.Stream)
	}

	if cfg.BalanceHandler != nil {
		api.GET("/balance", cfg.BalanceHandler.GetBalance)
	}

	return r
}
