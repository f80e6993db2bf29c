package app

import (
	"github.com/yungbote/lumen-backend/internal/http"
	httpH "github.com/yungbote/lumen-backend/internal/http/handlers"
	httpMW "github.com/yungbote/lumen-backend/internal/http/middleware"
	"github.com/yungbote/lumen-backend/internal/observability"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
	"github.com/yungbote/lumen-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Session  *httpH.SessionHandler
	Job      *httpH.JobHandler
	Post     *httpH.PostHandler
	Content  *httpH.ContentHandler
	Realtime *httpH.RealtimeHandler
	Balance  *httpH.BalanceHandler
}

func wireHandlers(log *logger.Logger, svc Services, hub *realtime.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(),
		Session:  httpH.NewSessionHandler(log, svc.Sessions),
		Job:      httpH.NewJobHandler(log, svc.Jobs),
		Post:     httpH.NewPostHandler(log, svc.Posts, svc.Interactions),
		Content:  httpH.NewContentHandler(svc.Content),
		Realtime: httpH.NewRealtimeHandler(log, hub, svc.Jobs, svc.Sessions),
		Balance:  httpH.NewBalanceHandler(svc.Ledger),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, cfg.JWTSecretKey),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:             log,
		ServiceName:     cfg.ServiceName,
		Metrics:         metrics,
		AuthMiddleware:  middleware.Auth,
		SessionHandler:  handlers.Session,
		JobHandler:      handlers.Job,
		PostHandler:     handlers.Post,
		ContentHandler:  handlers.Content,
		RealtimeHandler: handlers.Realtime,
		BalanceHandler:  handlers.Balance,
		HealthHandler:   handlers.Health,
	})
}
