package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/carecall-backend/internal/http"
	httpH "github.com/yungbote/carecall-backend/internal/http/handlers"
	httpMW "github.com/yungbote/carecall-backend/internal/http/middleware"
	"github.com/yungbote/carecall-backend/internal/observability"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health      *httpH.HealthHandler
	Form        *httpH.FormHandler
	PatientForm *httpH.PatientFormHandler
	Call        *httpH.CallHandler
	Webhook     *httpH.WebhookHandler
	Job         *httpH.JobHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, cfg Config, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:      httpH.NewHealthHandler(db),
		Form:        httpH.NewFormHandler(services.Form),
		PatientForm: httpH.NewPatientFormHandler(services.Form, services.Submission),
		Call:        httpH.NewCallHandler(services.Call),
		Webhook:     httpH.NewWebhookHandler(log, services.Webhook),
		Job: httpH.NewJobHandler(log, services.Call, services.Scheduler, services.JobVerifier, httpH.JobHandlerConfig{
			CronSecret: cfg.CronSecret,
			SweepCron:  cfg.SweepCron,
		}),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, traceService string, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:                log,
		Metrics:            metrics,
		CORSOrigins:        cfg.CORSOrigins,
		TraceService:       traceService,
		AuthMiddleware:     middleware.Auth,
		HealthHandler:      handlers.Health,
		FormHandler:        handlers.Form,
		PatientFormHandler: handlers.PatientForm,
		CallHandler:        handlers.Call,
		WebhookHandler:     handlers.Webhook,
		JobHandler:         handlers.Job,
	})
}
