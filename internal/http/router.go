package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/carecall-backend/internal/http/handlers"
	httpMW "github.com/yungbote/carecall-backend/internal/http/middleware"
	"github.com/yungbote/carecall-backend/internal/observability"
	"github.com/yungbote/carecall-backend/internal/platform/ctxutil"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	// TraceService names the otelgin server span source; empty disables it.
	TraceService string

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler      *httpH.HealthHandler
	FormHandler        *httpH.FormHandler
	PatientFormHandler *httpH.PatientFormHandler
	CallHandler        *httpH.CallHandler
	WebhookHandler     *httpH.WebhookHandler
	JobHandler         *httpH.JobHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.TraceService != "" {
		r.Use(otelgin.Middleware(cfg.TraceService))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics, "/healthcheck"))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")

	// Provider callbacks (public, always 200)
	if cfg.WebhookHandler != nil {
		api.POST("/webhooks/call", cfg.WebhookHandler.Receive)
		api.GET("/webhooks/call", cfg.WebhookHandler.Status)
		api.POST("/forms/call-submit", cfg.WebhookHandler.Receive)
	}

	// Jobs (signed deliveries, operator triggers)
	if cfg.JobHandler != nil {
		api.POST("/jobs/call-form", cfg.JobHandler.CallForm)
		api.POST("/jobs/sweep", cfg.JobHandler.Sweep)
		api.GET("/jobs/sweep", cfg.JobHandler.SweepManual)
		api.GET("/setup/sweep-schedule", cfg.JobHandler.SetupSweepSchedule)
	}

	if cfg.AuthMiddleware == nil {
		return r
	}

	doctor := api.Group("/")
	doctor.Use(cfg.AuthMiddleware.RequireRole(ctxutil.RoleDoctor))
	{
		if cfg.FormHandler != nil {
			doctor.POST("/patients/:patientId/forms", cfg.FormHandler.CreateForm)
			doctor.GET("/patients/:patientId/forms", cfg.FormHandler.ListPatientForms)
			doctor.GET("/forms/:formId", cfg.FormHandler.GetForm)
			doctor.PATCH("/forms/:formId", cfg.FormHandler.UpdateForm)
			doctor.DELETE("/forms/:formId", cfg.FormHandler.DeleteForm)
			doctor.POST("/forms/:formId/questions", cfg.FormHandler.AddQuestion)
			doctor.GET("/forms/:formId/answers", cfg.FormHandler.ListAnswers)
			doctor.PATCH("/questions/:questionId", cfg.FormHandler.UpdateQuestion)
			doctor.DELETE("/questions/:questionId", cfg.FormHandler.DeleteQuestion)
		}
		if cfg.CallHandler != nil {
			doctor.POST("/forms/:formId/call", cfg.CallHandler.TriggerCall)
		}
	}

	patient := api.Group("/me")
	patient.Use(cfg.AuthMiddleware.RequireRole(ctxutil.RolePatient))
	{
		if cfg.PatientFormHandler != nil {
			patient.GET("/forms", cfg.PatientFormHandler.ListMyForms)
			patient.GET("/forms/:formId", cfg.PatientFormHandler.GetMyForm)
			patient.POST("/forms/:formId/submit", cfg.PatientFormHandler.Submit)
		}
	}

	return r
}
