package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/carecall-backend/internal/http/response"
	"github.com/yungbote/carecall-backend/internal/platform/jobsig"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
	"github.com/yungbote/carecall-backend/internal/scheduling"
	"github.com/yungbote/carecall-backend/internal/services"
)

const maxJobBody = 1 << 20

type JobHandlerConfig struct {
	CronSecret string
	SweepCron  string
}

// JobHandler receives signed job deliveries and the operator sweep triggers.
type JobHandler struct {
	log       *logger.Logger
	calls     services.CallService
	scheduler scheduling.Scheduler
	verifier  *jobsig.Verifier
	cfg       JobHandlerConfig
}

func NewJobHandler(log *logger.Logger, calls services.CallService, scheduler scheduling.Scheduler, verifier *jobsig.Verifier, cfg JobHandlerConfig) *JobHandler {
	if strings.TrimSpace(cfg.SweepCron) == "" {
		cfg.SweepCron = "0 * * * *"
	}
	return &JobHandler{
		log:       log.With("handler", "JobHandler"),
		calls:     calls,
		scheduler: scheduler,
		verifier:  verifier,
		cfg:       cfg,
	}
}

// signedBody reads the body and checks its job signature, answering 401 on
// a bad or missing signature.
func (h *JobHandler) signedBody(c *gin.Context) ([]byte, bool) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxJobBody))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return nil, false
	}
	if err := h.verifier.Verify(c.GetHeader(jobsig.HeaderName), raw); err != nil {
		h.log.Warn("Job signature rejected", "path", c.FullPath(), "error", err)
		response.RespondError(c, http.StatusUnauthorized, "invalid_signature", errors.New("Invalid signature"))
		return nil, false
	}
	return raw, true
}

type callFormJob struct {
	FormID string `json:"formId"`
}

// POST /api/jobs/call-form
func (h *JobHandler) CallForm(c *gin.Context) {
	raw, ok := h.signedBody(c)
	if !ok {
		return
	}
	var job callFormJob
	if err := json.Unmarshal(raw, &job); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(job.FormID) == "" {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errors.New("formId is required"))
		return
	}
	formID, err := uuid.Parse(strings.TrimSpace(job.FormID))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "validation_error", errors.New("Invalid formId"))
		return
	}
	res, err := h.calls.CallForDeadline(requestDBC(c), formID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// POST /api/jobs/sweep
func (h *JobHandler) Sweep(c *gin.Context) {
	if _, ok := h.signedBody(c); !ok {
		return
	}
	h.runSweep(c)
}

// GET /api/jobs/sweep
func (h *JobHandler) SweepManual(c *gin.Context) {
	if secret := strings.TrimSpace(h.cfg.CronSecret); secret != "" {
		if !secretMatches(c.GetHeader("Authorization"), "Bearer "+secret) {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("Unauthorized - use Authorization: Bearer <CRON_SECRET>"))
			return
		}
	}
	h.runSweep(c)
}

func (h *JobHandler) runSweep(c *gin.Context) {
	report, err := h.calls.RunSweep(requestDBC(c))
	if err != nil {
		h.log.Error("Sweep failed", "error", err)
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, report)
}

// GET /api/setup/sweep-schedule?secret=<CRON_SECRET>
func (h *JobHandler) SetupSweepSchedule(c *gin.Context) {
	secret := strings.TrimSpace(h.cfg.CronSecret)
	if secret == "" || !secretMatches(c.Query("secret"), secret) {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("Unauthorized - provide ?secret=CRON_SECRET"))
		return
	}
	if h.scheduler == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "scheduling_not_configured", scheduling.ErrNotConfigured)
		return
	}
	sched, err := h.scheduler.ScheduleRecurringSweep(c.Request.Context(), h.cfg.SweepCron)
	switch {
	case errors.Is(err, scheduling.ErrNotConfigured):
		response.RespondError(c, http.StatusServiceUnavailable, "scheduling_not_configured", err)
		return
	case errors.Is(err, scheduling.ErrInvalidSchedule):
		response.RespondError(c, http.StatusBadRequest, "invalid_schedule", err)
		return
	case err != nil:
		h.log.Error("Sweep schedule setup failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "schedule_failed", errors.New("Setup failed"))
		return
	}
	msg := "Sweep schedule created successfully"
	if !sched.Created {
		msg = "Sweep schedule already exists"
	}
	response.RespondOK(c, gin.H{"message": msg, "schedule": sched})
}

func secretMatches(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
