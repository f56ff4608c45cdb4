// Package scheduling arms delayed and recurring jobs on Temporal. Jobs are
// delivered back to this service as signed HTTP POSTs by the jobdelivery
// workflow, so the job endpoints stay the single entry point for the work.
package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/carecall-backend/internal/platform/httpx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
	"github.com/yungbote/carecall-backend/internal/temporalx/jobdelivery"
)

const (
	DeadlineCallPath = "/api/jobs/call-form"
	SweepPath        = "/api/jobs/sweep"
	SweepScheduleID  = "form-sweep"

	deadlineWorkflowPrefix = "form-deadline-call-"
)

var (
	ErrNotConfigured   = errors.New("scheduling: not configured")
	ErrInvalidSchedule = errors.New("scheduling: invalid schedule")
)

type Scheduler interface {
	ScheduleDeadlineCall(ctx context.Context, formID uuid.UUID, when time.Time) (*Job, error)
	ScheduleRecurringSweep(ctx context.Context, cron string) (*Schedule, error)
}

type Job struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id,omitempty"`
	URL       string    `json:"url"`
	DeliverAt time.Time `json:"deliver_at"`
}

type Schedule struct {
	ID      string `json:"id"`
	Cron    string `json:"cron"`
	URL     string `json:"url"`
	Created bool   `json:"created"`
}

type Config struct {
	BaseURL     string
	TaskQueue   string
	MaxAttempts int
}

type workflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options temporalsdkclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (temporalsdkclient.WorkflowRun, error)
}

type scheduleCreator interface {
	Create(ctx context.Context, options temporalsdkclient.ScheduleOptions) (temporalsdkclient.ScheduleHandle, error)
}

type Gateway struct {
	log       *logger.Logger
	cfg       Config
	starter   workflowStarter
	schedules scheduleCreator
	now       func() time.Time
}

// New accepts a nil client; every call then fails with ErrNotConfigured.
func New(log *logger.Logger, tc temporalsdkclient.Client, cfg Config) *Gateway {
	g := &Gateway{log: log.With("service", "SchedulingGateway"), cfg: cfg, now: time.Now}
	if tc != nil {
		g.starter = tc
		g.schedules = tc.ScheduleClient()
	}
	if g.cfg.MaxAttempts <= 0 {
		g.cfg.MaxAttempts = jobdelivery.DefaultMaxAttempts
	}
	return g
}

func (g *Gateway) ScheduleDeadlineCall(ctx context.Context, formID uuid.UUID, when time.Time) (*Job, error) {
	if g.starter == nil {
		return nil, fmt.Errorf("%w: temporal client missing", ErrNotConfigured)
	}
	dest, err := g.destination(DeadlineCallPath)
	if err != nil {
		return nil, err
	}
	if formID == uuid.Nil {
		return nil, fmt.Errorf("%w: form id required", ErrInvalidSchedule)
	}
	delay := when.Sub(g.now())
	if delay <= 0 {
		return nil, fmt.Errorf("%w: deliver time %s is not in the future", ErrInvalidSchedule, when.UTC().Format(time.RFC3339))
	}

	body, _ := json.Marshal(map[string]string{"formId": formID.String()})
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                       deadlineWorkflowPrefix + formID.String(),
		TaskQueue:                g.cfg.TaskQueue,
		StartDelay:               delay,
		WorkflowIDConflictPolicy: enumspb.WORKFLOW_ID_CONFLICT_POLICY_TERMINATE_EXISTING,
	}
	run, err := g.starter.ExecuteWorkflow(ctx, opts, jobdelivery.WorkflowName, jobdelivery.DeliveryRequest{
		URL:         dest,
		Body:        body,
		MaxAttempts: g.cfg.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("schedule deadline call: %w", err)
	}
	g.log.Info("Deadline call armed", "form_id", formID, "deliver_at", when.UTC(), "workflow_id", run.GetID())
	return &Job{ID: run.GetID(), RunID: run.GetRunID(), URL: dest, DeliverAt: when.UTC()}, nil
}

// ScheduleRecurringSweep creates the sweep schedule. An existing schedule is
// left untouched and reported with Created=false.
func (g *Gateway) ScheduleRecurringSweep(ctx context.Context, cron string) (*Schedule, error) {
	if g.schedules == nil {
		return nil, fmt.Errorf("%w: temporal client missing", ErrNotConfigured)
	}
	cron = strings.TrimSpace(cron)
	if len(strings.Fields(cron)) < 5 {
		return nil, fmt.Errorf("%w: cron %q", ErrInvalidSchedule, cron)
	}
	dest, err := g.destination(SweepPath)
	if err != nil {
		return nil, err
	}

	out := &Schedule{ID: SweepScheduleID, Cron: cron, URL: dest, Created: true}
	_, err = g.schedules.Create(ctx, temporalsdkclient.ScheduleOptions{
		ID:      SweepScheduleID,
		Spec:    temporalsdkclient.ScheduleSpec{CronExpressions: []string{cron}},
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		Action: &temporalsdkclient.ScheduleWorkflowAction{
			ID:        SweepScheduleID + "-run",
			Workflow:  jobdelivery.WorkflowName,
			TaskQueue: g.cfg.TaskQueue,
			Args: []interface{}{jobdelivery.DeliveryRequest{
				URL:         dest,
				Body:        json.RawMessage(`{}`),
				MaxAttempts: g.cfg.MaxAttempts,
			}},
		},
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		out.Created = false
		g.log.Info("Sweep schedule already exists", "schedule_id", SweepScheduleID)
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	g.log.Info("Sweep schedule created", "schedule_id", SweepScheduleID, "cron", cron)
	return out, nil
}

func (g *Gateway) destination(path string) (string, error) {
	if strings.TrimSpace(g.cfg.BaseURL) == "" {
		return "", fmt.Errorf("%w: APP_URL not set", ErrNotConfigured)
	}
	return httpx.PublicURL(g.cfg.BaseURL, path), nil
}
