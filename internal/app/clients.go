package app

import (
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/carecall-backend/internal/clients/redis"
	"github.com/yungbote/carecall-backend/internal/clients/twilio"
	"github.com/yungbote/carecall-backend/internal/clients/vapi"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
	"github.com/yungbote/carecall-backend/internal/platform/openai"
	"github.com/yungbote/carecall-backend/internal/platform/sendgrid"
	"github.com/yungbote/carecall-backend/internal/temporalx"
)

// Clients holds the outbound integrations. Any of them may be nil when its
// credentials are not configured; the services degrade accordingly.
type Clients struct {
	Redis    *goredis.Client
	Temporal temporalsdkclient.Client
	Calls    vapi.Client
	LLM      openai.Client
	Email    sendgrid.Client
	SMS      twilio.Client
}

func wireClients(log *logger.Logger, tcfg temporalx.Config) (Clients, error) {
	log.Info("Wiring clients...")

	rdb, err := redis.New(log, redis.ConfigFromEnv())
	if err != nil {
		return Clients{}, fmt.Errorf("init redis: %w", err)
	}

	tc, err := temporalx.NewClient(log, tcfg)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return Clients{}, fmt.Errorf("init temporal: %w", err)
	}

	out := Clients{Redis: rdb, Temporal: tc}
	fail := func(err error) (Clients, error) {
		out.Close()
		return Clients{}, err
	}

	calls, err := vapi.New(log, vapi.ConfigFromEnv())
	if err = optional(log, "vapi", err, vapi.ErrNotConfigured); err != nil {
		return fail(fmt.Errorf("init vapi: %w", err))
	}
	out.Calls = calls

	llm, err := openai.New(log, openai.ConfigFromEnv())
	if err = optional(log, "openai", err, openai.ErrNotConfigured); err != nil {
		return fail(fmt.Errorf("init openai: %w", err))
	}
	out.LLM = llm

	email, err := sendgrid.New(log, sendgrid.ConfigFromEnv())
	if err = optional(log, "sendgrid", err, sendgrid.ErrNotConfigured); err != nil {
		return fail(fmt.Errorf("init sendgrid: %w", err))
	}
	out.Email = email

	sms, err := twilio.New(log, twilio.ConfigFromEnv())
	if err = optional(log, "twilio", err, twilio.ErrNotConfigured); err != nil {
		return fail(fmt.Errorf("init twilio: %w", err))
	}
	out.SMS = sms

	return out, nil
}

// optional swallows notConfigured so a missing integration only disables
// the feature behind it.
func optional(log *logger.Logger, name string, err, notConfigured error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, notConfigured) {
		log.Warn("Client disabled", "client", name, "reason", err.Error())
		return nil
	}
	return err
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
