package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/carecall-backend/internal/observability"
	"github.com/yungbote/carecall-backend/internal/platform/envutil"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

var ErrNotConfigured = errors.New("openai: not configured")

// Client produces strict JSON completions.
type Client interface {
	GenerateJSON(ctx context.Context, system, user string, out any) error
}

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

func ConfigFromEnv() Config {
	temp := float32(envutil.Int("OPENAI_TEMPERATURE_PCT", 20)) / 100
	return Config{
		APIKey:      envutil.String("OPENAI_API_KEY", ""),
		BaseURL:     envutil.String("OPENAI_BASE_URL", ""),
		Model:       envutil.String("OPENAI_MODEL", "gpt-4o-mini"),
		Temperature: temp,
		Timeout:     envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 30*time.Second),
	}
}

type client struct {
	log *logger.Logger
	api *goopenai.Client
	cfg Config
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: missing OPENAI_API_KEY", ErrNotConfigured)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &client{
		log: log.With("client", "OpenAIClient"),
		api: goopenai.NewClientWithConfig(oc),
		cfg: cfg,
	}, nil
}

func (c *client) GenerateJSON(ctx context.Context, system, user string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
		Temperature: c.cfg.Temperature,
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	if m := observability.Current(); m != nil {
		m.ObserveLLMRequest(c.cfg.Model, status, time.Since(start))
	}
	if err != nil {
		return fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("openai chat completion: no choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("openai decode json: %w", err)
	}
	c.log.Debug("OpenAI JSON completion", "model", c.cfg.Model, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
