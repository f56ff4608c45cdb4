package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/carecall-backend/internal/platform/ctxutil"
	"github.com/yungbote/carecall-backend/internal/platform/envutil"
	"github.com/yungbote/carecall-backend/internal/platform/httpx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

// ErrNotConfigured means the private key or the outbound phone number id is
// missing. Calls cannot be placed without both.
var ErrNotConfigured = errors.New("vapi: not configured")

type Client interface {
	PlaceCall(ctx context.Context, req PlaceCallRequest) (*Call, error)
	GetCall(ctx context.Context, callID string) (*Call, error)
}

type Config struct {
	PrivateKey      string
	PhoneNumberID   string
	BaseURL         string
	AssistantModel  string
	VoiceProvider   string
	VoiceID         string
	ServerURLSecret string
	Timeout         time.Duration
	MaxRetries      int
}

func ConfigFromEnv() Config {
	return Config{
		PrivateKey:      envutil.String("VAPI_PRIVATE_KEY", ""),
		PhoneNumberID:   envutil.String("VAPI_PHONE_NUMBER_ID", ""),
		BaseURL:         envutil.String("VAPI_BASE_URL", "https://api.vapi.ai"),
		AssistantModel:  envutil.String("VAPI_ASSISTANT_MODEL", defaultAssistantModel),
		VoiceProvider:   envutil.String("VAPI_VOICE_PROVIDER", defaultVoiceProvider),
		VoiceID:         envutil.String("VAPI_VOICE_ID", defaultVoiceID),
		ServerURLSecret: envutil.String("VAPI_SERVER_URL_SECRET", ""),
		Timeout:         envutil.Seconds("VAPI_TIMEOUT_SECONDS", 20*time.Second),
		MaxRetries:      envutil.Int("VAPI_MAX_RETRIES", 2),
	}
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.PrivateKey = strings.TrimSpace(cfg.PrivateKey)
	cfg.PhoneNumberID = strings.TrimSpace(cfg.PhoneNumberID)
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("%w: missing VAPI_PRIVATE_KEY", ErrNotConfigured)
	}
	if cfg.PhoneNumberID == "" {
		return nil, fmt.Errorf("%w: missing VAPI_PHONE_NUMBER_ID", ErrNotConfigured)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.vapi.ai"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &client{
		log:        log.With("client", "VapiClient"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

// CallQuestion is echoed back in call metadata so webhook handlers can see
// what was asked without a database round trip.
type CallQuestion struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type CallMetadata struct {
	FormID      string         `json:"formId"`
	PatientID   string         `json:"patientId,omitempty"`
	DoctorID    string         `json:"doctorId,omitempty"`
	CallbackURL string         `json:"callbackUrl,omitempty"`
	Questions   []CallQuestion `json:"questions,omitempty"`
}

type PlaceCallRequest struct {
	CustomerNumber string
	CustomerName   string
	Assistant      Assistant
	Metadata       CallMetadata
}

type Customer struct {
	Number string `json:"number"`
	Name   string `json:"name,omitempty"`
}

type createCallBody struct {
	PhoneNumberID string       `json:"phoneNumberId"`
	Customer      Customer     `json:"customer"`
	Assistant     Assistant    `json:"assistant"`
	Metadata      CallMetadata `json:"metadata"`
}

type TranscriptMessage struct {
	Role    string `json:"role"`
	Message string `json:"message,omitempty"`
	Content string `json:"content,omitempty"`
}

type Artifact struct {
	Transcript string              `json:"transcript,omitempty"`
	Messages   []TranscriptMessage `json:"messages,omitempty"`
}

// Call is the subset of the provider's call object this service reads.
type Call struct {
	ID          string              `json:"id"`
	Status      string              `json:"status,omitempty"`
	PhoneNumber json.RawMessage     `json:"phoneNumber,omitempty"`
	CreatedAt   string              `json:"createdAt,omitempty"`
	EndedReason string              `json:"endedReason,omitempty"`
	Transcript  string              `json:"transcript,omitempty"`
	Messages    []TranscriptMessage `json:"messages,omitempty"`
	Artifact    *Artifact           `json:"artifact,omitempty"`
	Metadata    map[string]any      `json:"metadata,omitempty"`
}

// TranscriptText prefers the artifact transcript when both are present.
func (c *Call) TranscriptText() string {
	if c == nil {
		return ""
	}
	if c.Artifact != nil && strings.TrimSpace(c.Artifact.Transcript) != "" {
		return c.Artifact.Transcript
	}
	return c.Transcript
}

func (c *Call) TranscriptMessages() []TranscriptMessage {
	if c == nil {
		return nil
	}
	if c.Artifact != nil && len(c.Artifact.Messages) > 0 {
		return c.Artifact.Messages
	}
	return c.Messages
}

func (c *client) PlaceCall(ctx context.Context, req PlaceCallRequest) (*Call, error) {
	number, err := NormalizePhoneNumber(req.CustomerNumber)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Metadata.FormID) == "" {
		return nil, fmt.Errorf("vapi: metadata.formId required")
	}
	body := createCallBody{
		PhoneNumberID: c.cfg.PhoneNumberID,
		Customer:      Customer{Number: number, Name: req.CustomerName},
		Assistant:     req.Assistant.withConfig(c.cfg),
		Metadata:      req.Metadata,
	}
	// A retried create after a lost response could dial the patient twice, so
	// only explicit rate limiting is retried here.
	call, err := doJSON[Call](c, ctx, http.MethodPost, c.cfg.BaseURL+"/call", body, isRateLimited)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(call.ID) == "" {
		return nil, &HTTPError{StatusCode: http.StatusOK, Message: "response missing call id"}
	}
	c.log.Info("Call placed", "call_id", call.ID, "form_id", req.Metadata.FormID, "status", call.Status)
	return call, nil
}

func (c *client) GetCall(ctx context.Context, callID string) (*Call, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return nil, fmt.Errorf("vapi: call id required")
	}
	return doJSON[Call](c, ctx, http.MethodGet, c.cfg.BaseURL+"/call/"+url.PathEscape(callID), nil, httpx.IsRetryableError)
}

// HTTPError is a non-2xx provider response. Message carries the provider's
// own error text when the body had one.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "vapi: <nil error>"
	}
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = strings.TrimSpace(e.Body)
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return fmt.Sprintf("vapi http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func isRateLimited(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusTooManyRequests
}

func doJSON[T any](c *client, ctx context.Context, method, urlStr string, body any, retryable func(error) bool) (*T, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("vapi encode: %w", err)
		}
		payload = b
	}
	policy := httpx.RetryPolicy{
		MaxRetries: c.cfg.MaxRetries,
		Retryable:  retryable,
		OnRetry: func(attempt int, sleep time.Duration, err error) {
			c.log.Warn("Vapi request retrying", "method", method, "attempt", attempt, "sleep", sleep.String(), "error", err.Error())
		},
	}
	return httpx.Retry(ctxutil.Default(ctx), policy, func(ctx context.Context) (*T, *http.Response, error) {
		return doJSONOnce[T](c, ctx, method, urlStr, payload)
	})
}

func doJSONOnce[T any](c *client, ctx context.Context, method, urlStr string, payload []byte) (*T, *http.Response, error) {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, rdr)
	if err != nil {
		return nil, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.PrivateKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resp, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, resp, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Message: providerMessage(raw), Body: string(raw)}
	}

	var out T
	if len(raw) == 0 {
		return &out, resp, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, resp, fmt.Errorf("vapi decode error: %w", err)
	}
	return &out, resp, nil
}

// providerMessage pulls "message" from an error body. The provider sends it
// either as a string or as a list of validation strings.
func providerMessage(raw []byte) string {
	var env struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if json.Unmarshal(raw, &env) != nil {
		return ""
	}
	var s string
	if json.Unmarshal(env.Message, &s) == nil && strings.TrimSpace(s) != "" {
		return s
	}
	var list []string
	if json.Unmarshal(env.Message, &list) == nil && len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return env.Error
}
