package sendgrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

func TestSendUsesDefaultSenderAndBearerAuth(t *testing.T) {
	var wire mailSendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&wire)
		w.Header().Set("X-Message-Id", "msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(logger.Nop(), Config{APIKey: "SG.key", DefaultFromEmail: "clinic@example.com", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "pat@example.com"}},
		Subject: "New form",
		Text:    "Please fill it in",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.MessageID != "msg-1" || res.StatusCode != http.StatusAccepted {
		t.Fatalf("result: got=%+v", res)
	}
	if auth != "Bearer SG.key" {
		t.Fatalf("auth: got=%q", auth)
	}
	if wire.From.Email != "clinic@example.com" || len(wire.Content) != 1 || wire.Content[0].Type != "text/plain" {
		t.Fatalf("wire: got=%+v", wire)
	}
}

func TestSendRejectsEmptyContent(t *testing.T) {
	c, _ := New(logger.Nop(), Config{APIKey: "k", DefaultFromEmail: "a@b.c", BaseURL: "http://unused"})
	if _, err := c.Send(context.Background(), SendEmailRequest{To: []EmailAddress{{Email: "x@y.z"}}, Subject: "s"}); err == nil {
		t.Fatalf("want error for empty content")
	}
}

func TestSendCarriesCustomArgsAndRetries5xx(t *testing.T) {
	var wire mailSendRequest
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&wire)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(logger.Nop(), Config{APIKey: "k", DefaultFromEmail: "clinic@example.com", BaseURL: srv.URL, MaxRetries: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Send(context.Background(), SendEmailRequest{
		To:              []EmailAddress{{Email: "pat@example.com"}},
		Subject:         "New form",
		Text:            "hi",
		CustomArgs:      map[string]string{"form_id": "f-1"},
		NoClickTracking: true,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls: want=2 got=%d", calls)
	}
	if wire.Personalizations[0].CustomArgs["form_id"] != "f-1" {
		t.Fatalf("custom args: got=%+v", wire.Personalizations[0])
	}
	if wire.TrackingSettings == nil || wire.TrackingSettings.ClickTracking.Enable {
		t.Fatalf("tracking: want click tracking disabled got=%+v", wire.TrackingSettings)
	}
}
