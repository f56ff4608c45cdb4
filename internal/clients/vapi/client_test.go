package vapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(logger.Nop(), Config{PhoneNumberID: "pn"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("missing key: want ErrNotConfigured got %v", err)
	}
	if _, err := New(logger.Nop(), Config{PrivateKey: "k"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("missing phone number id: want ErrNotConfigured got %v", err)
	}
}

func TestPlaceCallRequestShape(t *testing.T) {
	var got map[string]any
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, path = r.Header.Get("Authorization"), r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"call_123","status":"queued","createdAt":"2026-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c, err := New(logger.Nop(), Config{PrivateKey: "secret", PhoneNumberID: "pn_1", BaseURL: srv.URL, ServerURLSecret: "whsec"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a := BuildAssistant("Jane", "Smith", "Intake", []ScriptQuestion{{ID: "q1", Text: "Sleep ok?"}}, "https://cc.example.com/api/webhooks/call")
	call, err := c.PlaceCall(context.Background(), PlaceCallRequest{
		CustomerNumber: "(415) 555-0199",
		CustomerName:   "Jane",
		Assistant:      a,
		Metadata:       CallMetadata{FormID: "form-1", Questions: []CallQuestion{{ID: "q1", Text: "Sleep ok?"}}},
	})
	if err != nil {
		t.Fatalf("PlaceCall: %v", err)
	}
	if call.ID != "call_123" {
		t.Fatalf("id: want=call_123 got=%s", call.ID)
	}
	if path != "/call" || auth != "Bearer secret" {
		t.Fatalf("request: path=%s auth=%s", path, auth)
	}
	if got["phoneNumberId"] != "pn_1" {
		t.Fatalf("phoneNumberId: got=%v", got["phoneNumberId"])
	}
	customer := got["customer"].(map[string]any)
	if customer["number"] != "+14155550199" || customer["name"] != "Jane" {
		t.Fatalf("customer: got=%v", customer)
	}
	assistant := got["assistant"].(map[string]any)
	if assistant["serverUrl"] != "https://cc.example.com/api/webhooks/call" || assistant["serverUrlSecret"] != "whsec" {
		t.Fatalf("assistant server: got=%v", assistant)
	}
	meta := got["metadata"].(map[string]any)
	if meta["formId"] != "form-1" {
		t.Fatalf("metadata: got=%v", meta)
	}
}

func TestPlaceCallRejectsBadNumberWithoutRequest(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	c, _ := New(logger.Nop(), Config{PrivateKey: "k", PhoneNumberID: "pn", BaseURL: srv.URL})
	_, err := c.PlaceCall(context.Background(), PlaceCallRequest{CustomerNumber: "555", Metadata: CallMetadata{FormID: "f"}})
	if !errors.Is(err, ErrInvalidPhoneNumber) {
		t.Fatalf("want ErrInvalidPhoneNumber got %v", err)
	}
	if calls != 0 {
		t.Fatalf("calls: want=0 got=%d", calls)
	}
}

func TestPlaceCallProviderErrorCarriesMessage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"Couldn't Get Phone Number. Need Either phoneNumberId Or phoneNumber."}`))
	}))
	defer srv.Close()

	c, _ := New(logger.Nop(), Config{PrivateKey: "k", PhoneNumberID: "pn", BaseURL: srv.URL, MaxRetries: 3})
	_, err := c.PlaceCall(context.Background(), PlaceCallRequest{CustomerNumber: "4155550199", Metadata: CallMetadata{FormID: "f"}})
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("want HTTPError got %v", err)
	}
	if !strings.Contains(he.Message, "Couldn't Get Phone Number") {
		t.Fatalf("message: got=%q", he.Message)
	}
	if calls != 1 {
		t.Fatalf("create must not retry on 5xx: calls=%d", calls)
	}
}

func TestGetCallDecodesArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/call/call_9" {
			t.Errorf("request: %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"call_9","status":"ended","metadata":{"formId":"f1"},
			"artifact":{"transcript":"AI: hi\nUser: hello","messages":[{"role":"bot","message":"hi"},{"role":"user","message":"hello"}]}}`))
	}))
	defer srv.Close()

	c, _ := New(logger.Nop(), Config{PrivateKey: "k", PhoneNumberID: "pn", BaseURL: srv.URL})
	call, err := c.GetCall(context.Background(), "call_9")
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if call.TranscriptText() != "AI: hi\nUser: hello" {
		t.Fatalf("transcript: got=%q", call.TranscriptText())
	}
	if len(call.TranscriptMessages()) != 2 || call.Metadata["formId"] != "f1" {
		t.Fatalf("call: got=%+v", call)
	}
}
