// Package webhooks normalizes call-provider callbacks into a single CallEvent.
// Payloads are walked as generic JSON because the provider has shipped several
// envelope shapes and this service must keep accepting all of them.
package webhooks

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yungbote/carecall-backend/internal/clients/vapi"
	"github.com/yungbote/carecall-backend/internal/extraction"
)

const (
	ShapeEvent   = "event"
	ShapeMessage = "message"
	ShapeAnswers = "answers"
	ShapeUnknown = "unknown"
)

var endOfCallEvents = map[string]bool{
	"call-ended":         true,
	"end-of-call-report": true,
}

type RawAnswer struct {
	QuestionID string
	AnswerText string
}

type CallEvent struct {
	Shape     string
	EventType string
	FormID    string
	CallID    string

	Transcript string
	Messages   []extraction.Message

	// HasAnswers is true when the payload carried an answers list, even an
	// empty or partly invalid one.
	HasAnswers bool
	Answers    []RawAnswer
}

// Relevant reports whether the event should reach the submission flow.
func (e *CallEvent) Relevant() bool {
	if e == nil || e.FormID == "" {
		return false
	}
	return e.HasAnswers || endOfCallEvents[e.EventType]
}

// NeedsCallDetails is true for an end-of-call event that names a call but
// carries nothing to extract from.
func (e *CallEvent) NeedsCallDetails() bool {
	if !e.Relevant() || e.HasAnswers || e.CallID == "" {
		return false
	}
	return strings.TrimSpace(e.Transcript) == "" && len(e.Messages) == 0
}

func (e *CallEvent) TranscriptValue() extraction.Transcript {
	return extraction.Transcript{Text: e.Transcript, Messages: e.Messages}
}

// Parse decodes raw into a CallEvent. It only fails on invalid JSON; payloads
// it does not recognize come back with Shape unknown.
func Parse(raw []byte) (*CallEvent, error) {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("webhook payload: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("webhook payload: expected object")
	}

	ev := &CallEvent{Shape: ShapeUnknown}
	message := obj(body, "message")
	call := obj(body, "call")
	messageCall := obj(message, "call")

	switch {
	case str(body, "event") != "":
		ev.Shape = ShapeEvent
		ev.EventType = str(body, "event")
	case message != nil && str(message, "type") != "":
		ev.Shape = ShapeMessage
		ev.EventType = str(message, "type")
	}

	ev.FormID = findFormID(body, message, call, messageCall)
	ev.CallID = firstNonEmpty(str(messageCall, "id"), str(call, "id"), str(body, "callId"), str(body, "call_id"))

	artifact := obj(message, "artifact")
	ev.Transcript = firstNonEmpty(
		str(artifact, "transcript"),
		str(message, "transcript"),
		str(call, "transcript"),
		str(messageCall, "transcript"),
	)
	for _, list := range [][]any{arr(artifact, "messages"), arr(message, "messages"), arr(call, "messages"), arr(messageCall, "messages")} {
		if msgs := toMessages(list); len(msgs) > 0 {
			ev.Messages = msgs
			break
		}
	}

	if answers, ok := findAnswers(body, message); ok {
		ev.HasAnswers = true
		ev.Answers = answers
		if ev.Shape == ShapeUnknown {
			ev.Shape = ShapeAnswers
		}
	}
	return ev, nil
}

// FillFromCall copies transcript fields from a call fetched from the provider.
func (e *CallEvent) FillFromCall(call *vapi.Call) {
	if e == nil || call == nil {
		return
	}
	if strings.TrimSpace(e.Transcript) == "" {
		e.Transcript = call.TranscriptText()
	}
	if len(e.Messages) == 0 {
		for _, m := range call.TranscriptMessages() {
			if msg, ok := toMessage(m.Role, firstNonEmpty(strings.TrimSpace(m.Content), strings.TrimSpace(m.Message))); ok {
				e.Messages = append(e.Messages, msg)
			}
		}
	}
}

func findFormID(body, message, call, messageCall map[string]any) string {
	for _, m := range []map[string]any{
		obj(messageCall, "metadata"),
		obj(call, "metadata"),
		obj(message, "metadata"),
		obj(body, "metadata"),
		body,
	} {
		if id := firstNonEmpty(str(m, "formId"), str(m, "form_id")); id != "" {
			return id
		}
	}
	return ""
}

func findAnswers(body, message map[string]any) ([]RawAnswer, bool) {
	candidates := []any{
		body["answers"],
		obj(message, "content")["answers"],
		obj(obj(body, "data"), "answers"),
	}
	// message.content is sometimes a JSON string holding the answers object.
	if s, ok := message["content"].(string); ok && strings.Contains(s, "answers") {
		candidates = append(candidates, s)
	}
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if list, ok := decodeAnswerList(c); ok {
			return list, true
		}
	}
	return nil, false
}

func decodeAnswerList(v any) ([]RawAnswer, bool) {
	if s, ok := v.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &parsed); err != nil {
			return nil, false
		}
		if m, ok := parsed.(map[string]any); ok {
			parsed = m["answers"]
		}
		v = parsed
	}
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]RawAnswer, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, RawAnswer{
			QuestionID: firstNonEmpty(str(m, "question_id"), str(m, "questionId")),
			AnswerText: firstNonEmpty(str(m, "answer_text"), str(m, "answerText"), str(m, "answer")),
		})
	}
	return out, true
}

func toMessages(list []any) []extraction.Message {
	out := make([]extraction.Message, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if msg, ok := toMessage(str(m, "role"), firstNonEmpty(str(m, "content"), str(m, "message"))); ok {
			out = append(out, msg)
		}
	}
	return out
}

func toMessage(role, content string) (extraction.Message, bool) {
	role = extraction.NormalizeRole(role)
	if role != extraction.RoleAssistant && role != extraction.RoleUser {
		return extraction.Message{}, false
	}
	if strings.TrimSpace(content) == "" {
		return extraction.Message{}, false
	}
	return extraction.Message{Role: role, Content: content}, true
}

func obj(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	v, _ := m[key].(map[string]any)
	return v
}

func arr(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	v, _ := m[key].([]any)
	return v
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
