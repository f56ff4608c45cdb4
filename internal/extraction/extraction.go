// Package extraction turns a finished call transcript into per-question
// answers. Extractors never return errors; a failed extraction is an empty
// result and callers decide whether that is worth retrying.
package extraction

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleSystem    = "system"
)

type Question struct {
	ID   uuid.UUID
	Text string
}

type Answer struct {
	QuestionID uuid.UUID
	Text       string
}

type Message struct {
	Role    string
	Content string
}

// Transcript holds whichever forms of the conversation the provider sent.
// Messages win over Text when both are present.
type Transcript struct {
	Text     string
	Messages []Message
}

func (t Transcript) Empty() bool {
	if len(t.Messages) > 0 {
		for _, m := range t.Messages {
			if strings.TrimSpace(m.Content) != "" {
				return false
			}
		}
	}
	return strings.TrimSpace(t.Text) == ""
}

// Render flattens the transcript into "role: content" lines.
func (t Transcript) Render() string {
	if len(t.Messages) == 0 {
		return strings.TrimSpace(t.Text)
	}
	var b strings.Builder
	for _, m := range t.Messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(NormalizeRole(m.Role))
		b.WriteString(": ")
		b.WriteString(content)
	}
	return b.String()
}

// NormalizeRole maps provider role names onto assistant/user/system.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "bot", "assistant", "ai", "agent":
		return RoleAssistant
	case "user", "customer", "human":
		return RoleUser
	case "system":
		return RoleSystem
	default:
		return strings.ToLower(strings.TrimSpace(role))
	}
}

type Extractor interface {
	Extract(ctx context.Context, transcript Transcript, questions []Question) []Answer
	Name() string
}
