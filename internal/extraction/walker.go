package extraction

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/carecall-backend/internal/observability"
)

const questionPrefixLen = 20

// TranscriptWalker assigns user turns to whichever question the assistant
// most recently asked. It assumes each question is asked once and in order.
//
// Deprecated: use LLMExtractor. The walker misattributes answers whenever the
// assistant paraphrases or reorders questions.
type TranscriptWalker struct{}

func NewTranscriptWalker() *TranscriptWalker { return &TranscriptWalker{} }

func (w *TranscriptWalker) Name() string { return "heuristic" }

func (w *TranscriptWalker) Extract(_ context.Context, transcript Transcript, questions []Question) []Answer {
	answers := walk(transcript.Messages, questions)
	observability.Current().IncExtraction(w.Name(), outcome(answers))
	return answers
}

func walk(messages []Message, questions []Question) []Answer {
	if len(messages) == 0 || len(questions) == 0 {
		return nil
	}
	prefixes := make([]string, len(questions))
	for i, q := range questions {
		prefixes[i] = questionPrefix(q.Text)
	}

	var (
		out        []Answer
		current    = -1
		collecting bool
		buf        []string
	)
	flush := func() {
		if current >= 0 {
			if text := strings.TrimSpace(strings.Join(buf, " ")); text != "" {
				out = append(out, Answer{QuestionID: questions[current].ID, Text: text})
			}
		}
		buf = buf[:0]
	}

	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		switch NormalizeRole(m.Role) {
		case RoleAssistant:
			asked := matchQuestion(strings.ToLower(content), prefixes, current+1)
			collecting = asked >= 0
			// A repeated or confirming turn keeps the open answer.
			if asked >= 0 && asked != current {
				flush()
				current = asked
			}
		case RoleUser:
			if collecting && content != "" {
				buf = append(buf, content)
			}
		}
	}
	flush()
	return out
}

// matchQuestion returns the question lower asks, trying next first so that
// questions sharing a prefix resolve in asking order.
func matchQuestion(lower string, prefixes []string, next int) int {
	asks := func(i int) bool {
		return i >= 0 && i < len(prefixes) && prefixes[i] != "" && strings.Contains(lower, prefixes[i])
	}
	if asks(next) {
		return next
	}
	for i := range prefixes {
		if asks(i) {
			return i
		}
	}
	return -1
}

func questionPrefix(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	if utf8.RuneCountInString(lower) <= questionPrefixLen {
		return lower
	}
	return string([]rune(lower)[:questionPrefixLen])
}

func outcome(answers []Answer) string {
	if len(answers) == 0 {
		return "empty"
	}
	return "ok"
}
