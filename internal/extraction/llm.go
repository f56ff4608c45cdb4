package extraction

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/yungbote/carecall-backend/internal/observability"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
	"github.com/yungbote/carecall-backend/internal/platform/openai"
)

// NotAnswered is the sentinel the model uses for questions the patient skipped.
const NotAnswered = "Not answered"

const llmSystemPrompt = `You extract answers to health questionnaire questions from a phone call transcript.
Return strict JSON of the form {"answers":[{"question_number":1,"answer":"..."}]}.
question_number is the 1-based number of the question in the list you are given.
Use the patient's own words, lightly cleaned up. Do not invent information.
If a question was not answered, use the exact answer "Not answered".`

type LLMExtractor struct {
	log     *logger.Logger
	client  openai.Client
	timeout time.Duration
}

func NewLLMExtractor(log *logger.Logger, client openai.Client, timeout time.Duration) *LLMExtractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMExtractor{log: log.With("extractor", "llm"), client: client, timeout: timeout}
}

func (e *LLMExtractor) Name() string { return "llm" }

type llmAnswer struct {
	QuestionNumber flexInt `json:"question_number"`
	Answer         string  `json:"answer"`
}

type llmResponse struct {
	Answers []llmAnswer `json:"answers"`
}

func (e *LLMExtractor) Extract(ctx context.Context, transcript Transcript, questions []Question) []Answer {
	m := observability.Current()
	if len(questions) == 0 || transcript.Empty() {
		m.IncExtraction(e.Name(), "empty")
		return nil
	}
	if e.client == nil {
		e.log.Warn("LLM extraction skipped: no completion client")
		m.IncExtraction(e.Name(), "not_configured")
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out llmResponse
	if err := e.client.GenerateJSON(cctx, llmSystemPrompt, buildUserPrompt(transcript, questions), &out); err != nil {
		e.log.Warn("LLM extraction failed", "error", err, "questions", len(questions))
		m.IncExtraction(e.Name(), "error")
		return nil
	}

	answers := mapNumberedAnswers(out.Answers, questions)
	m.IncExtraction(e.Name(), lo.Ternary(len(answers) > 0, "ok", "empty"))
	return answers
}

func buildUserPrompt(transcript Transcript, questions []Question) string {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	b.WriteString(transcript.Render())
	b.WriteString("\n\nQuestions:\n")
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q.Text)
	}
	return b.String()
}

func mapNumberedAnswers(raw []llmAnswer, questions []Question) []Answer {
	out := make([]Answer, 0, len(raw))
	for _, a := range raw {
		idx := int(a.QuestionNumber) - 1
		if idx < 0 || idx >= len(questions) {
			continue
		}
		text := strings.TrimSpace(a.Answer)
		if text == "" || strings.EqualFold(text, NotAnswered) {
			continue
		}
		out = append(out, Answer{QuestionID: questions[idx].ID, Text: text})
	}
	return out
}

// flexInt accepts 2 or "2"; models are not consistent about it.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("question_number: %w", err)
		}
		n = int(fl)
	}
	*f = flexInt(n)
	return nil
}
