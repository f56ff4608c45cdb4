package extraction

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestTranscriptWalkerAssignsTurns(t *testing.T) {
	qs := threeQuestions()
	msgs := []Message{
		{Role: "assistant", Content: "Hi Jane, this is a call from your doctor's office."},
		{Role: "user", Content: "Hello."},
		{Role: "assistant", Content: "First, how have you been sleeping lately?"},
		{Role: "user", Content: "Not great."},
		{Role: "user", Content: "Maybe five hours."},
		{Role: "bot", Content: "Thanks. Any chest pain this week at all?"},
		{Role: "user", Content: "No."},
		{Role: "assistant", Content: "Great. Which medications are you taking right now?"},
		{Role: "user", Content: "Just lisinopril."},
	}
	got := NewTranscriptWalker().Extract(context.Background(), Transcript{Messages: msgs}, qs)
	if len(got) != 3 {
		t.Fatalf("answers: want=3 got=%d (%+v)", len(got), got)
	}
	want := []string{"Not great. Maybe five hours.", "No.", "Just lisinopril."}
	for i, a := range got {
		if a.QuestionID != qs[i].ID || a.Text != want[i] {
			t.Fatalf("answer[%d]: want=%q got=%+v", i, want[i], a)
		}
	}
}

func TestTranscriptWalkerStopsCollectingAfterNonQuestionTurn(t *testing.T) {
	qs := threeQuestions()
	msgs := []Message{
		{Role: "assistant", Content: "How have you been sleeping?"},
		{Role: "user", Content: "Fine."},
		{Role: "assistant", Content: "Thank you for your time! Have a great day!"},
		{Role: "user", Content: "Bye."},
	}
	got := NewTranscriptWalker().Extract(context.Background(), Transcript{Messages: msgs}, qs)
	if len(got) != 1 || got[0].Text != "Fine." {
		t.Fatalf("want single answer Fine. got=%+v", got)
	}
}

func TestTranscriptWalkerEmptyInputs(t *testing.T) {
	if got := NewTranscriptWalker().Extract(context.Background(), Transcript{}, threeQuestions()); len(got) != 0 {
		t.Fatalf("empty transcript: got=%+v", got)
	}
	msgs := []Message{{Role: "user", Content: "I was never asked anything"}}
	if got := NewTranscriptWalker().Extract(context.Background(), Transcript{Messages: msgs}, threeQuestions()); len(got) != 0 {
		t.Fatalf("no question turn: got=%+v", got)
	}
}

func TestTranscriptRender(t *testing.T) {
	tr := Transcript{Text: "ignored", Messages: []Message{{Role: "bot", Content: " hi "}, {Role: "user", Content: ""}, {Role: "customer", Content: "yo"}}}
	if got := tr.Render(); got != "assistant: hi\nuser: yo" {
		t.Fatalf("render: got=%q", got)
	}
	if got := (Transcript{Text: " plain "}).Render(); got != "plain" {
		t.Fatalf("render text: got=%q", got)
	}
}

func TestTranscriptWalkerSharedPrefixQuestionsFollowAskingOrder(t *testing.T) {
	qs := []Question{
		{ID: uuid.New(), Text: "On a scale of 1 to 10, how bad is your pain?"},
		{ID: uuid.New(), Text: "On a scale of 1 to 10, how well are you sleeping?"},
		{ID: uuid.New(), Text: "Any chest pain this week?"},
	}
	msgs := []Message{
		{Role: "assistant", Content: "On a scale of 1 to 10, how bad is your pain?"},
		{Role: "user", Content: "Three."},
		{Role: "assistant", Content: "And on a scale of 1 to 10, how well are you sleeping?"},
		{Role: "user", Content: "Eight."},
		{Role: "assistant", Content: "Any chest pain this week?"},
		{Role: "user", Content: "None."},
		{Role: "assistant", Content: "Sorry, any chest pain this week at all?"},
		{Role: "user", Content: "Really none."},
	}
	got := NewTranscriptWalker().Extract(context.Background(), Transcript{Messages: msgs}, qs)
	want := []string{"Three.", "Eight.", "None. Really none."}
	if len(got) != len(want) {
		t.Fatalf("answers: want=%d got=%d (%+v)", len(want), len(got), got)
	}
	for i, a := range got {
		if a.QuestionID != qs[i].ID || a.Text != want[i] {
			t.Fatalf("answer[%d]: want=%q got=%+v", i, want[i], a)
		}
	}
}
