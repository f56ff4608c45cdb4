package forms

import (
	"testing"
	"time"
)

func TestFormOverdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Minute), now.Add(time.Minute)

	cases := []struct {
		name string
		form *Form
		want bool
	}{
		{"nil form", nil, false},
		{"no deadline", &Form{}, false},
		{"deadline passed", &Form{Deadline: &past}, true},
		{"deadline ahead", &Form{Deadline: &future}, false},
		{"deadline equals now", &Form{Deadline: &now}, false},
		{"submitted", &Form{Deadline: &past, SubmittedAt: &now}, false},
	}
	for _, tc := range cases {
		if got := tc.form.Overdue(now); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}
