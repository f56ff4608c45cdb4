package domain

import (
	"github.com/yungbote/carecall-backend/internal/domain/forms"
	"github.com/yungbote/carecall-backend/internal/domain/people"
)

const (
	DefaultFormTitle = forms.DefaultTitle

	SubmittedViaNone      = forms.SubmittedViaNone
	SubmittedViaManual    = forms.SubmittedViaManual
	SubmittedViaVoiceCall = forms.SubmittedViaVoiceCall

	CallSourceManual   = forms.CallSourceManual
	CallSourceSweep    = forms.CallSourceSweep
	CallSourceDeadline = forms.CallSourceDeadline
	CallStatusPlaced   = forms.CallStatusPlaced
	CallStatusFailed   = forms.CallStatusFailed
)

type Form = forms.Form
type Question = forms.Question
type Answer = forms.Answer
type CallAttempt = forms.CallAttempt

type Doctor = people.Doctor
type Patient = people.Patient

// AllModels lists every persisted model in migration order.
func AllModels() []any {
	return []any{
		&Doctor{},
		&Patient{},
		&Form{},
		&Question{},
		&Answer{},
		&CallAttempt{},
	}
}
