package forms

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultTitle = "Health Assessment Form"

// Submission channels recorded in Form.SubmittedVia.
const (
	SubmittedViaNone      = "none"
	SubmittedViaManual    = "manual"
	SubmittedViaVoiceCall = "voice-call"
)

// Form is a questionnaire a doctor assigns to one patient. A form with a nil
// SubmittedAt is open; once set it never changes.
type Form struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DoctorID  uuid.UUID `gorm:"type:uuid;column:doctor_id;not null;index" json:"doctor_id"`
	PatientID uuid.UUID `gorm:"type:uuid;column:patient_id;not null;index" json:"patient_id"`
	Title     string    `gorm:"column:title;not null" json:"title"`

	Deadline     *time.Time `gorm:"column:deadline;index" json:"deadline,omitempty"`
	SubmittedAt  *time.Time `gorm:"column:submitted_at;index" json:"submitted_at"`
	SubmittedVia string     `gorm:"column:submitted_via;not null;default:none" json:"submitted_via"`

	CallScheduled bool       `gorm:"column:call_scheduled;not null;default:false;index" json:"call_scheduled"`
	CallMadeAt    *time.Time `gorm:"column:call_made_at" json:"call_made_at,omitempty"`
	CallSID       *string    `gorm:"column:call_sid" json:"call_sid,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime;index" json:"created_at"`
}

func (Form) TableName() string { return "form" }

func (f *Form) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.SubmittedVia == "" {
		f.SubmittedVia = SubmittedViaNone
	}
	return nil
}

func (f *Form) Submitted() bool {
	return f != nil && f.SubmittedAt != nil
}

// Overdue reports whether f is still open with a deadline before now.
func (f *Form) Overdue(now time.Time) bool {
	return f != nil && f.SubmittedAt == nil && f.Deadline != nil && f.Deadline.Before(now)
}
