package forms

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Answer is a patient's response to one question. AnswerText is nil when the
// patient left the question blank.
type Answer struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FormID     uuid.UUID `gorm:"type:uuid;column:form_id;not null;index" json:"form_id"`
	QuestionID uuid.UUID `gorm:"type:uuid;column:question_id;not null;index" json:"question_id"`
	AnswerText *string   `gorm:"column:answer_text" json:"answer_text"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;autoCreateTime" json:"created_at"`
}

func (Answer) TableName() string { return "answer" }

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
