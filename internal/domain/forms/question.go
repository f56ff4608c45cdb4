package forms

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Question struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	FormID        uuid.UUID `gorm:"type:uuid;column:form_id;not null;uniqueIndex:ux_question_form_order,priority:1" json:"form_id"`
	QuestionText  string    `gorm:"column:question_text;not null" json:"question_text"`
	QuestionOrder int       `gorm:"column:question_order;not null;uniqueIndex:ux_question_form_order,priority:2" json:"question_order"`
	CreatedAt     time.Time `gorm:"column:created_at;not null;autoCreateTime" json:"created_at"`
}

func (Question) TableName() string { return "question" }

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
