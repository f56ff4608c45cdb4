package forms

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Call attempt sources.
const (
	CallSourceManual   = "manual"
	CallSourceSweep    = "sweep"
	CallSourceDeadline = "deadline"
)

const (
	CallStatusPlaced = "placed"
	CallStatusFailed = "failed"
)

// CallAttempt is an append-only audit row per outbound call placement.
type CallAttempt struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FormID    uuid.UUID      `gorm:"type:uuid;column:form_id;not null;index" json:"form_id"`
	Source    string         `gorm:"column:source;not null;index" json:"source"`
	Status    string         `gorm:"column:status;not null" json:"status"`
	CallID    *string        `gorm:"column:call_id;index" json:"call_id,omitempty"`
	Error     string         `gorm:"column:error" json:"error,omitempty"`
	Metadata  datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;autoCreateTime;index" json:"created_at"`
}

func (CallAttempt) TableName() string { return "call_attempt" }

func (c *CallAttempt) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
