package people

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Patient belongs to exactly one doctor.
type Patient struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DoctorID           uuid.UUID  `gorm:"type:uuid;column:doctor_id;not null;index" json:"doctor_id"`
	Email              string     `gorm:"column:email;not null;index" json:"email"`
	Name               *string    `gorm:"column:name" json:"name,omitempty"`
	PhoneNumber        *string    `gorm:"column:phone_number" json:"phone_number,omitempty"`
	DateOfBirth        *time.Time `gorm:"column:date_of_birth" json:"date_of_birth,omitempty"`
	InvitationAccepted bool       `gorm:"column:invitation_accepted;not null;default:false" json:"invitation_accepted"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;not null;autoUpdateTime" json:"updated_at"`
}

func (Patient) TableName() string { return "patient" }

func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// DisplayName falls back to "Patient" when no name is on file.
func (p *Patient) DisplayName() string {
	if p == nil || p.Name == nil || strings.TrimSpace(*p.Name) == "" {
		return "Patient"
	}
	return strings.TrimSpace(*p.Name)
}

// Phone returns the trimmed phone number or "".
func (p *Patient) Phone() string {
	if p == nil || p.PhoneNumber == nil {
		return ""
	}
	return strings.TrimSpace(*p.PhoneNumber)
}
