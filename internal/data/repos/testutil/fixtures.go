package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/carecall-backend/internal/domain"
)

func SeedDoctor(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Doctor {
	tb.Helper()
	d := &types.Doctor{ID: uuid.New(), Name: name}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed doctor: %v", err)
	}
	return d
}

func SeedPatient(tb testing.TB, ctx context.Context, tx *gorm.DB, doctorID uuid.UUID, name, phone string) *types.Patient {
	tb.Helper()
	p := &types.Patient{
		ID:       uuid.New(),
		DoctorID: doctorID,
		Email:    uuid.NewString()[:8] + "@example.com",
	}
	if name != "" {
		p.Name = PtrString(name)
	}
	if phone != "" {
		p.PhoneNumber = PtrString(phone)
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed patient: %v", err)
	}
	return p
}

// SeedForm inserts an open form with the given questions in order.
func SeedForm(tb testing.TB, ctx context.Context, tx *gorm.DB, doctorID, patientID uuid.UUID, deadline *time.Time, questions ...string) (*types.Form, []*types.Question) {
	tb.Helper()
	f := &types.Form{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		PatientID: patientID,
		Title:     types.DefaultFormTitle,
		Deadline:  deadline,
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed form: %v", err)
	}
	qs := make([]*types.Question, 0, len(questions))
	for i, text := range questions {
		qs = append(qs, &types.Question{ID: uuid.New(), FormID: f.ID, QuestionText: text, QuestionOrder: i})
	}
	if len(qs) > 0 {
		if err := tx.WithContext(ctx).Create(&qs).Error; err != nil {
			tb.Fatalf("seed questions: %v", err)
		}
	}
	return f, qs
}

func PtrString(v string) *string { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
