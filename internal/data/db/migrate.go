package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/carecall-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.AllModels()...)
}

// EnsureFormIndexes adds Postgres partial indexes the sweep and listings rely on.
func EnsureFormIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	// Overdue sweep: open, uncalled forms by deadline.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_form_overdue
		ON form (deadline)
		WHERE submitted_at IS NULL AND call_scheduled = false AND deadline IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_form_overdue: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_form_patient_created
		ON form (patient_id, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_form_patient_created: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_answer_form_question
		ON answer (form_id, question_id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_answer_form_question: %w", err)
	}
	return nil
}
