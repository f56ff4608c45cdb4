package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/carecall-backend/internal/data/repos/forms"
	"github.com/yungbote/carecall-backend/internal/data/repos/people"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type FormRepo = forms.FormRepo
type QuestionRepo = forms.QuestionRepo
type AnswerRepo = forms.AnswerRepo
type CallAttemptRepo = forms.CallAttemptRepo

type DoctorRepo = people.DoctorRepo
type PatientRepo = people.PatientRepo

func NewFormRepo(db *gorm.DB, log *logger.Logger) FormRepo { return forms.NewFormRepo(db, log) }
func NewQuestionRepo(db *gorm.DB, log *logger.Logger) QuestionRepo {
	return forms.NewQuestionRepo(db, log)
}
func NewAnswerRepo(db *gorm.DB, log *logger.Logger) AnswerRepo { return forms.NewAnswerRepo(db, log) }
func NewCallAttemptRepo(db *gorm.DB, log *logger.Logger) CallAttemptRepo {
	return forms.NewCallAttemptRepo(db, log)
}

func NewDoctorRepo(db *gorm.DB, log *logger.Logger) DoctorRepo { return people.NewDoctorRepo(db, log) }
func NewPatientRepo(db *gorm.DB, log *logger.Logger) PatientRepo {
	return people.NewPatientRepo(db, log)
}
