package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/carecall-backend/internal/data/repos"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type Repos struct {
	Form        repos.FormRepo
	Question    repos.QuestionRepo
	Answer      repos.AnswerRepo
	CallAttempt repos.CallAttemptRepo
	Doctor      repos.DoctorRepo
	Patient     repos.PatientRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Form:        repos.NewFormRepo(db, log),
		Question:    repos.NewQuestionRepo(db, log),
		Answer:      repos.NewAnswerRepo(db, log),
		CallAttempt: repos.NewCallAttemptRepo(db, log),
		Doctor:      repos.NewDoctorRepo(db, log),
		Patient:     repos.NewPatientRepo(db, log),
	}
}
