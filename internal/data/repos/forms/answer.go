package forms

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type AnswerRepo interface {
	ListByForm(dbc dbctx.Context, formID uuid.UUID) ([]*types.Answer, error)
	ReplaceForForm(dbc dbctx.Context, formID uuid.UUID, answers []*types.Answer) ([]*types.Answer, error)
}

type answerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnswerRepo(db *gorm.DB, baseLog *logger.Logger) AnswerRepo {
	return &answerRepo{db: db, log: baseLog.With("repo", "AnswerRepo")}
}

func (r *answerRepo) ListByForm(dbc dbctx.Context, formID uuid.UUID) ([]*types.Answer, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Answer
	if err := transaction.WithContext(dbc.Ctx).
		Where("form_id = ?", formID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ReplaceForForm deletes every answer of the form, then inserts answers.
// Run it inside a transaction to make the swap atomic.
func (r *answerRepo) ReplaceForForm(dbc dbctx.Context, formID uuid.UUID, answers []*types.Answer) ([]*types.Answer, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	tx := transaction.WithContext(dbc.Ctx)
	if err := tx.Where("form_id = ?", formID).Delete(&types.Answer{}).Error; err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return []*types.Answer{}, nil
	}
	for _, a := range answers {
		a.FormID = formID
	}
	if err := tx.Create(&answers).Error; err != nil {
		return nil, err
	}
	return answers, nil
}
