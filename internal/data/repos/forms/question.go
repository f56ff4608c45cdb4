package forms

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type QuestionRepo interface {
	Create(dbc dbctx.Context, questions []*types.Question) ([]*types.Question, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Question, error)
	ListByForm(dbc dbctx.Context, formID uuid.UUID) ([]*types.Question, error)
	ListByForms(dbc dbctx.Context, formIDs []uuid.UUID) ([]*types.Question, error)
	CountByForm(dbc dbctx.Context, formID uuid.UUID) (int64, error)
	NextOrder(dbc dbctx.Context, formID uuid.UUID) (int, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DeleteCascade(dbc dbctx.Context, id uuid.UUID) error
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return &questionRepo{db: db, log: baseLog.With("repo", "QuestionRepo")}
}

func (r *questionRepo) Create(dbc dbctx.Context, questions []*types.Question) ([]*types.Question, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(questions) == 0 {
		return []*types.Question{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

func (r *questionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Question, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var q types.Question
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Take(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListByForm returns questions in ascending question_order.
func (r *questionRepo) ListByForm(dbc dbctx.Context, formID uuid.UUID) ([]*types.Question, error) {
	return r.ListByForms(dbc, []uuid.UUID{formID})
}

func (r *questionRepo) ListByForms(dbc dbctx.Context, formIDs []uuid.UUID) ([]*types.Question, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Question
	if len(formIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("form_id IN ?", formIDs).
		Order("form_id ASC, question_order ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionRepo) CountByForm(dbc dbctx.Context, formID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Question{}).
		Where("form_id = ?", formID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// NextOrder is max(question_order)+1, or 0 for a form without questions.
func (r *questionRepo) NextOrder(dbc dbctx.Context, formID uuid.UUID) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var next int
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Question{}).
		Select("COALESCE(MAX(question_order), -1) + 1").
		Where("form_id = ?", formID).
		Scan(&next).Error; err != nil {
		return 0, err
	}
	return next, nil
}

func (r *questionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Question{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeleteCascade removes the question and every answer that references it.
func (r *questionRepo) DeleteCascade(dbc dbctx.Context, id uuid.UUID) error {
	run := func(tx *gorm.DB) error {
		tx = tx.WithContext(dbc.Ctx)
		if err := tx.Where("question_id = ?", id).Delete(&types.Answer{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&types.Question{}).Error
	}
	if dbc.Tx != nil {
		return run(dbc.Tx)
	}
	return r.db.Transaction(run)
}
