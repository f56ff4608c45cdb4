package forms

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type CallAttemptRepo interface {
	Create(dbc dbctx.Context, attempt *types.CallAttempt) error
	ListByForm(dbc dbctx.Context, formID uuid.UUID) ([]*types.CallAttempt, error)
}

type callAttemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCallAttemptRepo(db *gorm.DB, baseLog *logger.Logger) CallAttemptRepo {
	return &callAttemptRepo{db: db, log: baseLog.With("repo", "CallAttemptRepo")}
}

func (r *callAttemptRepo) Create(dbc dbctx.Context, attempt *types.CallAttempt) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if attempt == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(attempt).Error
}

func (r *callAttemptRepo) ListByForm(dbc dbctx.Context, formID uuid.UUID) ([]*types.CallAttempt, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CallAttempt
	if err := transaction.WithContext(dbc.Ctx).
		Where("form_id = ?", formID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
