package people

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type DoctorRepo interface {
	Create(dbc dbctx.Context, doctors []*types.Doctor) ([]*types.Doctor, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Doctor, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Doctor, error)
}

type doctorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDoctorRepo(db *gorm.DB, baseLog *logger.Logger) DoctorRepo {
	return &doctorRepo{db: db, log: baseLog.With("repo", "DoctorRepo")}
}

func (r *doctorRepo) Create(dbc dbctx.Context, doctors []*types.Doctor) ([]*types.Doctor, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(doctors) == 0 {
		return []*types.Doctor{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&doctors).Error; err != nil {
		return nil, err
	}
	return doctors, nil
}

func (r *doctorRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Doctor, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var d types.Doctor
	err := transaction.WithContext(dbc.Ctx).Where("id = ?", id).Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Doctor, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Doctor
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
