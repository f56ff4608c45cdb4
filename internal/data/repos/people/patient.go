package people

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type PatientRepo interface {
	Create(dbc dbctx.Context, patients []*types.Patient) ([]*types.Patient, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Patient, error)
	GetForDoctor(dbc dbctx.Context, id, doctorID uuid.UUID) (*types.Patient, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Patient, error)
}

type patientRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPatientRepo(db *gorm.DB, baseLog *logger.Logger) PatientRepo {
	return &patientRepo{db: db, log: baseLog.With("repo", "PatientRepo")}
}

func (r *patientRepo) Create(dbc dbctx.Context, patients []*types.Patient) ([]*types.Patient, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(patients) == 0 {
		return []*types.Patient{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&patients).Error; err != nil {
		return nil, err
	}
	return patients, nil
}

func (r *patientRepo) take(dbc dbctx.Context, query string, args ...interface{}) (*types.Patient, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var p types.Patient
	err := transaction.WithContext(dbc.Ctx).Where(query, args...).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Patient, error) {
	return r.take(dbc, "id = ?", id)
}

// GetForDoctor returns (nil, nil) when the patient does not belong to doctorID.
func (r *patientRepo) GetForDoctor(dbc dbctx.Context, id, doctorID uuid.UUID) (*types.Patient, error) {
	return r.take(dbc, "id = ? AND doctor_id = ?", id, doctorID)
}

func (r *patientRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Patient, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Patient
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
