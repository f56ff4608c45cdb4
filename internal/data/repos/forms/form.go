package forms

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/platform/dbctx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
)

type FormRepo interface {
	Create(dbc dbctx.Context, forms []*types.Form) ([]*types.Form, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Form, error)
	GetForDoctor(dbc dbctx.Context, id, doctorID uuid.UUID) (*types.Form, error)
	GetForPatient(dbc dbctx.Context, id, patientID uuid.UUID) (*types.Form, error)
	ListForPatient(dbc dbctx.Context, patientID uuid.UUID) ([]*types.Form, error)
	ListForDoctorPatient(dbc dbctx.Context, doctorID, patientID uuid.UUID) ([]*types.Form, error)
	ListOverdue(dbc dbctx.Context, now time.Time, limit int) ([]*types.Form, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	MarkSubmitted(dbc dbctx.Context, id uuid.UUID, via string, at time.Time, callSID string) (bool, error)
	ClaimForCall(dbc dbctx.Context, id uuid.UUID) (bool, error)
	ReleaseCallClaim(dbc dbctx.Context, id uuid.UUID) error
	StampCall(dbc dbctx.Context, id uuid.UUID, callSID string, at time.Time) error
	DeleteCascade(dbc dbctx.Context, id uuid.UUID) error
}

type formRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFormRepo(db *gorm.DB, baseLog *logger.Logger) FormRepo {
	return &formRepo{db: db, log: baseLog.With("repo", "FormRepo")}
}

func (r *formRepo) Create(dbc dbctx.Context, forms []*types.Form) ([]*types.Form, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(forms) == 0 {
		return []*types.Form{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&forms).Error; err != nil {
		return nil, err
	}
	return forms, nil
}

func (r *formRepo) first(dbc dbctx.Context, query string, args ...interface{}) (*types.Form, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var f types.Form
	err := transaction.WithContext(dbc.Ctx).Where(query, args...).Take(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetByID returns (nil, nil) when the form does not exist.
func (r *formRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Form, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, "id = ?", id)
}

func (r *formRepo) GetForDoctor(dbc dbctx.Context, id, doctorID uuid.UUID) (*types.Form, error) {
	if id == uuid.Nil || doctorID == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, "id = ? AND doctor_id = ?", id, doctorID)
}

func (r *formRepo) GetForPatient(dbc dbctx.Context, id, patientID uuid.UUID) (*types.Form, error) {
	if id == uuid.Nil || patientID == uuid.Nil {
		return nil, nil
	}
	return r.first(dbc, "id = ? AND patient_id = ?", id, patientID)
}

func (r *formRepo) ListForPatient(dbc dbctx.Context, patientID uuid.UUID) ([]*types.Form, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Form
	if err := transaction.WithContext(dbc.Ctx).
		Where("patient_id = ?", patientID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *formRepo) ListForDoctorPatient(dbc dbctx.Context, doctorID, patientID uuid.UUID) ([]*types.Form, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Form
	if err := transaction.WithContext(dbc.Ctx).
		Where("doctor_id = ? AND patient_id = ?", doctorID, patientID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListOverdue selects open, never-called forms whose deadline is before now.
func (r *formRepo) ListOverdue(dbc dbctx.Context, now time.Time, limit int) ([]*types.Form, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("submitted_at IS NULL").
		Where("call_scheduled = ?", false).
		Where("deadline IS NOT NULL AND deadline < ?", now.UTC()).
		Order("deadline ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.Form
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *formRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(updates) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Form{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// MarkSubmitted sets submitted_at only while the form is still open. It reports
// false when another submission won. Voice-call submissions also stamp
// call_made_at and call_sid when those are absent.
func (r *formRepo) MarkSubmitted(dbc dbctx.Context, id uuid.UUID, via string, at time.Time, callSID string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	at = at.UTC()
	updates := map[string]interface{}{
		"submitted_at":  at,
		"submitted_via": via,
	}
	if via == types.SubmittedViaVoiceCall {
		updates["call_made_at"] = gorm.Expr("COALESCE(call_made_at, ?)", at)
		if callSID != "" {
			updates["call_sid"] = gorm.Expr("COALESCE(NULLIF(call_sid, ''), ?)", callSID)
		}
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Form{}).
		Where("id = ? AND submitted_at IS NULL", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClaimForCall flips call_scheduled for an open, unclaimed form.
func (r *formRepo) ClaimForCall(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Form{}).
		Where("id = ? AND submitted_at IS NULL AND call_scheduled = ?", id, false).
		Update("call_scheduled", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *formRepo) ReleaseCallClaim(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Form{}).
		Where("id = ? AND call_made_at IS NULL", id).
		Update("call_scheduled", false).Error
}

func (r *formRepo) StampCall(dbc dbctx.Context, id uuid.UUID, callSID string, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"call_scheduled": true,
		"call_made_at":   at.UTC(),
	}
	if callSID != "" {
		updates["call_sid"] = callSID
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Form{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeleteCascade removes answers, questions, call attempts and then the form.
func (r *formRepo) DeleteCascade(dbc dbctx.Context, id uuid.UUID) error {
	run := func(tx *gorm.DB) error {
		tx = tx.WithContext(dbc.Ctx)
		if err := tx.Where("form_id = ?", id).Delete(&types.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("form_id = ?", id).Delete(&types.Question{}).Error; err != nil {
			return err
		}
		if err := tx.Where("form_id = ?", id).Delete(&types.CallAttempt{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&types.Form{}).Error
	}
	if dbc.Tx != nil {
		return run(dbc.Tx)
	}
	return r.db.Transaction(run)
}
