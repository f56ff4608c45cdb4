package services

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/yungbote/carecall-backend/internal/clients/vapi"
	"github.com/yungbote/carecall-backend/internal/platform/apierr"
)

// Error kinds. Match with errors.Is; the message shown to callers comes from
// the wrapping apierr.Error.
var (
	ErrAuthentication   = errors.New("authentication required")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrConfiguration    = errors.New("configuration missing")
	ErrProvider         = errors.New("provider failure")
	ErrAlreadySubmitted = errors.New("form already submitted")
	ErrNoQuestions      = errors.New("form has no questions")
	ErrMissingContact   = errors.New("patient contact missing")
)

type domainError struct {
	kind error
	msg  string
}

func (e *domainError) Error() string { return e.msg }
func (e *domainError) Unwrap() error { return e.kind }

func newDomainError(status int, code string, kind error, msg string) error {
	return apierr.New(status, code, &domainError{kind: kind, msg: msg})
}

func authError(msg string) error {
	return newDomainError(http.StatusUnauthorized, "unauthorized", ErrAuthentication, msg)
}

// notFound is also used for ownership mismatches so callers cannot probe for
// other doctors' records.
func notFound(msg string) error {
	return newDomainError(http.StatusNotFound, "not_found", ErrNotFound, msg)
}

func validationError(msg string) error {
	return newDomainError(http.StatusBadRequest, "validation_error", ErrValidation, msg)
}

func configurationError(msg string) error {
	return newDomainError(http.StatusInternalServerError, "configuration_error", ErrConfiguration, msg)
}

func providerError(msg string) error {
	return newDomainError(http.StatusBadGateway, "provider_error", ErrProvider, msg)
}

func alreadySubmitted() error {
	return newDomainError(http.StatusConflict, "already_submitted", ErrAlreadySubmitted, "Form already submitted")
}

func noQuestions() error {
	return newDomainError(http.StatusUnprocessableEntity, "no_questions", ErrNoQuestions, "No questions found for this form")
}

func missingContact() error {
	return newDomainError(http.StatusUnprocessableEntity, "missing_contact", ErrMissingContact, "Patient phone number not available")
}

// translateCallError maps call gateway failures onto the taxonomy.
func translateCallError(err error) error {
	var he *vapi.HTTPError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, vapi.ErrInvalidPhoneNumber):
		return validationError("Invalid phone number format")
	case errors.Is(err, vapi.ErrNotConfigured):
		return configurationError("Call provider is not configured")
	case errors.As(err, &he):
		msg := he.Message
		if msg == "" {
			msg = http.StatusText(he.StatusCode)
		}
		return providerError("Call provider error: " + msg)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return providerError("Call provider error: " + err.Error())
	}
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func isKind(err, kind error) bool {
	return errors.Is(err, kind)
}
