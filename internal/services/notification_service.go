package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/carecall-backend/internal/clients/twilio"
	"github.com/yungbote/carecall-backend/internal/clients/vapi"
	types "github.com/yungbote/carecall-backend/internal/domain"
	"github.com/yungbote/carecall-backend/internal/platform/httpx"
	"github.com/yungbote/carecall-backend/internal/platform/logger"
	"github.com/yungbote/carecall-backend/internal/platform/sendgrid"
)

// NotificationService tells a patient a form is waiting. Channels without a
// configured client are skipped.
type NotificationService interface {
	NotifyFormAssigned(ctx context.Context, form *types.Form, patient *types.Patient, doctor *types.Doctor) error
}

type notificationService struct {
	log    *logger.Logger
	email  sendgrid.Client
	sms    twilio.Client
	appURL string
}

func NewNotificationService(log *logger.Logger, email sendgrid.Client, sms twilio.Client, appURL string) NotificationService {
	return &notificationService{
		log:    log.With("service", "NotificationService"),
		email:  email,
		sms:    sms,
		appURL: appURL,
	}
}

func (ns *notificationService) NotifyFormAssigned(ctx context.Context, form *types.Form, patient *types.Patient, doctor *types.Doctor) error {
	if form == nil || patient == nil {
		return fmt.Errorf("form and patient required")
	}
	doctorName := "your doctor"
	if doctor != nil && strings.TrimSpace(doctor.Name) != "" {
		doctorName = "Dr. " + strings.TrimSpace(doctor.Name)
	}
	link := httpx.PublicURL(ns.appURL, "/patient/forms/"+form.ID.String())
	deadline := ""
	if form.Deadline != nil {
		deadline = " Please complete it by " + form.Deadline.UTC().Format("Jan 2, 2006 15:04 MST") + "."
	}

	var errs []error
	if ns.email != nil && strings.TrimSpace(patient.Email) != "" {
		_, err := ns.email.Send(ctx, sendgrid.SendEmailRequest{
			To:      []sendgrid.EmailAddress{{Email: patient.Email, Name: patient.DisplayName()}},
			Subject: fmt.Sprintf("New form from %s: %s", doctorName, form.Title),
			Text: fmt.Sprintf("Hi %s,\n\n%s has sent you a new form, \"%s\".%s\n\nOpen it here: %s\n\nIf it is not completed in time, our assistant will call you to collect your answers by phone.",
				patient.DisplayName(), doctorName, form.Title, deadline, link),
			Categories:      []string{"form-assigned"},
			CustomArgs:      map[string]string{"form_id": form.ID.String()},
			NoClickTracking: true,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}
	if ns.sms != nil && patient.Phone() != "" {
		body := fmt.Sprintf("%s sent you a new form: %s.%s %s", doctorName, form.Title, deadline, link)
		if to, err := vapi.NormalizePhoneNumber(patient.Phone()); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		} else if _, err := ns.sms.SendSMS(ctx, to, body); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	ns.log.Debug("Form assignment notified", "form_id", form.ID, "patient_id", patient.ID)
	return nil
}
