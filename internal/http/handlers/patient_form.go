package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/carecall-backend/internal/http/response"
	"github.com/yungbote/carecall-backend/internal/services"
)

// PatientFormHandler serves a patient's own forms.
type PatientFormHandler struct {
	forms       services.FormService
	submissions services.SubmissionService
}

func NewPatientFormHandler(forms services.FormService, submissions services.SubmissionService) *PatientFormHandler {
	return &PatientFormHandler{forms: forms, submissions: submissions}
}

// GET /api/me/forms
func (h *PatientFormHandler) ListMyForms(c *gin.Context) {
	forms, err := h.forms.ListMyForms(requestDBC(c))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, forms)
}

// GET /api/me/forms/:formId
func (h *PatientFormHandler) GetMyForm(c *gin.Context) {
	formID, ok := uuidParam(c, "formId")
	if !ok {
		return
	}
	detail, err := h.forms.GetMyForm(requestDBC(c), formID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

type submitFormRequest struct {
	Answers []services.AnswerInput `json:"answers"`
}

// POST /api/me/forms/:formId/submit
func (h *PatientFormHandler) Submit(c *gin.Context) {
	formID, ok := uuidParam(c, "formId")
	if !ok {
		return
	}
	var req submitFormRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.submissions.SubmitManual(requestDBC(c), formID, req.Answers)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}
