package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/carecall-backend/internal/http/response"
	"github.com/yungbote/carecall-backend/internal/services"
)

// FormHandler serves the doctor side of forms and questions.
type FormHandler struct {
	forms services.FormService
}

func NewFormHandler(forms services.FormService) *FormHandler {
	return &FormHandler{forms: forms}
}

type createFormRequest struct {
	Title     string     `json:"title"`
	Questions []string   `json:"questions"`
	Deadline  *time.Time `json:"deadline"`
}

// POST /api/patients/:patientId/forms
func (h *FormHandler) CreateForm(c *gin.Context) {
	patientID, ok := uuidParam(c, "patientId")
	if !ok {
		return
	}
	var req createFormRequest
	if !bindJSON(c, &req) {
		return
	}
	form, err := h.forms.CreateForm(requestDBC(c), patientID, services.CreateFormInput{
		Title:     req.Title,
		Questions: req.Questions,
		Deadline:  req.Deadline,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, form)
}

// GET /api/patients/:patientId/forms
func (h *FormHandler) ListPatientForms(c *gin.Context) {
	patientID, ok := uuidParam(c, "patientId")
	if !ok {
		return
	}
	forms, err := h.forms.ListPatientForms(requestDBC(c), patientID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, forms)
}

// GET /api/forms/:formId
func (h *FormHandler) GetForm(c *gin.Context) {
	formID, ok := uuidParam(c, "formId")
	if !ok {
		return
	}
	detail, err := h.forms.GetForm(requestDBC(c), formID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

type updateFormRequest struct {
	Title         *string    `json:"title"`
	Deadline      *time.Time `json:"deadline"`
	ClearDeadline bool       `json:"clear_deadline"`
}

// PATCH /api/forms/:formId
func (h *FormHandler) UpdateForm(c *gin.Context) {
	formID, ok := uuidParam(c, "formId")
	if !ok {
		return
	}
	var req updateFormRequest
	if !bindJSON(c, &req) {
		return
	}
	form, err := h.forms.UpdateForm(requestDBC(c), formID, services.UpdateFormInput{
		Title:         req.Title,
		Deadline:      req.Deadline,
		ClearDeadline: req.ClearDeadline,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, form)
}

// DELETE /api/forms/:formId
func (h *FormHandler) DeleteForm(c *gin.Context) {
	formID, ok := uuidParam(c, "formId")
	if !ok {
		return
	}
	if err := h.forms.DeleteForm(requestDBC(c), formID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"id": formID})
}

type addQuestionRequest struct {
	QuestionText  string `json:"question_text"`
	QuestionOrder *int   `json:"question_order"`
}

// POST /api/forms/:formId/questions
func (h *FormHandler) AddQuestion(c *gin.Context) {
	formID, ok := uuidParam(c, "formId")
	if !ok {
		return
	}
	var req addQuestionRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.forms.AddQuestion(requestDBC(c), formID, req.QuestionText, req.QuestionOrder)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, q)
}

type updateQuestionRequest struct {
	QuestionText  *string `json:"question_text"`
	QuestionOrder *int    `json:"question_order"`
}

// PATCH /api/questions/:questionId
func (h *FormHandler) UpdateQuestion(c *gin.Context) {
	questionID, ok := uuidParam(c, "questionId")
	if !ok {
		return
	}
	var req updateQuestionRequest
	if !bindJSON(c, &req) {
		return
	}
	q, err := h.forms.UpdateQuestion(requestDBC(c), questionID, services.UpdateQuestionInput{
		Text:  req.QuestionText,
		Order: req.QuestionOrder,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, q)
}

// DELETE /api/questions/:questionId
func (h *FormHandler) DeleteQuestion(c *gin.Context) {
	questionID, ok := uuidParam(c, "questionId")
	if !ok {
		return
	}
	if err := h.forms.DeleteQuestion(requestDBC(c), questionID); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"id": questionID})
}

// GET /api/forms/:formId/answers
func (h *FormHandler) ListAnswers(c *gin.Context) {
	formID, ok := uuidParam(c, "formId")
	if !ok {
		return
	}
	answers, err := h.forms.ListAnswers(requestDBC(c), formID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, answers)
}

