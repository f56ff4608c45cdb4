package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/carecall-backend/internal/http/response"
	"github.com/yungbote/carecall-backend/internal/services"
)

type CallHandler struct {
	calls services.CallService
}

func NewCallHandler(calls services.CallService) *CallHandler {
	return &CallHandler{calls: calls}
}

// POST /api/forms/:formId/call
func (h *CallHandler) TriggerCall(c *gin.Context) {
	formID, ok := uuidParam(c, "formId")
	if !ok {
		return
	}
	res, err := h.calls.TriggerCall(requestDBC(c), formID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, res)
}
