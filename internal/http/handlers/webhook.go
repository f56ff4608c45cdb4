package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/carecall-backend/internal/platform/logger"
	"github.com/yungbote/carecall-backend/internal/services"
)

// maxWebhookBody bounds what is read from a provider callback.
const maxWebhookBody = 5 << 20

// WebhookHandler acknowledges every delivery with 200. The provider retries
// anything else, and a retry can mean another call to the patient.
type WebhookHandler struct {
	log      *logger.Logger
	webhooks services.CallWebhookService
}

func NewWebhookHandler(log *logger.Logger, webhooks services.CallWebhookService) *WebhookHandler {
	return &WebhookHandler{log: log.With("handler", "WebhookHandler"), webhooks: webhooks}
}

// POST /api/webhooks/call, POST /api/forms/call-submit
func (h *WebhookHandler) Receive(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.log.Warn("Failed to read call webhook body", "error", err)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	out := h.webhooks.Handle(c.Request.Context(), raw)
	h.log.Debug("Call webhook acknowledged", "status", out.Status, "form_id", out.FormID)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// GET /api/webhooks/call
func (h *WebhookHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Call webhook endpoint is active", "status": "active"})
}
