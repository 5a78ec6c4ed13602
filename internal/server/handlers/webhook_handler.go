package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sdiouf/wabot"
)

// WebhookHandler adapts Meta's webhook HTTP callbacks to the bot client.
type WebhookHandler struct {
	bot         *wabot.Client
	verifyToken string
	logger      *zap.Logger
}

// NewWebhookHandler constructs the HTTP handler adapter.
func NewWebhookHandler(bot *wabot.Client, verifyToken string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{bot: bot, verifyToken: verifyToken, logger: logger}
}

// Verify responds to Meta's webhook verification challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if !strings.EqualFold(mode, "subscribe") || token != h.verifyToken {
		h.logger.Warn("webhook verification failed", zap.String("mode", mode))
		c.String(http.StatusForbidden, "verification failed")
		return
	}

	c.String(http.StatusOK, challenge)
}

// Receive ingests webhook POST callbacks from Meta. The body goes straight
// to the dispatcher, which drops anything that is not a routable message;
// Meta only requires a 200 acknowledgement.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Warn("failed reading webhook body", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	if err := h.bot.ProcessUpdateJSON(c.Request.Context(), body); err != nil {
		// Only context cancellation surfaces here; the delivery itself is
		// still queued, so acknowledge it.
		h.logger.Debug("webhook processing interrupted", zap.Error(err))
	}

	c.Status(http.StatusOK)
}
