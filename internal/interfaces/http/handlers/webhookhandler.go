package handlers

import (
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"mizan/internal/infrastructure/billing"
	"mizan/internal/infrastructure/pubsub"
	"mizan/internal/shared/constants"
	"mizan/internal/shared/logger"
	"mizan/internal/shared/utils"
)

const maxWebhookBodySize = 1 << 20 // 1 MiB

// WebhookHandler receives push updates from the billing provider and fans
// them out to the locally attached stores plus the cross-instance event bus.
type WebhookHandler struct {
	client    *billing.HTTPClient
	publisher pubsub.EntitlementEventPublisher
	secret    string
	logger    logger.Interface
}

// NewWebhookHandler creates a new billing webhook handler. The publisher may
// be nil when cross-instance relay is disabled.
func NewWebhookHandler(client *billing.HTTPClient, publisher pubsub.EntitlementEventPublisher, secret string, logger logger.Interface) *WebhookHandler {
	return &WebhookHandler{
		client:    client,
		publisher: publisher,
		secret:    secret,
		logger:    logger,
	}
}

// HandleBillingEvent handles POST /webhooks/billing
// The provider authenticates itself with the configured shared secret in the
// Authorization header.
func (h *WebhookHandler) HandleBillingEvent(c *gin.Context) {
	if h.secret == "" {
		h.logger.Errorw("billing webhook received but no webhook secret is configured")
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "webhook not configured")
		return
	}

	provided := c.GetHeader(constants.HeaderAuthorization)
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		h.logger.Warnw("billing webhook rejected: bad authorization", "client_ip", c.ClientIP())
		utils.ErrorResponse(c, http.StatusUnauthorized, "invalid webhook authorization")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodySize))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "failed to read webhook body")
		return
	}

	info, err := billing.ParseWebhookCustomerInfo(body, "")
	if err != nil {
		h.logger.Warnw("billing webhook rejected: malformed payload", "error", err)
		utils.ErrorResponse(c, http.StatusBadRequest, "malformed webhook payload")
		return
	}
	if info.UserID == "" {
		utils.ErrorResponse(c, http.StatusBadRequest, "webhook payload missing user identity")
		return
	}

	h.client.DeliverUpdate(info.UserID, info)

	if h.publisher != nil {
		if err := h.publisher.PublishChange(c.Request.Context(), info.UserID, pubsub.EntitlementChangeWebhook); err != nil {
			// Local delivery already happened; the relay is best effort.
			h.logger.Warnw("failed to relay entitlement change", "user_id", info.UserID, "error", err)
		}
	}

	h.logger.Infow("billing webhook processed",
		"user_id", info.UserID,
		"active_entitlements", len(info.ActiveEntitlements),
	)
	utils.SuccessResponse(c, http.StatusOK, "webhook processed", nil)
}
