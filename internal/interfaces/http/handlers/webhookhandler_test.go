package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mizan/internal/domain/subscription"
	"mizan/internal/infrastructure/billing"
	sharedConfig "mizan/internal/shared/config"
	"mizan/internal/shared/constants"
	"mizan/internal/shared/logger"
)

const webhookBody = `{
	"subscriber": {
		"original_app_user_id": "user-42",
		"entitlements": {
			"ihsan": {"product_identifier": "ihsan_monthly", "will_renew": true}
		}
	}
}`

func newWebhookClient() *billing.HTTPClient {
	return billing.NewHTTPClient(&sharedConfig.BillingConfig{BaseURL: "http://localhost:0"}, logger.NewLogger())
}

func performWebhook(t *testing.T, handler *WebhookHandler, body, authorization string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(body))
	if authorization != "" {
		c.Request.Header.Set(constants.HeaderAuthorization, authorization)
	}
	handler.HandleBillingEvent(c)
	return w
}

func TestWebhookHandler_RejectsMissingSecretConfig(t *testing.T) {
	handler := NewWebhookHandler(newWebhookClient(), nil, "", logger.NewLogger())

	w := performWebhook(t, handler, webhookBody, "sekrit")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebhookHandler_RejectsBadAuthorization(t *testing.T) {
	handler := NewWebhookHandler(newWebhookClient(), nil, "sekrit", logger.NewLogger())

	w := performWebhook(t, handler, webhookBody, "wrong")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookHandler_RejectsMalformedPayload(t *testing.T) {
	handler := NewWebhookHandler(newWebhookClient(), nil, "sekrit", logger.NewLogger())

	w := performWebhook(t, handler, "{not json", "sekrit")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_RejectsMissingUserIdentity(t *testing.T) {
	handler := NewWebhookHandler(newWebhookClient(), nil, "sekrit", logger.NewLogger())

	w := performWebhook(t, handler, `{"subscriber": {"entitlements": {}}}`, "sekrit")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_DeliversUpdateToListeners(t *testing.T) {
	client := newWebhookClient()
	handler := NewWebhookHandler(client, nil, "sekrit", logger.NewLogger())

	session := client.Session()
	require.NoError(t, session.InitializeForUser(context.Background(), "user-42"))
	received := make(chan struct{}, 1)
	hnd, err := session.SubscribeToUpdates(func(info *subscription.CustomerInfo) {
		received <- struct{}{}
	})
	require.NoError(t, err)
	defer hnd.Remove()

	w := performWebhook(t, handler, webhookBody, "sekrit")

	require.Equal(t, http.StatusOK, w.Code)
	select {
	case <-received:
	default:
		t.Fatal("expected the webhook to reach the subscribed listener")
	}
}
