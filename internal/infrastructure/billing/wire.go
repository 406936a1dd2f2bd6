package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"mizan/internal/domain/subscription"
)

// subscriberPayload is the provider's subscriber resource as returned by the
// REST API and carried in webhook bodies.
type subscriberPayload struct {
	Subscriber struct {
		OriginalAppUserID string                        `json:"original_app_user_id"`
		Entitlements      map[string]entitlementPayload `json:"entitlements"`
		RequestDate       time.Time                     `json:"request_date"`
	} `json:"subscriber"`
}

type entitlementPayload struct {
	ProductIdentifier      string     `json:"product_identifier"`
	ExpiresDate            *time.Time `json:"expires_date"`
	WillRenew              bool       `json:"will_renew"`
	PeriodType             string     `json:"period_type"`
	GracePeriodExpiresDate *time.Time `json:"grace_period_expires_date"`
	BillingIssuesDetectedAt *time.Time `json:"billing_issues_detected_at"`
}

func (p *subscriberPayload) toCustomerInfo(fallbackUserID string) *subscription.CustomerInfo {
	userID := p.Subscriber.OriginalAppUserID
	if userID == "" {
		userID = fallbackUserID
	}

	requestedAt := p.Subscriber.RequestDate
	if requestedAt.IsZero() {
		requestedAt = time.Now()
	}

	info := &subscription.CustomerInfo{
		UserID:      userID,
		RequestedAt: requestedAt,
	}

	for identifier, ent := range p.Subscriber.Entitlements {
		active := subscription.ActiveEntitlement{
			Identifier:   identifier,
			ProductID:    ent.ProductIdentifier,
			ExpiresAt:    ent.ExpiresDate,
			WillRenew:    ent.WillRenew,
			IsTrial:      ent.PeriodType == "trial",
			BillingIssue: ent.BillingIssuesDetectedAt != nil,
		}
		if ent.GracePeriodExpiresDate != nil && time.Now().Before(*ent.GracePeriodExpiresDate) {
			active.InGracePeriod = true
		}
		info.ActiveEntitlements = append(info.ActiveEntitlements, active)
	}

	return info
}

// ParseWebhookCustomerInfo decodes a webhook body carrying the subscriber
// resource into a CustomerInfo snapshot.
func ParseWebhookCustomerInfo(raw []byte, fallbackUserID string) (*subscription.CustomerInfo, error) {
	var payload subscriberPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	return payload.toCustomerInfo(fallbackUserID), nil
}
