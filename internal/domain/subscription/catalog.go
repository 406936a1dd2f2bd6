package subscription

import "time"

// TierDefinition describes a purchasable tier as configured in the backend
// catalog. Definitions are loaded read-only and are immutable for the session
// once fetched. Prices are in the smallest currency unit; a nil price means
// the billing option is not offered for the tier.
type TierDefinition struct {
	ID            uint
	Name          string
	DisplayName   string
	Description   string
	PriceMonthly  *int64
	PriceYearly   *int64
	PriceLifetime *int64
	Features      []string
	SortOrder     int
	IsActive      bool
}

// Tier returns the tier value the definition describes. A catalog row with an
// unrecognized name maps to TierFree rather than breaking gate decisions.
func (d *TierDefinition) Tier() Tier {
	t, _ := ParseTier(d.Name)
	return t
}

// FeatureDefinition describes a gateable feature as configured in the backend
// catalog. FeatureKey is unique within the catalog.
type FeatureDefinition struct {
	FeatureKey   string
	FeatureName  string
	Description  string
	Category     string
	IsPremium    bool
	RequiredTier Tier
}

// SubscriptionStatus is the display status of a user subscription record.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// UserSubscriptionRecord is the backend's view of a user's subscription. It is
// informational only: the UI renders it, but access control never reads it.
// The billing provider's customer info remains the single source of truth for
// what the user has paid for.
type UserSubscriptionRecord struct {
	ID           uint
	UserID       string
	TierID       uint
	Status       SubscriptionStatus
	BillingCycle string
	StartDate    time.Time
	EndDate      *time.Time
	AutoRenew    bool
}
