package subscription

import "time"

// CustomerInfo is the billing provider's snapshot of everything the user has
// paid for. The engine treats it as provider-owned: it is recorded verbatim in
// the entitlement snapshot and entitlements are derived from it, but nothing
// in it is ever written back.
type CustomerInfo struct {
	UserID             string
	ActiveEntitlements []ActiveEntitlement
	RequestedAt        time.Time
}

// ActiveEntitlement is one entitlement the provider currently considers
// active. Identifier is the provider-side entitlement identifier; it names
// either a tier (e.g. "ihsan") or an individually granted feature key.
type ActiveEntitlement struct {
	Identifier    string
	ProductID     string
	ExpiresAt     *time.Time
	WillRenew     bool
	IsTrial       bool
	InGracePeriod bool
	BillingIssue  bool
}

// IsActive reports whether the entitlement is still live. Providers normally
// only list live entitlements, but a snapshot can outlive an expiration.
func (e *ActiveEntitlement) IsActive(now time.Time) bool {
	if e.ExpiresAt == nil {
		return true
	}
	if now.Before(*e.ExpiresAt) {
		return true
	}
	// An expired entitlement still counts during a billing grace period.
	return e.InGracePeriod
}
