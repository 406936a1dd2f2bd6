package subscription

import "context"

// UpdateHandle detaches a push-update listener registered with a
// BillingProvider. Remove is idempotent.
type UpdateHandle interface {
	Remove()
}

// BillingProvider abstracts the billing provider SDK. It is the single source
// of truth for "what has the user purchased".
type BillingProvider interface {
	// InitializeForUser binds the provider session to the authenticated user.
	// Implementations for unsupported platforms may make this a no-op and
	// resolve everything to the free tier.
	InitializeForUser(ctx context.Context, userID string) error

	// FetchCustomerInfo returns the current customer snapshot. It fails on
	// network or provider errors; retry policy belongs to the caller.
	FetchCustomerInfo(ctx context.Context) (*CustomerInfo, error)

	// SubscribeToUpdates registers a listener invoked whenever the provider
	// detects an entitlement change outside the request/response flow, e.g. a
	// purchase completed on another device. The returned handle removes the
	// listener.
	SubscribeToUpdates(fn func(*CustomerInfo)) (UpdateHandle, error)

	// Logout releases the provider session.
	Logout(ctx context.Context) error
}
