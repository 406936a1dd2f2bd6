package subscription

import "context"

// CatalogRepository reads the tier/feature catalog from the backend store.
// Implementations must not cache: staleness policy belongs to the caller.
type CatalogRepository interface {
	// ListActiveTiers returns the active tier definitions ordered by sort order.
	ListActiveTiers(ctx context.Context) ([]TierDefinition, error)
	// ListFeatures returns all feature definitions.
	ListFeatures(ctx context.Context) ([]FeatureDefinition, error)
	// GetUserSubscription returns the user's subscription record for display,
	// or nil when the user has none.
	GetUserSubscription(ctx context.Context, userID string) (*UserSubscriptionRecord, error)
}

// TierCache durably remembers the last resolved tier name per user so the
// next process start can render a best-guess tier before the provider round
// trip completes. Write-through only; a cached value never overrides a live
// resolution.
type TierCache interface {
	GetLastTier(ctx context.Context, userID string) (string, error)
	SetLastTier(ctx context.Context, userID string, tierName string) error
}
