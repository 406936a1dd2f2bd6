package billing

import (
	"context"

	"mizan/internal/domain/subscription"
	"mizan/internal/shared/biztime"
)

// NoopProvider is the provider implementation for deployments without a
// billing integration. Every user resolves to the free tier.
type NoopProvider struct{}

func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

func (p *NoopProvider) InitializeForUser(ctx context.Context, userID string) error {
	return nil
}

func (p *NoopProvider) FetchCustomerInfo(ctx context.Context) (*subscription.CustomerInfo, error) {
	return &subscription.CustomerInfo{RequestedAt: biztime.NowUTC()}, nil
}

func (p *NoopProvider) SubscribeToUpdates(fn func(*subscription.CustomerInfo)) (subscription.UpdateHandle, error) {
	return noopHandle{}, nil
}

func (p *NoopProvider) Logout(ctx context.Context) error {
	return nil
}

type noopHandle struct{}

func (noopHandle) Remove() {}
