package entitlement

import (
	"context"
	"sync"
	"time"

	"mizan/internal/domain/subscription"
	"mizan/internal/shared/goroutine"
	"mizan/internal/shared/logger"
)

// ProviderFactory returns a fresh, unbound provider session for a new store.
type ProviderFactory func() subscription.BillingProvider

// Manager owns one entitlement store per authenticated user. Stores are
// created on first access, started in the background and disposed together
// on shutdown.
type Manager struct {
	factory    ProviderFactory
	catalog    subscription.CatalogRepository
	tierCache  subscription.TierCache
	logger     logger.Interface
	retryDelay time.Duration

	mu     sync.Mutex
	stores map[string]*Store
	closed bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRetryDelay overrides the fixed wait before each store's single fetch
// retry.
func WithRetryDelay(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.retryDelay = d
	}
}

func NewManager(factory ProviderFactory, catalog subscription.CatalogRepository, tierCache subscription.TierCache, log logger.Interface, opts ...ManagerOption) *Manager {
	m := &Manager{
		factory:   factory,
		catalog:   catalog,
		tierCache: tierCache,
		logger:    log,
		stores:    make(map[string]*Store),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the user's store, creating and starting it on first access.
// A freshly created store is returned immediately with loading=true while it
// resolves in the background.
func (m *Manager) Get(ctx context.Context, userID string) *Store {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	if store, ok := m.stores[userID]; ok {
		m.mu.Unlock()
		return store
	}

	store := NewStore(StoreConfig{
		UserID:     userID,
		Provider:   m.factory(),
		Catalog:    m.catalog,
		TierCache:  m.tierCache,
		Logger:     m.logger,
		RetryDelay: m.retryDelay,
	})
	m.stores[userID] = store
	m.mu.Unlock()

	goroutine.SafeGo(m.logger, "entitlement-store-start", func() {
		// The store's own lifecycle outlives the request that created it.
		store.Start(context.WithoutCancel(ctx))
	})
	return store
}

// Lookup returns the user's store without creating one.
func (m *Manager) Lookup(userID string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	store, ok := m.stores[userID]
	return store, ok
}

// RefreshUser triggers an entitlement-only refresh for a user if a store
// exists locally. Used by the cross-instance change relay.
func (m *Manager) RefreshUser(ctx context.Context, userID string) {
	store, ok := m.Lookup(userID)
	if !ok {
		return
	}
	store.RefreshEntitlements(ctx)
}

// Close disposes every store. Get returns nil afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	stores := make([]*Store, 0, len(m.stores))
	for _, store := range m.stores {
		stores = append(stores, store)
	}
	m.stores = map[string]*Store{}
	m.mu.Unlock()

	for _, store := range stores {
		store.Close()
	}
}
