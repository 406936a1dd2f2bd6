package entitlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mizan/internal/domain/subscription"
	"mizan/internal/shared/logger"
)

// --- fakes ---

type fetchResult struct {
	info *subscription.CustomerInfo
	err  error
}

type fakeProvider struct {
	mu           sync.Mutex
	initErr      error
	fetchResults []fetchResult
	defaultInfo  *subscription.CustomerInfo
	fetchCalls   int
	fetchStarted chan struct{}
	fetchRelease chan struct{}
	callback     func(*subscription.CustomerInfo)
	removed      bool
	loggedOut    bool
}

func (p *fakeProvider) InitializeForUser(ctx context.Context, userID string) error {
	return p.initErr
}

func (p *fakeProvider) FetchCustomerInfo(ctx context.Context) (*subscription.CustomerInfo, error) {
	p.mu.Lock()
	p.fetchCalls++
	res := fetchResult{info: p.defaultInfo}
	if len(p.fetchResults) > 0 {
		res = p.fetchResults[0]
		p.fetchResults = p.fetchResults[1:]
	}
	started := p.fetchStarted
	release := p.fetchRelease
	p.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}

	if res.err != nil {
		return nil, res.err
	}
	if res.info == nil {
		return &subscription.CustomerInfo{}, nil
	}
	return res.info, nil
}

func (p *fakeProvider) SubscribeToUpdates(fn func(*subscription.CustomerInfo)) (subscription.UpdateHandle, error) {
	p.mu.Lock()
	p.callback = fn
	p.mu.Unlock()
	return fakeHandle{provider: p}, nil
}

func (p *fakeProvider) Logout(ctx context.Context) error {
	p.mu.Lock()
	p.loggedOut = true
	p.mu.Unlock()
	return nil
}

func (p *fakeProvider) push(info *subscription.CustomerInfo) {
	p.mu.Lock()
	cb := p.callback
	p.mu.Unlock()
	if cb != nil {
		cb(info)
	}
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetchCalls
}

type fakeHandle struct {
	provider *fakeProvider
}

func (h fakeHandle) Remove() {
	h.provider.mu.Lock()
	h.provider.removed = true
	h.provider.callback = nil
	h.provider.mu.Unlock()
}

type fakeCatalog struct {
	mu       sync.Mutex
	tiers    []subscription.TierDefinition
	features []subscription.FeatureDefinition
	record   *subscription.UserSubscriptionRecord
	err      error
}

func (c *fakeCatalog) ListActiveTiers(ctx context.Context) ([]subscription.TierDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.tiers, nil
}

func (c *fakeCatalog) ListFeatures(ctx context.Context) ([]subscription.FeatureDefinition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.features, nil
}

func (c *fakeCatalog) GetUserSubscription(ctx context.Context, userID string) (*subscription.UserSubscriptionRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.record, nil
}

type fakeTierCache struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	setErr error
	sets   []string
}

func (c *fakeTierCache) GetLastTier(ctx context.Context, userID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", c.getErr
	}
	return c.values[userID], nil
}

func (c *fakeTierCache) SetLastTier(ctx context.Context, userID string, tierName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	if c.values == nil {
		c.values = map[string]string{}
	}
	c.values[userID] = tierName
	c.sets = append(c.sets, tierName)
	return nil
}

func (c *fakeTierCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}

// --- helpers ---

func infoWith(identifiers ...string) *subscription.CustomerInfo {
	info := &subscription.CustomerInfo{UserID: "u1", RequestedAt: time.Now()}
	for _, id := range identifiers {
		info.ActiveEntitlements = append(info.ActiveEntitlements, subscription.ActiveEntitlement{Identifier: id})
	}
	return info
}

func storeTestCatalog() *fakeCatalog {
	return &fakeCatalog{
		tiers: []subscription.TierDefinition{
			{ID: 1, Name: "free", DisplayName: "Free", SortOrder: 0, IsActive: true},
			{ID: 2, Name: "ihsan", DisplayName: "Ihsan", SortOrder: 1, IsActive: true},
			{ID: 3, Name: "iman", DisplayName: "Iman", SortOrder: 2, IsActive: true},
		},
		features: []subscription.FeatureDefinition{
			{FeatureKey: "prayer_times", IsPremium: false, RequiredTier: subscription.TierFree},
			{FeatureKey: "qibla_ar", IsPremium: true, RequiredTier: subscription.TierIhsan},
			{FeatureKey: "scholar_chat", IsPremium: true, RequiredTier: subscription.TierIman},
		},
	}
}

func newTestStore(provider *fakeProvider, catalog *fakeCatalog, tierCache *fakeTierCache) *Store {
	return NewStore(StoreConfig{
		UserID:     "u1",
		Provider:   provider,
		Catalog:    catalog,
		TierCache:  tierCache,
		Logger:     logger.NewLogger(),
		RetryDelay: 5 * time.Millisecond,
	})
}

// --- tests ---

func TestStore_StartResolvesSnapshot(t *testing.T) {
	provider := &fakeProvider{defaultInfo: infoWith("ihsan")}
	tierCache := &fakeTierCache{}
	store := newTestStore(provider, storeTestCatalog(), tierCache)
	defer store.Close()

	store.Start(context.Background())

	snap := store.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, subscription.TierIhsan, snap.CurrentTier)
	require.NotNil(t, snap.Entitlements)
	assert.True(t, snap.Entitlements.HasFeature("ihsan"))
	require.NotNil(t, snap.CustomerInfo)
	assert.Len(t, snap.Tiers, 3)
	assert.Len(t, snap.Features, 3)
	assert.Equal(t, []string{"ihsan"}, tierCache.sets)
}

func TestStore_SingleFlight(t *testing.T) {
	provider := &fakeProvider{
		defaultInfo:  infoWith("iman"),
		fetchStarted: make(chan struct{}, 4),
		fetchRelease: make(chan struct{}),
	}
	store := newTestStore(provider, storeTestCatalog(), &fakeTierCache{})
	defer store.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		store.RefreshEntitlements(context.Background())
	}()

	// Wait until the first caller is inside the provider fetch, then issue
	// the second call while the flight is still open.
	<-provider.fetchStarted
	go func() {
		defer wg.Done()
		store.RefreshEntitlements(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)

	close(provider.fetchRelease)
	wg.Wait()

	assert.Equal(t, 1, provider.calls())
	assert.Equal(t, subscription.TierIman, store.CurrentTier())
}

func TestStore_RetryThenDegrade(t *testing.T) {
	bad := errors.New("provider unreachable")
	provider := &fakeProvider{
		fetchResults: []fetchResult{{err: bad}, {err: bad}},
	}
	tierCache := &fakeTierCache{}
	store := newTestStore(provider, storeTestCatalog(), tierCache)
	defer store.Close()
	store.setInitialized()

	store.RefreshEntitlements(context.Background())

	snap := store.Snapshot()
	assert.Equal(t, subscription.TierFree, snap.CurrentTier)
	assert.Nil(t, snap.Entitlements)
	assert.Equal(t, 2, provider.calls())
	// A degrade commit is not a resolution; the cached hint survives outages.
	assert.Equal(t, 0, tierCache.setCount())
}

func TestStore_RetrySucceedsOnSecondAttempt(t *testing.T) {
	provider := &fakeProvider{
		fetchResults: []fetchResult{
			{err: errors.New("transient")},
			{info: infoWith("iman")},
		},
	}
	store := newTestStore(provider, storeTestCatalog(), &fakeTierCache{})
	defer store.Close()
	store.setInitialized()

	store.RefreshEntitlements(context.Background())

	assert.Equal(t, subscription.TierIman, store.CurrentTier())
	assert.Equal(t, 2, provider.calls())
}

func TestStore_CloseDiscardsInFlightRefresh(t *testing.T) {
	provider := &fakeProvider{
		defaultInfo:  infoWith("iman"),
		fetchStarted: make(chan struct{}, 1),
		fetchRelease: make(chan struct{}),
	}
	tierCache := &fakeTierCache{}
	store := newTestStore(provider, storeTestCatalog(), tierCache)
	store.setInitialized()

	before := store.Snapshot()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.RefreshEntitlements(context.Background())
	}()

	<-provider.fetchStarted
	store.Close()
	close(provider.fetchRelease)
	wg.Wait()

	after := store.Snapshot()
	assert.Equal(t, before.CurrentTier, after.CurrentTier)
	assert.Nil(t, after.Entitlements)
	assert.Equal(t, 0, tierCache.setCount())
}

func TestStore_PushUpdateUpgradesTierAndPersists(t *testing.T) {
	provider := &fakeProvider{defaultInfo: infoWith()}
	tierCache := &fakeTierCache{}
	store := newTestStore(provider, storeTestCatalog(), tierCache)
	defer store.Close()

	store.Start(context.Background())
	assert.Equal(t, subscription.TierFree, store.CurrentTier())
	assert.False(t, store.HasFeature("qibla_ar"))

	provider.push(infoWith("ihsan"))

	assert.Equal(t, subscription.TierIhsan, store.CurrentTier())
	assert.True(t, store.HasFeature("qibla_ar"))
	assert.False(t, store.HasFeature("scholar_chat"))
	tierCache.mu.Lock()
	lastPersisted := tierCache.values["u1"]
	tierCache.mu.Unlock()
	assert.Equal(t, "ihsan", lastPersisted)
}

func TestStore_PushAfterCloseIsDiscarded(t *testing.T) {
	provider := &fakeProvider{defaultInfo: infoWith()}
	tierCache := &fakeTierCache{}
	store := newTestStore(provider, storeTestCatalog(), tierCache)

	store.Start(context.Background())
	cb := provider.callback
	store.Close()
	require.NotNil(t, cb)

	writes := tierCache.setCount()
	cb(infoWith("iman"))

	assert.Equal(t, subscription.TierFree, store.CurrentTier())
	assert.Equal(t, writes, tierCache.setCount())
}

func TestStore_PushSupersedesSlowerFetch(t *testing.T) {
	provider := &fakeProvider{
		defaultInfo:  infoWith("iman"),
		fetchStarted: make(chan struct{}, 1),
		fetchRelease: make(chan struct{}),
	}
	store := newTestStore(provider, storeTestCatalog(), &fakeTierCache{})
	defer store.Close()
	store.setInitialized()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.RefreshEntitlements(context.Background())
	}()

	<-provider.fetchStarted
	// The push dispatches after the fetch, so its result must win even
	// though the fetch settles last.
	store.handlePushUpdate(infoWith("ihsan"))
	close(provider.fetchRelease)
	wg.Wait()

	assert.Equal(t, subscription.TierIhsan, store.CurrentTier())
}

func TestStore_CatalogOutageStillBecomesReady(t *testing.T) {
	provider := &fakeProvider{defaultInfo: infoWith()}
	catalog := &fakeCatalog{err: errors.New("catalog unreachable")}
	store := newTestStore(provider, catalog, &fakeTierCache{})
	defer store.Close()

	store.Start(context.Background())

	snap := store.Snapshot()
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Tiers)
	assert.Empty(t, snap.Features)
	// With no catalog rows every key takes the fail-open path.
	assert.True(t, store.HasFeature("qibla_ar"))
	assert.True(t, store.HasFeature("anything_at_all"))
}

func TestStore_ProviderInitFailureDegradesToFree(t *testing.T) {
	provider := &fakeProvider{initErr: errors.New("sdk unavailable")}
	store := newTestStore(provider, storeTestCatalog(), &fakeTierCache{})
	defer store.Close()

	store.Start(context.Background())

	snap := store.Snapshot()
	assert.False(t, snap.Loading)
	assert.Equal(t, subscription.TierFree, snap.CurrentTier)
	assert.Nil(t, snap.Entitlements)
	// The catalog branch is independent of the provider session.
	assert.Len(t, snap.Tiers, 3)
	assert.Equal(t, 0, provider.calls())
	assert.True(t, store.HasFeature("prayer_times"))
}

func TestStore_SeedsCachedTierUntilLiveResolution(t *testing.T) {
	provider := &fakeProvider{
		defaultInfo:  infoWith(),
		fetchStarted: make(chan struct{}, 1),
		fetchRelease: make(chan struct{}),
	}
	tierCache := &fakeTierCache{values: map[string]string{"u1": "iman"}}
	store := newTestStore(provider, storeTestCatalog(), tierCache)
	defer store.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.Start(context.Background())
	}()

	<-provider.fetchStarted
	// Before the provider answers, the cached guess is served.
	assert.Equal(t, subscription.TierIman, store.CurrentTier())
	assert.True(t, store.Loading())

	close(provider.fetchRelease)
	wg.Wait()

	// The live (free) resolution overrides the cached guess.
	assert.Equal(t, subscription.TierFree, store.CurrentTier())
}

func TestStore_CacheFailuresAreIgnored(t *testing.T) {
	provider := &fakeProvider{defaultInfo: infoWith("ihsan")}
	tierCache := &fakeTierCache{getErr: errors.New("cache down"), setErr: errors.New("cache down")}
	store := newTestStore(provider, storeTestCatalog(), tierCache)
	defer store.Close()

	store.Start(context.Background())

	// In-memory state stays authoritative despite the broken cache.
	assert.Equal(t, subscription.TierIhsan, store.CurrentTier())
}

func TestStore_CloseRemovesListenerAndLogsOut(t *testing.T) {
	provider := &fakeProvider{defaultInfo: infoWith()}
	store := newTestStore(provider, storeTestCatalog(), &fakeTierCache{})

	store.Start(context.Background())
	store.Close()

	provider.mu.Lock()
	defer provider.mu.Unlock()
	assert.True(t, provider.removed)
	assert.True(t, provider.loggedOut)
}

func TestStore_RefreshAfterCloseIsNoOp(t *testing.T) {
	provider := &fakeProvider{defaultInfo: infoWith("iman")}
	store := newTestStore(provider, storeTestCatalog(), &fakeTierCache{})
	store.Start(context.Background())
	store.Close()

	calls := provider.calls()
	store.Refresh(context.Background())
	store.RefreshEntitlements(context.Background())

	assert.Equal(t, calls, provider.calls())
}

func TestManager_ReturnsSameStorePerUser(t *testing.T) {
	factory := func() subscription.BillingProvider {
		return &fakeProvider{defaultInfo: infoWith()}
	}
	manager := NewManager(factory, storeTestCatalog(), &fakeTierCache{}, logger.NewLogger())
	defer manager.Close()

	a := manager.Get(context.Background(), "u1")
	b := manager.Get(context.Background(), "u1")
	other := manager.Get(context.Background(), "u2")

	require.NotNil(t, a)
	assert.Same(t, a, b)
	assert.NotSame(t, a, other)

	got, ok := manager.Lookup("u1")
	assert.True(t, ok)
	assert.Same(t, a, got)

	_, ok = manager.Lookup("nobody")
	assert.False(t, ok)
}

func TestManager_GetAfterCloseReturnsNil(t *testing.T) {
	factory := func() subscription.BillingProvider {
		return &fakeProvider{defaultInfo: infoWith()}
	}
	manager := NewManager(factory, storeTestCatalog(), &fakeTierCache{}, logger.NewLogger())
	manager.Close()

	assert.Nil(t, manager.Get(context.Background(), "u1"))
}
