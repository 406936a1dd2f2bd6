// Package entitlement resolves which premium capabilities a user may
// exercise by reconciling the billing provider, the tier/feature catalog and
// the durable last-tier cache into one observable snapshot.
package entitlement

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mizan/internal/domain/subscription"
	apperrors "mizan/internal/shared/errors"
	"mizan/internal/shared/goroutine"
	"mizan/internal/shared/logger"
)

const (
	// defaultRetryDelay is the fixed wait before the single fetch retry.
	defaultRetryDelay = 2 * time.Second

	// cacheOpTimeout bounds durable cache reads/writes so a slow cache can
	// never stall a commit.
	cacheOpTimeout = 3 * time.Second

	entitlementFlightKey = "entitlements"
)

// Snapshot is the read-only entitlement state exposed to consumers. Slices
// and pointers reference immutable data; consumers must not mutate them.
type Snapshot struct {
	CurrentTier  subscription.Tier
	Subscription *subscription.UserSubscriptionRecord
	Tiers        []subscription.TierDefinition
	Features     []subscription.FeatureDefinition
	Loading      bool
	Entitlements *subscription.Entitlements
	CustomerInfo *subscription.CustomerInfo
}

// StoreConfig carries the collaborators a Store needs.
type StoreConfig struct {
	UserID    string
	Provider  subscription.BillingProvider
	Catalog   subscription.CatalogRepository
	TierCache subscription.TierCache
	Logger    logger.Interface
	// RetryDelay overrides the fixed wait before the single fetch retry.
	// Zero means the default.
	RetryDelay time.Duration
}

// Store owns the entitlement snapshot for one user and mediates every
// transition into it. All failures are contained: no public operation
// returns or panics with an error, they resolve to documented fallbacks.
type Store struct {
	userID     string
	provider   subscription.BillingProvider
	catalog    subscription.CatalogRepository
	tierCache  subscription.TierCache
	logger     logger.Interface
	retryDelay time.Duration

	// flight collapses concurrent entitlement refreshes into one fetch;
	// joiners block until the in-flight refresh commits.
	flight singleflight.Group

	mu          sync.RWMutex
	closed      bool
	initialized bool
	resolved    bool
	// generation orders entitlement commits. Every dispatch takes a fresh
	// generation; a commit whose generation is no longer current is stale
	// and discarded. Close bumps it so all in-flight work becomes stale.
	generation uint64
	pending    int

	currentTier  subscription.Tier
	subscription *subscription.UserSubscriptionRecord
	tiers        []subscription.TierDefinition
	features     []subscription.FeatureDefinition
	loading      bool
	entitlements *subscription.Entitlements
	customerInfo *subscription.CustomerInfo

	updates subscription.UpdateHandle
}

// NewStore creates a store. The snapshot starts at the free tier with an
// empty catalog and loading=true; call Start to resolve.
func NewStore(cfg StoreConfig) *Store {
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewLogger()
	}

	return &Store{
		userID:      cfg.UserID,
		provider:    cfg.Provider,
		catalog:     cfg.Catalog,
		tierCache:   cfg.TierCache,
		logger:      log.With("component", "entitlement.store", "user_id", cfg.UserID),
		retryDelay:  retryDelay,
		currentTier: subscription.TierFree,
		tiers:       []subscription.TierDefinition{},
		features:    []subscription.FeatureDefinition{},
		loading:     true,
	}
}

// Start binds the provider session, seeds the cached tier guess, registers
// the push-update listener and runs the initial refresh. It blocks until the
// store is ready; readiness does not require either branch to have succeeded.
func (s *Store) Start(ctx context.Context) {
	s.seedCachedTier(ctx)

	if err := s.provider.InitializeForUser(ctx, s.userID); err != nil {
		s.logger.Errorw("billing provider initialization failed, degrading to free tier",
			"error", apperrors.NewProviderInitError(err))
		if gen, ok := s.takeGeneration(); ok {
			s.commitEntitlements(gen, nil, nil)
		}
	} else {
		s.setInitialized()
		handle, err := s.provider.SubscribeToUpdates(s.handlePushUpdate)
		if err != nil {
			s.logger.Warnw("failed to subscribe to provider updates", "error", err)
		} else {
			s.keepUpdateHandle(handle)
		}
	}

	s.Refresh(ctx)
}

// Refresh re-runs the catalog and entitlement branches concurrently and
// blocks until both complete. Safe to call repeatedly; the entitlement branch
// keeps its single-flight guard.
func (s *Store) Refresh(ctx context.Context) {
	if !s.beginLoading() {
		return
	}
	defer s.endLoading()

	var wg sync.WaitGroup
	wg.Add(2)
	goroutine.SafeGo(s.logger, "catalog-refresh", func() {
		defer wg.Done()
		s.runCatalogRefresh(ctx)
	})
	goroutine.SafeGo(s.logger, "entitlement-refresh", func() {
		defer wg.Done()
		s.refreshEntitlementsLocked(ctx)
	})
	wg.Wait()
}

// RefreshEntitlements re-runs only the entitlement branch, e.g. after a
// purchase or restore flow completed elsewhere. Concurrent callers join the
// in-flight refresh instead of starting a second provider fetch.
func (s *Store) RefreshEntitlements(ctx context.Context) {
	if !s.beginLoading() {
		return
	}
	defer s.endLoading()

	s.refreshEntitlementsLocked(ctx)
}

func (s *Store) refreshEntitlementsLocked(ctx context.Context) {
	s.flight.Do(entitlementFlightKey, func() (any, error) {
		s.runEntitlementRefresh(ctx)
		return nil, nil
	})
}

func (s *Store) runEntitlementRefresh(ctx context.Context) {
	gen, ok := s.takeGeneration()
	if !ok {
		return
	}

	if !s.isInitialized() {
		// Unbound provider session: nothing to fetch, resolve as free.
		s.commitEntitlements(gen, nil, nil)
		return
	}

	info, err := s.provider.FetchCustomerInfo(ctx)
	if err != nil {
		s.logger.Warnw("customer info fetch failed, retrying once",
			"error", apperrors.NewProviderFetchError(err),
			"retry_delay", s.retryDelay)

		if !s.waitRetryDelay(ctx) || s.isStale(gen) {
			return
		}
		info, err = s.provider.FetchCustomerInfo(ctx)
	}

	if err != nil {
		s.logger.Errorw("customer info fetch failed after retry, degrading to free tier",
			"error", apperrors.NewProviderFetchError(err))
		s.commitEntitlements(gen, nil, nil)
		return
	}

	s.commitEntitlements(gen, info, subscription.DeriveEntitlements(info))
}

// handlePushUpdate recomputes entitlements from a pushed snapshot with no
// network round trip. It commits through the same generation discipline as
// an explicit refresh, so a slower in-flight fetch can no longer overwrite it.
func (s *Store) handlePushUpdate(info *subscription.CustomerInfo) {
	gen, ok := s.takeGeneration()
	if !ok {
		return
	}
	s.commitEntitlements(gen, info, subscription.DeriveEntitlements(info))
}

// commitEntitlements writes an entitlement resolution into the snapshot.
// A nil entitlements value is the degrade commit: free tier, no entitlements.
// The commit is discarded when the store closed or a later dispatch
// superseded this generation. Returns whether the commit landed.
func (s *Store) commitEntitlements(gen uint64, info *subscription.CustomerInfo, ents *subscription.Entitlements) bool {
	s.mu.Lock()
	if s.closed || s.generation != gen {
		s.mu.Unlock()
		return false
	}

	s.resolved = true
	s.customerInfo = info
	s.entitlements = ents
	if ents != nil {
		s.currentTier = ents.TierName
	} else {
		s.currentTier = subscription.TierFree
	}
	tier := s.currentTier
	s.mu.Unlock()

	if ents != nil {
		s.persistTier(tier)
	}
	return true
}

func (s *Store) runCatalogRefresh(ctx context.Context) {
	tiers, tiersErr := s.catalog.ListActiveTiers(ctx)
	if tiersErr != nil {
		s.logger.Warnw("tier catalog load failed, keeping previous catalog",
			"error", apperrors.NewCatalogLoadError(tiersErr))
	}

	features, featuresErr := s.catalog.ListFeatures(ctx)
	if featuresErr != nil {
		s.logger.Warnw("feature catalog load failed, keeping previous catalog",
			"error", apperrors.NewCatalogLoadError(featuresErr))
	}

	record, recordErr := s.catalog.GetUserSubscription(ctx, s.userID)
	if recordErr != nil {
		s.logger.Warnw("user subscription load failed",
			"error", apperrors.NewCatalogLoadError(recordErr))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if tiersErr == nil {
		s.tiers = tiers
	}
	if featuresErr == nil {
		s.features = features
	}
	if recordErr == nil {
		s.subscription = record
	}
}

// seedCachedTier serves the last persisted tier as a best guess until the
// first live resolution lands. The cached value never overrides a live
// result.
func (s *Store) seedCachedTier(ctx context.Context) {
	if s.tierCache == nil {
		return
	}

	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()

	name, err := s.tierCache.GetLastTier(cacheCtx, s.userID)
	if err != nil {
		s.logger.Warnw("failed to read cached tier",
			"error", apperrors.NewPersistenceError(err))
		return
	}
	tier, ok := subscription.ParseTier(name)
	if name == "" || !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.resolved {
		return
	}
	s.currentTier = tier
}

func (s *Store) persistTier(tier subscription.Tier) {
	if s.tierCache == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()

	if err := s.tierCache.SetLastTier(ctx, s.userID, tier.String()); err != nil {
		s.logger.Warnw("failed to persist resolved tier",
			"error", apperrors.NewPersistenceError(err),
			"tier", tier)
	}
}

// waitRetryDelay waits the fixed retry delay. Returns false when the context
// ended first.
func (s *Store) waitRetryDelay(ctx context.Context) bool {
	timer := time.NewTimer(s.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// takeGeneration issues a fresh commit generation, superseding every earlier
// in-flight dispatch. Fails once the store is closed.
func (s *Store) takeGeneration() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, false
	}
	s.generation++
	return s.generation, true
}

func (s *Store) isStale(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed || s.generation != gen
}

func (s *Store) beginLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.pending++
	s.loading = true
	return true
}

func (s *Store) endLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending--
	if s.pending <= 0 {
		s.pending = 0
		s.loading = false
	}
}

func (s *Store) setInitialized() {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
}

func (s *Store) isInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *Store) keepUpdateHandle(handle subscription.UpdateHandle) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		handle.Remove()
		return
	}
	s.updates = handle
	s.mu.Unlock()
}

// Snapshot returns the current entitlement state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		CurrentTier:  s.currentTier,
		Subscription: s.subscription,
		Tiers:        s.tiers,
		Features:     s.features,
		Loading:      s.loading,
		Entitlements: s.entitlements,
		CustomerInfo: s.customerInfo,
	}
}

// CurrentTier returns the resolved tier.
func (s *Store) CurrentTier() subscription.Tier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTier
}

// Loading reports whether a refresh is still in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// HasFeature reports whether the user may use the feature. Pure and cheap;
// safe to call on every request.
func (s *Store) HasFeature(key string) bool {
	return s.ExplainFeature(key).Allowed
}

// ExplainFeature evaluates the feature gate and reports the data backing the
// decision.
func (s *Store) ExplainFeature(key string) Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return EvaluateFeature(s.currentTier, s.entitlements, s.features, key)
}

// Close disposes the store. All in-flight work becomes stale: no snapshot
// field changes and no cache write happens after Close returns.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	handle := s.updates
	s.updates = nil
	s.mu.Unlock()

	if handle != nil {
		handle.Remove()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := s.provider.Logout(ctx); err != nil {
		s.logger.Warnw("provider logout failed", "error", err)
	}
}
