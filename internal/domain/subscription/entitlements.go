package subscription

import "time"

// Entitlements is the engine's derived view of a CustomerInfo snapshot: the
// resolved tier plus the set of provider-confirmed feature keys. It is
// recomputed from scratch every time a snapshot is received, never mutated.
type Entitlements struct {
	TierName Tier
	Features map[string]struct{}
}

// HasFeature reports whether the provider confirmed access to the feature key.
func (e *Entitlements) HasFeature(key string) bool {
	if e == nil {
		return false
	}
	_, ok := e.Features[key]
	return ok
}

// FeatureKeys returns the confirmed feature keys. Order is unspecified.
func (e *Entitlements) FeatureKeys() []string {
	if e == nil {
		return nil
	}
	keys := make([]string, 0, len(e.Features))
	for k := range e.Features {
		keys = append(keys, k)
	}
	return keys
}

// DeriveEntitlements computes Entitlements from a provider snapshot.
//
// Every active entitlement identifier lands in the feature set. Identifiers
// that name a known tier additionally raise the resolved tier; the highest
// recognized tier wins. Unrecognized identifiers never fail the derivation:
// they stay in the feature set and the tier degrades to free when no
// recognized tier is present.
func DeriveEntitlements(info *CustomerInfo) *Entitlements {
	if info == nil {
		return nil
	}

	now := time.Now()
	features := make(map[string]struct{}, len(info.ActiveEntitlements))
	tier := TierFree

	for i := range info.ActiveEntitlements {
		ent := &info.ActiveEntitlements[i]
		if !ent.IsActive(now) {
			continue
		}
		features[ent.Identifier] = struct{}{}
		if t, ok := ParseTier(ent.Identifier); ok && t.Rank() > tier.Rank() {
			tier = t
		}
	}

	return &Entitlements{
		TierName: tier,
		Features: features,
	}
}
