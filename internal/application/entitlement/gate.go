package entitlement

import "mizan/internal/domain/subscription"

// DecisionReason names which rule produced a feature gate decision.
type DecisionReason string

const (
	// ReasonProviderEntitlement: the provider snapshot confirms the feature.
	ReasonProviderEntitlement DecisionReason = "provider_entitlement"
	// ReasonUnknownFeature: the key has no catalog row; access is fail-open.
	// Deliberate, for features not yet migrated into the catalog.
	ReasonUnknownFeature DecisionReason = "unknown_feature"
	// ReasonFreeFeature: the catalog marks the feature as non-premium.
	ReasonFreeFeature DecisionReason = "free_feature"
	// ReasonTierSufficient: the current tier ranks at or above the required tier.
	ReasonTierSufficient DecisionReason = "tier_sufficient"
	// ReasonTierInsufficient: the current tier ranks below the required tier.
	ReasonTierInsufficient DecisionReason = "tier_insufficient"
)

// Decision is the outcome of one feature gate evaluation together with the
// tier and catalog data that backs it.
type Decision struct {
	FeatureKey  string
	Allowed     bool
	Reason      DecisionReason
	CurrentTier subscription.Tier
	// Feature is the catalog row backing the decision, nil for unknown keys.
	Feature *subscription.FeatureDefinition
}

// EvaluateFeature decides whether a user at the given tier may use the
// feature. Pure function, no side effects. Rules apply in order:
//
//  1. A feature confirmed by the live provider entitlements is allowed;
//     provider-confirmed access is authoritative.
//  2. A key with no catalog definition is allowed, fail-open.
//  3. A non-premium feature is allowed at any tier.
//  4. Otherwise access requires rank(tier) >= rank(required tier).
func EvaluateFeature(tier subscription.Tier, ents *subscription.Entitlements, features []subscription.FeatureDefinition, key string) Decision {
	decision := Decision{
		FeatureKey:  key,
		CurrentTier: tier,
	}

	if ents.HasFeature(key) {
		decision.Allowed = true
		decision.Reason = ReasonProviderEntitlement
		return decision
	}

	feature := findFeature(features, key)
	if feature == nil {
		decision.Allowed = true
		decision.Reason = ReasonUnknownFeature
		return decision
	}
	decision.Feature = feature

	if !feature.IsPremium {
		decision.Allowed = true
		decision.Reason = ReasonFreeFeature
		return decision
	}

	if tier.AtLeast(feature.RequiredTier) {
		decision.Allowed = true
		decision.Reason = ReasonTierSufficient
	} else {
		decision.Reason = ReasonTierInsufficient
	}
	return decision
}

func findFeature(features []subscription.FeatureDefinition, key string) *subscription.FeatureDefinition {
	for i := range features {
		if features[i].FeatureKey == key {
			return &features[i]
		}
	}
	return nil
}
