package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mizan/internal/domain/subscription"
)

func gateTestFeatures() []subscription.FeatureDefinition {
	return []subscription.FeatureDefinition{
		{FeatureKey: "prayer_times", FeatureName: "Prayer Times", Category: "worship", IsPremium: false, RequiredTier: subscription.TierFree},
		{FeatureKey: "qibla_ar", FeatureName: "AR Qibla", Category: "worship", IsPremium: true, RequiredTier: subscription.TierIhsan},
		{FeatureKey: "scholar_chat", FeatureName: "Scholar Chat", Category: "learning", IsPremium: true, RequiredTier: subscription.TierIman},
	}
}

func TestEvaluateFeature_ProviderEntitlementWins(t *testing.T) {
	ents := &subscription.Entitlements{
		TierName: subscription.TierFree,
		Features: map[string]struct{}{"scholar_chat": {}},
	}

	// Provider-confirmed access is authoritative even when the tier rank
	// alone would deny it.
	decision := EvaluateFeature(subscription.TierFree, ents, gateTestFeatures(), "scholar_chat")
	assert.True(t, decision.Allowed)
	assert.Equal(t, ReasonProviderEntitlement, decision.Reason)
	assert.Nil(t, decision.Feature)
}

func TestEvaluateFeature_UnknownKeyFailsOpen(t *testing.T) {
	decision := EvaluateFeature(subscription.TierFree, nil, gateTestFeatures(), "not_in_catalog")
	assert.True(t, decision.Allowed)
	assert.Equal(t, ReasonUnknownFeature, decision.Reason)
	assert.Nil(t, decision.Feature)
}

func TestEvaluateFeature_EmptyCatalogFailsOpenForEveryKey(t *testing.T) {
	for _, key := range []string{"prayer_times", "qibla_ar", "scholar_chat"} {
		decision := EvaluateFeature(subscription.TierFree, nil, nil, key)
		assert.True(t, decision.Allowed, "key=%s", key)
		assert.Equal(t, ReasonUnknownFeature, decision.Reason)
	}
}

func TestEvaluateFeature_FreeFeatureAllowedAtAnyTier(t *testing.T) {
	for _, tier := range []subscription.Tier{subscription.TierFree, subscription.TierIhsan, subscription.TierIman} {
		decision := EvaluateFeature(tier, nil, gateTestFeatures(), "prayer_times")
		assert.True(t, decision.Allowed, "tier=%s", tier)
		assert.Equal(t, ReasonFreeFeature, decision.Reason)
	}
}

func TestEvaluateFeature_MonotonicInTierRank(t *testing.T) {
	tests := []struct {
		tier    subscription.Tier
		key     string
		allowed bool
	}{
		{subscription.TierFree, "qibla_ar", false},
		{subscription.TierIhsan, "qibla_ar", true},
		{subscription.TierIman, "qibla_ar", true},
		{subscription.TierFree, "scholar_chat", false},
		{subscription.TierIhsan, "scholar_chat", false},
		{subscription.TierIman, "scholar_chat", true},
	}

	for _, tc := range tests {
		t.Run(string(tc.tier)+"/"+tc.key, func(t *testing.T) {
			decision := EvaluateFeature(tc.tier, nil, gateTestFeatures(), tc.key)
			assert.Equal(t, tc.allowed, decision.Allowed)
			if tc.allowed {
				assert.Equal(t, ReasonTierSufficient, decision.Reason)
			} else {
				assert.Equal(t, ReasonTierInsufficient, decision.Reason)
			}
		})
	}
}

func TestEvaluateFeature_DecisionCarriesBackingData(t *testing.T) {
	decision := EvaluateFeature(subscription.TierIhsan, nil, gateTestFeatures(), "qibla_ar")

	assert.True(t, decision.Allowed)
	assert.Equal(t, "qibla_ar", decision.FeatureKey)
	assert.Equal(t, subscription.TierIhsan, decision.CurrentTier)
	if assert.NotNil(t, decision.Feature) {
		assert.Equal(t, subscription.TierIhsan, decision.Feature.RequiredTier)
		assert.True(t, decision.Feature.IsPremium)
	}
}
