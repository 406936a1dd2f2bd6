package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeEnt(identifier string) ActiveEntitlement {
	return ActiveEntitlement{Identifier: identifier, WillRenew: true}
}

func TestDeriveEntitlements_NilSnapshot(t *testing.T) {
	assert.Nil(t, DeriveEntitlements(nil))
}

func TestDeriveEntitlements_EmptySnapshotIsFree(t *testing.T) {
	ents := DeriveEntitlements(&CustomerInfo{UserID: "u1"})

	require.NotNil(t, ents)
	assert.Equal(t, TierFree, ents.TierName)
	assert.Empty(t, ents.Features)
}

func TestDeriveEntitlements_HighestRecognizedTierWins(t *testing.T) {
	ents := DeriveEntitlements(&CustomerInfo{
		UserID: "u1",
		ActiveEntitlements: []ActiveEntitlement{
			activeEnt("ihsan"),
			activeEnt("iman"),
		},
	})

	require.NotNil(t, ents)
	assert.Equal(t, TierIman, ents.TierName)
	assert.True(t, ents.HasFeature("ihsan"))
	assert.True(t, ents.HasFeature("iman"))
}

func TestDeriveEntitlements_UnrecognizedIdentifierDegradesToFree(t *testing.T) {
	ents := DeriveEntitlements(&CustomerInfo{
		UserID: "u1",
		ActiveEntitlements: []ActiveEntitlement{
			activeEnt("platinum"),
			activeEnt("qibla_ar"),
		},
	})

	require.NotNil(t, ents)
	assert.Equal(t, TierFree, ents.TierName)
	// Unrecognized identifiers still count as provider-confirmed features.
	assert.True(t, ents.HasFeature("platinum"))
	assert.True(t, ents.HasFeature("qibla_ar"))
	assert.False(t, ents.HasFeature("iman"))
}

func TestDeriveEntitlements_ExpiredEntitlementIgnored(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	ents := DeriveEntitlements(&CustomerInfo{
		UserID: "u1",
		ActiveEntitlements: []ActiveEntitlement{
			{Identifier: "iman", ExpiresAt: &past},
		},
	})

	require.NotNil(t, ents)
	assert.Equal(t, TierFree, ents.TierName)
	assert.False(t, ents.HasFeature("iman"))
}

func TestDeriveEntitlements_GracePeriodKeepsEntitlement(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	ents := DeriveEntitlements(&CustomerInfo{
		UserID: "u1",
		ActiveEntitlements: []ActiveEntitlement{
			{Identifier: "ihsan", ExpiresAt: &past, InGracePeriod: true, BillingIssue: true},
		},
	})

	require.NotNil(t, ents)
	assert.Equal(t, TierIhsan, ents.TierName)
	assert.True(t, ents.HasFeature("ihsan"))
}

func TestEntitlements_NilReceiver(t *testing.T) {
	var ents *Entitlements
	assert.False(t, ents.HasFeature("anything"))
	assert.Nil(t, ents.FeatureKeys())
}
