package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTier_KnownNames(t *testing.T) {
	tests := []struct {
		name string
		want Tier
	}{
		{"free", TierFree},
		{"ihsan", TierIhsan},
		{"iman", TierIman},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tier, ok := ParseTier(tc.name)
			assert.True(t, ok)
			assert.Equal(t, tc.want, tier)
		})
	}
}

func TestParseTier_UnknownDegradesToFree(t *testing.T) {
	for _, raw := range []string{"", "platinum", "IHSAN", "free "} {
		tier, ok := ParseTier(raw)
		assert.False(t, ok, "raw=%q", raw)
		assert.Equal(t, TierFree, tier, "raw=%q", raw)
	}
}

func TestTier_OrderIsTotal(t *testing.T) {
	ordered := []Tier{TierFree, TierIhsan, TierIman}

	seen := map[int]Tier{}
	for _, tier := range ordered {
		prev, dup := seen[tier.Rank()]
		assert.False(t, dup, "tiers %s and %s share rank %d", prev, tier, tier.Rank())
		seen[tier.Rank()] = tier
	}

	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Rank(), ordered[i-1].Rank())
	}
}

func TestTier_AtLeast(t *testing.T) {
	assert.True(t, TierIman.AtLeast(TierIhsan))
	assert.True(t, TierIman.AtLeast(TierIman))
	assert.True(t, TierIhsan.AtLeast(TierFree))
	assert.False(t, TierFree.AtLeast(TierIhsan))
	assert.False(t, TierIhsan.AtLeast(TierIman))
}

func TestTier_UnknownRanksAsFree(t *testing.T) {
	unknown := Tier("platinum")
	assert.Equal(t, TierFree.Rank(), unknown.Rank())
	assert.False(t, unknown.IsValid())
}

func TestHighestTier(t *testing.T) {
	assert.Equal(t, TierFree, HighestTier(nil))
	assert.Equal(t, TierIhsan, HighestTier([]Tier{TierFree, TierIhsan}))
	assert.Equal(t, TierIman, HighestTier([]Tier{TierIhsan, TierIman, TierFree}))
}
