package subscription

// Tier represents a subscription tier. Tiers form a fixed total order and the
// order is the basis of every access decision: a higher-ranked tier includes
// everything a lower-ranked tier includes.
type Tier string

const (
	TierFree  Tier = "free"
	TierIhsan Tier = "ihsan"
	TierIman  Tier = "iman"
)

// tierRanks fixes the total order over tiers. No two tiers share a rank.
var tierRanks = map[Tier]int{
	TierFree:  0,
	TierIhsan: 1,
	TierIman:  2,
}

// ParseTier maps a raw tier name to a known tier. Unrecognized names resolve
// to TierFree with ok=false: the engine degrades instead of failing when the
// provider or catalog reports a tier it does not know.
func ParseTier(s string) (Tier, bool) {
	t := Tier(s)
	if _, known := tierRanks[t]; known {
		return t, true
	}
	return TierFree, false
}

// Rank returns the tier's position in the total order. Unknown tiers rank as
// TierFree.
func (t Tier) Rank() int {
	if rank, ok := tierRanks[t]; ok {
		return rank
	}
	return tierRanks[TierFree]
}

// AtLeast reports whether t ranks at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank()
}

// IsValid reports whether the tier is a member of the known tier set.
func (t Tier) IsValid() bool {
	_, ok := tierRanks[t]
	return ok
}

func (t Tier) String() string {
	return string(t)
}

// HighestTier returns the highest-ranked tier among the given tiers, or
// TierFree when the slice is empty.
func HighestTier(tiers []Tier) Tier {
	highest := TierFree
	for _, t := range tiers {
		if t.Rank() > highest.Rank() {
			highest = t
		}
	}
	return highest
}
