package handlers

import (
	"time"

	"mizan/internal/application/entitlement"
	"mizan/internal/domain/subscription"
)

type tierResponse struct {
	ID            uint     `json:"id"`
	Name          string   `json:"name"`
	DisplayName   string   `json:"display_name"`
	Description   string   `json:"description,omitempty"`
	PriceMonthly  *int64   `json:"price_monthly,omitempty"`
	PriceYearly   *int64   `json:"price_yearly,omitempty"`
	PriceLifetime *int64   `json:"price_lifetime,omitempty"`
	Features      []string `json:"features,omitempty"`
	SortOrder     int      `json:"sort_order"`
}

type featureResponse struct {
	FeatureKey   string `json:"feature_key"`
	FeatureName  string `json:"feature_name"`
	Description  string `json:"description,omitempty"`
	Category     string `json:"category,omitempty"`
	IsPremium    bool   `json:"is_premium"`
	RequiredTier string `json:"required_tier"`
}

type subscriptionResponse struct {
	ID           uint       `json:"id"`
	TierID       uint       `json:"tier_id"`
	Status       string     `json:"status"`
	BillingCycle string     `json:"billing_cycle"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	AutoRenew    bool       `json:"auto_renew"`
}

type snapshotResponse struct {
	CurrentTier  string                `json:"current_tier"`
	Loading      bool                  `json:"loading"`
	Entitlements []string              `json:"entitlements"`
	Tiers        []tierResponse        `json:"tiers"`
	Features     []featureResponse     `json:"features"`
	Subscription *subscriptionResponse `json:"subscription,omitempty"`
}

type decisionResponse struct {
	FeatureKey  string           `json:"feature_key"`
	Allowed     bool             `json:"allowed"`
	Reason      string           `json:"reason"`
	CurrentTier string           `json:"current_tier"`
	Feature     *featureResponse `json:"feature,omitempty"`
}

func toSnapshotResponse(snap entitlement.Snapshot) snapshotResponse {
	resp := snapshotResponse{
		CurrentTier:  snap.CurrentTier.String(),
		Loading:      snap.Loading,
		Entitlements: snap.Entitlements.FeatureKeys(),
		Tiers:        make([]tierResponse, 0, len(snap.Tiers)),
		Features:     make([]featureResponse, 0, len(snap.Features)),
	}
	if resp.Entitlements == nil {
		resp.Entitlements = []string{}
	}

	for _, tier := range snap.Tiers {
		resp.Tiers = append(resp.Tiers, tierResponse{
			ID:            tier.ID,
			Name:          tier.Name,
			DisplayName:   tier.DisplayName,
			Description:   tier.Description,
			PriceMonthly:  tier.PriceMonthly,
			PriceYearly:   tier.PriceYearly,
			PriceLifetime: tier.PriceLifetime,
			Features:      tier.Features,
			SortOrder:     tier.SortOrder,
		})
	}
	for _, feature := range snap.Features {
		resp.Features = append(resp.Features, toFeatureResponse(feature))
	}
	if snap.Subscription != nil {
		resp.Subscription = &subscriptionResponse{
			ID:           snap.Subscription.ID,
			TierID:       snap.Subscription.TierID,
			Status:       string(snap.Subscription.Status),
			BillingCycle: snap.Subscription.BillingCycle,
			StartDate:    snap.Subscription.StartDate,
			EndDate:      snap.Subscription.EndDate,
			AutoRenew:    snap.Subscription.AutoRenew,
		}
	}
	return resp
}

func toDecisionResponse(decision entitlement.Decision) decisionResponse {
	resp := decisionResponse{
		FeatureKey:  decision.FeatureKey,
		Allowed:     decision.Allowed,
		Reason:      string(decision.Reason),
		CurrentTier: decision.CurrentTier.String(),
	}
	if decision.Feature != nil {
		feature := toFeatureResponse(*decision.Feature)
		resp.Feature = &feature
	}
	return resp
}

func toFeatureResponse(feature subscription.FeatureDefinition) featureResponse {
	return featureResponse{
		FeatureKey:   feature.FeatureKey,
		FeatureName:  feature.FeatureName,
		Description:  feature.Description,
		Category:     feature.Category,
		IsPremium:    feature.IsPremium,
		RequiredTier: feature.RequiredTier.String(),
	}
}
