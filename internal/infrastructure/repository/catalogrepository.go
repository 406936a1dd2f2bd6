package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"mizan/internal/domain/subscription"
	"mizan/internal/infrastructure/persistence/models"
	"mizan/internal/shared/logger"
)

type CatalogRepositoryImpl struct {
	db     *gorm.DB
	logger logger.Interface
}

func NewCatalogRepository(db *gorm.DB, logger logger.Interface) subscription.CatalogRepository {
	return &CatalogRepositoryImpl{
		db:     db,
		logger: logger,
	}
}

func (r *CatalogRepositoryImpl) ListActiveTiers(ctx context.Context) ([]subscription.TierDefinition, error) {
	var tierModels []*models.SubscriptionTierModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order ASC").
		Find(&tierModels).Error; err != nil {
		r.logger.Errorw("failed to list active subscription tiers", "error", err)
		return nil, fmt.Errorf("failed to list active subscription tiers: %w", err)
	}

	tiers := make([]subscription.TierDefinition, 0, len(tierModels))
	for _, model := range tierModels {
		tiers = append(tiers, r.toTierDefinition(model))
	}
	return tiers, nil
}

func (r *CatalogRepositoryImpl) ListFeatures(ctx context.Context) ([]subscription.FeatureDefinition, error) {
	var featureModels []*models.SubscriptionFeatureModel
	if err := r.db.WithContext(ctx).Find(&featureModels).Error; err != nil {
		r.logger.Errorw("failed to list subscription features", "error", err)
		return nil, fmt.Errorf("failed to list subscription features: %w", err)
	}

	features := make([]subscription.FeatureDefinition, 0, len(featureModels))
	for _, model := range featureModels {
		requiredTier, _ := subscription.ParseTier(model.RequiredTier)
		features = append(features, subscription.FeatureDefinition{
			FeatureKey:   model.FeatureKey,
			FeatureName:  model.FeatureName,
			Description:  model.Description,
			Category:     model.Category,
			IsPremium:    model.IsPremium,
			RequiredTier: requiredTier,
		})
	}
	return features, nil
}

func (r *CatalogRepositoryImpl) GetUserSubscription(ctx context.Context, userID string) (*subscription.UserSubscriptionRecord, error) {
	var model models.UserSubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, string(subscription.SubscriptionStatusActive)).
		Order("start_date DESC").
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		r.logger.Errorw("failed to get user subscription", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to get user subscription: %w", err)
	}

	return &subscription.UserSubscriptionRecord{
		ID:           model.ID,
		UserID:       model.UserID,
		TierID:       model.TierID,
		Status:       subscription.SubscriptionStatus(model.Status),
		BillingCycle: model.BillingCycle,
		StartDate:    model.StartDate,
		EndDate:      model.EndDate,
		AutoRenew:    model.AutoRenew,
	}, nil
}

func (r *CatalogRepositoryImpl) toTierDefinition(model *models.SubscriptionTierModel) subscription.TierDefinition {
	def := subscription.TierDefinition{
		ID:            model.ID,
		Name:          model.Name,
		DisplayName:   model.DisplayName,
		Description:   model.Description,
		PriceMonthly:  model.PriceMonthly,
		PriceYearly:   model.PriceYearly,
		PriceLifetime: model.PriceLifetime,
		SortOrder:     model.SortOrder,
		IsActive:      model.IsActive,
	}

	if len(model.Features) > 0 {
		var features []string
		if err := json.Unmarshal(model.Features, &features); err != nil {
			// A malformed features column should not take the tier down with it.
			r.logger.Warnw("failed to unmarshal tier features", "tier", model.Name, "error", err)
		} else {
			def.Features = features
		}
	}

	return def
}
