package models

import (
	"time"

	"gorm.io/datatypes"
)

// SubscriptionTierModel maps the subscription_tiers catalog table.
type SubscriptionTierModel struct {
	ID            uint           `gorm:"primaryKey"`
	Name          string         `gorm:"size:50;uniqueIndex;not null"`
	DisplayName   string         `gorm:"size:100;not null"`
	Description   string         `gorm:"type:text"`
	PriceMonthly  *int64         `gorm:""`
	PriceYearly   *int64         `gorm:""`
	PriceLifetime *int64         `gorm:""`
	Features      datatypes.JSON `gorm:"type:json"`
	SortOrder     int            `gorm:"default:0;index"`
	IsActive      bool           `gorm:"default:true;index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (SubscriptionTierModel) TableName() string {
	return "subscription_tiers"
}

// SubscriptionFeatureModel maps the subscription_features catalog table.
type SubscriptionFeatureModel struct {
	ID           uint   `gorm:"primaryKey"`
	FeatureKey   string `gorm:"size:100;uniqueIndex;not null"`
	FeatureName  string `gorm:"size:100;not null"`
	Description  string `gorm:"type:text"`
	Category     string `gorm:"size:50;index"`
	IsPremium    bool   `gorm:"default:false"`
	RequiredTier string `gorm:"size:50;not null;default:'free'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (SubscriptionFeatureModel) TableName() string {
	return "subscription_features"
}

// UserSubscriptionModel maps the user_subscriptions table. Display only; the
// feature gate never reads it.
type UserSubscriptionModel struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       string `gorm:"size:64;index;not null"`
	TierID       uint   `gorm:"not null"`
	Status       string `gorm:"size:20;not null;default:'active'"`
	BillingCycle string `gorm:"size:20"`
	StartDate    time.Time
	EndDate      *time.Time
	AutoRenew    bool `gorm:"default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserSubscriptionModel) TableName() string {
	return "user_subscriptions"
}
