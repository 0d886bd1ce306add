package models

import "time"

// Tier is a subscription level controlling quota and feature visibility
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierPro     Tier = "pro"
)

// Valid reports whether t is a known tier
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierPremium, TierPro:
		return true
	}
	return false
}

// Paid reports whether t is sold through Stripe
func (t Tier) Paid() bool {
	return t == TierPremium || t == TierPro
}

// Subscription statuses mirrored from Stripe, plus "none" for users who never paid
const (
	TierStatusNone     = "none"
	TierStatusActive   = "active"
	TierStatusTrialing = "trialing"
	TierStatusPastDue  = "past_due"
	TierStatusCanceled = "canceled"
)

// UserEntitlements is the per-user record of tier, quota usage and billing linkage.
// Only the server writes it.
type UserEntitlements struct {
	UID                  string    `gorm:"primaryKey;size:128" json:"uid"`
	Tier                 Tier      `gorm:"size:16;not null" json:"tier"`
	TierStatus           string    `gorm:"size:32;not null" json:"tierStatus"`
	MealGenerationsUsed  int       `gorm:"not null" json:"mealGenerationsUsed"`
	MealGenerationsLimit int       `gorm:"not null" json:"mealGenerationsLimit"`
	BillingPeriodStart   time.Time `json:"billingPeriodStart"`
	NextResetAt          time.Time `gorm:"not null" json:"nextResetAt"`
	StripeCustomerID     string    `gorm:"size:64;index" json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string    `gorm:"size:64" json:"stripeSubscriptionId,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// TableName overrides the pluralized default
func (UserEntitlements) TableName() string {
	return "user_entitlements"
}

// Remaining returns how many generations are left in the current period
func (e *UserEntitlements) Remaining() int {
	if left := e.MealGenerationsLimit - e.MealGenerationsUsed; left > 0 {
		return left
	}
	return 0
}
