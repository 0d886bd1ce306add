package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
)

// Monthly meal generation limits for paid tiers
const (
	PremiumMealLimit = 150
	ProMealLimit     = 500
)

// SubscriptionUpdate is a tier change driven by a billing event
type SubscriptionUpdate struct {
	UID            string
	CustomerID     string
	SubscriptionID string
	Tier           models.Tier
	Status         string
}

// EntitlementsService owns the per-user tier and quota record
type EntitlementsService struct {
	db        *gorm.DB
	freeLimit int
	now       func() time.Time
	log       *logrus.Entry
}

// NewEntitlementsService creates a new EntitlementsService instance
func NewEntitlementsService(db *gorm.DB, freeLimit int) *EntitlementsService {
	return &EntitlementsService{
		db:        db,
		freeLimit: freeLimit,
		now:       time.Now,
		log:       logger.Component("entitlements"),
	}
}

// NextMonthStart returns midnight UTC on the first day of the month after t
func NextMonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// LimitFor returns the monthly generation limit of a tier
func (s *EntitlementsService) LimitFor(tier models.Tier) int {
	switch tier {
	case models.TierPremium:
		return PremiumMealLimit
	case models.TierPro:
		return ProMealLimit
	default:
		return s.freeLimit
	}
}

// loadForUpdate reads the user's record inside tx, creating a free record on
// first use and applying the monthly reset when it is due
func (s *EntitlementsService) loadForUpdate(tx *gorm.DB, uid string) (*models.UserEntitlements, error) {
	now := s.now().UTC()

	fresh := models.UserEntitlements{
		UID:                  uid,
		Tier:                 models.TierFree,
		TierStatus:           models.TierStatusNone,
		MealGenerationsLimit: s.freeLimit,
		BillingPeriodStart:   monthStart(now),
		NextResetAt:          NextMonthStart(now),
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("failed to create entitlements: %w", err)
	}

	var ent models.UserEntitlements
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ent, "uid = ?", uid).Error; err != nil {
		return nil, fmt.Errorf("failed to load entitlements: %w", err)
	}

	if !now.Before(ent.NextResetAt) {
		ent.MealGenerationsUsed = 0
		ent.BillingPeriodStart = monthStart(now)
		ent.NextResetAt = NextMonthStart(now)
		err := tx.Model(&models.UserEntitlements{}).Where("uid = ?", uid).Updates(map[string]interface{}{
			"meal_generations_used": 0,
			"billing_period_start":  ent.BillingPeriodStart,
			"next_reset_at":         ent.NextResetAt,
		}).Error
		if err != nil {
			return nil, fmt.Errorf("failed to reset usage: %w", err)
		}
		s.log.WithFields(logrus.Fields{"uid": uid, "next_reset_at": ent.NextResetAt}).Info("monthly usage reset")
	}

	return &ent, nil
}

// Get returns the user's entitlements with any due reset applied
func (s *EntitlementsService) Get(ctx context.Context, uid string) (*models.UserEntitlements, error) {
	var ent *models.UserEntitlements
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ent, err = s.loadForUpdate(tx, uid)
		return err
	})
	return ent, err
}

// CheckQuota returns the entitlements if another generation is allowed,
// or a *LimitReachedError wrapping ErrLimitReached
func (s *EntitlementsService) CheckQuota(ctx context.Context, uid string) (*models.UserEntitlements, error) {
	ent, err := s.Get(ctx, uid)
	if err != nil {
		return nil, err
	}
	if ent.MealGenerationsUsed >= ent.MealGenerationsLimit {
		return ent, &LimitReachedError{
			Tier:        string(ent.Tier),
			Used:        ent.MealGenerationsUsed,
			Limit:       ent.MealGenerationsLimit,
			NextResetAt: ent.NextResetAt.Format(time.RFC3339),
		}
	}
	return ent, nil
}

// RecordMealGeneration increments the usage counter by exactly one
func (s *EntitlementsService) RecordMealGeneration(ctx context.Context, uid string) error {
	res := s.db.WithContext(ctx).Model(&models.UserEntitlements{}).
		Where("uid = ?", uid).
		Update("meal_generations_used", gorm.Expr("meal_generations_used + 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to record meal generation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("entitlements for %s: %w", uid, ErrNotFound)
	}
	return nil
}

// SetStripeCustomer links a Stripe customer to the user
func (s *EntitlementsService) SetStripeCustomer(ctx context.Context, uid, customerID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadForUpdate(tx, uid); err != nil {
			return err
		}
		return tx.Model(&models.UserEntitlements{}).Where("uid = ?", uid).
			Update("stripe_customer_id", customerID).Error
	})
}

// FindByCustomer returns the uid linked to a Stripe customer
func (s *EntitlementsService) FindByCustomer(ctx context.Context, customerID string) (string, error) {
	var ent models.UserEntitlements
	err := s.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).First(&ent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("customer %s: %w", customerID, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return ent.UID, nil
}

// ApplySubscription moves the user to the tier and status a billing event reports.
// Canceled subscriptions fall back to the free tier; usage is kept.
func (s *EntitlementsService) ApplySubscription(ctx context.Context, update SubscriptionUpdate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.loadForUpdate(tx, update.UID); err != nil {
			return err
		}

		tier := update.Tier
		if update.Status == models.TierStatusCanceled || !tier.Valid() {
			tier = models.TierFree
		}
		changes := map[string]interface{}{
			"tier":                   tier,
			"tier_status":            update.Status,
			"meal_generations_limit": s.LimitFor(tier),
		}
		if update.CustomerID != "" {
			changes["stripe_customer_id"] = update.CustomerID
		}
		if update.SubscriptionID != "" {
			changes["stripe_subscription_id"] = update.SubscriptionID
		}
		if update.Status == models.TierStatusCanceled {
			changes["stripe_subscription_id"] = ""
		}

		if err := tx.Model(&models.UserEntitlements{}).Where("uid = ?", update.UID).Updates(changes).Error; err != nil {
			return fmt.Errorf("failed to apply subscription: %w", err)
		}

		s.log.WithFields(logrus.Fields{
			"uid":    update.UID,
			"tier":   tier,
			"status": update.Status,
		}).Info("subscription applied")
		return nil
	})
}

// SetTier changes a user's tier directly, for admin tooling
func (s *EntitlementsService) SetTier(ctx context.Context, uid string, tier models.Tier) (*models.UserEntitlements, error) {
	if !tier.Valid() {
		return nil, validationError("unknown tier %q", tier)
	}
	status := models.TierStatusActive
	if tier == models.TierFree {
		status = models.TierStatusNone
	}

	var ent *models.UserEntitlements
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if ent, err = s.loadForUpdate(tx, uid); err != nil {
			return err
		}
		ent.Tier = tier
		ent.TierStatus = status
		ent.MealGenerationsLimit = s.LimitFor(tier)
		return tx.Model(&models.UserEntitlements{}).Where("uid = ?", uid).Updates(map[string]interface{}{
			"tier":                   tier,
			"tier_status":            status,
			"meal_generations_limit": ent.MealGenerationsLimit,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return ent, nil
}
