package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
)

func newTestEntitlements(t *testing.T, now time.Time) *EntitlementsService {
	t.Helper()
	svc := NewEntitlementsService(newTestDB(t), 30)
	svc.now = func() time.Time { return now }
	return svc
}

func TestNextMonthStart(t *testing.T) {
	cases := map[string]struct {
		in   time.Time
		want time.Time
	}{
		"mid month": {time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		"december":  {time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		"first day": {time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		"offset tz": {time.Date(2024, 5, 31, 22, 0, 0, 0, time.FixedZone("X", -5*3600)), time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(NextMonthStart(tc.in)), "got %s", NextMonthStart(tc.in))
		})
	}
}

func TestCheckQuotaCreatesFreeRecord(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestEntitlements(t, now)

	ent, err := svc.CheckQuota(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, ent.Tier)
	assert.Equal(t, 30, ent.MealGenerationsLimit)
	assert.Equal(t, 0, ent.MealGenerationsUsed)
	assert.True(t, ent.NextResetAt.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCheckQuotaRejectsAtLimitForEveryTier(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	for _, tier := range []models.Tier{models.TierFree, models.TierPremium, models.TierPro} {
		t.Run(string(tier), func(t *testing.T) {
			svc := newTestEntitlements(t, now)
			ctx := context.Background()

			ent, err := svc.SetTier(ctx, "user-1", tier)
			require.NoError(t, err)
			require.NoError(t, svc.db.Model(&models.UserEntitlements{}).
				Where("uid = ?", "user-1").
				Update("meal_generations_used", ent.MealGenerationsLimit).Error)

			_, err = svc.CheckQuota(ctx, "user-1")
			assert.ErrorIs(t, err, ErrLimitReached)

			var limitErr *LimitReachedError
			require.True(t, errors.As(err, &limitErr))
			assert.Equal(t, string(tier), limitErr.Tier)
			assert.Equal(t, svc.LimitFor(tier), limitErr.Limit)
		})
	}
}

func TestCheckQuotaResetsAfterNextResetAt(t *testing.T) {
	start := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestEntitlements(t, start)
	ctx := context.Background()

	_, err := svc.CheckQuota(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, svc.db.Model(&models.UserEntitlements{}).
		Where("uid = ?", "user-1").
		Update("meal_generations_used", 30).Error)

	_, err = svc.CheckQuota(ctx, "user-1")
	require.ErrorIs(t, err, ErrLimitReached)

	svc.now = func() time.Time { return time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) }
	ent, err := svc.CheckQuota(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, ent.MealGenerationsUsed)
	assert.True(t, ent.NextResetAt.Equal(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)))

	var stored models.UserEntitlements
	require.NoError(t, svc.db.First(&stored, "uid = ?", "user-1").Error)
	assert.Equal(t, 0, stored.MealGenerationsUsed)
}

func TestRecordMealGenerationIncrementsByOne(t *testing.T) {
	svc := newTestEntitlements(t, time.Now())
	ctx := context.Background()

	_, err := svc.CheckQuota(ctx, "user-1")
	require.NoError(t, err)
	require.NoError(t, svc.RecordMealGeneration(ctx, "user-1"))
	require.NoError(t, svc.RecordMealGeneration(ctx, "user-1"))

	ent, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, ent.MealGenerationsUsed)
	assert.Equal(t, 28, ent.Remaining())

	assert.ErrorIs(t, svc.RecordMealGeneration(ctx, "nobody"), ErrNotFound)
}

func TestApplySubscriptionUpgradesAndCancels(t *testing.T) {
	svc := newTestEntitlements(t, time.Now())
	ctx := context.Background()

	require.NoError(t, svc.ApplySubscription(ctx, SubscriptionUpdate{
		UID:            "user-1",
		CustomerID:     "cus_123",
		SubscriptionID: "sub_123",
		Tier:           models.TierPro,
		Status:         models.TierStatusActive,
	}))
	ent, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, ent.Tier)
	assert.Equal(t, ProMealLimit, ent.MealGenerationsLimit)
	assert.Equal(t, "cus_123", ent.StripeCustomerID)

	uid, err := svc.FindByCustomer(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)

	require.NoError(t, svc.ApplySubscription(ctx, SubscriptionUpdate{
		UID:    "user-1",
		Tier:   models.TierPro,
		Status: models.TierStatusCanceled,
	}))
	ent, err = svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, ent.Tier)
	assert.Equal(t, 30, ent.MealGenerationsLimit)
	assert.Empty(t, ent.StripeSubscriptionID)
}

func TestSetTierRejectsUnknownTier(t *testing.T) {
	svc := newTestEntitlements(t, time.Now())
	_, err := svc.SetTier(context.Background(), "user-1", models.Tier("platinum"))
	assert.ErrorIs(t, err, ErrValidation)
}
