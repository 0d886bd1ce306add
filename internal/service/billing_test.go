package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/timmyl2410/PlatelyAI-sub000/config"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
)

const testWebhookSecret = "whsec_test_secret"

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCustomer(ctx context.Context, uid, email string) (string, error) {
	args := m.Called(ctx, uid, email)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func newTestBilling(t *testing.T) (*BillingService, *mockGateway, *EntitlementsService) {
	t.Helper()
	ent := newTestEntitlements(t, time.Now())
	gw := &mockGateway{}
	cfg := &config.Config{
		FrontendURL:         "https://app.test/",
		StripeWebhookSecret: testWebhookSecret,
		StripePricePremium:  "price_premium",
		StripePricePro:      "price_pro",
	}
	return NewBillingService(cfg, gw, ent), gw, ent
}

func signedEvent(t *testing.T, payload string) ([]byte, string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  testWebhookSecret,
	})
	return signed.Payload, signed.Header
}

func TestCheckoutCreatesCustomerOnce(t *testing.T) {
	svc, gw, ent := newTestBilling(t)
	ctx := context.Background()

	gw.On("CreateCustomer", mock.Anything, "user-1", "a@b.test").Return("cus_1", nil).Once()
	gw.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p CheckoutParams) bool {
		return p.CustomerID == "cus_1" && p.PriceID == "price_pro" && p.Tier == models.TierPro &&
			p.CancelURL == "https://app.test/pricing"
	})).Return("https://checkout.test/1", nil).Twice()

	url, err := svc.CreateCheckoutSession(ctx, "user-1", "a@b.test", models.TierPro)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.test/1", url)

	_, err = svc.CreateCheckoutSession(ctx, "user-1", "a@b.test", models.TierPro)
	require.NoError(t, err)

	stored, err := ent.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", stored.StripeCustomerID)
	gw.AssertExpectations(t)
}

func TestCheckoutRejectsFreeTier(t *testing.T) {
	svc, gw, _ := newTestBilling(t)
	_, err := svc.CreateCheckoutSession(context.Background(), "user-1", "", models.TierFree)
	assert.ErrorIs(t, err, ErrValidation)
	gw.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything)
}

func TestPortalRequiresCustomer(t *testing.T) {
	svc, gw, ent := newTestBilling(t)
	ctx := context.Background()

	_, err := svc.CreatePortalSession(ctx, "user-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, ent.SetStripeCustomer(ctx, "user-1", "cus_9"))
	gw.On("CreatePortalSession", mock.Anything, "cus_9", "https://app.test/account").Return("https://portal.test", nil)

	url, err := svc.CreatePortalSession(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.test", url)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, _, _ := newTestBilling(t)
	err := svc.HandleWebhook(context.Background(), []byte(`{"id":"evt_1","type":"checkout.session.completed"}`), "t=1,v1=deadbeef")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestWebhookCheckoutCompletedUpgrades(t *testing.T) {
	svc, _, ent := newTestBilling(t)
	ctx := context.Background()

	payload, sig := signedEvent(t, `{
		"id": "evt_1",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_1",
			"object": "checkout.session",
			"client_reference_id": "user-1",
			"customer": "cus_1",
			"subscription": "sub_1",
			"metadata": {"tier": "premium", "firebase_uid": "user-1"}
		}}
	}`)
	require.NoError(t, svc.HandleWebhook(ctx, payload, sig))

	stored, err := ent.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierPremium, stored.Tier)
	assert.Equal(t, PremiumMealLimit, stored.MealGenerationsLimit)
	assert.Equal(t, "sub_1", stored.StripeSubscriptionID)
}

func TestWebhookSubscriptionLifecycle(t *testing.T) {
	svc, _, ent := newTestBilling(t)
	ctx := context.Background()
	require.NoError(t, ent.SetStripeCustomer(ctx, "user-1", "cus_1"))

	payload, sig := signedEvent(t, `{
		"id": "evt_2",
		"object": "event",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_1",
			"object": "subscription",
			"customer": "cus_1",
			"status": "active",
			"items": {"object": "list", "data": [{"id": "si_1", "object": "subscription_item", "price": {"id": "price_pro", "object": "price"}}]}
		}}
	}`)
	require.NoError(t, svc.HandleWebhook(ctx, payload, sig))

	stored, err := ent.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierPro, stored.Tier)
	assert.Equal(t, models.TierStatusActive, stored.TierStatus)

	payload, sig = signedEvent(t, `{
		"id": "evt_3",
		"object": "event",
		"type": "customer.subscription.deleted",
		"data": {"object": {"id": "sub_1", "object": "subscription", "customer": "cus_1", "status": "active"}}
	}`)
	require.NoError(t, svc.HandleWebhook(ctx, payload, sig))

	stored, err = ent.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierFree, stored.Tier)
	assert.Equal(t, models.TierStatusCanceled, stored.TierStatus)
}

func TestWebhookCheckoutForUnknownCustomerIsAcknowledged(t *testing.T) {
	svc, _, ent := newTestBilling(t)
	ctx := context.Background()

	payload, sig := signedEvent(t, `{
		"id": "evt_5",
		"object": "event",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_2",
			"object": "checkout.session",
			"customer": "cus_missing",
			"metadata": {"tier": "pro"}
		}}
	}`)
	require.NoError(t, svc.HandleWebhook(ctx, payload, sig))

	_, err := ent.FindByCustomer(ctx, "cus_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWebhookAcknowledgesUnknownEvents(t *testing.T) {
	svc, _, _ := newTestBilling(t)
	payload, sig := signedEvent(t, `{"id":"evt_4","object":"event","type":"invoice.paid","data":{"object":{}}}`)
	assert.NoError(t, svc.HandleWebhook(context.Background(), payload, sig))
}
