package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/timmyl2410/PlatelyAI-sub000/config"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/logger"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
)

// CheckoutParams describes a subscription checkout
type CheckoutParams struct {
	UID        string
	CustomerID string
	PriceID    string
	Tier       models.Tier
	SuccessURL string
	CancelURL  string
}

// StripeGateway calls the Stripe API
type StripeGateway struct{}

// NewStripeGateway sets the Stripe key and returns a gateway
func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{}
}

// CreateCustomer creates a Stripe customer tagged with the Firebase uid
func (g *StripeGateway) CreateCustomer(ctx context.Context, uid, email string) (string, error) {
	params := &stripe.CustomerParams{
		Metadata: map[string]string{"firebase_uid": uid},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx
	cust, err := customer.New(params)
	if err != nil {
		return "", stripeUpstream(err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession starts a subscription Checkout Session and returns its URL
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.UID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"firebase_uid": p.UID, "tier": string(p.Tier)},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.AddMetadata("firebase_uid", p.UID)
	params.AddMetadata("tier", string(p.Tier))
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return "", stripeUpstream(err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the Stripe customer portal
func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := portal.New(params)
	if err != nil {
		return "", stripeUpstream(err)
	}
	return sess.URL, nil
}

func stripeUpstream(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &UpstreamError{Service: "stripe", StatusCode: stripeErr.HTTPStatusCode, Payload: stripeErr.Msg}
	}
	return &UpstreamError{Service: "stripe", Payload: err.Error()}
}

// billingEntitlements is what billing needs from the entitlements store
type billingEntitlements interface {
	Get(ctx context.Context, uid string) (*models.UserEntitlements, error)
	SetStripeCustomer(ctx context.Context, uid, customerID string) error
	FindByCustomer(ctx context.Context, customerID string) (string, error)
	ApplySubscription(ctx context.Context, update SubscriptionUpdate) error
}

// BillingService maps tiers to Stripe prices and Stripe events back to tiers
type BillingService struct {
	gateway       BillingGateway
	entitlements  billingEntitlements
	webhookSecret string
	prices        map[models.Tier]string
	frontendURL   string
	log           *logrus.Entry
}

// NewBillingService creates a new BillingService instance
func NewBillingService(cfg *config.Config, gateway BillingGateway, entitlements billingEntitlements) *BillingService {
	return &BillingService{
		gateway:       gateway,
		entitlements:  entitlements,
		webhookSecret: cfg.StripeWebhookSecret,
		prices: map[models.Tier]string{
			models.TierPremium: cfg.StripePricePremium,
			models.TierPro:     cfg.StripePricePro,
		},
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		log:         logger.Component("billing"),
	}
}

// tierForPrice returns the tier sold at priceID
func (s *BillingService) tierForPrice(priceID string) (models.Tier, bool) {
	for tier, id := range s.prices {
		if id != "" && id == priceID {
			return tier, true
		}
	}
	return "", false
}

// ensureCustomer returns the user's Stripe customer, creating and linking one on first checkout
func (s *BillingService) ensureCustomer(ctx context.Context, uid, email string) (string, error) {
	ent, err := s.entitlements.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	if ent.StripeCustomerID != "" {
		return ent.StripeCustomerID, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, uid, email)
	if err != nil {
		return "", err
	}
	if err := s.entitlements.SetStripeCustomer(ctx, uid, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

// CreateCheckoutSession returns a Checkout URL for upgrading to tier
func (s *BillingService) CreateCheckoutSession(ctx context.Context, uid, email string, tier models.Tier) (string, error) {
	if !tier.Paid() {
		return "", validationError("tier must be premium or pro")
	}
	priceID := s.prices[tier]
	if priceID == "" {
		return "", fmt.Errorf("no Stripe price configured for %s", tier)
	}

	customerID, err := s.ensureCustomer(ctx, uid, email)
	if err != nil {
		return "", err
	}

	url, err := s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		UID:        uid,
		CustomerID: customerID,
		PriceID:    priceID,
		Tier:       tier,
		SuccessURL: s.frontendURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.frontendURL + "/pricing",
	})
	if err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{"uid": uid, "tier": tier}).Info("checkout session created")
	return url, nil
}

// CreatePortalSession returns a customer portal URL; users without a Stripe customer get ErrNotFound
func (s *BillingService) CreatePortalSession(ctx context.Context, uid string) (string, error) {
	ent, err := s.entitlements.Get(ctx, uid)
	if err != nil {
		return "", err
	}
	if ent.StripeCustomerID == "" {
		return "", fmt.Errorf("no billing account for user: %w", ErrNotFound)
	}
	return s.gateway.CreatePortalSession(ctx, ent.StripeCustomerID, s.frontendURL+"/account")
}

// HandleWebhook verifies the Stripe signature over the raw body and applies the event
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return errors.New("stripe webhook secret is not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return validationError("webhook signature verification failed: %v", err)
	}

	log := s.log.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return validationError("invalid checkout session payload")
		}
		err := s.applyCheckout(ctx, &sess)
		if errors.Is(err, ErrNotFound) {
			log.WithError(err).Warn("checkout for unknown customer")
			return nil
		}
		return err
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return validationError("invalid subscription payload")
		}
		if event.Type == "customer.subscription.deleted" {
			sub.Status = stripe.SubscriptionStatusCanceled
		}
		if sub.Status == stripe.SubscriptionStatusIncomplete {
			log.Debug("subscription awaiting first payment")
			return nil
		}
		err := s.applySubscription(ctx, &sub)
		if errors.Is(err, ErrNotFound) {
			log.WithError(err).Warn("subscription for unknown customer")
			return nil
		}
		return err
	default:
		log.Debug("ignoring stripe event")
		return nil
	}
}

func (s *BillingService) applyCheckout(ctx context.Context, sess *stripe.CheckoutSession) error {
	uid := sess.ClientReferenceID
	if uid == "" {
		uid = sess.Metadata["firebase_uid"]
	}
	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	if uid == "" && customerID != "" {
		found, err := s.entitlements.FindByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		uid = found
	}
	if uid == "" {
		return validationError("checkout session carries no user")
	}

	tier := models.Tier(sess.Metadata["tier"])
	if !tier.Paid() {
		return validationError("checkout session carries no paid tier")
	}
	subscriptionID := ""
	if sess.Subscription != nil {
		subscriptionID = sess.Subscription.ID
	}

	return s.entitlements.ApplySubscription(ctx, SubscriptionUpdate{
		UID:            uid,
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		Tier:           tier,
		Status:         models.TierStatusActive,
	})
}

func (s *BillingService) applySubscription(ctx context.Context, sub *stripe.Subscription) error {
	customerID := ""
	if sub.Customer != nil {
		customerID = sub.Customer.ID
	}
	uid := sub.Metadata["firebase_uid"]
	if uid == "" {
		if customerID == "" {
			return validationError("subscription carries no customer")
		}
		found, err := s.entitlements.FindByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		uid = found
	}

	tier := models.Tier(sub.Metadata["tier"])
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if t, ok := s.tierForPrice(item.Price.ID); ok {
				tier = t
				break
			}
		}
	}

	return s.entitlements.ApplySubscription(ctx, SubscriptionUpdate{
		UID:            uid,
		CustomerID:     customerID,
		SubscriptionID: sub.ID,
		Tier:           tier,
		Status:         tierStatus(sub.Status),
	})
}

// tierStatus maps a Stripe subscription status onto the statuses kept on entitlements
func tierStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return models.TierStatusActive
	case stripe.SubscriptionStatusTrialing:
		return models.TierStatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return models.TierStatusPastDue
	default:
		return models.TierStatusCanceled
	}
}
