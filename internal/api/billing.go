package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/middleware"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// maxWebhookBody caps the Stripe payload read into memory
const maxWebhookBody = 65536

// BillingHandler handles entitlements and Stripe billing
type BillingHandler struct {
	billing      service.IBillingService
	entitlements service.IEntitlementsService
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(billing service.IBillingService, entitlements service.IEntitlementsService) *BillingHandler {
	return &BillingHandler{
		billing:      billing,
		entitlements: entitlements,
	}
}

func (h *BillingHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/entitlements", h.GetEntitlements)
	router.POST("/create-checkout-session", middleware.RequireEmailVerification(), h.CreateCheckoutSession)
	router.POST("/create-billing-portal-session", h.CreatePortalSession)
}

// RegisterPublicRoutes registers the Stripe webhook, authenticated by its signature
func (h *BillingHandler) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.POST("/stripe-webhook", h.Webhook)
}

// EntitlementsResponse is the caller's tier and quota
type EntitlementsResponse struct {
	Tier                 models.Tier `json:"tier"`
	TierStatus           string      `json:"tierStatus"`
	MealGenerationsUsed  int         `json:"mealGenerationsUsed"`
	MealGenerationsLimit int         `json:"mealGenerationsLimit"`
	Remaining            int         `json:"remaining"`
	BillingPeriodStart   time.Time   `json:"billingPeriodStart"`
	NextResetAt          time.Time   `json:"nextResetAt"`
	HasBillingAccount    bool        `json:"hasBillingAccount"`
}

func (h *BillingHandler) GetEntitlements(c *gin.Context) {
	ent, err := h.entitlements.Get(c.Request.Context(), middleware.UID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, EntitlementsResponse{
		Tier:                 ent.Tier,
		TierStatus:           ent.TierStatus,
		MealGenerationsUsed:  ent.MealGenerationsUsed,
		MealGenerationsLimit: ent.MealGenerationsLimit,
		Remaining:            ent.Remaining(),
		BillingPeriodStart:   ent.BillingPeriodStart,
		NextResetAt:          ent.NextResetAt,
		HasBillingAccount:    ent.StripeCustomerID != "",
	})
}

// CheckoutRequest is the body of POST /create-checkout-session
type CheckoutRequest struct {
	Tier models.Tier `json:"tier" binding:"required"`
}

func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	url, err := h.billing.CreateCheckoutSession(c.Request.Context(), middleware.UID(c), c.GetString(middleware.ContextEmail), req.Tier)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	url, err := h.billing.CreatePortalSession(c.Request.Context(), middleware.UID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// Webhook verifies and applies a Stripe event. The body must stay raw for the signature check.
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.billing.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
