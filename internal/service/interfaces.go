package service

import (
	"context"
	"time"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
)

// BlobStore is the subset of object storage the services need.
// config.S3Config satisfies it.
type BlobStore interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	ObjectExists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
}

// ChatClient sends a chat completion request in JSON mode and decodes the reply into out
type ChatClient interface {
	CompleteJSON(ctx context.Context, model string, messages []ChatMessage, out interface{}) error
}

// ImageGenerator renders a prompt into PNG bytes
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// SessionStore persists QR hand-off sessions
type SessionStore interface {
	Create(ctx context.Context, session *Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)
}

// BillingGateway is the Stripe surface the billing service calls
type BillingGateway interface {
	CreateCustomer(ctx context.Context, uid, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// IEntitlementsService defines quota and tier operations
type IEntitlementsService interface {
	Get(ctx context.Context, uid string) (*models.UserEntitlements, error)
	CheckQuota(ctx context.Context, uid string) (*models.UserEntitlements, error)
	RecordMealGeneration(ctx context.Context, uid string) error
	SetStripeCustomer(ctx context.Context, uid, customerID string) error
	ApplySubscription(ctx context.Context, update SubscriptionUpdate) error
	SetTier(ctx context.Context, uid string, tier models.Tier) (*models.UserEntitlements, error)
}

// IRecipeImageService resolves a meal image through the cache and lease protocol
type IRecipeImageService interface {
	Resolve(ctx context.Context, title string, keyIngredients []string) (*RecipeImageResult, error)
}

// IMealService generates meal suggestions under the monthly quota
type IMealService interface {
	Generate(ctx context.Context, uid string, req *MealRequest) (*MealResponse, error)
}

// IScanService runs vision scans and manages the inventory they feed
type IScanService interface {
	Scan(ctx context.Context, uid string, imageURLs []string) (*ScanResult, error)
	GetScan(ctx context.Context, uid, id string) (*models.Scan, error)
	ListInventory(ctx context.Context, uid string) ([]models.InventoryItem, error)
	AddItem(ctx context.Context, uid, name string) (*models.InventoryItem, bool, error)
	DeleteInventoryItem(ctx context.Context, uid, id string) error
}

// ICategorizer maps a food name to a category
type ICategorizer interface {
	Categorize(ctx context.Context, foodName string) (string, error)
}

// IUploadService issues signed storage URLs for a user's own files
type IUploadService interface {
	Init(ctx context.Context, uid, fileName, contentType string) (*UploadTicket, error)
	Complete(ctx context.Context, uid, storagePath string) (*SignedURL, error)
	ReadURL(ctx context.Context, uid, storagePath string) (*SignedURL, error)
}

// ISessionService manages QR hand-off sessions
type ISessionService interface {
	Create(ctx context.Context, uid string) (*CreatedSession, error)
	AddImage(ctx context.Context, id, token, url string) (*Session, error)
	Get(ctx context.Context, uid, id string) (*Session, error)
}

// IBillingService wraps Stripe checkout, portal and webhooks
type IBillingService interface {
	CreateCheckoutSession(ctx context.Context, uid, email string, tier models.Tier) (string, error)
	CreatePortalSession(ctx context.Context, uid string) (string, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// ITokenVerifier validates Firebase ID tokens
type ITokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*AuthClaims, error)
}
