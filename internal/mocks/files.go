package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// MockUploadService is a mock implementation of service.IUploadService
type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) Init(ctx context.Context, uid, fileName, contentType string) (*service.UploadTicket, error) {
	args := m.Called(ctx, uid, fileName, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadTicket), args.Error(1)
}

func (m *MockUploadService) Complete(ctx context.Context, uid, storagePath string) (*service.SignedURL, error) {
	args := m.Called(ctx, uid, storagePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SignedURL), args.Error(1)
}

func (m *MockUploadService) ReadURL(ctx context.Context, uid, storagePath string) (*service.SignedURL, error) {
	args := m.Called(ctx, uid, storagePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SignedURL), args.Error(1)
}

// MockSessionService is a mock implementation of service.ISessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Create(ctx context.Context, uid string) (*service.CreatedSession, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.CreatedSession), args.Error(1)
}

func (m *MockSessionService) AddImage(ctx context.Context, id, token, url string) (*service.Session, error) {
	args := m.Called(ctx, id, token, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}

func (m *MockSessionService) Get(ctx context.Context, uid, id string) (*service.Session, error) {
	args := m.Called(ctx, uid, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Session), args.Error(1)
}

// MockBillingService is a mock implementation of service.IBillingService
type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) CreateCheckoutSession(ctx context.Context, uid, email string, tier models.Tier) (string, error) {
	args := m.Called(ctx, uid, email, tier)
	return args.String(0), args.Error(1)
}

func (m *MockBillingService) CreatePortalSession(ctx context.Context, uid string) (string, error) {
	args := m.Called(ctx, uid)
	return args.String(0), args.Error(1)
}

func (m *MockBillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(ctx, payload, signature).Error(0)
}
