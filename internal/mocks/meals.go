package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// MockMealService is a mock implementation of service.IMealService
type MockMealService struct {
	mock.Mock
}

func (m *MockMealService) Generate(ctx context.Context, uid string, req *service.MealRequest) (*service.MealResponse, error) {
	args := m.Called(ctx, uid, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MealResponse), args.Error(1)
}

// MockRecipeImageService is a mock implementation of service.IRecipeImageService
type MockRecipeImageService struct {
	mock.Mock
}

func (m *MockRecipeImageService) Resolve(ctx context.Context, title string, keyIngredients []string) (*service.RecipeImageResult, error) {
	args := m.Called(ctx, title, keyIngredients)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.RecipeImageResult), args.Error(1)
}

// MockEntitlementsService is a mock implementation of service.IEntitlementsService
type MockEntitlementsService struct {
	mock.Mock
}

func (m *MockEntitlementsService) Get(ctx context.Context, uid string) (*models.UserEntitlements, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserEntitlements), args.Error(1)
}

func (m *MockEntitlementsService) CheckQuota(ctx context.Context, uid string) (*models.UserEntitlements, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserEntitlements), args.Error(1)
}

func (m *MockEntitlementsService) RecordMealGeneration(ctx context.Context, uid string) error {
	return m.Called(ctx, uid).Error(0)
}

func (m *MockEntitlementsService) SetStripeCustomer(ctx context.Context, uid, customerID string) error {
	return m.Called(ctx, uid, customerID).Error(0)
}

func (m *MockEntitlementsService) ApplySubscription(ctx context.Context, update service.SubscriptionUpdate) error {
	return m.Called(ctx, update).Error(0)
}

func (m *MockEntitlementsService) SetTier(ctx context.Context, uid string, tier models.Tier) (*models.UserEntitlements, error) {
	args := m.Called(ctx, uid, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserEntitlements), args.Error(1)
}
