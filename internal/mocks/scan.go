package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/models"
	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// MockScanService is a mock implementation of service.IScanService
type MockScanService struct {
	mock.Mock
}

func (m *MockScanService) Scan(ctx context.Context, uid string, imageURLs []string) (*service.ScanResult, error) {
	args := m.Called(ctx, uid, imageURLs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ScanResult), args.Error(1)
}

func (m *MockScanService) GetScan(ctx context.Context, uid, id string) (*models.Scan, error) {
	args := m.Called(ctx, uid, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Scan), args.Error(1)
}

func (m *MockScanService) ListInventory(ctx context.Context, uid string) ([]models.InventoryItem, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InventoryItem), args.Error(1)
}

func (m *MockScanService) AddItem(ctx context.Context, uid, name string) (*models.InventoryItem, bool, error) {
	args := m.Called(ctx, uid, name)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.InventoryItem), args.Bool(1), args.Error(2)
}

func (m *MockScanService) DeleteInventoryItem(ctx context.Context, uid, id string) error {
	args := m.Called(ctx, uid, id)
	return args.Error(0)
}

// MockCategorizer is a mock implementation of service.ICategorizer
type MockCategorizer struct {
	mock.Mock
}

func (m *MockCategorizer) Categorize(ctx context.Context, foodName string) (string, error) {
	args := m.Called(ctx, foodName)
	return args.String(0), args.Error(1)
}
