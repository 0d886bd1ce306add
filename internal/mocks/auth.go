package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/timmyl2410/PlatelyAI-sub000/internal/service"
)

// MockTokenVerifier is a mock implementation of service.ITokenVerifier
type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) Verify(ctx context.Context, rawToken string) (*service.AuthClaims, error) {
	args := m.Called(ctx, rawToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthClaims), args.Error(1)
}
