package mocks

import (
	"context"

	"github.com/benmeehan/geo-attendance/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockProvider is a mock implementation of the location.Provider interface
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) GetLocation(ctx context.Context) (location.Reading, error) {
	args := m.Called(ctx)
	return args.Get(0).(location.Reading), args.Error(1)
}

func (m *MockProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}
