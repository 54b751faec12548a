package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockObjectStorage is a mock implementation of the ObjectStorageClient interface
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Connect(ctx context.Context, endpoint, accessKeyID, secretAccessKey string, useSSL bool) error {
	args := m.Called(ctx, endpoint, accessKeyID, secretAccessKey, useSSL)
	return args.Error(0)
}

func (m *MockObjectStorage) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, bucketName, objectName, data, contentType)
	return args.String(0), args.Error(1)
}
