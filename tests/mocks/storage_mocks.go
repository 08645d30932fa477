package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-helpdesk-backend/internal/storage"
)

// MockObjectStore implements storage.ObjectStore. Uploaded bodies are read
// fully so callers can inspect them in assertions.
type MockObjectStore struct {
	mock.Mock
	Uploaded map[string][]byte
}

// NewMockObjectStore creates a new MockObjectStore instance
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{Uploaded: make(map[string][]byte)}
}

// Upload stores content under bucket/objectPath
func (m *MockObjectStore) Upload(ctx context.Context, bucket, objectPath string, content io.Reader, contentType string) (int64, error) {
	data, _ := io.ReadAll(content)
	args := m.Called(ctx, bucket, objectPath, contentType)
	if args.Error(1) == nil {
		if m.Uploaded == nil {
			m.Uploaded = make(map[string][]byte)
		}
		m.Uploaded[bucket+"/"+objectPath] = data
	}
	return args.Get(0).(int64), args.Error(1)
}

// Open retrieves an object
func (m *MockObjectStore) Open(ctx context.Context, bucket, objectPath string) (*storage.Object, error) {
	args := m.Called(ctx, bucket, objectPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Object), args.Error(1)
}

// Delete removes an object
func (m *MockObjectStore) Delete(ctx context.Context, bucket, objectPath string) error {
	args := m.Called(ctx, bucket, objectPath)
	return args.Error(0)
}

// PublicURL returns the public address of an object
func (m *MockObjectStore) PublicURL(bucket, objectPath string) string {
	return storage.PublicURL("http://localhost:8080", bucket, objectPath)
}

// HealthCheck verifies the store
func (m *MockObjectStore) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
