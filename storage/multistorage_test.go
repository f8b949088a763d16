package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/keymaster/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

const (
	testItemID  = "com.example.app/MasterKey"
	testAccount = "alice"
)

// MockSecretStore implements interfaces.SecretStore for testing
type MockSecretStore struct {
	mock.Mock
	name string
}

func (m *MockSecretStore) Get(ctx context.Context, itemID, account string) ([]byte, error) {
	args := m.Called(ctx, itemID, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSecretStore) Put(ctx context.Context, itemID, account string, data []byte) error {
	args := m.Called(ctx, itemID, account, data)
	return args.Error(0)
}

func (m *MockSecretStore) Delete(ctx context.Context, itemID, account string) error {
	args := m.Called(ctx, itemID, account)
	return args.Error(0)
}

func (m *MockSecretStore) Available(ctx context.Context) bool {
	args := m.Called(ctx)
	return args.Bool(0)
}

func (m *MockSecretStore) Name() string {
	return m.name
}

func (m *MockSecretStore) LocationURI() string {
	return "mock:"
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func assertStoreExpectations(t *testing.T, stores []interfaces.SecretStore) {
	t.Helper()
	for _, store := range stores {
		store.(*MockSecretStore).AssertExpectations(t)
	}
}

func TestMultiStore_Available(t *testing.T) {
	tests := []struct {
		name     string
		stores   []bool
		expected bool
	}{
		{
			name:     "all stores available",
			stores:   []bool{true, true, true},
			expected: true,
		},
		{
			name:     "some stores available",
			stores:   []bool{false, true, false},
			expected: true,
		},
		{
			name:     "no stores available",
			stores:   []bool{false, false, false},
			expected: false,
		},
		{
			name:     "no stores",
			stores:   []bool{},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stores []interfaces.SecretStore
			for i, available := range tt.stores {
				mockStore := &MockSecretStore{name: fmt.Sprintf("mock-A%x", i)}
				mockStore.On("Available", mock.Anything).Return(available).Maybe()
				stores = append(stores, mockStore)
			}

			multi := NewMultiStore(stores, quietLogger())
			assert.Equal(t, tt.expected, multi.Available(context.Background()))
			assertStoreExpectations(t, stores)
		})
	}
}

func TestMultiStore_Get(t *testing.T) {
	testData := []byte("dGVzdCBkYXRh")
	testErr := errors.New("test error")

	tests := []struct {
		name         string
		setupMocks   func() []interfaces.SecretStore
		expectedData []byte
		expectedErr  error
	}{
		{
			name: "first store has the item",
			setupMocks: func() []interfaces.SecretStore {
				mock1 := &MockSecretStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testItemID, testAccount).Return(testData, nil)

				// Not consulted once the first store answers.
				mock2 := &MockSecretStore{name: "mock-B"}

				return []interfaces.SecretStore{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "miss falls through to second store",
			setupMocks: func() []interfaces.SecretStore {
				mock1 := &MockSecretStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testItemID, testAccount).Return(nil, interfaces.ErrItemNotFound)

				mock2 := &MockSecretStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testItemID, testAccount).Return(testData, nil)

				return []interfaces.SecretStore{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "failure falls through to second store",
			setupMocks: func() []interfaces.SecretStore {
				mock1 := &MockSecretStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testItemID, testAccount).Return(nil, testErr)

				mock2 := &MockSecretStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testItemID, testAccount).Return(testData, nil)

				return []interfaces.SecretStore{mock1, mock2}
			},
			expectedData: testData,
		},
		{
			name: "missing everywhere",
			setupMocks: func() []interfaces.SecretStore {
				mock1 := &MockSecretStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testItemID, testAccount).Return(nil, interfaces.ErrItemNotFound)

				mock2 := &MockSecretStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testItemID, testAccount).Return(nil, interfaces.ErrItemNotFound)

				return []interfaces.SecretStore{mock1, mock2}
			},
			expectedErr: interfaces.ErrItemNotFound,
		},
		{
			name: "miss with a failing store is not a miss",
			setupMocks: func() []interfaces.SecretStore {
				mock1 := &MockSecretStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Get", mock.Anything, testItemID, testAccount).Return(nil, testErr)

				mock2 := &MockSecretStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testItemID, testAccount).Return(nil, interfaces.ErrItemNotFound)

				return []interfaces.SecretStore{mock1, mock2}
			},
			expectedErr: interfaces.ErrStoreUnavailable,
		},
		{
			name: "miss with an unavailable store is not a miss",
			setupMocks: func() []interfaces.SecretStore {
				mock1 := &MockSecretStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				mock2 := &MockSecretStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testItemID, testAccount).Return(nil, interfaces.ErrItemNotFound)

				return []interfaces.SecretStore{mock1, mock2}
			},
			expectedErr: interfaces.ErrStoreUnavailable,
		},
		{
			name: "unavailable stores are skipped",
			setupMocks: func() []interfaces.SecretStore {
				mock1 := &MockSecretStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				mock2 := &MockSecretStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Get", mock.Anything, testItemID, testAccount).Return(testData, nil)

				return []interfaces.SecretStore{mock1, mock2}
			},
			expectedData: testData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := tt.setupMocks()
			multi := NewMultiStore(stores, quietLogger())

			data, err := multi.Get(context.Background(), testItemID, testAccount)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				if tt.expectedErr != interfaces.ErrItemNotFound {
					assert.NotErrorIs(t, err, interfaces.ErrItemNotFound)
				}
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expectedData, data)
			assertStoreExpectations(t, stores)
		})
	}
}

func TestMultiStore_Put(t *testing.T) {
	testData := []byte("dGVzdCBkYXRh")
	testErr := errors.New("test error")

	tests := []struct {
		name          string
		setupMocks    func() []interfaces.SecretStore
		expectedError bool
	}{
		{
			name: "all stores successful",
			setupMocks: func() []interfaces.SecretStore {
				mock1 := &MockSecretStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Put", mock.Anything, testItemID, testAccount, testData).Return(nil)

				mock2 := &MockSecretStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Put", mock.Anything, testItemID, testAccount, testData).Return(nil)

				return []interfaces.SecretStore{mock1, mock2}
			},
		},
		{
			name: "some stores fail",
			setupMocks: func() []interfaces.SecretStore {
				mock1 := &MockSecretStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Put", mock.Anything, testItemID, testAccount, testData).Return(nil)

				mock2 := &MockSecretStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Put", mock.Anything, testItemID, testAccount, testData).Return(testErr)

				return []interfaces.SecretStore{mock1, mock2}
			},
		},
		{
			name: "all stores fail",
			setupMocks: func() []interfaces.SecretStore {
				mock1 := &MockSecretStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(true)
				mock1.On("Put", mock.Anything, testItemID, testAccount, testData).Return(testErr)

				mock2 := &MockSecretStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Put", mock.Anything, testItemID, testAccount, testData).Return(testErr)

				return []interfaces.SecretStore{mock1, mock2}
			},
			expectedError: true,
		},
		{
			name: "unavailable stores are skipped",
			setupMocks: func() []interfaces.SecretStore {
				mock1 := &MockSecretStore{name: "mock-A"}
				mock1.On("Available", mock.Anything).Return(false)

				mock2 := &MockSecretStore{name: "mock-B"}
				mock2.On("Available", mock.Anything).Return(true)
				mock2.On("Put", mock.Anything, testItemID, testAccount, testData).Return(nil)

				return []interfaces.SecretStore{mock1, mock2}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := tt.setupMocks()
			multi := NewMultiStore(stores, quietLogger())

			err := multi.Put(context.Background(), testItemID, testAccount, testData)

			if tt.expectedError {
				assert.ErrorIs(t, err, interfaces.ErrStoreUnavailable)
			} else {
				assert.NoError(t, err)
			}
			assertStoreExpectations(t, stores)
		})
	}
}

func TestMultiStore_Delete(t *testing.T) {
	testErr := errors.New("test error")

	tests := []struct {
		name        string
		results     []error
		expectedErr error
	}{
		{name: "deleted everywhere", results: []error{nil, nil}},
		{name: "deleted in one store", results: []error{interfaces.ErrItemNotFound, nil}},
		{name: "missing everywhere", results: []error{interfaces.ErrItemNotFound, interfaces.ErrItemNotFound}, expectedErr: interfaces.ErrItemNotFound},
		{name: "one store fails", results: []error{nil, testErr}, expectedErr: testErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stores []interfaces.SecretStore
			for i, result := range tt.results {
				mockStore := &MockSecretStore{name: fmt.Sprintf("mock-%d", i)}
				mockStore.On("Available", mock.Anything).Return(true)
				mockStore.On("Delete", mock.Anything, testItemID, testAccount).Return(result)
				stores = append(stores, mockStore)
			}

			err := NewMultiStore(stores, quietLogger()).Delete(context.Background(), testItemID, testAccount)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			assertStoreExpectations(t, stores)
		})
	}
}

func TestMultiStore_LocationURI(t *testing.T) {
	multi := NewMultiStore([]interfaces.SecretStore{
		NewMemoryStore(quietLogger()),
		NewKeyringStore("com.example.", quietLogger()),
	}, quietLogger())
	assert.Equal(t, "multi:[memory://,keyring://com.example.]", multi.LocationURI())
	assert.Equal(t, "multi-store", multi.Name())
}
