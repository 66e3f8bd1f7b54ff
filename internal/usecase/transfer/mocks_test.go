package transfer

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/benefitflow/backend/internal/domain"
)

// MockStore is a mock implementation of domain.Store for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Begin(ctx context.Context) (domain.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Tx), args.Error(1)
}

func (m *MockStore) GetByID(ctx context.Context, id int64) (*domain.Benefit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Benefit), args.Error(1)
}

func (m *MockStore) Create(ctx context.Context, benefit *domain.Benefit) error {
	args := m.Called(ctx, benefit)
	return args.Error(0)
}

func (m *MockStore) List(ctx context.Context) ([]*domain.Benefit, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Benefit), args.Error(1)
}

func (m *MockStore) ListActive(ctx context.Context) ([]*domain.Benefit, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Benefit), args.Error(1)
}

// MockTx is a mock implementation of domain.Tx for testing
type MockTx struct {
	mock.Mock
}

func (m *MockTx) GetByID(ctx context.Context, id int64) (*domain.Benefit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Benefit), args.Error(1)
}

func (m *MockTx) GetByIDForUpdate(ctx context.Context, id int64) (*domain.Benefit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Benefit), args.Error(1)
}

func (m *MockTx) GetByIDForShare(ctx context.Context, id int64) (*domain.Benefit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Benefit), args.Error(1)
}

func (m *MockTx) GetAllForUpdate(ctx context.Context, ids []int64) ([]*domain.Benefit, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Benefit), args.Error(1)
}

func (m *MockTx) SaveWithVersionCheck(ctx context.Context, benefit *domain.Benefit) (*domain.Benefit, error) {
	args := m.Called(ctx, benefit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Benefit), args.Error(1)
}

func (m *MockTx) SaveLocked(ctx context.Context, benefit *domain.Benefit) (*domain.Benefit, error) {
	args := m.Called(ctx, benefit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Benefit), args.Error(1)
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// benefitWithID matches a saved benefit by record id.
func benefitWithID(id int64) any {
	return mock.MatchedBy(func(b *domain.Benefit) bool { return b.ID == id })
}
