package application

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/transaction"
)

// === Mock implementations ===

// MockTxManager implements transaction.Manager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(transaction.Tx), args.Error(1)
}

// MockTx implements transaction.Tx
type MockTx struct {
	mock.Mock
}

func (m *MockTx) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTx) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockStoreRepository implements store.Repository
type MockStoreRepository struct {
	mock.Mock
}

func (m *MockStoreRepository) Create(ctx context.Context, s *store.Store) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockStoreRepository) GetByID(ctx context.Context, id string) (*store.Store, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Store), args.Error(1)
}

func (m *MockStoreRepository) GetOccupancy(ctx context.Context, storeID string) (*store.Occupancy, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Occupancy), args.Error(1)
}

func (m *MockStoreRepository) ApplyDelta(ctx context.Context, tx transaction.Tx, storeID string, delta, totalSeats int) (*store.Occupancy, error) {
	args := m.Called(ctx, tx, storeID, delta, totalSeats)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Occupancy), args.Error(1)
}

func (m *MockStoreRepository) RecordAdjustment(ctx context.Context, tx transaction.Tx, adj *store.Adjustment) error {
	args := m.Called(ctx, tx, adj)
	return args.Error(0)
}

func (m *MockStoreRepository) GetAdjustment(ctx context.Context, key string) (*store.Adjustment, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Adjustment), args.Error(1)
}

// MockBookingRepository implements booking.Repository
type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id int64) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, b *booking.Booking, prev booking.Status) error {
	args := m.Called(ctx, b, prev)
	return args.Error(0)
}

func (m *MockBookingRepository) GetStalePending(ctx context.Context, olderThan time.Duration) ([]*booking.Booking, error) {
	args := m.Called(ctx, olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetReleasePending(ctx context.Context, limit int) ([]*booking.Booking, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}

// MockSeatAdjuster implements SeatAdjuster
type MockSeatAdjuster struct {
	mock.Mock
}

func (m *MockSeatAdjuster) AdjustOnce(ctx context.Context, storeID string, delta int, key string) (*AdjustResult, error) {
	args := m.Called(ctx, storeID, delta, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*AdjustResult), args.Error(1)
}

func (m *MockSeatAdjuster) FindAdjustment(ctx context.Context, key string) (*store.Adjustment, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Adjustment), args.Error(1)
}

// MockEventPublisher implements booking.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event booking.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockAvailabilityCache implements AvailabilityCache
type MockAvailabilityCache struct {
	mock.Mock
}

func (m *MockAvailabilityCache) GetAvailable(ctx context.Context, storeID string) (int, error) {
	args := m.Called(ctx, storeID)
	return args.Int(0), args.Error(1)
}

func (m *MockAvailabilityCache) SetAvailable(ctx context.Context, storeID string, available int, version int64, ttl time.Duration) error {
	args := m.Called(ctx, storeID, available, version, ttl)
	return args.Error(0)
}

func (m *MockAvailabilityCache) Invalidate(ctx context.Context, storeID string) error {
	args := m.Called(ctx, storeID)
	return args.Error(0)
}
