package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/application"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
)

// MockSeatLedger はSeatLedgerInterfaceのモック
type MockSeatLedger struct {
	mock.Mock
}

func (m *MockSeatLedger) Increment(ctx context.Context, storeID string, count int, key string) (*application.AdjustResult, error) {
	args := m.Called(ctx, storeID, count, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.AdjustResult), args.Error(1)
}

func (m *MockSeatLedger) Decrement(ctx context.Context, storeID string, count int, key string) (*application.AdjustResult, error) {
	args := m.Called(ctx, storeID, count, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.AdjustResult), args.Error(1)
}

func (m *MockSeatLedger) FindAdjustment(ctx context.Context, key string) (*store.Adjustment, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Adjustment), args.Error(1)
}

// MockStoreService はStoreServiceInterfaceのモック
type MockStoreService struct {
	mock.Mock
}

func (m *MockStoreService) CreateStore(ctx context.Context, input application.CreateStoreInput) (*store.Store, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Store), args.Error(1)
}

// MockCapacityQuery はCapacityQueryInterfaceのモック
type MockCapacityQuery struct {
	mock.Mock
}

func (m *MockCapacityQuery) Available(ctx context.Context, storeID string) (int, error) {
	args := m.Called(ctx, storeID)
	return args.Int(0), args.Error(1)
}

func (m *MockCapacityQuery) Capacity(ctx context.Context, storeID string) (*store.Capacity, error) {
	args := m.Called(ctx, storeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Capacity), args.Error(1)
}

// MockBookingCoordinator はBookingCoordinatorInterfaceのモック
type MockBookingCoordinator struct {
	mock.Mock
}

func (m *MockBookingCoordinator) CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingCoordinator) CancelBooking(ctx context.Context, id int64, userID string) (*booking.Booking, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingCoordinator) GetBooking(ctx context.Context, id int64) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingCoordinator) ListUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*booking.Booking), args.Error(1)
}
