package handler

import (
	"context"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/application"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
)

// SeatLedgerInterface は座席台帳のインターフェース
type SeatLedgerInterface interface {
	Increment(ctx context.Context, storeID string, count int, key string) (*application.AdjustResult, error)
	Decrement(ctx context.Context, storeID string, count int, key string) (*application.AdjustResult, error)
	FindAdjustment(ctx context.Context, key string) (*store.Adjustment, error)
}

// StoreServiceInterface は店舗サービスのインターフェース
type StoreServiceInterface interface {
	CreateStore(ctx context.Context, input application.CreateStoreInput) (*store.Store, error)
}

// CapacityQueryInterface は空席照会のインターフェース
type CapacityQueryInterface interface {
	Available(ctx context.Context, storeID string) (int, error)
	Capacity(ctx context.Context, storeID string) (*store.Capacity, error)
}

// BookingCoordinatorInterface は予約コーディネーターのインターフェース
type BookingCoordinatorInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*booking.Booking, error)
	CancelBooking(ctx context.Context, id int64, userID string) (*booking.Booking, error)
	GetBooking(ctx context.Context, id int64) (*booking.Booking, error)
	ListUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error)
}
