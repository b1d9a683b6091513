package handler

import "github.com/labstack/echo/v4"

// RegisterStoreRoutes は店舗サービスのルートを登録する
func RegisterStoreRoutes(v1 *echo.Group, ledger *SeatLedgerHandler, stores *StoreHandler) {
	v1.POST("/seats/increment", ledger.Increment)
	v1.POST("/seats/decrement", ledger.Decrement)
	v1.POST("/stores/:store_id/seats/increment", ledger.Increment)
	v1.POST("/stores/:store_id/seats/decrement", ledger.Decrement)
	v1.GET("/adjustments/:key", ledger.GetAdjustment)

	v1.POST("/stores", stores.Create)
	v1.GET("/stores/:store_id/available-seats", stores.AvailableSeats)
	v1.GET("/stores/:store_id/capacity", stores.Capacity)
}

// RegisterBookingRoutes は予約サービスのルートを登録する
func RegisterBookingRoutes(v1 *echo.Group, bookings *BookingHandler) {
	v1.POST("/bookings", bookings.Create)
	v1.GET("/bookings", bookings.List)
	v1.GET("/bookings/:id", bookings.GetByID)
	v1.PATCH("/bookings/:id", bookings.Cancel)
}
