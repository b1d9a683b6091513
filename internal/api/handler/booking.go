package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/api"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/application"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
)

// UserIDHeader は操作するユーザーのIDを受け取るヘッダー
const UserIDHeader = "X-User-ID"

type BookingHandler struct {
	coordinator BookingCoordinatorInterface
}

func NewBookingHandler(c BookingCoordinatorInterface) *BookingHandler {
	return &BookingHandler{coordinator: c}
}

type CreateBookingRequest struct {
	StoreID string `json:"storeId" validate:"required" example:"store-1"`
	UserID  string `json:"userId" validate:"required" example:"user-123"`
	Date    string `json:"date" validate:"required,date" example:"2026-12-24"`
	Count   int    `json:"count" example:"2"`
}

type BookingResponse struct {
	ID             int64     `json:"id" example:"1"`
	StoreID        string    `json:"storeId" example:"store-1"`
	UserID         string    `json:"userId" example:"user-123"`
	Date           string    `json:"date" example:"2026-12-24"`
	Count          int       `json:"count" example:"2"`
	Status         string    `json:"status" example:"confirmed"`
	FailureReason  string    `json:"failureReason,omitempty" example:"capacity_exceeded"`
	ReleasePending bool      `json:"releasePending,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:             b.ID,
		StoreID:        b.StoreID,
		UserID:         b.UserID,
		Date:           b.BookingDate.Format(api.DateLayout),
		Count:          b.PartySize,
		Status:         string(b.Status),
		FailureReason:  b.FailureReason,
		ReleasePending: b.ReleasePending,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

// Create godoc
// @Summary 予約を作成
// @Description 座席を確保して予約を確定します。確保に失敗した場合はエラーに失敗した予約が含まれます
// @Tags bookings
// @Accept json
// @Produce json
// @Param request body CreateBookingRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} api.ErrorResponse "座席不足・入力エラー"
// @Failure 409 {object} api.ErrorResponse "競合により座席を確保できなかった"
// @Failure 503 {object} api.ErrorResponse "座席確保の結果が不明（予約は保留中）"
// @Router /bookings [post]
func (h *BookingHandler) Create(c echo.Context) error {
	var req CreateBookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	date, err := api.ParseDate(req.Date)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date は YYYY-MM-DD 形式で指定してください")
	}

	b, err := h.coordinator.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		StoreID:     req.StoreID,
		UserID:      req.UserID,
		BookingDate: date,
		PartySize:   req.Count,
	})
	if err != nil {
		if b == nil {
			return err
		}
		if b.IsPending() {
			err = fmt.Errorf("%w: %v", api.ErrUnknownOutcome, err)
		}
		return api.WithBooking(err, toBookingResponse(b))
	}
	return c.JSON(http.StatusCreated, toBookingResponse(b))
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 確定済みの予約をキャンセルし、座席を解放します
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path int true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "キャンセル済み・キャンセルできない状態"
// @Router /bookings/{id} [patch]
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID := c.Request().Header.Get(UserIDHeader)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	b, err := h.coordinator.CancelBooking(c.Request().Context(), id, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// GetByID godoc
// @Summary 予約を取得
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param id path int true "予約ID"
// @Success 200 {object} BookingResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id} [get]
func (h *BookingHandler) GetByID(c echo.Context) error {
	userID := c.Request().Header.Get(UserIDHeader)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	id, err := bookingID(c)
	if err != nil {
		return err
	}
	b, err := h.coordinator.GetBooking(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if !b.IsOwnedBy(userID) {
		return booking.ErrForbidden
	}
	return c.JSON(http.StatusOK, toBookingResponse(b))
}

// List godoc
// @Summary ユーザーの予約一覧を取得
// @Tags bookings
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} BookingResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /bookings [get]
func (h *BookingHandler) List(c echo.Context) error {
	userID := c.Request().Header.Get(UserIDHeader)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	bookings, err := h.coordinator.ListUserBookings(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return err
	}
	resp := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		resp[i] = toBookingResponse(b)
	}
	return c.JSON(http.StatusOK, resp)
}

func bookingID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "予約IDが不正です")
	}
	return id, nil
}
