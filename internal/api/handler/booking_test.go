package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/api"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/application"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
)

var testDate = time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)

func newBookingServer(coord *MockBookingCoordinator) *echo.Echo {
	e := NewTestEcho()
	RegisterBookingRoutes(e.Group("/api/v1"), NewBookingHandler(coord))
	return e
}

func testBooking(id int64, status booking.Status) *booking.Booking {
	b := booking.NewBooking("store-1", "user-1", testDate, 2)
	b.ID = id
	b.Status = status
	return b
}

func postBooking(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

const validBookingBody = `{"storeId":"store-1","userId":"user-1","date":"2026-12-24","count":2}`

func TestBookingHandler_Create(t *testing.T) {
	input := application.CreateBookingInput{StoreID: "store-1", UserID: "user-1", BookingDate: testDate, PartySize: 2}

	t.Run("確定した予約を201で返す", func(t *testing.T) {
		coord := new(MockBookingCoordinator)
		coord.On("CreateBooking", mock.Anything, input).Return(testBooking(1, booking.StatusConfirmed), nil)

		rec := serve(newBookingServer(coord), postBooking(validBookingBody))

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp BookingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, int64(1), resp.ID)
		assert.Equal(t, "confirmed", resp.Status)
		assert.Equal(t, "2026-12-24", resp.Date)
		assert.Equal(t, 2, resp.Count)
		coord.AssertExpectations(t)
	})

	t.Run("座席不足はFAILEDの予約を含めて400", func(t *testing.T) {
		failed := testBooking(2, booking.StatusFailed)
		failed.FailureReason = booking.FailureCapacityExceeded
		coord := new(MockBookingCoordinator)
		coord.On("CreateBooking", mock.Anything, input).Return(failed, store.ErrCapacityExceeded)

		rec := serve(newBookingServer(coord), postBooking(validBookingBody))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var resp struct {
			Reason  string          `json:"reason"`
			Booking BookingResponse `json:"booking"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, api.ReasonCapacityExceeded, resp.Reason)
		assert.Equal(t, "failed", resp.Booking.Status)
		assert.Equal(t, "capacity_exceeded", resp.Booking.FailureReason)
	})

	t.Run("結果不明の場合は保留中の予約を含めて503", func(t *testing.T) {
		coord := new(MockBookingCoordinator)
		coord.On("CreateBooking", mock.Anything, input).Return(testBooking(3, booking.StatusPending), errors.New("connection refused"))

		rec := serve(newBookingServer(coord), postBooking(validBookingBody))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, api.ReasonLedgerUnavailable, resp.Reason)
		assert.NotNil(t, resp.Booking)
	})

	t.Run("人数が不正な場合は400", func(t *testing.T) {
		coord := new(MockBookingCoordinator)
		coord.On("CreateBooking", mock.Anything, mock.Anything).Return(nil, booking.ErrInvalidPartySize)

		rec := serve(newBookingServer(coord), postBooking(`{"storeId":"store-1","userId":"user-1","date":"2026-12-24","count":0}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, api.ReasonValidation, decodeError(t, rec).Reason)
	})

	t.Run("入力エラーはコーディネーターを呼ばない", func(t *testing.T) {
		bodies := map[string]string{
			"storeId なし": `{"userId":"user-1","date":"2026-12-24","count":1}`,
			"userId なし":  `{"storeId":"store-1","date":"2026-12-24","count":1}`,
			"日付形式が不正":     `{"storeId":"store-1","userId":"user-1","date":"24/12/2026","count":1}`,
			"JSONが不正":     `{"storeId":`,
		}
		for name, body := range bodies {
			t.Run(name, func(t *testing.T) {
				coord := new(MockBookingCoordinator)
				rec := serve(newBookingServer(coord), postBooking(body))

				assert.Equal(t, http.StatusBadRequest, rec.Code)
				coord.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
			})
		}
	})
}

func TestBookingHandler_Cancel(t *testing.T) {
	patch := func(id, userID string) *http.Request {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/bookings/"+id, nil)
		if userID != "" {
			req.Header.Set(UserIDHeader, userID)
		}
		return req
	}

	t.Run("キャンセルした予約を返す", func(t *testing.T) {
		coord := new(MockBookingCoordinator)
		coord.On("CancelBooking", mock.Anything, int64(1), "user-1").Return(testBooking(1, booking.StatusCancelled), nil)

		rec := serve(newBookingServer(coord), patch("1", "user-1"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"cancelled"`)
	})

	t.Run("ユーザーIDなしは401", func(t *testing.T) {
		rec := serve(newBookingServer(new(MockBookingCoordinator)), patch("1", ""))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("IDが数値でない場合は400", func(t *testing.T) {
		rec := serve(newBookingServer(new(MockBookingCoordinator)), patch("abc", "user-1"))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("エラーのマッピング", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantCode   int
			wantReason string
		}{
			{"存在しない", booking.ErrBookingNotFound, http.StatusNotFound, api.ReasonNotFound},
			{"他人の予約", booking.ErrForbidden, http.StatusForbidden, api.ReasonForbidden},
			{"キャンセル済み", booking.ErrAlreadyCancelled, http.StatusConflict, api.ReasonAlreadyCancelled},
			{"失敗した予約", booking.ErrInvalidState, http.StatusConflict, api.ReasonInvalidState},
			{"台帳と不整合", booking.ErrLedgerInconsistency, http.StatusInternalServerError, api.ReasonLedgerInconsistency},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				coord := new(MockBookingCoordinator)
				coord.On("CancelBooking", mock.Anything, int64(1), "user-1").Return(nil, tt.err)

				rec := serve(newBookingServer(coord), patch("1", "user-1"))

				assert.Equal(t, tt.wantCode, rec.Code)
				assert.Equal(t, tt.wantReason, decodeError(t, rec).Reason)
			})
		}
	})
}

func TestBookingHandler_GetByID(t *testing.T) {
	get := func(userID string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings/1", nil)
		req.Header.Set(UserIDHeader, userID)
		return req
	}

	t.Run("所有者は取得できる", func(t *testing.T) {
		coord := new(MockBookingCoordinator)
		coord.On("GetBooking", mock.Anything, int64(1)).Return(testBooking(1, booking.StatusConfirmed), nil)

		rec := serve(newBookingServer(coord), get("user-1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("他人の予約は403", func(t *testing.T) {
		coord := new(MockBookingCoordinator)
		coord.On("GetBooking", mock.Anything, int64(1)).Return(testBooking(1, booking.StatusConfirmed), nil)

		rec := serve(newBookingServer(coord), get("user-2"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestBookingHandler_List(t *testing.T) {
	t.Run("ユーザーの予約一覧を返す", func(t *testing.T) {
		coord := new(MockBookingCoordinator)
		coord.On("ListUserBookings", mock.Anything, "user-1", 5, 10).
			Return([]*booking.Booking{testBooking(1, booking.StatusConfirmed), testBooking(2, booking.StatusFailed)}, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings?limit=5&offset=10", nil)
		req.Header.Set(UserIDHeader, "user-1")
		rec := serve(newBookingServer(coord), req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []BookingResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Len(t, resp, 2)
	})

	t.Run("ユーザーIDなしは401", func(t *testing.T) {
		rec := serve(newBookingServer(new(MockBookingCoordinator)), httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
