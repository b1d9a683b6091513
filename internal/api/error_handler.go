package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/logger"
)

// エラーレスポンスの reason
const (
	ReasonCapacityExceeded    = "capacity_exceeded"
	ReasonNegativeOccupancy   = "negative_occupancy"
	ReasonConcurrentConflict  = "concurrent_conflict"
	ReasonValidation          = "validation"
	ReasonStoreNotFound       = "store_not_found"
	ReasonStoreAlreadyExists  = "store_already_exists"
	ReasonNotFound            = "not_found"
	ReasonAdjustmentNotFound  = "adjustment_not_found"
	ReasonUnauthorized        = "unauthorized"
	ReasonForbidden           = "forbidden"
	ReasonInvalidState        = "invalid_state"
	ReasonAlreadyCancelled    = "already_cancelled"
	ReasonLedgerInconsistency = "ledger_inconsistency"
	ReasonLedgerUnavailable   = "ledger_unavailable"
	ReasonInternal            = "internal"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Reason  string `json:"reason"`
	Booking any    `json:"booking,omitempty"`
}

// BookingError は失敗・保留した予約をエラーレスポンスに含めるためのエラー
type BookingError struct {
	Err     error
	Booking any
}

func (e *BookingError) Error() string { return e.Err.Error() }
func (e *BookingError) Unwrap() error { return e.Err }

// WithBooking は err に予約を添える
func WithBooking(err error, b any) error {
	return &BookingError{Err: err, Booking: b}
}

// ErrUnknownOutcome は座席台帳の結果が不明で予約が保留されたことを表す
var ErrUnknownOutcome = errors.New("座席確保の結果が不明なため予約を保留しました")

// ドメインエラーとステータス・reason の対応（先頭から順に判定する）
var errorMappings = []struct {
	err    error
	status int
	reason string
}{
	{store.ErrCapacityExceeded, http.StatusBadRequest, ReasonCapacityExceeded},
	{store.ErrNegativeOccupancy, http.StatusBadRequest, ReasonNegativeOccupancy},
	{store.ErrConcurrentAdjustmentConflict, http.StatusConflict, ReasonConcurrentConflict},
	{store.ErrStoreNotFound, http.StatusBadRequest, ReasonStoreNotFound},
	{store.ErrStoreAlreadyExists, http.StatusConflict, ReasonStoreAlreadyExists},
	{store.ErrInvalidDelta, http.StatusBadRequest, ReasonValidation},
	{store.ErrInvalidTotalSeats, http.StatusBadRequest, ReasonValidation},
	{store.ErrStoreIDRequired, http.StatusBadRequest, ReasonValidation},
	{store.ErrAdjustmentNotFound, http.StatusNotFound, ReasonAdjustmentNotFound},
	{booking.ErrStoreIDRequired, http.StatusBadRequest, ReasonValidation},
	{booking.ErrUserIDRequired, http.StatusBadRequest, ReasonValidation},
	{booking.ErrBookingDateRequired, http.StatusBadRequest, ReasonValidation},
	{booking.ErrInvalidPartySize, http.StatusBadRequest, ReasonValidation},
	{booking.ErrBookingNotFound, http.StatusNotFound, ReasonNotFound},
	{booking.ErrForbidden, http.StatusForbidden, ReasonForbidden},
	{booking.ErrAlreadyCancelled, http.StatusConflict, ReasonAlreadyCancelled},
	{booking.ErrInvalidState, http.StatusConflict, ReasonInvalidState},
	{booking.ErrStatusConflict, http.StatusConflict, ReasonInvalidState},
	{booking.ErrLedgerInconsistency, http.StatusInternalServerError, ReasonLedgerInconsistency},
	{ErrUnknownOutcome, http.StatusServiceUnavailable, ReasonLedgerUnavailable},
}

// MapError はエラーを HTTP ステータスと reason に変換する
func MapError(err error) (status int, reason string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, reasonForStatus(he.Code)
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.reason
		}
	}
	return http.StatusInternalServerError, ReasonInternal
}

func reasonForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return ReasonValidation
	case http.StatusUnauthorized:
		return ReasonUnauthorized
	case http.StatusForbidden:
		return ReasonForbidden
	case http.StatusNotFound:
		return ReasonNotFound
	case http.StatusConflict:
		return ReasonInvalidState
	default:
		if status >= 500 {
			return ReasonInternal
		}
		return ""
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, reason := MapError(err)
	message := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else if code == http.StatusInternalServerError && reason == ReasonInternal {
		message = "内部サーバーエラー"
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Ctx(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("reason", reason),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	resp := ErrorResponse{Error: message, Code: code, Reason: reason}
	var be *BookingError
	if errors.As(err, &be) {
		resp.Booking = be.Booking
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, resp)
	}
	if err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
