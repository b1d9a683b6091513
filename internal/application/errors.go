package application

import (
	"errors"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
)

// IsRetryable は呼び出し側が再試行してよいエラーかを返す
func IsRetryable(err error) bool {
	return errors.Is(err, store.ErrConcurrentAdjustmentConflict)
}

// isInvariantViolation は座席数の上限・下限違反かを返す
func isInvariantViolation(err error) bool {
	return errors.Is(err, store.ErrCapacityExceeded) || errors.Is(err, store.ErrNegativeOccupancy)
}

// isLedgerRejection は座席数が変更されなかったことが確定しているエラーかを返す
// これ以外のエラー（通信エラーなど）は適用されたかどうかが不明
func isLedgerRejection(err error) bool {
	return isInvariantViolation(err) ||
		IsRetryable(err) ||
		errors.Is(err, store.ErrStoreNotFound) ||
		errors.Is(err, store.ErrInvalidDelta)
}

// failureReason は座席確保の失敗理由を返す
func failureReason(err error) string {
	switch {
	case errors.Is(err, store.ErrCapacityExceeded):
		return booking.FailureCapacityExceeded
	case IsRetryable(err):
		return booking.FailureConflict
	case errors.Is(err, store.ErrStoreNotFound):
		return booking.FailureStoreNotFound
	default:
		return booking.FailureInvalidRequest
	}
}

// adjustmentResult はメトリクスのラベルに使う結果名を返す
func adjustmentResult(err error) string {
	if err == nil {
		return "success"
	}
	switch {
	case errors.Is(err, store.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, store.ErrNegativeOccupancy):
		return "negative_occupancy"
	case IsRetryable(err):
		return "conflict_exhausted"
	case errors.Is(err, store.ErrStoreNotFound), errors.Is(err, store.ErrInvalidDelta):
		return "invalid"
	default:
		return "error"
	}
}
