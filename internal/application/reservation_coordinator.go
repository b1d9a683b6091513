package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/metrics"
)

// ReservationCoordinator は予約の状態遷移と座席台帳の更新を順序付ける
// 両者は同一トランザクションではないため、キー付き調整とリコンサイルで整合させる
type ReservationCoordinator struct {
	bookingRepo booking.Repository
	ledger      SeatAdjuster
	publisher   booking.EventPublisher
}

func NewReservationCoordinator(br booking.Repository, ledger SeatAdjuster, publisher booking.EventPublisher) *ReservationCoordinator {
	return &ReservationCoordinator{bookingRepo: br, ledger: ledger, publisher: publisher}
}

type CreateBookingInput struct {
	StoreID     string
	UserID      string
	BookingDate time.Time
	PartySize   int
}

// CreateBooking は予約を作成し、座席を確保する
// 座席を確保できなかった場合は FAILED の予約とエラーを両方返す
// 座席台帳の結果が不明な場合は PENDING のまま返し、リコンサイラーが解決する
func (c *ReservationCoordinator) CreateBooking(ctx context.Context, input CreateBookingInput) (*booking.Booking, error) {
	b := booking.NewBooking(input.StoreID, input.UserID, input.BookingDate, input.PartySize)
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := c.bookingRepo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("予約作成に失敗しました: %w", err)
	}

	log := logger.With(zap.Int64("booking_id", b.ID), zap.String("store_id", b.StoreID))

	if _, err := c.ledger.AdjustOnce(ctx, b.StoreID, b.PartySize, b.ReserveKey()); err != nil {
		if !isLedgerRejection(err) {
			log.Warn("座席確保の結果が不明なため予約を保留します", zap.Error(err))
			metrics.Get().ObserveBooking("pending")
			return b, fmt.Errorf("座席確保の結果が不明です: %w", err)
		}
		return c.fail(ctx, b, err)
	}

	if err := b.Confirm(); err != nil {
		return nil, err
	}
	if err := c.bookingRepo.UpdateStatus(ctx, b, booking.StatusPending); err != nil {
		if errors.Is(err, booking.ErrStatusConflict) {
			return c.resolveLostConfirm(ctx, b)
		}
		// 確保キーが残っているためリコンサイラーが確定させる
		log.Error("予約の確定に失敗しました", zap.Error(err))
		metrics.Get().ObserveBooking("error")
		return nil, fmt.Errorf("予約の確定に失敗しました: %w", err)
	}

	metrics.Get().ObserveBooking("confirmed")
	c.publish(ctx, booking.EventConfirmed, b)
	return b, nil
}

// fail は座席確保を拒否された予約を FAILED にする
func (c *ReservationCoordinator) fail(ctx context.Context, b *booking.Booking, cause error) (*booking.Booking, error) {
	if err := b.Fail(failureReason(cause)); err != nil {
		return nil, err
	}
	if err := c.bookingRepo.UpdateStatus(ctx, b, booking.StatusPending); err != nil {
		if errors.Is(err, booking.ErrStatusConflict) {
			// 既にリコンサイラーが FAILED にしている
			if current, gerr := c.bookingRepo.GetByID(ctx, b.ID); gerr == nil {
				return current, cause
			}
		} else {
			logger.Ctx(ctx).Error("予約の失敗状態の保存に失敗しました", zap.Int64("booking_id", b.ID), zap.Error(err))
		}
		return b, cause
	}

	metrics.Get().ObserveBooking("failed")
	c.publish(ctx, booking.EventFailed, b)
	return b, cause
}

// resolveLostConfirm は確定の書き込みがリコンサイラーに先を越された場合の処理
func (c *ReservationCoordinator) resolveLostConfirm(ctx context.Context, b *booking.Booking) (*booking.Booking, error) {
	current, err := c.bookingRepo.GetByID(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if current.Status == booking.StatusConfirmed {
		return current, nil
	}

	// FAILED にされた予約の座席を戻す
	if _, err := c.ledger.AdjustOnce(ctx, b.StoreID, -b.PartySize, b.ReleaseKey()); err != nil {
		logger.Error("放棄された予約の座席解放に失敗しました",
			zap.Int64("booking_id", b.ID),
			zap.String("store_id", b.StoreID),
			zap.Int("party_size", b.PartySize),
			zap.Error(err),
		)
	}
	return current, booking.ErrStatusConflict
}

// CancelBooking は予約をキャンセルし、座席を解放する
func (c *ReservationCoordinator) CancelBooking(ctx context.Context, id int64, userID string) (*booking.Booking, error) {
	b, err := c.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsOwnedBy(userID) {
		return nil, booking.ErrForbidden
	}
	if err := b.CheckCancellable(); err != nil {
		return nil, err
	}

	releasePending := false
	if _, err := c.ledger.AdjustOnce(ctx, b.StoreID, -b.PartySize, b.ReleaseKey()); err != nil {
		if isLedgerRejection(err) && !IsRetryable(err) {
			logger.Ctx(ctx).Error("座席数と予約の整合性が崩れています",
				zap.Int64("booking_id", b.ID),
				zap.String("store_id", b.StoreID),
				zap.Int("party_size", b.PartySize),
				zap.Error(err),
			)
			metrics.Get().ObserveBooking("inconsistent")
			return nil, fmt.Errorf("%w: %v", booking.ErrLedgerInconsistency, err)
		}
		logger.Ctx(ctx).Warn("座席の解放を後で再試行します", zap.Int64("booking_id", b.ID), zap.Error(err))
		releasePending = true
	}

	if err := b.Cancel(releasePending); err != nil {
		return nil, err
	}
	if err := c.bookingRepo.UpdateStatus(ctx, b, booking.StatusConfirmed); err != nil {
		if errors.Is(err, booking.ErrStatusConflict) {
			// 並行したキャンセルが先に完了した。解放はキーにより一度しか適用されない
			return nil, booking.ErrAlreadyCancelled
		}
		return nil, fmt.Errorf("予約のキャンセルに失敗しました: %w", err)
	}

	if releasePending {
		metrics.Get().ObserveBooking("release_pending")
	} else {
		metrics.Get().ObserveBooking("cancelled")
	}
	c.publish(ctx, booking.EventCancelled, b)
	return b, nil
}

func (c *ReservationCoordinator) GetBooking(ctx context.Context, id int64) (*booking.Booking, error) {
	return c.bookingRepo.GetByID(ctx, id)
}

func (c *ReservationCoordinator) ListUserBookings(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return c.bookingRepo.GetByUserID(ctx, userID, limit, offset)
}

// ReconcileReport はリコンサイルの結果
type ReconcileReport struct {
	Confirmed int
	Failed    int
	Released  int
	Errors    int
}

// ReconcileStalePending は olderThan より古い PENDING の予約を解決する
// 確保キーが記録済みなら確定し、なければ放棄として FAILED にする
func (c *ReservationCoordinator) ReconcileStalePending(ctx context.Context, olderThan time.Duration) (ReconcileReport, error) {
	var report ReconcileReport

	stale, err := c.bookingRepo.GetStalePending(ctx, olderThan)
	if err != nil {
		return report, fmt.Errorf("保留中の予約の取得に失敗: %w", err)
	}

	for _, b := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		_, err := c.ledger.FindAdjustment(ctx, b.ReserveKey())
		switch {
		case err == nil:
			_ = b.Confirm()
			if err := c.bookingRepo.UpdateStatus(ctx, b, booking.StatusPending); err != nil {
				c.reconcileError(&report, b, "confirm", err)
				continue
			}
			report.Confirmed++
			metrics.Get().ObserveReconcile("confirmed")
			c.publish(ctx, booking.EventConfirmed, b)
		case errors.Is(err, store.ErrAdjustmentNotFound):
			_ = b.Fail(booking.FailureAbandoned)
			if err := c.bookingRepo.UpdateStatus(ctx, b, booking.StatusPending); err != nil {
				c.reconcileError(&report, b, "fail", err)
				continue
			}
			report.Failed++
			metrics.Get().ObserveReconcile("failed")
			c.publish(ctx, booking.EventFailed, b)
		default:
			c.reconcileError(&report, b, "lookup", err)
		}
	}

	if report.Confirmed+report.Failed > 0 {
		logger.Info("保留中の予約を解決しました",
			zap.Int("confirmed", report.Confirmed),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// RetryPendingReleases は解放が保留されたキャンセル済み予約の座席を解放する
func (c *ReservationCoordinator) RetryPendingReleases(ctx context.Context, limit int) (ReconcileReport, error) {
	var report ReconcileReport

	pending, err := c.bookingRepo.GetReleasePending(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("解放保留の予約の取得に失敗: %w", err)
	}

	for _, b := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, err := c.ledger.AdjustOnce(ctx, b.StoreID, -b.PartySize, b.ReleaseKey()); err != nil {
			if isLedgerRejection(err) && !IsRetryable(err) {
				logger.Error("座席数と予約の整合性が崩れています",
					zap.Int64("booking_id", b.ID),
					zap.String("store_id", b.StoreID),
					zap.Error(err),
				)
			}
			c.reconcileError(&report, b, "release", err)
			continue
		}
		b.MarkReleased()
		if err := c.bookingRepo.UpdateStatus(ctx, b, booking.StatusCancelled); err != nil {
			c.reconcileError(&report, b, "mark_released", err)
			continue
		}
		report.Released++
		metrics.Get().ObserveReconcile("released")
	}

	if report.Released > 0 {
		logger.Info("保留していた座席を解放しました", zap.Int("released", report.Released))
	}
	return report, nil
}

func (c *ReservationCoordinator) reconcileError(report *ReconcileReport, b *booking.Booking, step string, err error) {
	report.Errors++
	metrics.Get().ObserveReconcile("error")
	logger.Warn("予約のリコンサイルに失敗しました",
		zap.Int64("booking_id", b.ID),
		zap.String("step", step),
		zap.Error(err),
	)
}

func (c *ReservationCoordinator) publish(ctx context.Context, t booking.EventType, b *booking.Booking) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, booking.NewEvent(t, b)); err != nil {
		logger.Ctx(ctx).Warn("予約イベントの送信に失敗しました",
			zap.String("type", string(t)),
			zap.Int64("booking_id", b.ID),
			zap.Error(err),
		)
	}
}
