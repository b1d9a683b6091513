package booking

import (
	"fmt"
	"time"
)

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// 失敗理由
const (
	FailureCapacityExceeded = "capacity_exceeded"
	FailureConflict         = "concurrent_conflict"
	FailureStoreNotFound    = "store_not_found"
	FailureInvalidRequest   = "invalid_request"
	FailureAbandoned        = "abandoned"
)

// Booking は予約エンティティを表す
// キャンセルは状態遷移で表現し、行は削除しない
type Booking struct {
	ID             int64
	StoreID        string
	UserID         string
	BookingDate    time.Time
	PartySize      int
	Status         Status
	FailureReason  string
	ReleasePending bool // キャンセル済みだが座席の解放が未完了
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewBooking は PENDING 状態の予約を作成する
func NewBooking(storeID, userID string, bookingDate time.Time, partySize int) *Booking {
	now := time.Now()
	return &Booking{
		StoreID:     storeID,
		UserID:      userID,
		BookingDate: bookingDate,
		PartySize:   partySize,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate は予約の検証を行う
func (b *Booking) Validate() error {
	if b.StoreID == "" {
		return ErrStoreIDRequired
	}
	if b.UserID == "" {
		return ErrUserIDRequired
	}
	if b.BookingDate.IsZero() {
		return ErrBookingDateRequired
	}
	if b.PartySize <= 0 {
		return ErrInvalidPartySize
	}
	return nil
}

// IsPending は予約が調整中かを返す
func (b *Booking) IsPending() bool {
	return b.Status == StatusPending
}

// IsOwnedBy は予約の所有者かを返す
func (b *Booking) IsOwnedBy(userID string) bool {
	return b.UserID == userID
}

// Confirm は座席確保に成功した予約を確定する
func (b *Booking) Confirm() error {
	if b.Status != StatusPending {
		return fmt.Errorf("%w: %s から confirmed へは遷移できません", ErrInvalidState, b.Status)
	}
	b.Status = StatusConfirmed
	b.FailureReason = ""
	b.UpdatedAt = time.Now()
	return nil
}

// Fail は座席確保に失敗した予約を失敗状態にする
func (b *Booking) Fail(reason string) error {
	if b.Status != StatusPending {
		return fmt.Errorf("%w: %s から failed へは遷移できません", ErrInvalidState, b.Status)
	}
	b.Status = StatusFailed
	b.FailureReason = reason
	b.UpdatedAt = time.Now()
	return nil
}

// CheckCancellable はキャンセル可能かを判定する
// CONFIRMED 以外はキャンセルできない
func (b *Booking) CheckCancellable() error {
	switch b.Status {
	case StatusConfirmed:
		return nil
	case StatusCancelled:
		return ErrAlreadyCancelled
	default:
		return fmt.Errorf("%w: %s の予約はキャンセルできません", ErrInvalidState, b.Status)
	}
}

// Cancel は予約をキャンセルする
// releasePending が true の場合、座席の解放は後続の再試行に委ねる
func (b *Booking) Cancel(releasePending bool) error {
	if err := b.CheckCancellable(); err != nil {
		return err
	}
	b.Status = StatusCancelled
	b.ReleasePending = releasePending
	b.UpdatedAt = time.Now()
	return nil
}

// MarkReleased は座席の解放完了を記録する
func (b *Booking) MarkReleased() {
	b.ReleasePending = false
	b.UpdatedAt = time.Now()
}

// ReserveKey は座席確保の冪等キーを返す
func (b *Booking) ReserveKey() string {
	return fmt.Sprintf("booking:%d:reserve", b.ID)
}

// ReleaseKey は座席解放の冪等キーを返す
func (b *Booking) ReleaseKey() string {
	return fmt.Sprintf("booking:%d:release", b.ID)
}
