package booking

import (
	"context"
	"time"
)

// EventType は予約ライフサイクルイベントの種類
type EventType string

const (
	EventConfirmed EventType = "booking.confirmed"
	EventFailed    EventType = "booking.failed"
	EventCancelled EventType = "booking.cancelled"
)

// Event は予約の終端状態への遷移を通知するイベント
type Event struct {
	Type          EventType `json:"type"`
	BookingID     int64     `json:"booking_id"`
	StoreID       string    `json:"store_id"`
	UserID        string    `json:"user_id"`
	PartySize     int       `json:"party_size"`
	BookingDate   string    `json:"booking_date"`
	Status        string    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEvent は予約の現在の状態からイベントを作成する
func NewEvent(t EventType, b *Booking) Event {
	return Event{
		Type:          t,
		BookingID:     b.ID,
		StoreID:       b.StoreID,
		UserID:        b.UserID,
		PartySize:     b.PartySize,
		BookingDate:   b.BookingDate.Format("2006-01-02"),
		Status:        string(b.Status),
		FailureReason: b.FailureReason,
		OccurredAt:    b.UpdatedAt,
	}
}

// EventPublisher は予約イベントの送信先
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
