package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
)

const bookingColumns = `id, store_id, user_id, booking_date, party_size, status, failure_reason, release_pending, created_at, updated_at`

type bookingRow struct {
	ID             int64     `db:"id"`
	StoreID        string    `db:"store_id"`
	UserID         string    `db:"user_id"`
	BookingDate    time.Time `db:"booking_date"`
	PartySize      int       `db:"party_size"`
	Status         string    `db:"status"`
	FailureReason  string    `db:"failure_reason"`
	ReleasePending bool      `db:"release_pending"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *bookingRow) toEntity() *booking.Booking {
	return &booking.Booking{
		ID: r.ID, StoreID: r.StoreID, UserID: r.UserID,
		BookingDate: r.BookingDate, PartySize: r.PartySize,
		Status: booking.Status(r.Status), FailureReason: r.FailureReason,
		ReleasePending: r.ReleasePending,
		CreatedAt:      r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func toBookings(rows []bookingRow) []*booking.Booking {
	bookings := make([]*booking.Booking, len(rows))
	for i := range rows {
		bookings[i] = rows[i].toEntity()
	}
	return bookings
}

// BookingRepository は予約の PostgreSQL 実装
type BookingRepository struct{ db *sqlx.DB }

func NewBookingRepository(db *sqlx.DB) *BookingRepository { return &BookingRepository{db: db} }

func (r *BookingRepository) Create(ctx context.Context, b *booking.Booking) error {
	query := `INSERT INTO bookings (store_id, user_id, booking_date, party_size, status, failure_reason, release_pending, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		b.StoreID, b.UserID, b.BookingDate, b.PartySize, string(b.Status),
		b.FailureReason, b.ReleasePending, b.CreatedAt, b.UpdatedAt,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, booking.ErrBookingNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *BookingRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("予約一覧の取得に失敗: %w", err)
	}
	return toBookings(rows), nil
}

// UpdateStatus は status が prev のままの場合のみ更新する
func (r *BookingRepository) UpdateStatus(ctx context.Context, b *booking.Booking, prev booking.Status) error {
	query := `UPDATE bookings SET status = $1, failure_reason = $2, release_pending = $3, updated_at = $4 WHERE id = $5 AND status = $6`
	result, err := r.db.ExecContext(ctx, query,
		string(b.Status), b.FailureReason, b.ReleasePending, b.UpdatedAt, b.ID, string(prev))
	if err != nil {
		return fmt.Errorf("予約状態の更新に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, b.ID); err != nil {
		return fmt.Errorf("予約の存在確認に失敗: %w", err)
	}
	if !exists {
		return booking.ErrBookingNotFound
	}
	return booking.ErrStatusConflict
}

func (r *BookingRepository) GetStalePending(ctx context.Context, olderThan time.Duration) ([]*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'pending' AND created_at < $1 ORDER BY id`
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, time.Now().Add(-olderThan)); err != nil {
		return nil, fmt.Errorf("保留中予約の取得に失敗: %w", err)
	}
	return toBookings(rows), nil
}

func (r *BookingRepository) GetReleasePending(ctx context.Context, limit int) ([]*booking.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE status = 'cancelled' AND release_pending ORDER BY id LIMIT $1`
	var rows []bookingRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("解放待ち予約の取得に失敗: %w", err)
	}
	return toBookings(rows), nil
}

var _ booking.Repository = (*BookingRepository)(nil)
