package booking

import (
	"context"
	"time"
)

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成し、採番したIDを設定する
	Create(ctx context.Context, b *Booking) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id int64) (*Booking, error)

	// GetByUserID はユーザーIDから予約一覧を取得する
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*Booking, error)

	// UpdateStatus は現在の状態が prev の場合のみ更新する
	// 一致しない場合は ErrStatusConflict を返す
	UpdateStatus(ctx context.Context, b *Booking, prev Status) error

	// GetStalePending は olderThan より前に作成された PENDING の予約を取得する
	GetStalePending(ctx context.Context, olderThan time.Duration) ([]*Booking, error)

	// GetReleasePending は座席解放が未完了のキャンセル済み予約を取得する
	GetReleasePending(ctx context.Context, limit int) ([]*Booking, error)
}
