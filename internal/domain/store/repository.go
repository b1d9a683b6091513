package store

import (
	"context"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/transaction"
)

// Repository は店舗と使用中座席数のリポジトリのインターフェース
type Repository interface {
	// Create は新しい店舗を作成する
	Create(ctx context.Context, s *Store) error

	// GetByID はIDから店舗を取得する
	GetByID(ctx context.Context, id string) (*Store, error)

	// GetOccupancy は使用中座席数を取得する（未作成なら ErrOccupancyNotFound）
	GetOccupancy(ctx context.Context, storeID string) (*Occupancy, error)

	// ApplyDelta は使用中座席数への加算と version の更新を1回の条件付き書き込みで行う（トランザクション必須）
	// 加算後の値が 0..totalSeats を外れる場合は書き込まずに ErrCapacityExceeded か ErrNegativeOccupancy を返す
	// 未作成の場合は 0 から加算する。書き込みが他のトランザクションと衝突した場合は ErrVersionConflict を返す
	ApplyDelta(ctx context.Context, tx transaction.Tx, storeID string, delta, totalSeats int) (*Occupancy, error)

	// RecordAdjustment は冪等キー付きの調整記録を追加する（トランザクション必須）
	// キーが既に存在する場合は ErrAdjustmentAlreadyApplied を返す
	RecordAdjustment(ctx context.Context, tx transaction.Tx, adj *Adjustment) error

	// GetAdjustment はキーから調整記録を取得する
	GetAdjustment(ctx context.Context, key string) (*Adjustment, error)
}
