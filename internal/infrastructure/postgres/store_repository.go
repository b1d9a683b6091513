package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/transaction"
)

type storeRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	TotalSeats int       `db:"total_seats"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r *storeRow) toEntity() *store.Store {
	return &store.Store{
		ID: r.ID, Name: r.Name, TotalSeats: r.TotalSeats,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

type occupancyRow struct {
	StoreID   string    `db:"store_id"`
	InUse     int       `db:"in_use"`
	Version   int64     `db:"version"`
	UpdatedAt time.Time `db:"updated_at"`
}

type adjustmentRow struct {
	Key          string    `db:"key"`
	StoreID      string    `db:"store_id"`
	Delta        int       `db:"delta"`
	InUseAfter   int       `db:"in_use_after"`
	VersionAfter int64     `db:"version_after"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r *adjustmentRow) toEntity() *store.Adjustment {
	return &store.Adjustment{
		Key: r.Key, StoreID: r.StoreID, Delta: r.Delta,
		InUseAfter: r.InUseAfter, VersionAfter: r.VersionAfter, CreatedAt: r.CreatedAt,
	}
}

// StoreRepository は店舗・使用中座席数・調整記録の PostgreSQL 実装
type StoreRepository struct{ db *sqlx.DB }

func NewStoreRepository(db *sqlx.DB) *StoreRepository { return &StoreRepository{db: db} }

func (r *StoreRepository) Create(ctx context.Context, s *store.Store) error {
	query := `INSERT INTO stores (id, name, total_seats, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.Name, s.TotalSeats, s.CreatedAt, s.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return store.ErrStoreAlreadyExists
		}
		return fmt.Errorf("店舗作成に失敗: %w", err)
	}
	return nil
}

func (r *StoreRepository) GetByID(ctx context.Context, id string) (*store.Store, error) {
	query := `SELECT id, name, total_seats, created_at, updated_at FROM stores WHERE id = $1`
	var row storeRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrStoreNotFound
		}
		return nil, fmt.Errorf("店舗取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *StoreRepository) GetOccupancy(ctx context.Context, storeID string) (*store.Occupancy, error) {
	query := `SELECT store_id, in_use, version, updated_at FROM seat_occupancy WHERE store_id = $1`
	var row occupancyRow
	if err := r.db.GetContext(ctx, &row, query, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrOccupancyNotFound
		}
		return nil, fmt.Errorf("使用中座席数の取得に失敗: %w", err)
	}
	return &store.Occupancy{StoreID: row.StoreID, InUse: row.InUse, Version: row.Version, UpdatedAt: row.UpdatedAt}, nil
}

const applyDeltaQuery = `
	UPDATE seat_occupancy
	SET in_use = in_use + $2, version = version + 1, updated_at = NOW()
	WHERE store_id = $1 AND in_use + $2 BETWEEN 0 AND $3
	RETURNING store_id, in_use, version, updated_at`

// ApplyDelta は上限・下限の検証と加算を1文の UPDATE で行う
// 行が無ければ version 0 で作成してから再度 UPDATE する
func (r *StoreRepository) ApplyDelta(ctx context.Context, tx transaction.Tx, storeID string, delta, totalSeats int) (*store.Occupancy, error) {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return nil, err
	}

	var row occupancyRow
	err = sqlTx.GetContext(ctx, &row, applyDeltaQuery, storeID, delta, totalSeats)
	if errors.Is(err, sql.ErrNoRows) {
		// 並行する作成はどちらか一方の INSERT だけが行を作る
		insert := `INSERT INTO seat_occupancy (store_id, in_use, version, updated_at) VALUES ($1, 0, 0, NOW()) ON CONFLICT (store_id) DO NOTHING`
		if _, err := sqlTx.ExecContext(ctx, insert, storeID); err != nil {
			return nil, occupancyWriteError(err)
		}
		err = sqlTx.GetContext(ctx, &row, applyDeltaQuery, storeID, delta, totalSeats)
	}
	if errors.Is(err, sql.ErrNoRows) {
		if delta > 0 {
			return nil, store.ErrCapacityExceeded
		}
		return nil, store.ErrNegativeOccupancy
	}
	if err != nil {
		return nil, occupancyWriteError(err)
	}
	return &store.Occupancy{StoreID: row.StoreID, InUse: row.InUse, Version: row.Version, UpdatedAt: row.UpdatedAt}, nil
}

func occupancyWriteError(err error) error {
	if isWriteConflict(err) {
		return fmt.Errorf("%w: %v", store.ErrVersionConflict, err)
	}
	return fmt.Errorf("使用中座席数の更新に失敗: %w", err)
}

func (r *StoreRepository) RecordAdjustment(ctx context.Context, tx transaction.Tx, adj *store.Adjustment) error {
	sqlTx, err := UnwrapTx(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO seat_adjustments (key, store_id, delta, in_use_after, version_after, created_at) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (key) DO NOTHING`
	result, err := sqlTx.ExecContext(ctx, query, adj.Key, adj.StoreID, adj.Delta, adj.InUseAfter, adj.VersionAfter, adj.CreatedAt)
	if err != nil {
		return fmt.Errorf("調整記録の追加に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if rows == 0 {
		return store.ErrAdjustmentAlreadyApplied
	}
	return nil
}

func (r *StoreRepository) GetAdjustment(ctx context.Context, key string) (*store.Adjustment, error) {
	query := `SELECT key, store_id, delta, in_use_after, version_after, created_at FROM seat_adjustments WHERE key = $1`
	var row adjustmentRow
	if err := r.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAdjustmentNotFound
		}
		return nil, fmt.Errorf("調整記録の取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

var _ store.Repository = (*StoreRepository)(nil)
