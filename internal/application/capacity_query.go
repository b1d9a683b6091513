package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
	redisinfra "github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/logger"
)

const (
	availabilityCacheTTL = 30 * time.Second
)

// CapacityQuery は空席数を照会する
// 結果は参考値であり、予約の成否は SeatLedger が判定する
type CapacityQuery struct {
	storeRepo store.Repository
	cache     AvailabilityCache
}

func NewCapacityQuery(sr store.Repository, cache AvailabilityCache) *CapacityQuery {
	return &CapacityQuery{storeRepo: sr, cache: cache}
}

// Available は total - in_use を返す
func (q *CapacityQuery) Available(ctx context.Context, storeID string) (int, error) {
	// キャッシュから取得を試みる
	if q.cache != nil {
		n, err := q.cache.GetAvailable(ctx, storeID)
		if err == nil {
			logger.Debug("キャッシュヒット", zap.String("store_id", storeID), zap.Int("available", n))
			return n, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	c, err := q.Capacity(ctx, storeID)
	if err != nil {
		return 0, err
	}

	if q.cache != nil {
		// 読み取り後に台帳が進んでいれば、より新しい version の値が優先される
		if err := q.cache.SetAvailable(ctx, storeID, c.Available, c.Version, availabilityCacheTTL); err != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(err))
		}
	}
	return c.Available, nil
}

// Capacity は座席数・使用中座席数・空席数をキャッシュを経由せずに返す
func (q *CapacityQuery) Capacity(ctx context.Context, storeID string) (*store.Capacity, error) {
	s, err := q.storeRepo.GetByID(ctx, storeID)
	if err != nil {
		return nil, err
	}
	occ, err := q.storeRepo.GetOccupancy(ctx, storeID)
	if errors.Is(err, store.ErrOccupancyNotFound) {
		occ = store.EmptyOccupancy(storeID)
	} else if err != nil {
		return nil, err
	}
	return &store.Capacity{
		StoreID:    storeID,
		TotalSeats: s.TotalSeats,
		InUse:      occ.InUse,
		Available:  occ.Available(s.TotalSeats),
		Version:    occ.Version,
	}, nil
}
