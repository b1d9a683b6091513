package application

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/observability"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryBackoff = 5 * time.Millisecond
)

// AvailabilityCache は空席数キャッシュのインターフェース
// SetAvailable は保存済みの値より version が古い場合は書き込まない
type AvailabilityCache interface {
	GetAvailable(ctx context.Context, storeID string) (int, error)
	SetAvailable(ctx context.Context, storeID string, available int, version int64, ttl time.Duration) error
	Invalidate(ctx context.Context, storeID string) error
}

// AdjustResult は座席数調整の結果
type AdjustResult struct {
	StoreID   string `json:"store_id"`
	Delta     int    `json:"delta"`
	InUse     int    `json:"in_use"`
	Available int    `json:"available"`
	Version   int64  `json:"version"`
	Replayed  bool   `json:"replayed"` // 同じキーで適用済みだった
}

// SeatAdjuster は予約側から見た座席台帳の操作
// 同一プロセスの SeatLedger と HTTP クライアントの両方が実装する
type SeatAdjuster interface {
	AdjustOnce(ctx context.Context, storeID string, delta int, key string) (*AdjustResult, error)
	FindAdjustment(ctx context.Context, key string) (*store.Adjustment, error)
}

// SeatLedger は店舗ごとの使用中座席数を条件付きの単一更新で変更する
// 上限・下限の検証は書き込みと同じ文で行い、再試行はデータベースが書き込みを中断した場合に限る
type SeatLedger struct {
	storeRepo   store.Repository
	txManager   transaction.Manager
	cache       AvailabilityCache
	maxAttempts int
	backoff     time.Duration
	tracer      trace.Tracer
}

// LedgerOption は SeatLedger のオプション
type LedgerOption func(*SeatLedger)

// WithAvailabilityCache は調整成功時に新しい空席数を書き込むキャッシュを設定する
func WithAvailabilityCache(c AvailabilityCache) LedgerOption {
	return func(l *SeatLedger) { l.cache = c }
}

// WithRetryBackoff は競合時の初回待機時間を設定する（0 で待機なし）
func WithRetryBackoff(d time.Duration) LedgerOption {
	return func(l *SeatLedger) { l.backoff = d }
}

// WithMaxAttempts は最大試行回数を設定する
func WithMaxAttempts(n int) LedgerOption {
	return func(l *SeatLedger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func NewSeatLedger(sr store.Repository, tm transaction.Manager, opts ...LedgerOption) *SeatLedger {
	l := &SeatLedger{
		storeRepo:   sr,
		txManager:   tm,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultRetryBackoff,
		tracer:      observability.Tracer(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Adjust は使用中座席数に delta を加算し、新しい使用中座席数を返す
func (l *SeatLedger) Adjust(ctx context.Context, storeID string, delta int) (int, error) {
	res, err := l.AdjustOnce(ctx, storeID, delta, "")
	if err != nil {
		return 0, err
	}
	return res.InUse, nil
}

// Increment は count 席を使用中にし、調整結果を返す
func (l *SeatLedger) Increment(ctx context.Context, storeID string, count int, key string) (*AdjustResult, error) {
	if count <= 0 {
		return nil, store.ErrInvalidDelta
	}
	return l.AdjustOnce(ctx, storeID, count, key)
}

// Decrement は count 席を解放し、調整結果を返す
func (l *SeatLedger) Decrement(ctx context.Context, storeID string, count int, key string) (*AdjustResult, error) {
	if count <= 0 {
		return nil, store.ErrInvalidDelta
	}
	return l.AdjustOnce(ctx, storeID, -count, key)
}

// AdjustOnce は key 付きで座席数を調整する
// 同じ key が適用済みの場合はカウンタに触れず、記録済みの結果を返す
// key が空の場合は調整記録を残さない
func (l *SeatLedger) AdjustOnce(ctx context.Context, storeID string, delta int, key string) (*AdjustResult, error) {
	ctx, span := l.tracer.Start(ctx, "SeatLedger.Adjust", trace.WithAttributes(
		attribute.String("store.id", storeID),
		attribute.Int("seat.delta", delta),
		attribute.String("adjustment.key", key),
	))
	defer span.End()

	res, attempts, err := l.adjust(ctx, storeID, delta, key)
	span.SetAttributes(attribute.Int("ledger.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.Get().ObserveAdjustment(delta, adjustmentResult(err))
		return nil, err
	}
	if res.Replayed {
		metrics.Get().ObserveAdjustment(delta, "replayed")
		return res, nil
	}

	metrics.Get().ObserveAdjustment(delta, "success")
	l.refreshCache(ctx, res)
	logger.Debug("座席数を更新しました",
		zap.String("store_id", storeID),
		zap.Int("delta", delta),
		zap.Int("in_use", res.InUse),
		zap.Int64("version", res.Version),
		zap.Int("attempts", attempts),
	)
	return res, nil
}

func (l *SeatLedger) adjust(ctx context.Context, storeID string, delta int, key string) (*AdjustResult, int, error) {
	if delta == 0 {
		return nil, 0, store.ErrInvalidDelta
	}

	s, err := l.storeRepo.GetByID(ctx, storeID)
	if err != nil {
		return nil, 0, err
	}

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		if key != "" {
			res, err := l.replay(ctx, s, key)
			if err == nil {
				return res, attempt - 1, nil
			}
			if !errors.Is(err, store.ErrAdjustmentNotFound) {
				return nil, attempt - 1, err
			}
		}

		res, err := l.tryAdjust(ctx, s, delta, key)
		if err == nil {
			return res, attempt, nil
		}

		switch {
		case errors.Is(err, store.ErrVersionConflict):
			metrics.Get().ObserveCASConflict()
			if attempt < l.maxAttempts {
				if err := l.wait(ctx, attempt); err != nil {
					return nil, attempt, err
				}
			}
		case errors.Is(err, store.ErrAdjustmentAlreadyApplied):
			// 同じキーの調整が並行して先に適用された
			res, err := l.replay(ctx, s, key)
			return res, attempt, err
		case key != "" && (errors.Is(err, store.ErrCapacityExceeded) || errors.Is(err, store.ErrNegativeOccupancy)):
			// 同じキーの調整が直前にコミットされていた可能性がある
			// 記録と座席数は同時にコミットされるため、記録があれば適用済み
			if res, rerr := l.replay(ctx, s, key); rerr == nil {
				return res, attempt, nil
			}
			return nil, attempt, err
		default:
			return nil, attempt, err
		}
	}

	logger.Warn("座席数の書き込みが競合により上限回数に達しました",
		zap.String("store_id", storeID),
		zap.Int("delta", delta),
		zap.Int("attempts", l.maxAttempts),
	)
	return nil, l.maxAttempts, store.ErrConcurrentAdjustmentConflict
}

// tryAdjust は1回分の加算と調整記録の書き込みを同じトランザクションで行う
func (l *SeatLedger) tryAdjust(ctx context.Context, s *store.Store, delta int, key string) (*AdjustResult, error) {
	tx, err := l.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	next, err := l.storeRepo.ApplyDelta(ctx, tx, s.ID, delta, s.TotalSeats)
	if err != nil {
		return nil, err
	}
	if key != "" {
		adj := &store.Adjustment{
			Key:          key,
			StoreID:      s.ID,
			Delta:        delta,
			InUseAfter:   next.InUse,
			VersionAfter: next.Version,
			CreatedAt:    next.UpdatedAt,
		}
		if err := l.storeRepo.RecordAdjustment(ctx, tx, adj); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	return &AdjustResult{
		StoreID:   s.ID,
		Delta:     delta,
		InUse:     next.InUse,
		Available: next.Available(s.TotalSeats),
		Version:   next.Version,
	}, nil
}

func (l *SeatLedger) replay(ctx context.Context, s *store.Store, key string) (*AdjustResult, error) {
	adj, err := l.storeRepo.GetAdjustment(ctx, key)
	if err != nil {
		return nil, err
	}
	if adj.StoreID != s.ID {
		return nil, fmt.Errorf("%w: キー %s は店舗 %s の調整です", store.ErrInvalidDelta, key, adj.StoreID)
	}
	return &AdjustResult{
		StoreID:   adj.StoreID,
		Delta:     adj.Delta,
		InUse:     adj.InUseAfter,
		Available: s.TotalSeats - adj.InUseAfter,
		Version:   adj.VersionAfter,
		Replayed:  true,
	}, nil
}

// wait は試行回数に応じたジッター付きの待機を行う
func (l *SeatLedger) wait(ctx context.Context, attempt int) error {
	if l.backoff <= 0 {
		return ctx.Err()
	}
	base := l.backoff << (attempt - 1)
	d := base/2 + rand.N(base)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// refreshCache はコミット後の空席数を version 付きで書き込む
// 書き込めなかった場合は古い値が残らないよう無効化する
func (l *SeatLedger) refreshCache(ctx context.Context, res *AdjustResult) {
	if l.cache == nil {
		return
	}
	err := l.cache.SetAvailable(ctx, res.StoreID, res.Available, res.Version, availabilityCacheTTL)
	if err == nil {
		return
	}
	logger.Warn("キャッシュ更新エラー", zap.String("store_id", res.StoreID), zap.Error(err))
	if err := l.cache.Invalidate(ctx, res.StoreID); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.String("store_id", res.StoreID), zap.Error(err))
	}
}

// FindAdjustment はキーから調整記録を取得する
func (l *SeatLedger) FindAdjustment(ctx context.Context, key string) (*store.Adjustment, error) {
	return l.storeRepo.GetAdjustment(ctx, key)
}
