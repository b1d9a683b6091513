package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
	ErrLockLost        = errors.New("処理中にロックを失いました")
)

const (
	releaseScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	extendScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
)

// DistributedLock は Redis を使用した分散ロック
type DistributedLock struct {
	client *redis.Client
	key    string
	value  string
}

// LockManager は分散ロックを管理する
// 予約のリコンサイルを複数インスタンスで同時に実行しないために使用する
type LockManager struct {
	client *redis.Client
}

func NewLockManager(client *redis.Client) *LockManager {
	return &LockManager{client: client}
}

// AcquireLock はロックを取得する
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	start := time.Now()
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := uuid.New().String()

	// キーが存在しない場合のみ設定
	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		metrics.Get().ObserveLock("acquire", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		metrics.Get().ObserveLock("acquire", "failed", time.Since(start).Seconds())
		return nil, ErrLockNotAcquired
	}
	metrics.Get().ObserveLock("acquire", "success", time.Since(start).Seconds())

	return &DistributedLock{
		client: m.client,
		key:    lockKey,
		value:  lockValue,
	}, nil
}

// AcquireLockWithRetry はリトライ付きでロックを取得する
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*DistributedLock, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lock, err := m.AcquireLock(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// WithLock はロックを取得できた場合のみ fn を実行する
// ロックが他で保持されている場合は ErrLockNotAcquired を返す
// fn の実行中は TTL の半分ごとに延長し、延長できなければ fn の ctx を ErrLockLost でキャンセルする
func (m *LockManager) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	lock, err := m.AcquireLock(ctx, key, ttl)
	if err != nil {
		return err
	}

	fnCtx, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		lock.keepAlive(fnCtx, ttl, stop, cancel)
	}()

	defer func() {
		close(stop)
		wg.Wait()
		cancel(nil)
		// 処理中に ctx がキャンセルされても解放できるよう新しい ctx を使う
		releaseCtx, cancelRelease := context.WithTimeout(context.Background(), time.Second)
		defer cancelRelease()
		lock.Release(releaseCtx)
	}()
	return fn(fnCtx)
}

func (l *DistributedLock) keepAlive(ctx context.Context, ttl time.Duration, stop <-chan struct{}, cancel context.CancelCauseFunc) {
	interval := ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := l.Extend(ctx, ttl)
			if errors.Is(err, ErrLockNotOwned) {
				logger.Warn("ロックを失ったため処理を中断します", zap.String("key", l.key))
				cancel(ErrLockLost)
				return
			}
			if err != nil {
				// 一時的な失敗は次の周期で再試行する
				logger.Warn("ロックの延長に失敗しました", zap.String("key", l.key), zap.Error(err))
			}
		}
	}
}

// Release はロックを解放する
func (l *DistributedLock) Release(ctx context.Context) error {
	start := time.Now()
	// 所有者確認と削除をアトミックに実行
	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Int()
	if err != nil {
		metrics.Get().ObserveLock("release", "error", time.Since(start).Seconds())
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		metrics.Get().ObserveLock("release", "failed", time.Since(start).Seconds())
		return ErrLockNotOwned
	}
	metrics.Get().ObserveLock("release", "success", time.Since(start).Seconds())
	return nil
}

// Extend はロックの有効期限を延長する
func (l *DistributedLock) Extend(ctx context.Context, ttl time.Duration) error {
	start := time.Now()
	result, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.value, ttl.Milliseconds()).Int()
	if err != nil {
		metrics.Get().ObserveLock("extend", "error", time.Since(start).Seconds())
		return fmt.Errorf("ロック延長に失敗: %w", err)
	}
	if result == 0 {
		metrics.Get().ObserveLock("extend", "failed", time.Since(start).Seconds())
		return ErrLockNotOwned
	}
	metrics.Get().ObserveLock("extend", "success", time.Since(start).Seconds())
	return nil
}
