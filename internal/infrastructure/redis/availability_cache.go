package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// setIfNewerScript は保存済みの version 以上の場合のみ書き込む
var setIfNewerScript = redis.NewScript(`
	local cur = redis.call("HGET", KEYS[1], "version")
	if cur and tonumber(cur) > tonumber(ARGV[2]) then
		return 0
	end
	redis.call("HSET", KEYS[1], "available", ARGV[1], "version", ARGV[2])
	redis.call("PEXPIRE", KEYS[1], ARGV[3])
	return 1
`)

// AvailabilityCache は店舗ごとの空席数のキャッシュを管理する
// 値は空席数と台帳の version のハッシュで保存する
type AvailabilityCache struct {
	client *redis.Client
}

// NewAvailabilityCache は新しいAvailabilityCacheインスタンスを作成する
func NewAvailabilityCache(client *redis.Client) *AvailabilityCache {
	return &AvailabilityCache{client: client}
}

// GetAvailable は店舗の空席数をキャッシュから取得する
func (c *AvailabilityCache) GetAvailable(ctx context.Context, storeID string) (int, error) {
	val, err := c.client.HGet(ctx, availableKey(storeID), "available").Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetAvailable は店舗の空席数をキャッシュに保存する
// 保存済みの version の方が新しい場合は何もしない
func (c *AvailabilityCache) SetAvailable(ctx context.Context, storeID string, available int, version int64, ttl time.Duration) error {
	err := setIfNewerScript.Run(ctx, c.client, []string{availableKey(storeID)}, available, version, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は店舗のキャッシュを無効化する
func (c *AvailabilityCache) Invalidate(ctx context.Context, storeID string) error {
	if err := c.client.Del(ctx, availableKey(storeID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func availableKey(storeID string) string {
	return fmt.Sprintf("seats:available:%s", storeID)
}
