// Package storeclient は予約サービスから店舗サービスの座席台帳を呼び出す HTTP クライアント
package storeclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/application"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
)

// IdempotencyKeyHeader は調整の冪等キーを渡すヘッダー
const IdempotencyKeyHeader = "Idempotency-Key"

// エラーレスポンスの reason とドメインエラーの対応
var reasonErrors = map[string]error{
	"capacity_exceeded":   store.ErrCapacityExceeded,
	"negative_occupancy":  store.ErrNegativeOccupancy,
	"concurrent_conflict": store.ErrConcurrentAdjustmentConflict,
	"store_not_found":     store.ErrStoreNotFound,
	"validation":          store.ErrInvalidDelta,
}

type errorResponse struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

type adjustmentResponse struct {
	Key          string    `json:"key"`
	StoreID      string    `json:"store_id"`
	Delta        int       `json:"delta"`
	InUseAfter   int       `json:"in_use_after"`
	VersionAfter int64     `json:"version_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// Client は店舗サービスの /api/v1 を呼び出す
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New は baseURL（例: http://store-api:8080）のクライアントを作成する
// クライアントスパンとトレースヘッダーの付与は otelhttp のトランスポートが行う
func New(baseURL string, timeout time.Duration, opts ...otelhttp.Option) *Client {
	opts = append([]otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "store-api " + r.Method + " " + r.URL.Path
		}),
	}, opts...)
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
			Timeout:   timeout,
		},
	}
}

// AdjustOnce は delta の符号に応じて increment / decrement を呼び出す
// 応答を受け取れなかった場合のエラーは、適用されたかどうかが不明なものとして扱われる
func (c *Client) AdjustOnce(ctx context.Context, storeID string, delta int, key string) (*application.AdjustResult, error) {
	if delta == 0 {
		return nil, store.ErrInvalidDelta
	}
	op, count := "increment", delta
	if delta < 0 {
		op, count = "decrement", -delta
	}

	q := url.Values{}
	q.Set("storeId", storeID)
	q.Set("count", strconv.Itoa(count))
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/seats/"+op+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}

	var res application.AdjustResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FindAdjustment はキーに対応する調整記録を取得する
func (c *Client) FindAdjustment(ctx context.Context, key string) (*store.Adjustment, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/adjustments/"+url.PathEscape(key))
	if err != nil {
		return nil, err
	}

	var res adjustmentResponse
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &store.Adjustment{
		Key:          res.Key,
		StoreID:      res.StoreID,
		Delta:        res.Delta,
		InUseAfter:   res.InUseAfter,
		VersionAfter: res.VersionAfter,
		CreatedAt:    res.CreatedAt,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("店舗サービスの呼び出しに失敗: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスの読み込みに失敗: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("レスポンスの解析に失敗: %w", err)
		}
		return nil
	}
	return decodeError(resp.StatusCode, body)
}

// decodeError はエラーレスポンスをドメインエラーに変換する
// 対応する reason がない場合は元のステータスを含むエラーを返す
func decodeError(status int, body []byte) error {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return fmt.Errorf("店舗サービスがステータス %d を返しました", status)
	}
	// ルート不一致などの 404 は記録の不在を意味しないため、結果不明として扱う
	if status == http.StatusNotFound && er.Reason == "adjustment_not_found" {
		return fmt.Errorf("%w: %s", store.ErrAdjustmentNotFound, er.Error)
	}
	if sentinel, ok := reasonErrors[er.Reason]; ok {
		return fmt.Errorf("%w: %s", sentinel, er.Error)
	}
	return errors.New("店舗サービスエラー (" + strconv.Itoa(status) + "): " + er.Error)
}

var _ application.SeatAdjuster = (*Client)(nil)
