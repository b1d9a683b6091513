package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/application"
)

// IdempotencyKeyHeader は座席調整の冪等キーを受け取るヘッダー
const IdempotencyKeyHeader = "Idempotency-Key"

type SeatLedgerHandler struct {
	ledger SeatLedgerInterface
}

func NewSeatLedgerHandler(l SeatLedgerInterface) *SeatLedgerHandler {
	return &SeatLedgerHandler{ledger: l}
}

// AdjustSeatsRequest は座席数調整のリクエスト
// クエリ形式（?storeId=）とパス形式（/stores/:store_id/...）の両方を受け付ける
type AdjustSeatsRequest struct {
	StoreID string `param:"store_id" query:"storeId" validate:"required" example:"store-1"`
	Count   int    `query:"count" validate:"gt=0" example:"2"`
}

// Increment godoc
// @Summary 座席を使用中にする
// @Tags seats
// @Produce json
// @Param storeId query string true "店舗ID"
// @Param count query int true "席数"
// @Param Idempotency-Key header string false "冪等キー"
// @Success 200 {object} application.AdjustResult
// @Failure 400 {object} api.ErrorResponse "座席不足・入力エラー"
// @Failure 409 {object} api.ErrorResponse "競合により再試行上限に達した"
// @Router /seats/increment [post]
func (h *SeatLedgerHandler) Increment(c echo.Context) error {
	return h.adjust(c, func(c echo.Context, req AdjustSeatsRequest, key string) (*application.AdjustResult, error) {
		return h.ledger.Increment(c.Request().Context(), req.StoreID, req.Count, key)
	})
}

// Decrement godoc
// @Summary 座席を解放する
// @Tags seats
// @Produce json
// @Param storeId query string true "店舗ID"
// @Param count query int true "席数"
// @Param Idempotency-Key header string false "冪等キー"
// @Success 200 {object} application.AdjustResult
// @Failure 400 {object} api.ErrorResponse "使用中座席数が負になる・入力エラー"
// @Failure 409 {object} api.ErrorResponse "競合により再試行上限に達した"
// @Router /seats/decrement [post]
func (h *SeatLedgerHandler) Decrement(c echo.Context) error {
	return h.adjust(c, func(c echo.Context, req AdjustSeatsRequest, key string) (*application.AdjustResult, error) {
		return h.ledger.Decrement(c.Request().Context(), req.StoreID, req.Count, key)
	})
}

func (h *SeatLedgerHandler) adjust(c echo.Context, fn func(echo.Context, AdjustSeatsRequest, string) (*application.AdjustResult, error)) error {
	var req AdjustSeatsRequest
	binder := &echo.DefaultBinder{}
	if err := binder.BindPathParams(c, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := binder.BindQueryParams(c, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "count は整数で指定してください")
	}
	if c.Param("store_id") != "" {
		// パス形式ではクエリの storeId より優先する
		req.StoreID = c.Param("store_id")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := fn(c, req, c.Request().Header.Get(IdempotencyKeyHeader))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// AdjustmentResponse は調整記録のレスポンス
type AdjustmentResponse struct {
	Key          string    `json:"key"`
	StoreID      string    `json:"store_id"`
	Delta        int       `json:"delta"`
	InUseAfter   int       `json:"in_use_after"`
	VersionAfter int64     `json:"version_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// GetAdjustment godoc
// @Summary 冪等キーの調整記録を取得
// @Tags seats
// @Produce json
// @Param key path string true "冪等キー"
// @Success 200 {object} AdjustmentResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /adjustments/{key} [get]
func (h *SeatLedgerHandler) GetAdjustment(c echo.Context) error {
	adj, err := h.ledger.FindAdjustment(c.Request().Context(), c.Param("key"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AdjustmentResponse{
		Key:          adj.Key,
		StoreID:      adj.StoreID,
		Delta:        adj.Delta,
		InUseAfter:   adj.InUseAfter,
		VersionAfter: adj.VersionAfter,
		CreatedAt:    adj.CreatedAt,
	})
}
