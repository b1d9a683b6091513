package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/application"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/store"
)

type StoreHandler struct {
	stores   StoreServiceInterface
	capacity CapacityQueryInterface
}

func NewStoreHandler(s StoreServiceInterface, q CapacityQueryInterface) *StoreHandler {
	return &StoreHandler{stores: s, capacity: q}
}

type CreateStoreRequest struct {
	ID         string `json:"id" validate:"required,max=64" example:"store-1"`
	Name       string `json:"name" validate:"max=255" example:"渋谷店"`
	TotalSeats int    `json:"total_seats" validate:"gte=0" example:"20"`
}

type StoreResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TotalSeats int    `json:"total_seats"`
}

type AvailableSeatsResponse struct {
	StoreID   string `json:"store_id"`
	Available int    `json:"available"`
}

type CapacityResponse struct {
	StoreID    string `json:"store_id"`
	TotalSeats int    `json:"total_seats"`
	InUse      int    `json:"in_use"`
	Available  int    `json:"available"`
	Version    int64  `json:"version"`
}

func toStoreResponse(s *store.Store) StoreResponse {
	return StoreResponse{ID: s.ID, Name: s.Name, TotalSeats: s.TotalSeats}
}

// Create godoc
// @Summary 店舗を登録
// @Tags stores
// @Accept json
// @Produce json
// @Param request body CreateStoreRequest true "店舗情報"
// @Success 201 {object} StoreResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "登録済み"
// @Router /stores [post]
func (h *StoreHandler) Create(c echo.Context) error {
	var req CreateStoreRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	s, err := h.stores.CreateStore(c.Request().Context(), application.CreateStoreInput{
		ID: req.ID, Name: req.Name, TotalSeats: req.TotalSeats,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toStoreResponse(s))
}

// AvailableSeats godoc
// @Summary 空席数を取得
// @Description 参考値のため、直後の座席確保の成功は保証しない
// @Tags stores
// @Produce json
// @Param store_id path string true "店舗ID"
// @Success 200 {object} AvailableSeatsResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /stores/{store_id}/available-seats [get]
func (h *StoreHandler) AvailableSeats(c echo.Context) error {
	storeID := c.Param("store_id")
	n, err := h.capacity.Available(c.Request().Context(), storeID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AvailableSeatsResponse{StoreID: storeID, Available: n})
}

// Capacity godoc
// @Summary 座席数の内訳を取得
// @Tags stores
// @Produce json
// @Param store_id path string true "店舗ID"
// @Success 200 {object} CapacityResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /stores/{store_id}/capacity [get]
func (h *StoreHandler) Capacity(c echo.Context) error {
	cp, err := h.capacity.Capacity(c.Request().Context(), c.Param("store_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, CapacityResponse{
		StoreID:    cp.StoreID,
		TotalSeats: cp.TotalSeats,
		InUse:      cp.InUse,
		Available:  cp.Available,
		Version:    cp.Version,
	})
}
