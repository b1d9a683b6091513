package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_Check(t *testing.T) {
	check := func(h *HealthHandler) (*httptest.ResponseRecorder, HealthResponse) {
		e := NewTestEcho()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
		require.NoError(t, h.Check(c))

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return rec, resp
	}

	t.Run("依存先なし", func(t *testing.T) {
		rec, resp := check(NewHealthHandler("store-api"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "store-api", resp.Service)
		assert.NotEmpty(t, resp.Timestamp)
		assert.Empty(t, resp.Checks)
	})

	t.Run("全ての依存先が正常", func(t *testing.T) {
		h := NewHealthHandler("booking-api").
			WithCheck("postgres", func(ctx context.Context) error { return nil }).
			WithCheck("redis", func(ctx context.Context) error { return nil })

		rec, resp := check(h)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]string{"postgres": "ok", "redis": "ok"}, resp.Checks)
	})

	t.Run("依存先の障害は503", func(t *testing.T) {
		h := NewHealthHandler("booking-api").
			WithCheck("postgres", func(ctx context.Context) error { return nil }).
			WithCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })

		rec, resp := check(h)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "connection refused", resp.Checks["redis"])
	})
}
