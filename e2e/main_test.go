package e2e

import (
	"context"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/api"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/api/handler"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/application"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/config"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/storeclient"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/metrics"
)

var (
	storeAPI    *TestServer
	bookingAPI  *TestServer
	coordinator *application.ReservationCoordinator
	testDB      *sqlx.DB
	redisClient *redis.Client
	storeHTTP   *httptest.Server
)

// TestMain はE2Eテストのエントリポイント
// 店舗サービスは実際の HTTP サーバーとして起動し、予約サービスは storeclient 経由で呼び出す
func TestMain(m *testing.M) {
	cfg := config.Load()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		os.Exit(0) // DB未起動時はスキップ
	}
	testDB = db
	if _, err := postgres.RunMigrations(db.DB, "../migrations"); err != nil {
		db.Close()
		os.Exit(1)
	}

	// Redis は任意。接続できなければキャッシュなしで動かす
	var cache application.AvailabilityCache
	if rc, err := redisinfra.NewClient(&redisinfra.Config{Host: cfg.Redis.Host, Port: cfg.Redis.Port}); err == nil {
		redisClient = rc
		cache = redisinfra.NewAvailabilityCache(rc)
	}

	metrics.Init()

	// 店舗サービス
	storeRepo := postgres.NewStoreRepository(db)
	var ledgerOpts []application.LedgerOption
	if cache != nil {
		ledgerOpts = append(ledgerOpts, application.WithAvailabilityCache(cache))
	}
	ledger := application.NewSeatLedger(storeRepo, postgres.NewTxManager(db), ledgerOpts...)

	se := newEcho("store-api")
	handler.RegisterStoreRoutes(se.Group("/api/v1"),
		handler.NewSeatLedgerHandler(ledger),
		handler.NewStoreHandler(application.NewStoreService(storeRepo), application.NewCapacityQuery(storeRepo, cache)),
	)
	storeAPI = &TestServer{Echo: se}
	storeHTTP = httptest.NewServer(se)

	// 予約サービス
	coordinator = application.NewReservationCoordinator(
		postgres.NewBookingRepository(db),
		storeclient.New(storeHTTP.URL, 5*time.Second),
		nil,
	)
	be := newEcho("booking-api")
	handler.RegisterBookingRoutes(be.Group("/api/v1"), handler.NewBookingHandler(coordinator))
	bookingAPI = &TestServer{Echo: be}

	code := m.Run()

	cleanupTables()
	storeHTTP.Close()
	if redisClient != nil {
		redisClient.Close()
	}
	db.Close()

	os.Exit(code)
}

func newEcho(service string) *echo.Echo {
	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e, service)
	e.GET("/health", handler.NewHealthHandler(service).Check)
	return e
}

// cleanupTables はテーブルとキャッシュをクリーンアップ
func cleanupTables() {
	testDB.Exec("TRUNCATE TABLE seat_adjustments, seat_occupancy, stores, bookings RESTART IDENTITY CASCADE")
	if redisClient != nil {
		redisClient.FlushDB(context.Background())
	}
}

// getServers は共有サーバーを取得（テスト前にテーブルをクリーンアップ）
func getServers(t *testing.T) (*TestServer, *TestServer) {
	t.Helper()
	if storeAPI == nil || bookingAPI == nil {
		t.Skip("テスト環境が利用できません")
	}
	cleanupTables()
	return storeAPI, bookingAPI
}
