package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/api"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/api/handler"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/config"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/observability"
)

const shutdownTimeout = 10 * time.Second

// runtime は各サービスが共有する接続とサーバー
type runtime struct {
	cfg     *config.Config
	service string
	db      *sqlx.DB
	redis   *goredis.Client // Redis 無効時は nil
	echo    *echo.Echo
	health  *handler.HealthHandler
	closers []func(context.Context) error
}

// newRuntime は設定を読み込み、ロガー、トレーシング、DB、Redis、Echo を準備する
func newRuntime(ctx context.Context, service string) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	initLogger(cfg, service)
	metrics.Init()

	rt := &runtime{cfg: cfg, service: service}

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    service,
		ServiceVersion: cfg.App.Version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, shutdownTracing)

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.db = db
	rt.closers = append(rt.closers, func(context.Context) error { return db.Close() })
	logger.Info("データベースに接続しました", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	if cfg.Redis.Enabled {
		client, err := redisinfra.NewClient(&redisinfra.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// Redis はキャッシュとロックのみに使うため、なくても起動する
			logger.Warn("Redis に接続できないため無効化します", zap.Error(err))
		} else {
			rt.redis = client
			rt.closers = append(rt.closers, func(context.Context) error { return client.Close() })
		}
	}

	rt.echo = newEcho(cfg, service)
	rt.health = handler.NewHealthHandler(service).
		WithCheck("postgres", func(ctx context.Context) error { return postgres.Ping(ctx, db) })
	if rt.redis != nil {
		client := rt.redis
		rt.health.WithCheck("redis", func(ctx context.Context) error { return redisinfra.Ping(ctx, client) })
	}
	rt.echo.GET("/health", rt.health.Check)
	rt.echo.GET("/api/v1/health", rt.health.Check)

	return rt, nil
}

func newEcho(cfg *config.Config, service string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	middleware.SetupMiddleware(e, service)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))
	return e
}

// serve はシグナルを受けるまでサーバーを動かし、その後シャットダウンする
func (rt *runtime) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := ":" + rt.cfg.Server.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("サーバー起動", zap.String("service", rt.service), zap.String("addr", addr))
		if err := rt.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("サーバーをシャットダウンしています...")
	case err := <-errCh:
		if err != nil {
			rt.close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rt.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
	}
	rt.close()
	logger.Info("サーバーが正常にシャットダウンしました")
	return nil
}

// close は取得した資源を逆順に解放する
func (rt *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			logger.Warn("資源の解放に失敗", zap.Error(err))
		}
	}
	rt.closers = nil
	_ = logger.Sync()
}
