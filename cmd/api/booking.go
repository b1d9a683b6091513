package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/api/handler"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/application"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/storeclient"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/worker"
)

func newBookingAPICommand() *cobra.Command {
	var withoutReconciler bool

	cmd := &cobra.Command{
		Use:   "booking-api",
		Short: "予約サービスを起動する",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx, "booking-api")
			if err != nil {
				return err
			}

			coordinator := application.NewReservationCoordinator(
				postgres.NewBookingRepository(rt.db),
				newSeatAdjuster(rt),
				newEventPublisher(rt),
			)
			handler.RegisterBookingRoutes(rt.echo.Group("/api/v1"), handler.NewBookingHandler(coordinator))

			if !withoutReconciler {
				var locker worker.Locker
				if rt.redis != nil {
					locker = redisinfra.NewLockManager(rt.redis)
				}
				reconciler := worker.NewPendingBookingReconciler(coordinator, locker, worker.PendingBookingReconcilerConfig{
					Interval:       rt.cfg.Reconciler.Interval,
					PendingTimeout: rt.cfg.Reconciler.PendingTimeout,
					BatchSize:      rt.cfg.Reconciler.BatchSize,
					LockTTL:        rt.cfg.Reconciler.LockTTL,
				})
				workerCtx, cancel := context.WithCancel(ctx)
				go reconciler.Start(workerCtx)
				// サーバー停止後、DB を閉じる前にワーカーを止める
				rt.closers = append(rt.closers, func(context.Context) error {
					reconciler.Stop()
					cancel()
					return nil
				})
			}

			return rt.serve(ctx)
		},
	}

	cmd.Flags().BoolVar(&withoutReconciler, "without-reconciler", false, "保留中予約のリコンサイラーを起動しない")
	return cmd
}

// newSeatAdjuster は店舗サービスの URL があれば HTTP クライアントを、なければ同一プロセスの台帳を返す
func newSeatAdjuster(rt *runtime) application.SeatAdjuster {
	if rt.cfg.StoreService.URL != "" {
		logger.Info("店舗サービスを利用します", zap.String("url", rt.cfg.StoreService.URL))
		return storeclient.New(rt.cfg.StoreService.URL, rt.cfg.StoreService.Timeout)
	}

	logger.Info("座席台帳を同一プロセスで動かします")
	opts := []application.LedgerOption{
		application.WithMaxAttempts(rt.cfg.Ledger.MaxAttempts),
		application.WithRetryBackoff(rt.cfg.Ledger.RetryBackoff),
	}
	if rt.redis != nil {
		opts = append(opts, application.WithAvailabilityCache(redisinfra.NewAvailabilityCache(rt.redis)))
	}
	return application.NewSeatLedger(postgres.NewStoreRepository(rt.db), postgres.NewTxManager(rt.db), opts...)
}

// newEventPublisher は AMQP の URL があれば RabbitMQ への送信者を返す
// 接続はバックグラウンドで確立するため、ブローカーが停止していても起動は待たない
func newEventPublisher(rt *runtime) booking.EventPublisher {
	if rt.cfg.AMQP.URL == "" {
		return nil
	}
	p := rabbitmq.NewPublisher(rt.cfg.AMQP.URL, rt.cfg.AMQP.Queue)
	rt.closers = append(rt.closers, func(context.Context) error { return p.Close() })
	return p
}
