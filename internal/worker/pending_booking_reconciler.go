package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/application"
	redisinfra "github.com/sanosuguru/go-restaurant-seat-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-restaurant-seat-reservation/internal/pkg/logger"
)

// ReconcilerLockKey は複数インスタンス間で巡回を1つに絞るためのロックキー
const ReconcilerLockKey = "booking-reconciler"

// BookingReconciler は保留中の予約と未解放の座席を解決するインターフェース
type BookingReconciler interface {
	ReconcileStalePending(ctx context.Context, olderThan time.Duration) (application.ReconcileReport, error)
	RetryPendingReleases(ctx context.Context, limit int) (application.ReconcileReport, error)
}

// Locker は巡回中に保持する排他ロック
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// PendingBookingReconcilerConfig はワーカーの設定
type PendingBookingReconcilerConfig struct {
	Interval       time.Duration
	PendingTimeout time.Duration
	BatchSize      int
	LockTTL        time.Duration
}

// PendingBookingReconciler は一定間隔で予約と座席台帳の整合をとるワーカー
type PendingBookingReconciler struct {
	reconciler BookingReconciler
	locker     Locker // nil の場合はロックなしで巡回する
	cfg        PendingBookingReconcilerConfig
	stopCh     chan struct{}
	doneCh     chan struct{}
}

// NewPendingBookingReconciler は新しいワーカーを作成
func NewPendingBookingReconciler(r BookingReconciler, locker Locker, cfg PendingBookingReconcilerConfig) *PendingBookingReconciler {
	return &PendingBookingReconciler{
		reconciler: r,
		locker:     locker,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start はワーカーを開始し、停止するまでブロックする
func (w *PendingBookingReconciler) Start(ctx context.Context) {
	logger.Info("予約リコンサイラー開始",
		zap.Duration("interval", w.cfg.Interval),
		zap.Duration("pending_timeout", w.cfg.PendingTimeout),
		zap.Int("batch_size", w.cfg.BatchSize),
		zap.Bool("locked", w.locker != nil),
	)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("予約リコンサイラー停止（コンテキストキャンセル）")
			return
		case <-w.stopCh:
			logger.Info("予約リコンサイラー停止（シグナル受信）")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop はワーカーを停止し、実行中の巡回の終了を待つ
func (w *PendingBookingReconciler) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *PendingBookingReconciler) sweep(ctx context.Context) {
	if w.locker == nil {
		w.run(ctx)
		return
	}

	err := w.locker.WithLock(ctx, ReconcilerLockKey, w.cfg.LockTTL, func(ctx context.Context) error {
		w.run(ctx)
		return nil
	})
	switch {
	case errors.Is(err, redisinfra.ErrLockNotAcquired):
		logger.Debug("他のインスタンスが巡回中のためスキップ")
	case err != nil:
		logger.Error("リコンサイラーのロック取得に失敗", zap.Error(err))
	}
}

// run は保留中の予約の解決と座席解放の再試行を1回ずつ行う
func (w *PendingBookingReconciler) run(ctx context.Context) {
	log := logger.Get()

	report, err := w.reconciler.ReconcileStalePending(ctx, w.cfg.PendingTimeout)
	if err != nil {
		log.Error("保留中予約の解決に失敗", zap.Error(err))
	} else if report.Confirmed+report.Failed+report.Errors > 0 {
		log.Info("保留中予約を解決",
			zap.Int("confirmed", report.Confirmed),
			zap.Int("failed", report.Failed),
			zap.Int("errors", report.Errors),
		)
	}

	report, err = w.reconciler.RetryPendingReleases(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Error("座席解放の再試行に失敗", zap.Error(err))
	} else if report.Released+report.Errors > 0 {
		log.Info("座席解放を再試行",
			zap.Int("released", report.Released),
			zap.Int("errors", report.Errors),
		)
	}
}
