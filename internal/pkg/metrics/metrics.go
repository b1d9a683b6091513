package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 座席数の調整回数（direction: increment/decrement, result: success/replayed/capacity_exceeded/...）
	LedgerAdjustmentsTotal *prometheus.CounterVec

	// 座席数の書き込みが中断された回数
	LedgerCASConflictsTotal prometheus.Counter

	// 予約の総数（outcome: confirmed, failed, pending, cancelled, release_pending, error）
	BookingsTotal *prometheus.CounterVec

	// リコンサイラーの処理数（action: confirmed, failed, released, error）
	ReconcilerActionsTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		LedgerAdjustmentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seat_ledger_adjustments_total",
				Help: "Total number of seat occupancy adjustments",
			},
			[]string{"direction", "result"},
		),
		LedgerCASConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "seat_ledger_cas_conflicts_total",
				Help: "Total number of aborted seat occupancy writes that were retried",
			},
		),
		BookingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bookings_total",
				Help: "Total number of booking operations by outcome",
			},
			[]string{"outcome"},
		),
		ReconcilerActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "booking_reconciler_actions_total",
				Help: "Total number of actions taken by the booking reconciler",
			},
			[]string{"action"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LedgerAdjustmentsTotal,
		m.LedgerCASConflictsTotal,
		m.BookingsTotal,
		m.ReconcilerActionsTotal,
		m.DistributedLockDuration,
	)

	return m
}

// ObserveAdjustment は座席数調整の結果を記録する
// 未初期化(nil)の場合は何もしない
func (m *Metrics) ObserveAdjustment(delta int, result string) {
	if m == nil {
		return
	}
	direction := "increment"
	if delta < 0 {
		direction = "decrement"
	}
	m.LedgerAdjustmentsTotal.WithLabelValues(direction, result).Inc()
}

// ObserveCASConflict は座席数の書き込み競合を記録する
func (m *Metrics) ObserveCASConflict() {
	if m == nil {
		return
	}
	m.LedgerCASConflictsTotal.Inc()
}

// ObserveBooking は予約操作の結果を記録する
func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.BookingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveReconcile はリコンサイラーの処理を記録する
func (m *Metrics) ObserveReconcile(action string) {
	if m == nil {
		return
	}
	m.ReconcilerActionsTotal.WithLabelValues(action).Inc()
}

// ObserveLock は分散ロック操作の所要時間を記録する
func (m *Metrics) ObserveLock(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(seconds)
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
