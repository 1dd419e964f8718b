// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、トラッキング層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, path string, status int)
	RecordWalletConnection(status string)
	RecordPageView()
	RecordCohortRebuild(periodType string, success bool, duration time.Duration)
	RecordBehaviorRefresh(success bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests      *prometheus.CounterVec
	walletConnections *prometheus.CounterVec
	pageViews         prometheus.Counter
	cohortRebuilds    *prometheus.CounterVec
	cohortDuration    prometheus.Histogram
	behaviorRefreshes *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_http_requests_total",
			Help: "HTTPリクエストの合計数（メソッド・ステータスコード別）",
		}, []string{"method", "status_code"}),
		walletConnections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_wallet_connections_total",
			Help: "記録されたウォレット接続試行の合計数（ステータス別）",
		}, []string{"status"}),
		pageViews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "analytics_page_views_total",
			Help: "記録されたページビューの合計数",
		}),
		cohortRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_cohort_rebuilds_total",
			Help: "コホート再計算の実行回数（粒度・結果別）",
		}, []string{"period_type", "outcome"}),
		cohortDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "analytics_cohort_rebuild_duration_seconds",
			Help:    "コホート再計算の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		behaviorRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_behavior_refreshes_total",
			Help: "行動メトリクス再計算の実行回数（結果別）",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.walletConnections,
		c.pageViews,
		c.cohortRebuilds,
		c.cohortDuration,
		c.behaviorRefreshes,
	)

	return c
}

// RecordHTTPRequest は完了したHTTPリクエストを記録する。
// pathはカーディナリティ抑制のためラベルに含めない。
func (c *Collector) RecordHTTPRequest(method, path string, status int) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// RecordWalletConnection は記録されたウォレット接続試行を計測する。
func (c *Collector) RecordWalletConnection(status string) {
	c.walletConnections.WithLabelValues(status).Inc()
}

// RecordPageView は記録されたページビューを計測する。
func (c *Collector) RecordPageView() {
	c.pageViews.Inc()
}

// RecordCohortRebuild はコホート再計算の実行を計測する。
func (c *Collector) RecordCohortRebuild(periodType string, success bool, duration time.Duration) {
	c.cohortRebuilds.WithLabelValues(periodType, outcomeLabel(success)).Inc()
	if success {
		c.cohortDuration.Observe(duration.Seconds())
	}
}

// RecordBehaviorRefresh は行動メトリクス再計算の実行を計測する。
func (c *Collector) RecordBehaviorRefresh(success bool) {
	c.behaviorRefreshes.WithLabelValues(outcomeLabel(success)).Inc()
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
