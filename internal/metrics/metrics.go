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
// APIクライアント、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordAPICall(endpoint string, statusCode int, duration time.Duration)
	RecordLogin(success bool)
	RecordOrderPlaced()
	RecordCheckoutUnconfirmed()
	RecordSessionsCleaned(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	apiCalls            *prometheus.CounterVec
	apiLatency          *prometheus.HistogramVec
	logins              *prometheus.CounterVec
	ordersPlaced        prometheus.Counter
	checkoutUnconfirmed prometheus.Counter
	sessionsCleaned     prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodorder_api_calls_total",
			Help: "バックエンドAPI呼び出しの合計数（エンドポイント・ステータス別）",
		}, []string{"endpoint", "status_code"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "foodorder_api_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "foodorder_logins_total",
			Help: "ログイン試行の合計数（結果別）",
		}, []string{"result"}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodorder_orders_placed_total",
			Help: "作成された注文の合計数",
		}),
		checkoutUnconfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodorder_checkout_unconfirmed_total",
			Help: "成功応答後も注文一覧に反映されなかったチェックアウトの数",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "foodorder_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.apiCalls,
		c.apiLatency,
		c.logins,
		c.ordersPlaced,
		c.checkoutUnconfirmed,
		c.sessionsCleaned,
	)

	return c
}

// RecordAPICall はバックエンドAPI呼び出しの結果を記録する。
// トランスポートエラーの場合statusCodeは0になる。
func (c *Collector) RecordAPICall(endpoint string, statusCode int, duration time.Duration) {
	c.apiCalls.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.apiLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordOrderPlaced は注文作成を記録する。
func (c *Collector) RecordOrderPlaced() {
	c.ordersPlaced.Inc()
}

// RecordCheckoutUnconfirmed は反映されなかったチェックアウトを記録する。
func (c *Collector) RecordCheckoutUnconfirmed() {
	c.checkoutUnconfirmed.Inc()
}

// RecordSessionsCleaned は削除されたセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int) {
	c.sessionsCleaned.Add(float64(count))
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
