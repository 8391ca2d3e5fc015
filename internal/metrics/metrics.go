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
// サービス層とミドルウェアから利用する。
type MetricsCollector interface {
	RecordNotificationEmitted(typ string, count int)
	RecordMessageSent()
	RecordPostCreated(fanout int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	SetWebSocketConnections(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	notifications  *prometheus.CounterVec
	messages       prometheus.Counter
	posts          prometheus.Counter
	fanout         prometheus.Histogram
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	wsConnections  prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openbook_notifications_emitted_total",
			Help: "作成された通知の種別ごとの合計数",
		}, []string{"type"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "openbook_messages_sent_total",
			Help: "送信されたメッセージの合計数",
		}),
		posts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "openbook_posts_created_total",
			Help: "作成された投稿の合計数",
		}),
		fanout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "openbook_post_fanout_size",
			Help:    "投稿通知のファンアウト先友達数",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openbook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "openbook_request_latency_seconds",
			Help:    "HTTPリクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "openbook_websocket_connections",
			Help: "現在のWebSocket接続数",
		}),
	}

	reg.MustRegister(
		c.notifications,
		c.messages,
		c.posts,
		c.fanout,
		c.httpStatus,
		c.requestLatency,
		c.wsConnections,
	)

	return c
}

// RecordNotificationEmitted は通知の作成を種別ラベル付きで記録する。
func (c *Collector) RecordNotificationEmitted(typ string, count int) {
	c.notifications.WithLabelValues(typ).Add(float64(count))
}

// RecordMessageSent はメッセージ送信を記録する。
func (c *Collector) RecordMessageSent() {
	c.messages.Inc()
}

// RecordPostCreated は投稿作成とファンアウト先の友達数を記録する。
func (c *Collector) RecordPostCreated(fanout int) {
	c.posts.Inc()
	c.fanout.Observe(float64(fanout))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理のレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// SetWebSocketConnections は現在のWebSocket接続数を記録する。
func (c *Collector) SetWebSocketConnections(n int) {
	c.wsConnections.Set(float64(n))
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
