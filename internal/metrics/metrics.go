// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// scim.MetricsRecorderとsync.Recorderの両方を満たす。
type Collector struct {
	remoteRequests      *prometheus.CounterVec
	remoteLatency       prometheus.Histogram
	loginTotal          prometheus.Counter
	loginFail           prometheus.Counter
	syncOps             *prometheus.CounterVec
	writethroughDropped prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scimbridge_remote_requests_total",
			Help: "SCIMリモートリクエストの操作・ステータスコード別合計数",
		}, []string{"operation", "status_code"}),
		remoteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scimbridge_remote_latency_seconds",
			Help:    "SCIMリモートリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		loginTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scimbridge_login_total",
			Help: "リモートサーバーへのログイン試行の合計数",
		}),
		loginFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scimbridge_login_fail_total",
			Help: "リモートサーバーへのログイン失敗の合計数",
		}),
		syncOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scimbridge_sync_operations_total",
			Help: "同期操作の操作・結果別合計数",
		}, []string{"operation", "outcome"}),
		writethroughDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scimbridge_writethrough_dropped_total",
			Help: "リモート非受理により破棄されたローカル属性書き込みの合計数",
		}),
	}

	reg.MustRegister(
		c.remoteRequests,
		c.remoteLatency,
		c.loginTotal,
		c.loginFail,
		c.syncOps,
		c.writethroughDropped,
	)

	return c
}

// RecordRemoteRequest はリモートリクエストの完了を記録する。
func (c *Collector) RecordRemoteRequest(operation string, statusCode int) {
	c.remoteRequests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
}

// RecordRemoteLatency はリモートリクエストのレイテンシを記録する。
func (c *Collector) RecordRemoteLatency(operation string, d time.Duration) {
	c.remoteLatency.Observe(d.Seconds())
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(success bool) {
	c.loginTotal.Inc()
	if !success {
		c.loginFail.Inc()
	}
}

// RecordSyncOp は同期操作の結果を記録する。
func (c *Collector) RecordSyncOp(operation, outcome string) {
	c.syncOps.WithLabelValues(operation, outcome).Inc()
}

// RecordWritethroughDropped は破棄されたローカル書き込みを記録する。
func (c *Collector) RecordWritethroughDropped() {
	c.writethroughDropped.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
