// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 送信処理の結果ラベル
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Recorder はメトリクス収集のインターフェース。
// サービス層とHTTPミドルウェアから利用する。
type Recorder interface {
	RecordSubmission(formType, result string)
	RecordMatches(count int)
	RecordUnrecognizedFormType()
	RecordWebCall(result string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	submissions     *prometheus.CounterVec
	matches         prometheus.Histogram
	unknownFormType prometheus.Counter
	webCalls        *prometheus.CounterVec
	webCallLatency  prometheus.Histogram
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coliana_submissions_total",
			Help: "フォーム種別・結果別の送信数",
		}, []string{"form_type", "result"}),
		matches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coliana_matches_per_client",
			Help:    "クライアント1件あたりの一致プロバイダー数",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		unknownFormType: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coliana_unrecognized_form_type_total",
			Help: "formTypeが未指定または未知だった送信数",
		}),
		webCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coliana_web_calls_total",
			Help: "音声通話APIのWeb通話作成結果",
		}, []string{"result"}),
		webCallLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "coliana_web_call_latency_seconds",
			Help:    "音声通話APIのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coliana_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.submissions,
		c.matches,
		c.unknownFormType,
		c.webCalls,
		c.webCallLatency,
		c.httpStatus,
	)

	return c
}

// RecordSubmission は送信1件の処理結果を記録する。
func (c *Collector) RecordSubmission(formType, result string) {
	c.submissions.WithLabelValues(formType, result).Inc()
}

// RecordMatches はクライアント1件の一致数を記録する。
func (c *Collector) RecordMatches(count int) {
	c.matches.Observe(float64(count))
}

// RecordUnrecognizedFormType はformTypeが判別できなかった送信を記録する。
func (c *Collector) RecordUnrecognizedFormType() {
	c.unknownFormType.Inc()
}

// RecordWebCall はWeb通話作成の結果とレイテンシを記録する。
func (c *Collector) RecordWebCall(result string, duration time.Duration) {
	c.webCalls.WithLabelValues(result).Inc()
	c.webCallLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないRecorder。
type Nop struct{}

func (Nop) RecordSubmission(string, string) {}
func (Nop) RecordMatches(int) {}
func (Nop) RecordUnrecognizedFormType() {}
func (Nop) RecordWebCall(string, time.Duration) {}
func (Nop) RecordHTTPStatus(int) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
