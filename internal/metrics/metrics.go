// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// 認証方式ラベルの値。OAuthの場合はプロバイダー名を使う。
const MethodLocal = "local"

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、シークレットサービス、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordLogin(method, result string)
	RecordRegistration(result string)
	RecordOAuthCallback(provider, result string)
	RecordSecretSubmitted()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins           *prometheus.CounterVec
	registrations    *prometheus.CounterVec
	oauthCallbacks   *prometheus.CounterVec
	secretsSubmitted prometheus.Counter
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secrets_login_total",
			Help: "ログイン試行の合計数（方式・結果別）",
		}, []string{"method", "result"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secrets_registration_total",
			Help: "ローカルアカウント登録の合計数（結果別）",
		}, []string{"result"}),
		oauthCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secrets_oauth_callback_total",
			Help: "OAuthコールバック処理の合計数（プロバイダー・結果別）",
		}, []string{"provider", "result"}),
		secretsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "secrets_secret_submitted_total",
			Help: "シークレット投稿の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "secrets_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "secrets_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.registrations,
		c.oauthCallbacks,
		c.secretsSubmitted,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(method, result string) {
	c.logins.WithLabelValues(method, result).Inc()
}

// RecordRegistration はアカウント登録を記録する。
func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// RecordOAuthCallback はOAuthコールバックの処理結果を記録する。
func (c *Collector) RecordOAuthCallback(provider, result string) {
	c.oauthCallbacks.WithLabelValues(provider, result).Inc()
}

// RecordSecretSubmitted はシークレット投稿を記録する。
func (c *Collector) RecordSecretSubmitted() {
	c.secretsSubmitted.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordLogin(string, string)         {}
func (Nop) RecordRegistration(string)          {}
func (Nop) RecordOAuthCallback(string, string) {}
func (Nop) RecordSecretSubmitted()             {}
func (Nop) RecordHTTPStatus(int)               {}
func (Nop) RecordRequestLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
