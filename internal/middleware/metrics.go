package middleware

import (
	"net/http"
	"time"
)

// HTTPCollector はHTTPリクエストのメトリクスを記録するインターフェース。
type HTTPCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(d time.Duration)
}

// NewMetricsMiddleware はレスポンスのステータスコードとレイテンシを
// コレクターへ記録するミドルウェアを返す。
func NewMetricsMiddleware(collector HTTPCollector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			collector.RecordHTTPStatus(rec.statusCode)
			collector.RecordRequestLatency(time.Since(start))
		})
	}
}
