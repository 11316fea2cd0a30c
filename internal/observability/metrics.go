package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	queryDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
	bodySizeBuckets      = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the admin service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Query engine metrics
	CRUDOperationsTotal   *prometheus.CounterVec
	CRUDOperationDuration *prometheus.HistogramVec
	ExportRowsTotal       *prometheus.CounterVec

	// Registry and token metrics
	ModelsRegistered        prometheus.Gauge
	TokensIssuedTotal       *prometheus.CounterVec
	TokenVerificationsTotal *prometheus.CounterVec
	AccessDeniedTotal       *prometheus.CounterVec
	RateLimitedTotal        prometheus.Counter
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixadmin_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matrixadmin_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matrixadmin_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matrixadmin_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Query engine
		CRUDOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixadmin_crud_operations_total",
			Help: "Total number of query engine operations.",
		}, []string{"model", "operation", "status"}),
		CRUDOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matrixadmin_crud_operation_duration_seconds",
			Help:    "Query engine operation duration in seconds.",
			Buckets: queryDurationBuckets,
		}, []string{"model", "operation"}),
		ExportRowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixadmin_export_rows_total",
			Help: "Total number of rows streamed through CSV export.",
		}, []string{"model"}),

		// Registry and tokens
		ModelsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "matrixadmin_models_registered",
			Help: "Number of models currently registered.",
		}),
		TokensIssuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixadmin_tokens_issued_total",
			Help: "Total number of capability tokens minted.",
		}, []string{"action"}),
		TokenVerificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixadmin_token_verifications_total",
			Help: "Total number of capability token verifications.",
		}, []string{"result"}),
		AccessDeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matrixadmin_access_denied_total",
			Help: "Total number of requests denied at the gateway.",
		}, []string{"reason"}),
		RateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matrixadmin_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		m.CRUDOperationsTotal,
		m.CRUDOperationDuration,
		m.ExportRowsTotal,
		m.ModelsRegistered,
		m.TokensIssuedTotal,
		m.TokenVerificationsTotal,
		m.AccessDeniedTotal,
		m.RateLimitedTotal,
	)
	return m
}

// RecordHTTPRequest records metrics for one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	if reqSize > 0 {
		m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	}
	if respSize > 0 {
		m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
	}
}

// RecordCRUDOperation records one query engine operation.
func (m *Metrics) RecordCRUDOperation(model, operation, status string, duration time.Duration) {
	m.CRUDOperationsTotal.WithLabelValues(model, operation, status).Inc()
	m.CRUDOperationDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
}

// RecordExportRows counts rows streamed through a CSV export.
func (m *Metrics) RecordExportRows(model string, rows int) {
	m.ExportRowsTotal.WithLabelValues(model).Add(float64(rows))
}

// SetModelsRegistered sets the registered model gauge.
func (m *Metrics) SetModelsRegistered(count float64) {
	m.ModelsRegistered.Set(count)
}

// RecordTokenIssued counts a minted capability token.
func (m *Metrics) RecordTokenIssued(action string) {
	m.TokensIssuedTotal.WithLabelValues(action).Inc()
}

// RecordTokenVerification counts a verification attempt by outcome.
func (m *Metrics) RecordTokenVerification(result string) {
	m.TokenVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordAccessDenied counts a denied request. The reason label carries
// the internal error code, which is never exposed to clients.
func (m *Metrics) RecordAccessDenied(reason string) {
	m.AccessDeniedTotal.WithLabelValues(reason).Inc()
}

// RecordRateLimited counts a rate limiter rejection.
func (m *Metrics) RecordRateLimited() {
	m.RateLimitedTotal.Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
