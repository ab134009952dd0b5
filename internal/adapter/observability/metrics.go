package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of provider HTTP calls by provider and status",
		},
		[]string{"provider", "status"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "Provider call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	TranslationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translations_total",
			Help: "Translations by provider and outcome category",
		},
		[]string{"provider", "outcome"},
	)
	DispatchRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_retries_total",
			Help: "Retries scheduled after HTTP 429 responses",
		},
		[]string{"provider"},
	)
	DispatchThrottleWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_throttle_wait_seconds",
			Help:    "Time spent waiting on the shared dispatch throttle",
			Buckets: []float64{0, 0.05, 0.1, 0.25, 0.5, 0.75, 1},
		},
	)
	DispatchRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_rejected_total",
			Help: "Translate calls rejected because another one was in flight",
		},
	)

	ProviderActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "provider_active",
			Help: "1 when the provider is activated, 0 otherwise",
		},
		[]string{"provider"},
	)
	ProviderAutoDisabledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_auto_disabled_total",
			Help: "Providers switched off after a credential failure",
		},
		[]string{"provider"},
	)
)

// InitMetrics registers every collector with the default registry.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(TranslationsTotal)
	prometheus.MustRegister(DispatchRetriesTotal)
	prometheus.MustRegister(DispatchThrottleWait)
	prometheus.MustRegister(DispatchRejectedTotal)
	prometheus.MustRegister(ProviderActive)
	prometheus.MustRegister(ProviderAutoDisabledTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveProviderCall records one outbound provider HTTP call.
func ObserveProviderCall(provider string, status int, dur time.Duration) {
	label := "transport_error"
	if status > 0 {
		label = http.StatusText(status)
	}
	AIRequestsTotal.WithLabelValues(provider, label).Inc()
	AIRequestDuration.WithLabelValues(provider).Observe(dur.Seconds())
}

// RecordTranslation counts a finished translation. An empty outcome means success.
func RecordTranslation(provider, outcome string) {
	if outcome == "" {
		outcome = "success"
	}
	TranslationsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordRetry counts a 429 retry.
func RecordRetry(provider string) { DispatchRetriesTotal.WithLabelValues(provider).Inc() }

// ObserveThrottleWait records how long a call waited for its dispatch slot.
func ObserveThrottleWait(d time.Duration) { DispatchThrottleWait.Observe(d.Seconds()) }

// RecordRejected counts a translate call turned away while another was running.
func RecordRejected() { DispatchRejectedTotal.Inc() }

// SetProviderActive mirrors the activation map into the gauge.
func SetProviderActive(provider string, active bool) {
	v := 0.0
	if active {
		v = 1
	}
	ProviderActive.WithLabelValues(provider).Set(v)
}

// RecordAutoDisable counts a credential-triggered deactivation.
func RecordAutoDisable(provider string) { ProviderAutoDisabledTotal.WithLabelValues(provider).Inc() }
