package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var histogramResponseTime = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "expense_tracker",
		Subsystem: "http",
		Name:      "histogram_response_time_seconds",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	},
	[]string{"route", "status"},
)

var registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "expense_tracker",
	Name:      "registrations_total",
	Help:      "Users registered.",
})

var loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "expense_tracker",
	Name:      "logins_total",
	Help:      "Login attempts by outcome.",
}, []string{"success"})

var recordsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "expense_tracker",
	Name:      "records_created_total",
	Help:      "Expenses and budgets stored.",
}, []string{"kind"})

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func observeResponse(route string, status int, elapsed time.Duration) {
	histogramResponseTime.
		WithLabelValues(route, strconv.Itoa(status)).
		Observe(elapsed.Seconds())
}

// withMetrics labels by the matched ServeMux pattern, which is known only after routing.
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		observeResponse(route, rec.status, time.Since(start))
	})
}
