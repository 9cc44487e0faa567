package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analysisStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "plantdoc_analysis_started_total",
		Help: "Total analyses started",
	})
	analysisCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantdoc_analysis_completed_total",
		Help: "Total analyses completed, by result mode",
	}, []string{"mode"})
	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "plantdoc_analysis_duration_ms",
		Help:    "Analysis duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000},
	})
	providerRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantdoc_provider_requests_total",
		Help: "External provider calls, by provider and outcome",
	}, []string{"provider", "outcome"})
	historyItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plantdoc_history_items",
		Help: "Number of analyses in history at last stats computation",
	})
)

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Inc()
}

// IncAnalysisCompleted increments the completed counter for a result mode.
func IncAnalysisCompleted(mode string) {
	analysisCompletedTotal.WithLabelValues(mode).Inc()
}

// ObserveAnalysisDuration records an analysis duration.
func ObserveAnalysisDuration(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0
	if ms < 0 {
		ms = 0
	}
	analysisDuration.Observe(ms)
}

// IncProviderRequest counts a call to an external provider.
func IncProviderRequest(provider, outcome string) {
	providerRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// SetHistoryItems records the current history size.
func SetHistoryItems(n int) {
	historyItems.Set(float64(n))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
