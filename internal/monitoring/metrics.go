package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Order lifecycle metrics
	ordersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_core_orders_submitted_total",
			Help: "Total number of orders submitted",
		},
		[]string{"symbol", "side"},
	)

	ordersFinal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_core_orders_final_total",
			Help: "Total number of orders reaching a terminal state",
		},
		[]string{"symbol", "status"},
	)

	fillSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trading_core_fill_seconds",
			Help:    "Time from order creation to terminal state",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"symbol"},
	)

	// Risk metrics
	portfolioExposure = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_core_portfolio_exposure",
			Help: "Aggregate open notional across positions",
		},
	)

	openPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_core_open_positions",
			Help: "Number of currently open positions",
		},
	)

	riskWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_core_risk_warnings_total",
			Help: "Total number of risk monitor warnings",
		},
		[]string{"scope"},
	)

	// Error metrics
	orderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_core_order_errors_total",
			Help: "Total number of order errors",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(ordersSubmitted)
	prometheus.MustRegister(ordersFinal)
	prometheus.MustRegister(fillSeconds)
	prometheus.MustRegister(portfolioExposure)
	prometheus.MustRegister(openPositions)
	prometheus.MustRegister(riskWarnings)
	prometheus.MustRegister(orderErrors)
}

// MetricsHandler handles the Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordOrderSubmitted records a successful order submission
func RecordOrderSubmitted(symbol, side string) {
	ordersSubmitted.WithLabelValues(symbol, side).Inc()
}

// RecordOrderFinal records an order reaching a terminal state
func RecordOrderFinal(symbol, status string, elapsed time.Duration) {
	ordersFinal.WithLabelValues(symbol, status).Inc()
	fillSeconds.WithLabelValues(symbol).Observe(elapsed.Seconds())
}

// UpdateExposure updates the portfolio exposure gauges
func UpdateExposure(totalExposure float64, positions int) {
	portfolioExposure.Set(totalExposure)
	openPositions.Set(float64(positions))
}

// RecordRiskWarnings records risk monitor warnings for a scope
func RecordRiskWarnings(scope string, count int) {
	if count > 0 {
		riskWarnings.WithLabelValues(scope).Add(float64(count))
	}
}

// RecordOrderError records an order error metric
func RecordOrderError(errorType string) {
	orderErrors.WithLabelValues(errorType).Inc()
}
