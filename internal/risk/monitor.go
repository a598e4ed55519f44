package risk

import (
	"fmt"
	"sync"
	"time"
)

// PositionRiskView is the slice of position state the monitor inspects.
// The position manager produces it so the monitor never reaches into the
// registry itself.
type PositionRiskView struct {
	Symbol        string
	CurrentPrice  float64
	UnrealizedPnL float64
	RiskAmount    float64
	TrailingStop  float64
	TimeStop      time.Time
}

// PortfolioSnapshot is an aggregate view of portfolio state for monitoring.
type PortfolioSnapshot struct {
	Drawdown       float64 // Peak-to-trough decline, positive fraction
	ExposureRatio  float64 // Aggregate open notional over capital
	MaxCorrelation float64 // Largest absolute pairwise correlation held
}

// RiskEvent records a warning the monitor emitted.
type RiskEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Scope     string    `json:"scope"` // "position" or "portfolio"
	Symbol    string    `json:"symbol,omitempty"`
	Message   string    `json:"message"`
}

// DailyStats holds the daily risk statistics feeding the risk report.
type DailyStats struct {
	Date       time.Time `json:"date"`
	Drawdown   float64   `json:"drawdown"`
	Exposure   float64   `json:"exposure"`
	Volatility float64   `json:"volatility"`
	VaR95      float64   `json:"var_95"`
	Sharpe     float64   `json:"sharpe_ratio"`
}

// RiskReport is the monitor's output surface.
type RiskReport struct {
	DailyStats      DailyStats   `json:"daily_stats"`
	RiskEvents      []RiskEvent  `json:"risk_events"`
	Alerts          []string     `json:"alerts"`
	RiskMetrics     *RiskMetrics `json:"risk_metrics"`
	Recommendations []string     `json:"recommendations"`
}

// Monitor runs continuous policy checks producing warnings. Advisory only:
// it reports, it never cancels orders or closes positions itself.
type Monitor struct {
	params    *Params
	portfolio *PortfolioRisk

	mu         sync.Mutex
	events     []RiskEvent
	alerts     []string
	dailyStats DailyStats
	now        func() time.Time
}

// NewMonitor creates a risk monitor
func NewMonitor(params *Params, portfolio *PortfolioRisk) *Monitor {
	if params == nil {
		params = DefaultParams()
	}
	return &Monitor{
		params:    params,
		portfolio: portfolio,
		now:       time.Now,
	}
}

// PositionWarnings checks one position against its risk budget, time stop
// and trailing stop.
func (m *Monitor) PositionWarnings(view PositionRiskView) []string {
	var warnings []string

	if view.UnrealizedPnL < -view.RiskAmount {
		warnings = append(warnings, fmt.Sprintf("position %s exceeds risk limit (unrealized %.2f, budget %.2f)", view.Symbol, view.UnrealizedPnL, view.RiskAmount))
	}
	if !view.TimeStop.IsZero() && m.now().After(view.TimeStop) {
		warnings = append(warnings, fmt.Sprintf("position %s reached time stop", view.Symbol))
	}
	if view.TrailingStop > 0 && view.CurrentPrice < view.TrailingStop {
		warnings = append(warnings, fmt.Sprintf("position %s hit trailing stop (price %.4f below %.4f)", view.Symbol, view.CurrentPrice, view.TrailingStop))
	}

	m.record("position", view.Symbol, warnings)
	return warnings
}

// PortfolioWarnings checks aggregate drawdown, exposure and correlation.
func (m *Monitor) PortfolioWarnings(snapshot PortfolioSnapshot) []string {
	var warnings []string

	if snapshot.Drawdown > m.params.MaxDailyDrawdown {
		warnings = append(warnings, fmt.Sprintf("portfolio exceeds daily drawdown limit (%.2f%% > %.2f%%)", snapshot.Drawdown*100, m.params.MaxDailyDrawdown*100))
	}
	if snapshot.ExposureRatio > m.params.MaxPortfolioRisk {
		warnings = append(warnings, fmt.Sprintf("portfolio exceeds exposure limit (%.2f%% > %.2f%%)", snapshot.ExposureRatio*100, m.params.MaxPortfolioRisk*100))
	}
	if snapshot.MaxCorrelation > m.params.MaxCorrelationRisk {
		warnings = append(warnings, fmt.Sprintf("portfolio exceeds correlation limit (%.2f > %.2f)", snapshot.MaxCorrelation, m.params.MaxCorrelationRisk))
	}

	m.record("portfolio", "", warnings)
	return warnings
}

// UpdateDailyStats replaces the daily risk statistics
func (m *Monitor) UpdateDailyStats(stats DailyStats) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stats.Date.IsZero() {
		stats.Date = m.now()
	}
	m.dailyStats = stats
}

// Report assembles the risk report from recorded events and the on-demand
// portfolio metrics snapshot.
func (m *Monitor) Report() *RiskReport {
	var metrics *RiskMetrics
	if m.portfolio != nil {
		metrics = m.portfolio.PortfolioMetrics()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	report := &RiskReport{
		DailyStats:  m.dailyStats,
		RiskEvents:  append([]RiskEvent(nil), m.events...),
		Alerts:      append([]string(nil), m.alerts...),
		RiskMetrics: metrics,
	}
	report.Recommendations = m.recommendations(metrics)
	return report
}

// record captures warnings as risk events and alerts
func (m *Monitor) record(scope, symbol string, warnings []string) {
	if len(warnings) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range warnings {
		m.events = append(m.events, RiskEvent{
			Timestamp: m.now(),
			Scope:     scope,
			Symbol:    symbol,
			Message:   w,
		})
		m.alerts = append(m.alerts, w)
	}
}

// recommendations derives advisory actions from the metrics snapshot
func (m *Monitor) recommendations(metrics *RiskMetrics) []string {
	var recs []string
	if metrics == nil {
		return recs
	}
	if metrics.MaxDrawdown > m.params.MaxDailyDrawdown {
		recs = append(recs, "reduce position sizes until drawdown recovers")
	}
	if metrics.Correlation > m.params.MaxCorrelationRisk {
		recs = append(recs, "diversify holdings to lower pairwise correlation")
	}
	if metrics.SharpeRatio < 0 {
		recs = append(recs, "review strategy: risk-adjusted returns are negative")
	}
	if len(recs) == 0 {
		recs = append(recs, "risk profile within configured limits")
	}
	return recs
}
