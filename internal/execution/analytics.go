package execution

import (
	"math"
	"sync"
	"time"

	"github.com/quantrade/trading-core/internal/broker"
	"github.com/quantrade/trading-core/internal/order"
)

// ExecutionMetrics captures realized execution quality for one order.
type ExecutionMetrics struct {
	Slippage      float64 `json:"slippage"`       // Relative to the pre-trade snapshot price
	MarketImpact  float64 `json:"market_impact"`  // Model estimate for the filled size
	TimingCost    float64 `json:"timing_cost"`    // Half-spread cost of crossing
	TotalCost     float64 `json:"total_cost"`     // Sum of the above
	ExecutionTime float64 `json:"execution_time"` // Seconds from creation to terminal state
	SuccessRate   float64 `json:"success_rate"`   // 1 for filled, 0 otherwise
}

// ExecutionRecord is one tracked execution.
type ExecutionRecord struct {
	OrderID   string           `json:"order_id"`
	Symbol    string           `json:"symbol"`
	Side      order.Side       `json:"side"`
	Status    order.Status     `json:"status"`
	Quantity  float64          `json:"quantity"`
	FillPrice float64          `json:"fill_price"`
	Timestamp time.Time        `json:"timestamp"`
	Metrics   ExecutionMetrics `json:"metrics"`
}

// OverallMetrics aggregates execution quality across tracked orders.
type OverallMetrics struct {
	Executions       int     `json:"executions"`
	FillRate         float64 `json:"fill_rate"`
	AvgSlippage      float64 `json:"avg_slippage"`
	AvgTotalCost     float64 `json:"avg_total_cost"`
	AvgExecutionTime float64 `json:"avg_execution_time"`
}

// PerformanceReport is the tracker's output surface.
type PerformanceReport struct {
	OverallMetrics   OverallMetrics     `json:"overall_metrics"`
	RecentExecutions []ExecutionRecord  `json:"recent_executions"`
	CostAnalysis     map[string]float64 `json:"cost_analysis"`
	Recommendations  []string           `json:"recommendations"`
}

const recentWindow = 20

// PerformanceTracker records realized execution quality metrics. It is a
// consumer of completed orders, not a dependency of the control path.
// Constructed once at startup and explicitly owned by the caller.
type PerformanceTracker struct {
	mu         sync.Mutex
	impact     MarketImpactModel
	executions map[string]ExecutionRecord
	recent     []ExecutionRecord
}

// NewPerformanceTracker creates an empty tracker
func NewPerformanceTracker() *PerformanceTracker {
	return &PerformanceTracker{
		executions: make(map[string]ExecutionRecord),
	}
}

// TrackExecution records the metrics for a finished order against the
// market snapshot taken before submission.
func (t *PerformanceTracker) TrackExecution(o *order.Order, snap *broker.MarketSnapshot) {
	if o == nil || snap == nil {
		return
	}

	record := ExecutionRecord{
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Status:    o.Status,
		Quantity:  o.Quantity,
		FillPrice: o.AvgFillPrice,
		Timestamp: time.Now(),
		Metrics:   t.calculateMetrics(o, snap),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.executions[o.ID] = record
	t.recent = append(t.recent, record)
	if len(t.recent) > recentWindow {
		t.recent = t.recent[1:]
	}
}

// calculateMetrics derives the per-execution quality metrics
func (t *PerformanceTracker) calculateMetrics(o *order.Order, snap *broker.MarketSnapshot) ExecutionMetrics {
	m := ExecutionMetrics{
		ExecutionTime: o.UpdatedAt.Sub(o.CreatedAt).Seconds(),
	}
	if o.Status == order.StatusFilled {
		m.SuccessRate = 1.0
	}

	if o.AvgFillPrice > 0 && snap.Price > 0 {
		slippage := (o.AvgFillPrice - snap.Price) / snap.Price
		if o.Side == order.SideSell {
			slippage = -slippage
		}
		m.Slippage = slippage
	}

	m.MarketImpact = t.impact.EstimateImpact(o.FilledQuantity, snap.AverageVolume, snap.Volatility, snap.Spread)
	if snap.Price > 0 {
		m.TimingCost = snap.Spread / snap.Price / 2
	}
	m.TotalCost = m.Slippage + m.MarketImpact + m.TimingCost

	return m
}

// Execution returns the tracked record for an order id
func (t *PerformanceTracker) Execution(orderID string) (ExecutionRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.executions[orderID]
	return r, ok
}

// Report assembles the execution performance report
func (t *PerformanceTracker) Report() *PerformanceReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	report := &PerformanceReport{
		RecentExecutions: append([]ExecutionRecord(nil), t.recent...),
		CostAnalysis:     make(map[string]float64),
	}

	if len(t.executions) == 0 {
		report.Recommendations = []string{"no executions recorded yet"}
		return report
	}

	var filled int
	var sumSlippage, sumCost, sumTime, sumImpact, sumTiming float64
	var worstSlippage float64
	for _, r := range t.executions {
		if r.Status == order.StatusFilled {
			filled++
		}
		sumSlippage += r.Metrics.Slippage
		sumCost += r.Metrics.TotalCost
		sumTime += r.Metrics.ExecutionTime
		sumImpact += r.Metrics.MarketImpact
		sumTiming += r.Metrics.TimingCost
		if math.Abs(r.Metrics.Slippage) > math.Abs(worstSlippage) {
			worstSlippage = r.Metrics.Slippage
		}
	}

	n := float64(len(t.executions))
	report.OverallMetrics = OverallMetrics{
		Executions:       len(t.executions),
		FillRate:         float64(filled) / n,
		AvgSlippage:      sumSlippage / n,
		AvgTotalCost:     sumCost / n,
		AvgExecutionTime: sumTime / n,
	}

	report.CostAnalysis["avg_slippage"] = sumSlippage / n
	report.CostAnalysis["avg_market_impact"] = sumImpact / n
	report.CostAnalysis["avg_timing_cost"] = sumTiming / n
	report.CostAnalysis["worst_slippage"] = worstSlippage

	report.Recommendations = t.recommendations(report.OverallMetrics)

	return report
}

// recommendations derives advisory actions from aggregate metrics
func (t *PerformanceTracker) recommendations(m OverallMetrics) []string {
	var recs []string
	if m.FillRate < 0.9 {
		recs = append(recs, "fill rate below 90%: review order types and limit placement")
	}
	if m.AvgSlippage > 0.001 {
		recs = append(recs, "average slippage above 10bps: consider paced execution for large sizes")
	}
	if m.AvgExecutionTime > 60 {
		recs = append(recs, "slow executions: review monitoring interval and venue latency")
	}
	if len(recs) == 0 {
		recs = append(recs, "execution quality within expected bounds")
	}
	return recs
}
