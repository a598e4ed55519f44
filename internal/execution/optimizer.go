package execution

import (
	"time"

	"github.com/quantrade/trading-core/internal/broker"
	"github.com/quantrade/trading-core/internal/order"
	"github.com/quantrade/trading-core/internal/signal"
)

// TimingKind labels an execution pacing plan.
type TimingKind string

const (
	TimingImmediate TimingKind = "IMMEDIATE"
	TimingTWAP      TimingKind = "TWAP"
)

// TimingPlan is an execution pacing decision: how many slices over how long.
type TimingPlan struct {
	Kind     TimingKind    `json:"kind"`
	Duration time.Duration `json:"duration"`
	Slices   int           `json:"slices"`
}

// Strategy is an execution plan for a single signal.
type Strategy struct {
	OrderType       order.Type `json:"order_type"`
	Quantity        float64    `json:"quantity"`
	Price           float64    `json:"price,omitempty"` // Limit price, 0 for market
	TimeInForce     string     `json:"time_in_force"`
	Timing          TimingPlan `json:"timing"`
	EstimatedImpact float64    `json:"estimated_impact"`
	Algorithmic     bool       `json:"algorithmic"`
}

// MarketImpactModel estimates the adverse price movement caused by
// executing a given size. Pure function of its inputs.
type MarketImpactModel struct{}

// EstimateImpact estimates market impact as volume participation scaled by
// volatility and spread.
func (MarketImpactModel) EstimateImpact(size, avgVolume, volatility, spread float64) float64 {
	if avgVolume <= 0 {
		return 0
	}
	return (size / avgVolume) * volatility * spread
}

// TimingOptimizer chooses execution pacing from current volatility.
type TimingOptimizer struct {
	// VolatilityThreshold above which execution is paced out.
	VolatilityThreshold float64
}

// OptimalTiming returns a paced plan in volatile markets and an immediate
// plan otherwise.
func (t TimingOptimizer) OptimalTiming(volatility float64) TimingPlan {
	if volatility > t.VolatilityThreshold {
		return TimingPlan{Kind: TimingTWAP, Duration: 30 * time.Minute, Slices: 6}
	}
	return TimingPlan{Kind: TimingImmediate, Duration: 5 * time.Minute, Slices: 1}
}

// Optimizer composes the impact model and timing optimizer into an
// execution strategy. Fully deterministic; no hidden state.
type Optimizer struct {
	impact MarketImpactModel
	timing TimingOptimizer

	// ImpactThreshold above which the plan switches to algorithmic pacing.
	ImpactThreshold float64
}

// NewOptimizer creates an execution optimizer with default thresholds
func NewOptimizer() *Optimizer {
	return &Optimizer{
		timing:          TimingOptimizer{VolatilityThreshold: 0.02},
		ImpactThreshold: 0.01,
	}
}

// OptimalStrategy builds the execution strategy for a signal given market
// conditions and the trade size.
func (o *Optimizer) OptimalStrategy(sig *signal.Signal, snap *broker.MarketSnapshot, size float64) *Strategy {
	impact := o.impact.EstimateImpact(size, snap.AverageVolume, snap.Volatility, snap.Spread)
	timing := o.timing.OptimalTiming(snap.Volatility)

	if impact > o.ImpactThreshold {
		return o.algorithmicStrategy(sig, size, impact, timing)
	}
	return o.directStrategy(size, impact, timing)
}

// algorithmicStrategy paces a high-impact order out as limit slices
func (o *Optimizer) algorithmicStrategy(sig *signal.Signal, size, impact float64, timing TimingPlan) *Strategy {
	if timing.Kind == TimingImmediate {
		// High impact forces pacing even in calm markets.
		timing = TimingPlan{Kind: TimingTWAP, Duration: 30 * time.Minute, Slices: 6}
	}
	return &Strategy{
		OrderType:       order.TypeLimit,
		Quantity:        size,
		Price:           sig.Price,
		TimeInForce:     "GTC",
		Timing:          timing,
		EstimatedImpact: impact,
		Algorithmic:     true,
	}
}

// directStrategy executes a low-impact order in a single market shot
func (o *Optimizer) directStrategy(size, impact float64, timing TimingPlan) *Strategy {
	return &Strategy{
		OrderType:       order.TypeMarket,
		Quantity:        size,
		TimeInForce:     "GTC",
		Timing:          timing,
		EstimatedImpact: impact,
	}
}
