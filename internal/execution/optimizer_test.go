package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantrade/trading-core/internal/broker"
	"github.com/quantrade/trading-core/internal/order"
	"github.com/quantrade/trading-core/internal/signal"
)

func calmSnapshot() *broker.MarketSnapshot {
	return &broker.MarketSnapshot{
		Symbol:        "BTCUSDT",
		Price:         100,
		Spread:        0.02,
		Volume:        50000,
		Volatility:    0.01,
		AverageVolume: 1000000,
	}
}

func buySignal() *signal.Signal {
	return &signal.Signal{
		Symbol:   "BTCUSDT",
		Side:     order.SideBuy,
		Price:    100,
		StopLoss: 98,
		Strength: 0.7,
	}
}

// TestEstimateImpact tests the participation-based impact model
func TestEstimateImpact(t *testing.T) {
	var m MarketImpactModel

	// (1000 / 1e6) * 0.01 * 0.02 = 2e-7
	assert.InDelta(t, 2e-7, m.EstimateImpact(1000, 1000000, 0.01, 0.02), 1e-12)
	assert.Equal(t, 0.0, m.EstimateImpact(1000, 0, 0.01, 0.02), "no volume data, no estimate")
}

// TestOptimalTiming tests the volatility-driven pacing decision
func TestOptimalTiming(t *testing.T) {
	timing := TimingOptimizer{VolatilityThreshold: 0.02}

	calm := timing.OptimalTiming(0.01)
	assert.Equal(t, TimingImmediate, calm.Kind)
	assert.Equal(t, 1, calm.Slices)
	assert.Equal(t, 5*time.Minute, calm.Duration)

	volatile := timing.OptimalTiming(0.03)
	assert.Equal(t, TimingTWAP, volatile.Kind)
	assert.Equal(t, 6, volatile.Slices)
	assert.Equal(t, 30*time.Minute, volatile.Duration)
}

// TestOptimalStrategy_LowImpactIsDirect tests the direct market path
func TestOptimalStrategy_LowImpactIsDirect(t *testing.T) {
	o := NewOptimizer()

	strategy := o.OptimalStrategy(buySignal(), calmSnapshot(), 1000)

	assert.Equal(t, order.TypeMarket, strategy.OrderType)
	assert.Equal(t, 1000.0, strategy.Quantity)
	assert.Equal(t, 0.0, strategy.Price)
	assert.False(t, strategy.Algorithmic)
	assert.Equal(t, TimingImmediate, strategy.Timing.Kind)
	assert.Equal(t, "GTC", strategy.TimeInForce)
}

// TestOptimalStrategy_HighImpactIsAlgorithmic tests the paced limit path
func TestOptimalStrategy_HighImpactIsAlgorithmic(t *testing.T) {
	o := NewOptimizer()

	snap := calmSnapshot()
	snap.AverageVolume = 1000
	snap.Volatility = 0.05
	snap.Spread = 0.5
	// impact = (2000/1000) * 0.05 * 0.5 = 0.05 > 0.01

	strategy := o.OptimalStrategy(buySignal(), snap, 2000)

	assert.Equal(t, order.TypeLimit, strategy.OrderType)
	assert.Equal(t, 100.0, strategy.Price, "limit pegged to the signal price")
	assert.True(t, strategy.Algorithmic)
	assert.Equal(t, TimingTWAP, strategy.Timing.Kind)
	assert.InDelta(t, 0.05, strategy.EstimatedImpact, 1e-9)
}

// TestOptimalStrategy_HighImpactCalmMarketStillPaced tests that impact alone
// forces pacing even below the volatility threshold.
func TestOptimalStrategy_HighImpactCalmMarketStillPaced(t *testing.T) {
	o := NewOptimizer()

	snap := calmSnapshot()
	snap.AverageVolume = 100
	snap.Spread = 2
	// volatility 0.01 below threshold; impact = (1000/100)*0.01*2 = 0.2

	strategy := o.OptimalStrategy(buySignal(), snap, 1000)

	assert.True(t, strategy.Algorithmic)
	assert.Equal(t, TimingTWAP, strategy.Timing.Kind)
	assert.Equal(t, 6, strategy.Timing.Slices)
}

// TestOptimalStrategy_Deterministic tests that identical inputs produce
// identical plans.
func TestOptimalStrategy_Deterministic(t *testing.T) {
	o := NewOptimizer()

	first := o.OptimalStrategy(buySignal(), calmSnapshot(), 500)
	second := o.OptimalStrategy(buySignal(), calmSnapshot(), 500)
	assert.Equal(t, first, second)
}
