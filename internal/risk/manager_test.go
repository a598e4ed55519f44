package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantrade/trading-core/internal/order"
	"github.com/quantrade/trading-core/internal/regime"
	"github.com/quantrade/trading-core/internal/signal"
)

func neutralRegime() regime.MarketRegime {
	return regime.MarketRegime{
		Trend:      regime.TrendNeutral,
		Volatility: regime.VolatilityNormal,
		Strength:   0.5,
		Confidence: 0.5,
	}
}

// TestCalculatePositionSize_LowExposureScalesUp tests the sizing chain with
// normal volatility, moderate strength and low current exposure.
func TestCalculatePositionSize_LowExposureScalesUp(t *testing.T) {
	m := NewManager(100000, DefaultParams(), nil)

	// risk_amount = 100000 * 0.02 = 2000; base = 2000 / 2 = 1000 units.
	// Regime and signal factors stay 1.0; exposure 0.02 < half of 0.05
	// scales by 1.2.
	size, err := m.CalculatePositionSize("AAPL", "", 100, 98, 0.75, neutralRegime(), 0.02)
	assert.NoError(t, err)

	assert.InDelta(t, 1200, size.Units, 1e-9)
	assert.InDelta(t, 120000, size.Value, 1e-9)
	assert.InDelta(t, 2000, size.RiskAmount, 1e-9)
	assert.InDelta(t, 0.02, size.RiskPercent, 1e-9)
	assert.Equal(t, PositionFull, size.Classification)
}

// TestCalculatePositionSize_RiskAmountInvariant tests that adjustments scale
// units only, never the risk amount.
func TestCalculatePositionSize_RiskAmountInvariant(t *testing.T) {
	m := NewManager(100000, DefaultParams(), nil)

	cases := []struct {
		name     string
		reg      regime.MarketRegime
		strength float64
		exposure float64
	}{
		{"high volatility", regime.MarketRegime{Volatility: regime.VolatilityHigh}, 0.5, 0.03},
		{"strong conviction", neutralRegime(), 0.9, 0.03},
		{"weak conviction", neutralRegime(), 0.2, 0.03},
		{"overexposed", neutralRegime(), 0.5, 0.10},
	}
	for _, tc := range cases {
		size, err := m.CalculatePositionSize("AAPL", "", 100, 98, tc.strength, tc.reg, tc.exposure)
		assert.NoError(t, err, tc.name)
		assert.InDelta(t, 2000, size.RiskAmount, 1e-9, tc.name)
	}
}

// TestCalculatePositionSize_RegimeAdjustment tests regime scaling factors
func TestCalculatePositionSize_RegimeAdjustment(t *testing.T) {
	m := NewManager(100000, DefaultParams(), nil)

	highVol := regime.MarketRegime{Volatility: regime.VolatilityHigh, Strength: 0.5}
	size, err := m.CalculatePositionSize("AAPL", "", 100, 98, 0.5, highVol, 0.03)
	assert.NoError(t, err)
	assert.InDelta(t, 500, size.Units, 1e-9) // 1000 * 0.5
	assert.Equal(t, PositionReduced, size.Classification)

	strongLowVol := regime.MarketRegime{Volatility: regime.VolatilityLow, Strength: 0.8}
	size, err = m.CalculatePositionSize("AAPL", "", 100, 98, 0.5, strongLowVol, 0.03)
	assert.NoError(t, err)
	assert.InDelta(t, 1200, size.Units, 1e-9) // 1000 * 1.2
	assert.Equal(t, PositionScaled, size.Classification)
}

// TestCalculatePositionSize_SignalAdjustment tests conviction scaling
func TestCalculatePositionSize_SignalAdjustment(t *testing.T) {
	m := NewManager(100000, DefaultParams(), nil)

	strong, err := m.CalculatePositionSize("AAPL", "", 100, 98, 0.9, neutralRegime(), 0.03)
	assert.NoError(t, err)
	assert.InDelta(t, 1200, strong.Units, 1e-9)

	weak, err := m.CalculatePositionSize("AAPL", "", 100, 98, 0.2, neutralRegime(), 0.03)
	assert.NoError(t, err)
	assert.InDelta(t, 800, weak.Units, 1e-9)
}

// TestCalculatePositionSize_OverexposureHalves tests the portfolio factor
func TestCalculatePositionSize_OverexposureHalves(t *testing.T) {
	m := NewManager(100000, DefaultParams(), nil)

	size, err := m.CalculatePositionSize("AAPL", "", 100, 98, 0.5, neutralRegime(), 0.10)
	assert.NoError(t, err)
	assert.InDelta(t, 500, size.Units, 1e-9)
}

// TestCalculatePositionSize_InvalidStopDistance tests the fail-fast path
// when entry equals stop.
func TestCalculatePositionSize_InvalidStopDistance(t *testing.T) {
	m := NewManager(100000, DefaultParams(), nil)

	_, err := m.CalculatePositionSize("AAPL", "", 100, 100, 0.5, neutralRegime(), 0.02)
	assert.ErrorIs(t, err, ErrInvalidStopDistance)
}

// TestCalculatePositionSize_CorrelationClamp tests the default clamp policy
// halving units on a correlation breach.
func TestCalculatePositionSize_CorrelationClamp(t *testing.T) {
	params := DefaultParams()
	portfolio := NewPortfolioRisk(100000, params)
	portfolio.UpdateCorrelations(map[string][]float64{
		"AAPL": {100, 101, 103, 102, 105, 104, 107},
		"MSFT": {200, 202, 206, 204, 210, 208, 214},
	})
	portfolio.RefreshExposure(map[string]float64{"MSFT": 10000}, nil)

	m := NewManager(100000, params, portfolio)

	size, err := m.CalculatePositionSize("AAPL", "", 100, 98, 0.5, neutralRegime(), 0.03)
	assert.NoError(t, err)
	// Perfectly correlated series breach the 0.3 limit; units halve.
	assert.InDelta(t, 500, size.Units, 1e-9)
	assert.InDelta(t, 2000, size.RiskAmount, 1e-9, "risk amount unchanged by clamping")
}

// TestCalculateStopLevels_NormalVolatility tests the stop ladder for an
// entry at 100 with ATR 5.
func TestCalculateStopLevels_NormalVolatility(t *testing.T) {
	m := NewManager(100000, DefaultParams(), nil)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stops := m.CalculateStopLevels(100, 5, neutralRegime())

	assert.InDelta(t, 90, stops.InitialStop, 1e-9)   // 100 - 5*2.0
	assert.InDelta(t, 85, stops.TrailingStop, 1e-9)  // 100 - 5*3
	assert.InDelta(t, 103, stops.BreakevenStop, 1e-9) // 100 + 10*0.3
	assert.Equal(t, now.AddDate(0, 0, 5), stops.TimeStop)
	assert.Equal(t, []float64{115, 120, 130}, stops.ProfitStops)
}

// TestCalculateStopLevels_HighVolatilityWidens tests the 1.5x stop widening
func TestCalculateStopLevels_HighVolatilityWidens(t *testing.T) {
	m := NewManager(100000, DefaultParams(), nil)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	highVol := regime.MarketRegime{Volatility: regime.VolatilityHigh}
	stops := m.CalculateStopLevels(100, 5, highVol)

	assert.InDelta(t, 85, stops.InitialStop, 1e-9)     // 100 - 5*2.0*1.5
	assert.InDelta(t, 85, stops.TrailingStop, 1e-9)    // 100 - 5*3
	assert.InDelta(t, 104.5, stops.BreakevenStop, 1e-9) // 100 + 15*0.3
	assert.Equal(t, []float64{122.5, 130, 145}, stops.ProfitStops)
}

// TestValidateSignal tests the pre-execution validation gate
func TestValidateSignal(t *testing.T) {
	m := NewManager(100000, DefaultParams(), nil)

	sig := &signal.Signal{
		Symbol:   "AAPL",
		Side:     order.SideBuy,
		Price:    100,
		StopLoss: 98,
		Strength: 0.7,
	}
	assert.NoError(t, m.ValidateSignal(sig, 100))
	assert.Error(t, m.ValidateSignal(sig, 0))
	assert.Error(t, m.ValidateSignal(sig, -5))

	bad := &signal.Signal{Symbol: "", Side: order.SideBuy, Price: 100, Strength: 0.5}
	assert.ErrorIs(t, m.ValidateSignal(bad, 100), signal.ErrInvalidSignal)
}

// TestSetClampPolicy tests installing a custom clamp
func TestSetClampPolicy(t *testing.T) {
	m := NewManager(100000, DefaultParams(), nil)
	m.SetClampPolicy(func(units, entryPrice float64, symbol, sector string, portfolio *PortfolioRisk, params *Params, capital float64) float64 {
		if units > 100 {
			return 100
		}
		return units
	})

	size, err := m.CalculatePositionSize("AAPL", "", 100, 98, 0.5, neutralRegime(), 0.03)
	assert.NoError(t, err)
	assert.InDelta(t, 100, size.Units, 1e-9)
}
