package risk

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/quantrade/trading-core/internal/regime"
	"github.com/quantrade/trading-core/internal/signal"
)

// ErrInvalidStopDistance indicates a zero or negative risk distance between
// entry and stop. Sizing fails fast rather than silently clamping.
var ErrInvalidStopDistance = errors.New("invalid stop distance")

// PositionClass tags how the regime adjustment shaped a position.
type PositionClass string

const (
	PositionFull    PositionClass = "full"
	PositionScaled  PositionClass = "scaled"
	PositionReduced PositionClass = "reduced"
)

// PositionSize is the sized outcome of a signal. RiskAmount is fixed at
// capital times the configured per-trade risk fraction; the regime, signal
// and portfolio adjustments scale units, never the risk amount.
type PositionSize struct {
	Units          float64       `json:"units"`
	Value          float64       `json:"value"`
	RiskAmount     float64       `json:"risk_amount"`
	RiskPercent    float64       `json:"risk_percent"`
	Classification PositionClass `json:"classification"`
}

// StopLevels holds the protective levels for a position. TrailingStop
// ratchets toward locking in gains and never loosens once set.
type StopLevels struct {
	InitialStop   float64   `json:"initial_stop"`
	TrailingStop  float64   `json:"trailing_stop"`
	BreakevenStop float64   `json:"breakeven_stop"`
	TimeStop      time.Time `json:"time_stop"`
	ProfitStops   []float64 `json:"profit_stops"` // Ordered ascending
}

// ClampPolicy caps sized units against portfolio-level limits. The default
// halves units on a correlation breach and caps notional at the remaining
// sector headroom; installs a custom policy for different clamping rules.
type ClampPolicy func(units, entryPrice float64, symbol, sector string, portfolio *PortfolioRisk, params *Params, capital float64) float64

// DefaultClampPolicy hard-caps units so the position passes the correlation
// and sector checks.
func DefaultClampPolicy(units, entryPrice float64, symbol, sector string, portfolio *PortfolioRisk, params *Params, capital float64) float64 {
	if portfolio == nil || units <= 0 {
		return units
	}
	if !portfolio.CheckCorrelationLimit(symbol) {
		units *= params.PositionScalingFactor
	}
	if sector != "" && entryPrice > 0 {
		headroom := capital*params.MaxSectorExposure - portfolio.SectorExposure(sector)
		if headroom < 0 {
			headroom = 0
		}
		if units*entryPrice > headroom {
			units = headroom / entryPrice
		}
	}
	return units
}

// Manager is the pure numeric risk policy over capital, signal strength and
// market regime. Configuration is immutable after construction.
type Manager struct {
	capital   float64
	params    *Params
	portfolio *PortfolioRisk
	clamp     ClampPolicy
	now       func() time.Time
}

// NewManager creates a risk manager for the given capital. A nil params
// uses defaults; a nil portfolio skips correlation and sector clamping.
func NewManager(capital float64, params *Params, portfolio *PortfolioRisk) *Manager {
	if params == nil {
		params = DefaultParams()
	}
	return &Manager{
		capital:   capital,
		params:    params,
		portfolio: portfolio,
		clamp:     DefaultClampPolicy,
		now:       time.Now,
	}
}

// SetClampPolicy replaces the risk-limit clamping rule
func (m *Manager) SetClampPolicy(policy ClampPolicy) {
	if policy != nil {
		m.clamp = policy
	}
}

// Capital returns the configured trading capital
func (m *Manager) Capital() float64 { return m.capital }

// Params returns the immutable risk configuration
func (m *Manager) Params() *Params { return m.params }

// Portfolio returns the portfolio risk bookkeeper, if configured
func (m *Manager) Portfolio() *PortfolioRisk { return m.portfolio }

// ValidateSignal checks a signal and its proposed size before execution
func (m *Manager) ValidateSignal(sig *signal.Signal, size float64) error {
	if err := sig.Validate(); err != nil {
		return err
	}
	if size <= 0 {
		return fmt.Errorf("%w: position size must be positive, got %.4f", signal.ErrInvalidSignal, size)
	}
	return nil
}

// CalculatePositionSize sizes a position from entry/stop distance, signal
// strength, market regime and current portfolio exposure. The exposure
// ratio must come from a consistent snapshot of the position registry.
func (m *Manager) CalculatePositionSize(symbol, sector string, entryPrice, stopPrice, signalStrength float64, reg regime.MarketRegime, exposureRatio float64) (*PositionSize, error) {
	riskAmount := m.capital * m.params.MaxPositionSize

	riskPerUnit := math.Abs(entryPrice - stopPrice)
	if riskPerUnit <= 0 {
		return nil, fmt.Errorf("%w: entry %.4f, stop %.4f", ErrInvalidStopDistance, entryPrice, stopPrice)
	}

	baseUnits := riskAmount / riskPerUnit

	regimeFactor := m.regimeAdjustment(reg)
	signalFactor := m.signalAdjustment(signalStrength)
	portfolioFactor := m.portfolioAdjustment(exposureRatio)

	units := baseUnits * regimeFactor * signalFactor * portfolioFactor
	units = m.clamp(units, entryPrice, symbol, sector, m.portfolio, m.params, m.capital)

	return &PositionSize{
		Units:          units,
		Value:          units * entryPrice,
		RiskAmount:     riskAmount,
		RiskPercent:    riskAmount / m.capital,
		Classification: classify(regimeFactor),
	}, nil
}

// CalculateStopLevels derives the protective stop ladder for an entry
func (m *Manager) CalculateStopLevels(entryPrice, atr float64, reg regime.MarketRegime) *StopLevels {
	stopFactor := m.params.StopLossATRFactor
	if reg.Volatility == regime.VolatilityHigh {
		stopFactor *= 1.5
	}

	initialStop := entryPrice - atr*stopFactor
	stopDistance := entryPrice - initialStop

	profitStops := make([]float64, 0, 3)
	for _, multiplier := range []float64{1.5, 2.0, 3.0} {
		profitStops = append(profitStops, entryPrice+stopDistance*multiplier)
	}

	return &StopLevels{
		InitialStop:   initialStop,
		TrailingStop:  entryPrice - atr*3,
		BreakevenStop: entryPrice + stopDistance*0.3,
		TimeStop:      m.now().AddDate(0, 0, m.params.TimeStopDays),
		ProfitStops:   profitStops,
	}
}

// regimeAdjustment scales position size for the market regime
func (m *Manager) regimeAdjustment(reg regime.MarketRegime) float64 {
	switch {
	case reg.Volatility == regime.VolatilityHigh:
		return m.params.PositionScalingFactor
	case reg.Volatility == regime.VolatilityLow && reg.Strength >= m.params.StrongTrendThreshold:
		return 1.2
	default:
		return 1.0
	}
}

// signalAdjustment scales position size for signal conviction
func (m *Manager) signalAdjustment(strength float64) float64 {
	switch {
	case strength > 0.8:
		return 1.2
	case strength < 0.4:
		return 0.8
	default:
		return 1.0
	}
}

// portfolioAdjustment scales position size for current exposure
func (m *Manager) portfolioAdjustment(exposureRatio float64) float64 {
	switch {
	case exposureRatio > m.params.MaxPortfolioRisk:
		return 0.5
	case exposureRatio < m.params.MaxPortfolioRisk*0.5:
		return 1.2
	default:
		return 1.0
	}
}

func classify(regimeFactor float64) PositionClass {
	switch {
	case regimeFactor < 1.0:
		return PositionReduced
	case regimeFactor > 1.0:
		return PositionScaled
	default:
		return PositionFull
	}
}
