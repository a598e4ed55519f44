package risk

import (
	"encoding/json"
	"fmt"
	"os"
)

// Params holds the recognized risk configuration options. Immutable after
// construction; every component reads, only the constructor writes.
type Params struct {
	MaxPositionSize       float64 `json:"max_position_size"`       // 2% max risk per trade
	MaxPortfolioRisk      float64 `json:"max_portfolio_risk"`      // 5% max portfolio exposure
	MaxCorrelationRisk    float64 `json:"max_correlation_risk"`    // 30% max pairwise correlation
	MaxSectorExposure     float64 `json:"max_sector_exposure"`     // 20% max sector exposure
	MaxDailyDrawdown      float64 `json:"max_daily_drawdown"`      // 3% max daily drawdown
	PositionScalingFactor float64 `json:"position_scaling_factor"` // Scale positions by 50% in high risk
	StopLossATRFactor     float64 `json:"stop_loss_atr_factor"`    // ATR multiplier for stops
	TimeStopDays          int     `json:"time_stop_days"`          // Horizon for the time-based stop
	StrongTrendThreshold  float64 `json:"strong_trend_threshold"`  // Regime strength counting as a strong trend
}

// DefaultParams returns the default risk configuration
func DefaultParams() *Params {
	return &Params{
		MaxPositionSize:       0.02,
		MaxPortfolioRisk:      0.05,
		MaxCorrelationRisk:    0.3,
		MaxSectorExposure:     0.2,
		MaxDailyDrawdown:      0.03,
		PositionScalingFactor: 0.5,
		StopLossATRFactor:     2.0,
		TimeStopDays:          5,
		StrongTrendThreshold:  0.7,
	}
}

// LoadParams reads risk parameters from a JSON file, applying defaults for
// any option the file omits.
func LoadParams(path string) (*Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read risk params file: %w", err)
	}

	params := DefaultParams()
	if err := json.Unmarshal(data, params); err != nil {
		return nil, fmt.Errorf("failed to parse risk params file %s: %w", path, err)
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return params, nil
}

// Validate rejects configurations that would disable risk controls
func (p *Params) Validate() error {
	if p.MaxPositionSize <= 0 || p.MaxPositionSize > 1 {
		return fmt.Errorf("max_position_size %.4f outside (0,1]", p.MaxPositionSize)
	}
	if p.MaxPortfolioRisk <= 0 || p.MaxPortfolioRisk > 1 {
		return fmt.Errorf("max_portfolio_risk %.4f outside (0,1]", p.MaxPortfolioRisk)
	}
	if p.StopLossATRFactor <= 0 {
		return fmt.Errorf("stop_loss_atr_factor must be positive, got %.4f", p.StopLossATRFactor)
	}
	if p.PositionScalingFactor <= 0 || p.PositionScalingFactor > 1 {
		return fmt.Errorf("position_scaling_factor %.4f outside (0,1]", p.PositionScalingFactor)
	}
	if p.TimeStopDays <= 0 {
		return fmt.Errorf("time_stop_days must be positive, got %d", p.TimeStopDays)
	}
	return nil
}
