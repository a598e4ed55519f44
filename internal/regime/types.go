package regime

// Trend classifies the prevailing market direction.
type Trend string

const (
	TrendBullish Trend = "BULLISH"
	TrendBearish Trend = "BEARISH"
	TrendNeutral Trend = "NEUTRAL"
)

// Volatility classifies the current volatility environment.
type Volatility string

const (
	VolatilityHigh   Volatility = "HIGH"
	VolatilityNormal Volatility = "NORMAL"
	VolatilityLow    Volatility = "LOW"
)

// MarketRegime is a read-only classification supplied by the analysis
// subsystem. Consumers never mutate it.
type MarketRegime struct {
	Trend      Trend      `json:"trend"`
	Volatility Volatility `json:"volatility"`
	Strength   float64    `json:"strength"`   // Combined trend strength (0-1)
	Confidence float64    `json:"confidence"` // Classification confidence (0-1)
}

// Neutral returns the default regime used when no classification is available.
func Neutral() MarketRegime {
	return MarketRegime{
		Trend:      TrendNeutral,
		Volatility: VolatilityNormal,
		Strength:   0.5,
		Confidence: 0.5,
	}
}
