package risk

import (
	"math"
	"sort"
	"sync"
)

// RiskMetrics is a read-only snapshot of portfolio risk, recomputed on
// demand from the historical return series of aggregated portfolio value.
type RiskMetrics struct {
	VaR95        float64 `json:"var_95"`
	CVaR95       float64 `json:"cvar_95"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	SortinoRatio float64 `json:"sortino_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	Beta         float64 `json:"beta"`
	Correlation  float64 `json:"correlation"`
	Volatility   float64 `json:"volatility"`
}

const periodsPerYear = 252

// PortfolioRisk owns the correlation matrix and sector-exposure map. Both
// are derived from the position registry but cached here and refreshed only
// by its own update operations.
type PortfolioRisk struct {
	mu             sync.RWMutex
	capital        float64
	params         *Params
	correlations   map[string]map[string]float64
	sectorExposure map[string]float64
	held           map[string]float64 // symbol -> open notional
	valueHistory   []float64
	benchmark      []float64
}

// NewPortfolioRisk creates the portfolio risk bookkeeper
func NewPortfolioRisk(capital float64, params *Params) *PortfolioRisk {
	if params == nil {
		params = DefaultParams()
	}
	return &PortfolioRisk{
		capital:        capital,
		params:         params,
		correlations:   make(map[string]map[string]float64),
		sectorExposure: make(map[string]float64),
		held:           make(map[string]float64),
	}
}

// UpdateCorrelations rebuilds the correlation matrix from supplied price
// series. Correlations are computed on percentage-change returns.
func (p *PortfolioRisk) UpdateCorrelations(prices map[string][]float64) {
	returns := make(map[string][]float64, len(prices))
	for symbol, series := range prices {
		returns[symbol] = pctChange(series)
	}

	matrix := make(map[string]map[string]float64, len(returns))
	for a, ra := range returns {
		matrix[a] = make(map[string]float64, len(returns))
		for b, rb := range returns {
			matrix[a][b] = pearson(ra, rb)
		}
	}

	p.mu.Lock()
	p.correlations = matrix
	p.mu.Unlock()
}

// RefreshExposure rebuilds the held-notional view and sector-exposure map
// from a snapshot of the position registry.
func (p *PortfolioRisk) RefreshExposure(positions map[string]float64, sectors map[string]string) {
	held := make(map[string]float64, len(positions))
	sectorExposure := make(map[string]float64)
	for symbol, value := range positions {
		held[symbol] = value
		if sector, ok := sectors[symbol]; ok {
			sectorExposure[sector] += value
		}
	}

	p.mu.Lock()
	p.held = held
	p.sectorExposure = sectorExposure
	p.mu.Unlock()
}

// CheckCorrelationLimit reports whether a new position in symbol stays
// within the correlation limit against every currently held symbol.
// Unknown symbols pass; absence of data is not a breach.
func (p *PortfolioRisk) CheckCorrelationLimit(symbol string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	row, ok := p.correlations[symbol]
	if !ok {
		return true
	}
	for held := range p.held {
		if held == symbol {
			continue
		}
		if c, ok := row[held]; ok && math.Abs(c) > p.params.MaxCorrelationRisk {
			return false
		}
	}
	return true
}

// CheckSectorLimit reports whether adding value to a sector stays within
// the sector exposure limit.
func (p *PortfolioRisk) CheckSectorLimit(symbol, sector string, addedValue float64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.capital <= 0 {
		return false
	}
	return (p.sectorExposure[sector]+addedValue)/p.capital <= p.params.MaxSectorExposure
}

// SectorExposure returns the aggregate notional held in a sector
func (p *PortfolioRisk) SectorExposure(sector string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sectorExposure[sector]
}

// MaxHeldCorrelation returns the largest absolute pairwise correlation
// among currently held symbols.
func (p *PortfolioRisk) MaxHeldCorrelation() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	maxCorr := 0.0
	for a := range p.held {
		for b := range p.held {
			if a == b {
				continue
			}
			if c, ok := p.correlations[a][b]; ok && math.Abs(c) > maxCorr {
				maxCorr = math.Abs(c)
			}
		}
	}
	return maxCorr
}

// RecordValue appends an observation of aggregated portfolio value
func (p *PortfolioRisk) RecordValue(value float64) {
	p.mu.Lock()
	p.valueHistory = append(p.valueHistory, value)
	p.mu.Unlock()
}

// SetBenchmarkReturns installs the benchmark return series used for beta
func (p *PortfolioRisk) SetBenchmarkReturns(returns []float64) {
	p.mu.Lock()
	p.benchmark = append([]float64(nil), returns...)
	p.mu.Unlock()
}

// PortfolioMetrics computes the risk metrics snapshot from the historical
// return series of aggregated portfolio value. Recomputed on demand, never
// incrementally mutated.
func (p *PortfolioRisk) PortfolioMetrics() *RiskMetrics {
	p.mu.RLock()
	values := append([]float64(nil), p.valueHistory...)
	benchmark := append([]float64(nil), p.benchmark...)
	p.mu.RUnlock()

	returns := pctChange(values)
	if len(returns) == 0 {
		return &RiskMetrics{Correlation: p.MaxHeldCorrelation()}
	}

	stdDev := stddev(returns)

	metrics := &RiskMetrics{
		VaR95:       valueAtRisk(returns, 0.95),
		CVaR95:      conditionalVaR(returns, 0.95),
		MaxDrawdown: maxDrawdown(values),
		Beta:        beta(returns, benchmark),
		Correlation: p.MaxHeldCorrelation(),
		Volatility:  stdDev * math.Sqrt(periodsPerYear),
	}

	if stdDev > 0 {
		metrics.SharpeRatio = mean(returns) / stdDev * math.Sqrt(periodsPerYear)
	}
	if dd := downsideDev(returns); dd > 0 {
		metrics.SortinoRatio = mean(returns) / dd * math.Sqrt(periodsPerYear)
	}

	return metrics
}

// pctChange converts a value series into period-over-period returns
func pctChange(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (values[i]-values[i-1])/values[i-1])
	}
	return returns
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	sumSq := 0.0
	for _, v := range values {
		sumSq += (v - m) * (v - m)
	}
	return math.Sqrt(sumSq / float64(len(values)-1))
}

// downsideDev is the standard deviation of negative returns only
func downsideDev(returns []float64) float64 {
	var negatives []float64
	for _, r := range returns {
		if r < 0 {
			negatives = append(negatives, r)
		}
	}
	if len(negatives) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, r := range negatives {
		sumSq += r * r
	}
	return math.Sqrt(sumSq / float64(len(negatives)))
}

// valueAtRisk returns the loss at the given confidence as a positive number
func valueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)) * (1 - confidence))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return -sorted[idx]
}

// conditionalVaR returns the expected loss beyond the VaR threshold
func conditionalVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	threshold := -valueAtRisk(returns, confidence)

	var tail []float64
	for _, r := range returns {
		if r <= threshold {
			tail = append(tail, r)
		}
	}
	if len(tail) == 0 {
		return 0
	}
	return -mean(tail)
}

// maxDrawdown is the largest peak-to-trough decline of the value series
func maxDrawdown(values []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// beta regresses portfolio returns against the benchmark series
func beta(returns, benchmark []float64) float64 {
	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n < 2 {
		return 0
	}
	r := returns[len(returns)-n:]
	b := benchmark[len(benchmark)-n:]

	mr, mb := mean(r), mean(b)
	cov, varB := 0.0, 0.0
	for i := 0; i < n; i++ {
		cov += (r[i] - mr) * (b[i] - mb)
		varB += (b[i] - mb) * (b[i] - mb)
	}
	if varB == 0 {
		return 0
	}
	return cov / varB
}

// pearson computes the correlation coefficient of two return series
func pearson(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	a, b = a[:n], b[:n]

	ma, mb := mean(a), mean(b)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		cov += (a[i] - ma) * (b[i] - mb)
		varA += (a[i] - ma) * (a[i] - ma)
		varB += (b[i] - mb) * (b[i] - mb)
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}
