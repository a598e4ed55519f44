package position

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/quantrade/trading-core/internal/logger"
	"github.com/quantrade/trading-core/internal/regime"
	"github.com/quantrade/trading-core/internal/risk"
	"github.com/quantrade/trading-core/internal/signal"
)

var (
	// ErrPositionAlreadyOpen indicates a duplicate open for a symbol.
	ErrPositionAlreadyOpen = errors.New("position already open")
	// ErrNoSuchPosition indicates an update or close for an unknown symbol.
	ErrNoSuchPosition = errors.New("no such position")
)

// Position is a managed holding. Created by Open, mutated on each price/ATR
// update, terminated by Close; never mutated after close.
type Position struct {
	Symbol        string              `json:"symbol"`
	EntryPrice    float64             `json:"entry_price"`
	Size          *risk.PositionSize  `json:"size"`
	Stops         *risk.StopLevels    `json:"stops"`
	EntryTime     time.Time           `json:"entry_time"`
	Signal        *signal.Signal      `json:"signal"`
	Regime        regime.MarketRegime `json:"market_regime"`
	Sector        string              `json:"sector,omitempty"`
	CurrentPrice  float64             `json:"current_price"`
	UnrealizedPnL float64             `json:"unrealized_pnl"`
	ExitTime      time.Time           `json:"exit_time,omitempty"`
	ExitReason    string              `json:"exit_reason,omitempty"`
	RealizedPnL   float64             `json:"realized_pnl,omitempty"`
	Closed        bool                `json:"closed"`
}

// RiskView projects the position into the shape the risk monitor inspects
func (p *Position) RiskView() risk.PositionRiskView {
	return risk.PositionRiskView{
		Symbol:        p.Symbol,
		CurrentPrice:  p.CurrentPrice,
		UnrealizedPnL: p.UnrealizedPnL,
		RiskAmount:    p.Size.RiskAmount,
		TrailingStop:  p.Stops.TrailingStop,
		TimeStop:      p.Stops.TimeStop,
	}
}

// Manager exclusively owns the position registry, keyed by symbol with at
// most one open position per symbol.
type Manager struct {
	mu      sync.RWMutex
	risk    *risk.Manager
	log     *logger.Logger
	open    map[string]*Position
	history []*Position
	now     func() time.Time
}

// NewManager creates a position manager backed by the given risk manager
func NewManager(riskManager *risk.Manager, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Manager{
		risk: riskManager,
		log:  log,
		open: make(map[string]*Position),
		now:  time.Now,
	}
}

// Open sizes and opens a new position for a signal. Fails with
// ErrPositionAlreadyOpen when the symbol already has an active entry.
func (m *Manager) Open(sig *signal.Signal, reg regime.MarketRegime, sector string) (*Position, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	_, exists := m.open[sig.Symbol]
	exposureRatio := m.exposureRatioLocked()
	m.mu.RUnlock()

	if exists {
		return nil, fmt.Errorf("%w: %s", ErrPositionAlreadyOpen, sig.Symbol)
	}

	size, err := m.risk.CalculatePositionSize(sig.Symbol, sector, sig.Price, sig.StopLoss, sig.Strength, reg, exposureRatio)
	if err != nil {
		return nil, err
	}
	stops := m.risk.CalculateStopLevels(sig.Price, sig.ATR, reg)

	pos := &Position{
		Symbol:       sig.Symbol,
		EntryPrice:   sig.Price,
		Size:         size,
		Stops:        stops,
		EntryTime:    m.now(),
		Signal:       sig,
		Regime:       reg,
		Sector:       sector,
		CurrentPrice: sig.Price,
	}

	m.mu.Lock()
	if _, raced := m.open[sig.Symbol]; raced {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPositionAlreadyOpen, sig.Symbol)
	}
	m.open[sig.Symbol] = pos
	m.history = append(m.history, pos)
	m.mu.Unlock()

	m.refreshPortfolio()
	m.log.LogPositionOpened(pos.Symbol, size.Units, pos.EntryPrice, size.RiskAmount)

	return pos, nil
}

// Update recomputes the trailing stop and unrealized P&L for a symbol.
// The trailing stop only ratchets upward; it never decreases.
func (m *Manager) Update(symbol string, currentPrice, currentATR float64) (*Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.open[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchPosition, symbol)
	}

	candidate := currentPrice - currentATR*m.risk.Params().StopLossATRFactor
	if candidate > pos.Stops.TrailingStop {
		pos.Stops.TrailingStop = candidate
	}

	pos.CurrentPrice = currentPrice
	pos.UnrealizedPnL = (currentPrice - pos.EntryPrice) * pos.Size.Units

	return pos, nil
}

// Close removes the position from the active registry, stamps exit details
// and realized P&L, and appends the finalized record to history.
func (m *Manager) Close(symbol, reason string) (*Position, error) {
	m.mu.Lock()

	pos, ok := m.open[symbol]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoSuchPosition, symbol)
	}
	delete(m.open, symbol)

	pos.ExitTime = m.now()
	pos.ExitReason = reason
	pos.RealizedPnL = (pos.CurrentPrice - pos.EntryPrice) * pos.Size.Units
	pos.Closed = true
	m.mu.Unlock()

	m.refreshPortfolio()
	m.log.LogPositionClosed(pos.Symbol, reason, pos.RealizedPnL)

	return pos, nil
}

// Get returns the open position for a symbol
func (m *Manager) Get(symbol string) (*Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.open[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchPosition, symbol)
	}
	return pos, nil
}

// Active returns a snapshot of all open positions
func (m *Manager) Active() []*Position {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Position, 0, len(m.open))
	for _, pos := range m.open {
		out = append(out, pos)
	}
	return out
}

// History returns every position ever opened, including closed ones
func (m *Manager) History() []*Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*Position(nil), m.history...)
}

// TotalExposure returns the aggregate open notional from a consistent
// snapshot of the registry.
func (m *Manager) TotalExposure() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalExposureLocked()
}

// ExposureRatio returns open notional over capital
func (m *Manager) ExposureRatio() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exposureRatioLocked()
}

func (m *Manager) totalExposureLocked() float64 {
	total := 0.0
	for _, pos := range m.open {
		total += pos.Size.Value
	}
	return total
}

func (m *Manager) exposureRatioLocked() float64 {
	capital := m.risk.Capital()
	if capital <= 0 {
		return 0
	}
	return m.totalExposureLocked() / capital
}

// refreshPortfolio pushes the current registry snapshot into the portfolio
// risk caches so correlation and sector checks see up-to-date exposure.
func (m *Manager) refreshPortfolio() {
	portfolio := m.risk.Portfolio()
	if portfolio == nil {
		return
	}

	m.mu.RLock()
	values := make(map[string]float64, len(m.open))
	sectors := make(map[string]string, len(m.open))
	for symbol, pos := range m.open {
		values[symbol] = pos.Size.Value
		if pos.Sector != "" {
			sectors[symbol] = pos.Sector
		}
	}
	m.mu.RUnlock()

	portfolio.RefreshExposure(values, sectors)
}
