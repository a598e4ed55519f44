package signal

import (
	"errors"
	"fmt"

	"github.com/quantrade/trading-core/internal/order"
)

// ErrInvalidSignal indicates a signal failing basic validation
var ErrInvalidSignal = errors.New("invalid signal")

// Signal is a trading signal supplied by the signal-generation subsystem.
type Signal struct {
	Symbol   string     `json:"symbol"`
	Side     order.Side `json:"side"`
	Price    float64    `json:"price"`     // Target entry price
	StopLoss float64    `json:"stop_loss"` // Protective stop price
	Strength float64    `json:"strength"`  // Signal strength (0-1)
	ATR      float64    `json:"atr"`       // Average true range at signal time
}

// Validate checks the signal carries the fields execution depends on
func (s *Signal) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil signal", ErrInvalidSignal)
	}
	if s.Symbol == "" {
		return fmt.Errorf("%w: missing symbol", ErrInvalidSignal)
	}
	if s.Side != order.SideBuy && s.Side != order.SideSell {
		return fmt.Errorf("%w: unrecognized side %q", ErrInvalidSignal, s.Side)
	}
	if s.Price <= 0 {
		return fmt.Errorf("%w: price must be positive, got %.4f", ErrInvalidSignal, s.Price)
	}
	if s.Strength < 0 || s.Strength > 1 {
		return fmt.Errorf("%w: strength %.4f outside [0,1]", ErrInvalidSignal, s.Strength)
	}
	return nil
}
