package broker

import (
	"context"
	"time"

	"github.com/quantrade/trading-core/internal/order"
)

// MarketSnapshot is a point-in-time view of market conditions for a symbol.
type MarketSnapshot struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Spread        float64   `json:"spread"`
	Volume        float64   `json:"volume"`
	Volatility    float64   `json:"volatility"`
	AverageVolume float64   `json:"average_volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// Broker is the external broker capability. The core is polymorphic over
// this interface; any conforming implementation (simulated or live) works.
type Broker interface {
	SubmitOrder(ctx context.Context, o *order.Order) (*order.Order, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	GetMarketSnapshot(ctx context.Context, symbol string) (*MarketSnapshot, error)
}

// FillHandler receives asynchronous fill reports, rejections and faults
// from a broker. The order manager implements it; fills flow through its
// state machine, never directly into registry entries.
type FillHandler interface {
	ApplyFill(orderID string, filled, avgPrice, commission float64) error
	Reject(orderID, reason string) error
	Fail(orderID string, err error)
}
