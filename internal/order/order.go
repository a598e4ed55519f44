package order

import (
	"errors"
	"fmt"
	"time"
)

// Type represents the kind of an order
type Type string

const (
	TypeMarket       Type = "MARKET"
	TypeLimit        Type = "LIMIT"
	TypeStop         Type = "STOP"
	TypeStopLimit    Type = "STOP_LIMIT"
	TypeTrailingStop Type = "TRAILING_STOP"
)

// Side represents buy or sell side
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Status represents the lifecycle state of an order
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSubmitted Status = "SUBMITTED"
	StatusPartial   Status = "PARTIAL"
	StatusFilled    Status = "FILLED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
)

// Terminal reports whether the status is final. Terminal orders never
// transition again.
func (s Status) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusRejected
}

var (
	// ErrInvalidOrder indicates a malformed submission. Not retried.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrOrderNotFound indicates an unknown order id.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderFinalized indicates a transition request on a terminal order.
	ErrOrderFinalized = errors.New("order already finalized")
	// ErrInvalidTransition indicates a transition the state machine forbids.
	ErrInvalidTransition = errors.New("invalid order transition")
	// ErrInvalidFill indicates a fill report violating 0 <= filled <= quantity.
	ErrInvalidFill = errors.New("invalid fill quantity")
)

// Order is the unit of work driven through the execution lifecycle.
type Order struct {
	ID             string    `json:"order_id"`
	Symbol         string    `json:"symbol"`
	Type           Type      `json:"order_type"`
	Side           Side      `json:"side"`
	Quantity       float64   `json:"quantity"`
	Price          float64   `json:"price,omitempty"`      // Limit price, 0 for market orders
	StopPrice      float64   `json:"stop_price,omitempty"` // Trigger price for stop orders
	TimeInForce    string    `json:"time_in_force"`
	Status         Status    `json:"status"`
	FilledQuantity float64   `json:"filled_quantity"`
	AvgFillPrice   float64   `json:"average_fill_price"`
	Commission     float64   `json:"commission"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// validTypes is the set of recognized order kinds
var validTypes = map[Type]bool{
	TypeMarket:       true,
	TypeLimit:        true,
	TypeStop:         true,
	TypeStopLimit:    true,
	TypeTrailingStop: true,
}

// transitions encodes the order state machine. Cancellation is handled
// separately since any non-terminal state may cancel.
var transitions = map[Status][]Status{
	StatusPending:   {StatusSubmitted},
	StatusSubmitted: {StatusPartial, StatusFilled, StatusRejected},
	StatusPartial:   {StatusPartial, StatusFilled},
}

// Validate checks the order is well-formed for submission
func (o *Order) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("%w: missing symbol", ErrInvalidOrder)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %.4f", ErrInvalidOrder, o.Quantity)
	}
	if !validTypes[o.Type] {
		return fmt.Errorf("%w: unrecognized order type %q", ErrInvalidOrder, o.Type)
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("%w: unrecognized side %q", ErrInvalidOrder, o.Side)
	}
	return nil
}

// Transition advances the order to the next status, enforcing the state
// machine. A request from a terminal state fails with ErrOrderFinalized and
// leaves the order unchanged.
func (o *Order) Transition(next Status) error {
	if o.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrOrderFinalized, o.ID, o.Status)
	}
	if next == StatusCancelled {
		o.Status = StatusCancelled
		o.UpdatedAt = time.Now()
		return nil
	}
	for _, allowed := range transitions[o.Status] {
		if allowed == next {
			o.Status = next
			o.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
}

// ApplyFill applies a cumulative fill report. A fill equal to the order
// quantity moves the order to FILLED, anything in between to PARTIAL.
// Fill quantity never decreases and never exceeds the order quantity.
func (o *Order) ApplyFill(filled, avgPrice float64) error {
	if o.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrOrderFinalized, o.ID, o.Status)
	}
	if filled < o.FilledQuantity || filled > o.Quantity || filled <= 0 {
		return fmt.Errorf("%w: %.4f (have %.4f of %.4f)", ErrInvalidFill, filled, o.FilledQuantity, o.Quantity)
	}

	next := StatusPartial
	if filled == o.Quantity {
		next = StatusFilled
	}
	if err := o.Transition(next); err != nil {
		return err
	}
	o.FilledQuantity = filled
	if avgPrice > 0 {
		o.AvgFillPrice = avgPrice
	}
	return nil
}

// Remaining returns the unfilled quantity
func (o *Order) Remaining() float64 {
	return o.Quantity - o.FilledQuantity
}

// Clone returns a copy safe to hand to callers outside the registry
func (o *Order) Clone() *Order {
	c := *o
	return &c
}
