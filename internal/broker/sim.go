package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantrade/trading-core/internal/order"
)

// FillStep is one entry in a simulated fill plan. Ratio is the cumulative
// fraction of the order quantity filled once the step fires. A step may
// instead reject the order or inject a broker fault.
type FillStep struct {
	Delay  time.Duration
	Ratio  float64
	Reject string
	Fault  error
}

// SimBroker is a simulated broker for the demo binary and tests. Fills are
// driven by a configurable plan and delivered asynchronously through the
// FillHandler, mirroring how a live venue reports executions.
type SimBroker struct {
	mu         sync.Mutex
	snapshots  map[string]*MarketSnapshot
	handler    FillHandler
	plan       []FillStep
	cancelled  map[string]bool
	submitErr  error
	commission float64 // Commission rate applied to fill value
}

// NewSimBroker creates a simulated broker with an immediate full-fill plan
func NewSimBroker() *SimBroker {
	return &SimBroker{
		snapshots: make(map[string]*MarketSnapshot),
		cancelled: make(map[string]bool),
		plan: []FillStep{
			{Delay: 10 * time.Millisecond, Ratio: 1.0},
		},
		commission: 0.001,
	}
}

// SetSnapshot installs the market snapshot returned for a symbol
func (b *SimBroker) SetSnapshot(snap *MarketSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots[snap.Symbol] = snap
}

// SetFillHandler wires the consumer of asynchronous fill reports
func (b *SimBroker) SetFillHandler(h FillHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

// SetFillPlan replaces the fill plan applied to subsequent submissions
func (b *SimBroker) SetFillPlan(plan []FillStep) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.plan = append([]FillStep(nil), plan...)
}

// FailSubmissions makes SubmitOrder fail with the given error
func (b *SimBroker) FailSubmissions(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitErr = err
}

// SubmitOrder accepts the order and schedules its fill plan
func (b *SimBroker) SubmitOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	b.mu.Lock()
	submitErr := b.submitErr
	handler := b.handler
	plan := append([]FillStep(nil), b.plan...)
	snap := b.snapshots[o.Symbol]
	b.mu.Unlock()

	if submitErr != nil {
		return nil, submitErr
	}

	accepted := o.Clone()
	if accepted.Status == order.StatusPending {
		if err := accepted.Transition(order.StatusSubmitted); err != nil {
			return nil, err
		}
	}

	fillPrice := accepted.Price
	if fillPrice == 0 && snap != nil {
		fillPrice = snap.Price
		// Market orders cross the spread.
		if accepted.Side == order.SideBuy {
			fillPrice += snap.Spread / 2
		} else {
			fillPrice -= snap.Spread / 2
		}
	}

	if handler != nil {
		go b.runFillPlan(accepted.ID, accepted.Quantity, fillPrice, plan, handler)
	}

	return accepted, nil
}

// runFillPlan delivers the scripted fill steps for one order
func (b *SimBroker) runFillPlan(orderID string, quantity, price float64, plan []FillStep, handler FillHandler) {
	for _, step := range plan {
		time.Sleep(step.Delay)

		b.mu.Lock()
		done := b.cancelled[orderID]
		b.mu.Unlock()
		if done {
			return
		}

		switch {
		case step.Fault != nil:
			handler.Fail(orderID, step.Fault)
			return
		case step.Reject != "":
			_ = handler.Reject(orderID, step.Reject)
			return
		default:
			filled := quantity * step.Ratio
			commission := filled * price * b.commission
			if err := handler.ApplyFill(orderID, filled, price, commission); err != nil {
				// Order finished elsewhere (cancelled, already filled); stop.
				return
			}
		}
	}
}

// CancelOrder stops the fill plan for the order
func (b *SimBroker) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled[orderID] = true
	return true, nil
}

// GetMarketSnapshot returns the installed snapshot for the symbol
func (b *SimBroker) GetMarketSnapshot(ctx context.Context, symbol string) (*MarketSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap, ok := b.snapshots[symbol]
	if !ok {
		return nil, fmt.Errorf("no market data for symbol %s", symbol)
	}
	c := *snap
	c.Timestamp = time.Now()
	return &c, nil
}
