package execution

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quantrade/trading-core/internal/broker"
	tradeerrors "github.com/quantrade/trading-core/internal/errors"
	"github.com/quantrade/trading-core/internal/logger"
	"github.com/quantrade/trading-core/internal/monitoring"
	"github.com/quantrade/trading-core/internal/order"
	"github.com/quantrade/trading-core/internal/signal"
)

const defaultPollInterval = 100 * time.Millisecond

// SignalValidator performs the risk-side validation consulted before
// execution proceeds. The risk manager implements it.
type SignalValidator interface {
	ValidateSignal(sig *signal.Signal, size float64) error
}

// PartialFillFunc is the extension point invoked when monitoring observes
// a partial fill. No default policy beyond recording it; remaining quantity
// is left unchanged.
type PartialFillFunc func(o *order.Order)

// Engine orchestrates the execution path: validate, strategize, submit,
// monitor, record.
type Engine struct {
	broker    broker.Broker
	orders    *order.Manager
	optimizer *Optimizer
	validator SignalValidator
	tracker   *PerformanceTracker
	log       *logger.Logger

	// PollInterval bounds the pause between status checks while monitoring.
	PollInterval time.Duration
	// OnPartialFill is called once per observed fill increase.
	OnPartialFill PartialFillFunc
}

// NewEngine wires the execution engine. The tracker is constructed and
// owned by the caller so its lifecycle outlives individual executions.
func NewEngine(b broker.Broker, orders *order.Manager, validator SignalValidator, tracker *PerformanceTracker, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDiscard()
	}
	e := &Engine{
		broker:       b,
		orders:       orders,
		optimizer:    NewOptimizer(),
		validator:    validator,
		tracker:      tracker,
		log:          log,
		PollInterval: defaultPollInterval,
	}
	e.OnPartialFill = func(o *order.Order) {
		e.log.LogOrderFill(o.ID, o.FilledQuantity, o.Quantity, o.AvgFillPrice)
	}
	return e
}

// Execute drives a signal through the full order lifecycle and returns the
// terminal order. Callers either receive a terminal order or an error; no
// silent partial success.
func (e *Engine) Execute(ctx context.Context, sig *signal.Signal, positionSize float64) (*order.Order, error) {
	if err := e.validator.ValidateSignal(sig, positionSize); err != nil {
		return nil, err
	}

	snap, err := e.broker.GetMarketSnapshot(ctx, sig.Symbol)
	if err != nil {
		return nil, tradeerrors.NewBrokerError("execution-engine", "market-snapshot", err)
	}

	strategy := e.optimizer.OptimalStrategy(sig, snap, positionSize)

	o := &order.Order{
		ID:          uuid.NewString(),
		Symbol:      sig.Symbol,
		Type:        strategy.OrderType,
		Side:        sig.Side,
		Quantity:    strategy.Quantity,
		Price:       strategy.Price,
		StopPrice:   sig.StopLoss,
		TimeInForce: strategy.TimeInForce,
		Status:      order.StatusPending,
		CreatedAt:   time.Now(),
	}

	submitted, err := e.orders.Submit(ctx, o)
	if err != nil {
		monitoring.RecordOrderError("submit")
		return nil, err
	}
	monitoring.RecordOrderSubmitted(submitted.Symbol, string(submitted.Side))

	final, err := e.monitor(ctx, submitted.ID)
	if err != nil {
		return nil, err
	}

	e.tracker.TrackExecution(final, snap)
	monitoring.RecordOrderFinal(final.Symbol, string(final.Status), final.UpdatedAt.Sub(final.CreatedAt))

	return final, nil
}

// monitor polls order status at a bounded interval until the order reaches
// a terminal state. On any fault it attempts a compensating cancel, then
// propagates the original fault; the cleanup never masks the root cause.
func (e *Engine) monitor(ctx context.Context, orderID string) (*order.Order, error) {
	lastFilled := 0.0

	for {
		current, err := e.orders.Status(orderID)
		if err != nil {
			e.compensate(orderID)
			return nil, tradeerrors.Categorize(err, "execution-engine", "monitor").
				WithContext("order_id", orderID)
		}

		if current.Status == order.StatusPartial && current.FilledQuantity > lastFilled {
			lastFilled = current.FilledQuantity
			if e.OnPartialFill != nil {
				e.OnPartialFill(current)
			}
		}

		if current.Status.Terminal() {
			return current, nil
		}

		select {
		case <-ctx.Done():
			e.compensate(orderID)
			return nil, tradeerrors.Wrap(ctx.Err(), tradeerrors.ErrorCategoryTimeout, "execution-engine", "monitor").
				WithContext("order_id", orderID)
		case <-time.After(e.PollInterval):
		}
	}
}

// compensate cancels a faulted order on a best-effort basis. Cancel
// failures are logged, never fatal; the order is finalized locally so no
// registry entry is left dangling in a non-terminal state.
func (e *Engine) compensate(orderID string) {
	// Fresh context: the monitoring context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ok, err := e.orders.Cancel(ctx, orderID)
	if err != nil {
		e.log.Warning("compensating cancel failed for order %s: %v", orderID, err)
	}
	if !ok || err != nil {
		e.orders.ForceCancel(orderID)
	}
	monitoring.RecordOrderError("monitor-fault")
}
