package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantrade/trading-core/internal/logger"
)

// Broker is the subset of the broker capability the order manager uses.
// Any conforming implementation (simulated or live) is acceptable.
type Broker interface {
	SubmitOrder(ctx context.Context, o *Order) (*Order, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
}

// Manager exclusively owns the order registry, keyed by order id.
// Fill reports and faults flow in through the FillHandler methods; status
// reads flow out through Status. Mutation is always scoped to a single key.
type Manager struct {
	mu     sync.RWMutex
	broker Broker
	log    *logger.Logger

	orders map[string]*Order
	active map[string]*Order
	faults map[string]error
}

// NewManager creates an order manager backed by the given broker
func NewManager(broker Broker, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Manager{
		broker: broker,
		log:    log,
		orders: make(map[string]*Order),
		active: make(map[string]*Order),
		faults: make(map[string]error),
	}
}

// Submit validates the order, delegates to the broker and registers the
// returned order in both the full registry and the active set.
func (m *Manager) Submit(ctx context.Context, o *Order) (*Order, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	submitted, err := m.broker.SubmitOrder(ctx, o)
	if err != nil {
		m.log.LogError("order submission", err)
		return nil, err
	}

	// Merge broker-assigned fields into the original order so the caller's
	// id survives brokers that echo back a copy.
	if submitted.ID == "" {
		submitted.ID = o.ID
	}
	if submitted.Status == StatusPending {
		if err := submitted.Transition(StatusSubmitted); err != nil {
			return nil, err
		}
	}
	if submitted.CreatedAt.IsZero() {
		submitted.CreatedAt = time.Now()
	}

	m.mu.Lock()
	m.orders[submitted.ID] = submitted
	m.active[submitted.ID] = submitted
	m.mu.Unlock()

	m.log.LogOrderSubmitted(submitted.ID, submitted.Symbol, string(submitted.Side), submitted.Quantity, string(submitted.Type))

	return submitted.Clone(), nil
}

// Cancel cancels an active order. Returns false without error when the id
// is not active, making repeated cancels of a finished order a no-op.
func (m *Manager) Cancel(ctx context.Context, orderID string) (bool, error) {
	m.clearFault(orderID)

	m.mu.RLock()
	_, isActive := m.active[orderID]
	m.mu.RUnlock()

	if !isActive {
		return false, nil
	}

	if _, err := m.broker.CancelOrder(ctx, orderID); err != nil {
		m.log.LogError("order cancellation", err)
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.active[orderID]
	if !ok {
		// Lost the race against a fill report; the order finished first.
		return false, nil
	}
	delete(m.active, orderID)
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now()

	m.log.LogOrderFinal(o.ID, string(o.Status), o.FilledQuantity, o.AvgFillPrice)

	return true, nil
}

// Status returns a copy of the current registry entry, or the pending
// fault if the broker reported one for this order during monitoring.
func (m *Manager) Status(orderID string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.faults[orderID]; ok {
		return nil, err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return o.Clone(), nil
}

// ApplyFill applies a cumulative fill report to a registered order,
// advancing it through PARTIAL to FILLED per the state machine.
func (m *Manager) ApplyFill(orderID string, filled, avgPrice, commission float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err := o.ApplyFill(filled, avgPrice); err != nil {
		return err
	}
	o.Commission += commission

	m.log.LogOrderFill(o.ID, o.FilledQuantity, o.Quantity, o.AvgFillPrice)

	if o.Status.Terminal() {
		delete(m.active, orderID)
		m.log.LogOrderFinal(o.ID, string(o.Status), o.FilledQuantity, o.AvgFillPrice)
	}
	return nil
}

// Reject records a broker rejection for a submitted order
func (m *Manager) Reject(orderID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err := o.Transition(StatusRejected); err != nil {
		return err
	}
	o.Notes = reason
	delete(m.active, orderID)

	m.log.LogOrderFinal(o.ID, string(o.Status), o.FilledQuantity, o.AvgFillPrice)

	return nil
}

// Fail records a broker-originated fault for an order. The next Status call
// for this order surfaces the fault to the monitoring loop, which attempts a
// compensating cancel before propagating it.
func (m *Manager) Fail(orderID string, err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	m.faults[orderID] = err
	m.mu.Unlock()
}

// clearFault drops a recorded fault so cancellation can observe final state
func (m *Manager) clearFault(orderID string) {
	m.mu.Lock()
	delete(m.faults, orderID)
	m.mu.Unlock()
}

// ForceCancel finalizes an order locally after a monitoring fault without a
// broker round trip that already failed. Idempotent on terminal orders.
func (m *Manager) ForceCancel(orderID string) bool {
	m.clearFault(orderID)

	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok || o.Status.Terminal() {
		return false
	}
	o.Status = StatusCancelled
	o.UpdatedAt = time.Now()
	delete(m.active, orderID)
	return true
}

// ActiveCount returns the number of orders still in flight
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Orders returns a snapshot of every registered order
func (m *Manager) Orders() []*Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, o.Clone())
	}
	return out
}
