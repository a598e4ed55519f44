// Package bybit adapts the Bybit v5 API to the broker capability.
package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/quantrade/trading-core/internal/broker"
	"github.com/quantrade/trading-core/internal/order"
)

// Config holds the configuration for the Bybit broker
type Config struct {
	APIKey    string
	APISecret string
	Category  string // spot, linear, inverse
	Testnet   bool
	Demo      bool // Demo trading environment (paper trading)
}

// Broker implements the broker capability against Bybit. Order ids assigned
// by the execution engine travel as orderLinkId; the venue-assigned id is
// kept locally for cancellation and status sync.
type Broker struct {
	httpClient *bybit_api.Client
	category   string
	demo       bool
	testnet    bool
	retry      RetryConfig

	mu        sync.Mutex
	venueIDs  map[string]string // our order id -> venue order id
	symbols   map[string]string // our order id -> symbol, needed by v5 cancel
}

// New creates a Bybit broker
func New(config Config) *Broker {
	var baseURL string
	if config.Demo {
		// Demo trading environment (paper trading)
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	category := config.Category
	if category == "" {
		category = "spot"
	}

	return &Broker{
		httpClient: httpClient,
		category:   category,
		demo:       config.Demo,
		testnet:    config.Testnet,
		retry:      DefaultRetryConfig(),
		venueIDs:   make(map[string]string),
		symbols:    make(map[string]string),
	}
}

// GetEnvironment returns a string describing the current environment
func (b *Broker) GetEnvironment() string {
	switch {
	case b.demo:
		return "demo"
	case b.testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}

// SubmitOrder places the order on Bybit and returns it as submitted
func (b *Broker) SubmitOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	apiParams := map[string]interface{}{
		"category":    b.category,
		"symbol":      o.Symbol,
		"side":        string(o.Side),
		"qty":         strconv.FormatFloat(o.Quantity, 'f', -1, 64),
		"orderLinkId": o.ID,
	}

	switch o.Type {
	case order.TypeMarket:
		apiParams["orderType"] = "Market"
	case order.TypeLimit:
		apiParams["orderType"] = "Limit"
		apiParams["price"] = strconv.FormatFloat(o.Price, 'f', -1, 64)
	case order.TypeStop:
		apiParams["orderType"] = "Market"
		apiParams["triggerPrice"] = strconv.FormatFloat(o.StopPrice, 'f', -1, 64)
	case order.TypeStopLimit:
		apiParams["orderType"] = "Limit"
		apiParams["price"] = strconv.FormatFloat(o.Price, 'f', -1, 64)
		apiParams["triggerPrice"] = strconv.FormatFloat(o.StopPrice, 'f', -1, 64)
	default:
		return nil, fmt.Errorf("%w: order type %s not supported on bybit", order.ErrInvalidOrder, o.Type)
	}

	if o.TimeInForce != "" && o.Type != order.TypeMarket {
		apiParams["timeInForce"] = o.TimeInForce
	}

	// orderLinkId makes re-submission idempotent on the venue, so transient
	// failures can be retried safely.
	var venueID string
	err := withRetry(ctx, b.retry, "bybit", "submit_order", func() error {
		result, err := b.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
		if err != nil {
			return err
		}
		venueID, err = parseOrderID(result)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	b.mu.Lock()
	b.venueIDs[o.ID] = venueID
	b.symbols[o.ID] = o.Symbol
	b.mu.Unlock()

	submitted := o.Clone()
	if submitted.Status == order.StatusPending {
		if err := submitted.Transition(order.StatusSubmitted); err != nil {
			return nil, err
		}
	}
	return submitted, nil
}

// CancelOrder cancels the order on the venue
func (b *Broker) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	b.mu.Lock()
	venueID, known := b.venueIDs[orderID]
	symbol := b.symbols[orderID]
	b.mu.Unlock()

	if !known {
		return false, nil
	}

	params := map[string]interface{}{
		"category": b.category,
		"symbol":   symbol,
		"orderId":  venueID,
	}

	err := withRetry(ctx, b.retry, "bybit", "cancel_order", func() error {
		result, err := b.httpClient.NewUtaBybitServiceWithParams(params).CancelOrder(ctx)
		if err != nil {
			return err
		}
		return checkServerResponse(result)
	})
	if err != nil {
		return false, fmt.Errorf("failed to cancel order: %w", err)
	}
	return true, nil
}

// GetMarketSnapshot builds a market snapshot from the v5 ticker
func (b *Broker) GetMarketSnapshot(ctx context.Context, symbol string) (*broker.MarketSnapshot, error) {
	params := map[string]interface{}{
		"category": b.category,
		"symbol":   symbol,
	}

	var snap *broker.MarketSnapshot
	err := withRetry(ctx, b.retry, "bybit", "get_ticker", func() error {
		result, err := b.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		if err != nil {
			return err
		}
		snap, err = parseTickerSnapshot(result, symbol)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get ticker: %w", err)
	}
	return snap, nil
}

// SyncOrder fetches venue-side order state and forwards it as fill reports.
// Intended to be polled while an order is monitored.
func (b *Broker) SyncOrder(ctx context.Context, orderID string, handler broker.FillHandler) error {
	b.mu.Lock()
	venueID, known := b.venueIDs[orderID]
	symbol := b.symbols[orderID]
	b.mu.Unlock()

	if !known {
		return fmt.Errorf("unknown order id %s", orderID)
	}

	params := map[string]interface{}{
		"category": b.category,
		"symbol":   symbol,
		"orderId":  venueID,
	}

	// A single poll failure should not fault the order; retry transient
	// errors before reporting.
	var state *orderState
	err := withRetry(ctx, b.retry, "bybit", "sync_order", func() error {
		result, err := b.httpClient.NewUtaBybitServiceWithParams(params).GetOpenOrders(ctx)
		if err != nil {
			return err
		}
		state, err = parseOrderState(result, venueID)
		return err
	})
	if err != nil {
		handler.Fail(orderID, err)
		return err
	}

	switch state.Status {
	case "PartiallyFilled", "Filled":
		if state.CumExecQty > 0 {
			return handler.ApplyFill(orderID, state.CumExecQty, state.AvgPrice, state.CumExecFee)
		}
	case "Rejected":
		return handler.Reject(orderID, "rejected by venue")
	case "Cancelled":
		// Venue-side cancel with no local request; surface as a rejection
		// so the order leaves the active set.
		return handler.Reject(orderID, "cancelled by venue")
	}
	return nil
}

// orderState is the subset of venue order fields the sync path reads
type orderState struct {
	Status     string
	CumExecQty float64
	AvgPrice   float64
	CumExecFee float64
}

// checkServerResponse validates the API envelope
func checkServerResponse(response interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}
	return nil
}

// parseOrderID extracts the venue order id from a placement response
func parseOrderID(response interface{}) (string, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return "", fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return "", fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	var orderResult struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(resultBytes, &orderResult); err != nil {
		return "", fmt.Errorf("failed to unmarshal order result: %w", err)
	}
	if orderResult.OrderID == "" {
		return "", fmt.Errorf("no order id in response")
	}
	return orderResult.OrderID, nil
}

// parseOrderState extracts order progress from an order query response
func parseOrderState(response interface{}, venueID string) (*orderState, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return nil, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var listResult struct {
		List []struct {
			OrderID     string `json:"orderId"`
			OrderStatus string `json:"orderStatus"`
			CumExecQty  string `json:"cumExecQty"`
			CumExecFee  string `json:"cumExecFee"`
			AvgPrice    string `json:"avgPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &listResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order list: %w", err)
	}

	for _, item := range listResult.List {
		if item.OrderID != venueID {
			continue
		}
		return &orderState{
			Status:     item.OrderStatus,
			CumExecQty: parseFloat64(item.CumExecQty),
			AvgPrice:   parseFloat64(item.AvgPrice),
			CumExecFee: parseFloat64(item.CumExecFee),
		}, nil
	}
	return nil, fmt.Errorf("order with ID %s not found", venueID)
}

// parseTickerSnapshot maps the v5 ticker payload into a market snapshot.
// Volatility is approximated from the 24h range; average volume from the
// 24h turnover.
func parseTickerSnapshot(response interface{}, symbol string) (*broker.MarketSnapshot, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return nil, fmt.Errorf("API error: %s (code: %d)", serverResp.RetMsg, serverResp.RetCode)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var tickerResult struct {
		List []struct {
			Symbol       string `json:"symbol"`
			LastPrice    string `json:"lastPrice"`
			Bid1Price    string `json:"bid1Price"`
			Ask1Price    string `json:"ask1Price"`
			HighPrice24h string `json:"highPrice24h"`
			LowPrice24h  string `json:"lowPrice24h"`
			Volume24h    string `json:"volume24h"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &tickerResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticker result: %w", err)
	}
	if len(tickerResult.List) == 0 {
		return nil, fmt.Errorf("no ticker data found for %s", symbol)
	}

	t := tickerResult.List[0]
	last := parseFloat64(t.LastPrice)
	high := parseFloat64(t.HighPrice24h)
	low := parseFloat64(t.LowPrice24h)
	volume := parseFloat64(t.Volume24h)

	volatility := 0.0
	if last > 0 {
		volatility = (high - low) / last
	}

	return &broker.MarketSnapshot{
		Symbol:        symbol,
		Price:         last,
		Spread:        parseFloat64(t.Ask1Price) - parseFloat64(t.Bid1Price),
		Volume:        volume,
		Volatility:    volatility,
		AverageVolume: volume,
		Timestamp:     time.Now(),
	}, nil
}

// parseFloat64 converts venue string numerics, returning 0 for blanks
func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
