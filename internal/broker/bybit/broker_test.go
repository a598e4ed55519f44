package bybit

import (
	"context"
	"errors"
	"testing"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/stretchr/testify/assert"
)

// TestParseOrderID tests venue order id extraction
func TestParseOrderID(t *testing.T) {
	id, err := parseOrderID(&bybit_api.ServerResponse{
		RetCode: 0,
		Result:  map[string]interface{}{"orderId": "1234567890", "orderLinkId": "local-1"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "1234567890", id)
}

// TestParseOrderID_APIError tests the non-zero retCode path
func TestParseOrderID_APIError(t *testing.T) {
	_, err := parseOrderID(&bybit_api.ServerResponse{
		RetCode: 10001,
		RetMsg:  "params error",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "params error")

	_, err = parseOrderID("not a server response")
	assert.Error(t, err)

	_, err = parseOrderID(&bybit_api.ServerResponse{
		RetCode: 0,
		Result:  map[string]interface{}{},
	})
	assert.Error(t, err, "missing order id")
}

// TestParseOrderState tests order progress extraction from the open-orders
// payload.
func TestParseOrderState(t *testing.T) {
	resp := &bybit_api.ServerResponse{
		RetCode: 0,
		Result: map[string]interface{}{
			"list": []interface{}{
				map[string]interface{}{
					"orderId":     "abc",
					"orderStatus": "PartiallyFilled",
					"cumExecQty":  "4.5",
					"cumExecFee":  "0.02",
					"avgPrice":    "101.25",
				},
			},
		},
	}

	state, err := parseOrderState(resp, "abc")
	assert.NoError(t, err)
	assert.Equal(t, "PartiallyFilled", state.Status)
	assert.Equal(t, 4.5, state.CumExecQty)
	assert.Equal(t, 101.25, state.AvgPrice)
	assert.Equal(t, 0.02, state.CumExecFee)

	_, err = parseOrderState(resp, "missing")
	assert.Error(t, err)
}

// TestParseTickerSnapshot tests market snapshot mapping from the v5 ticker
func TestParseTickerSnapshot(t *testing.T) {
	resp := &bybit_api.ServerResponse{
		RetCode: 0,
		Result: map[string]interface{}{
			"list": []interface{}{
				map[string]interface{}{
					"symbol":       "BTCUSDT",
					"lastPrice":    "50000",
					"bid1Price":    "49995",
					"ask1Price":    "50005",
					"highPrice24h": "51000",
					"lowPrice24h":  "49000",
					"volume24h":    "12345.6",
				},
			},
		},
	}

	snap, err := parseTickerSnapshot(resp, "BTCUSDT")
	assert.NoError(t, err)
	assert.Equal(t, 50000.0, snap.Price)
	assert.InDelta(t, 10.0, snap.Spread, 1e-9)
	assert.InDelta(t, 0.04, snap.Volatility, 1e-9) // (51000-49000)/50000
	assert.Equal(t, 12345.6, snap.Volume)
	assert.False(t, snap.Timestamp.IsZero())
}

// TestParseTickerSnapshot_Empty tests the missing-data path
func TestParseTickerSnapshot_Empty(t *testing.T) {
	_, err := parseTickerSnapshot(&bybit_api.ServerResponse{
		RetCode: 0,
		Result:  map[string]interface{}{"list": []interface{}{}},
	}, "BTCUSDT")
	assert.Error(t, err)
}

// TestParseFloat64 tests numeric string conversion fallbacks
func TestParseFloat64(t *testing.T) {
	assert.Equal(t, 1.5, parseFloat64("1.5"))
	assert.Equal(t, 0.0, parseFloat64(""))
	assert.Equal(t, 0.0, parseFloat64("n/a"))
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

// TestWithRetry_TransientErrors tests that retryable failures are retried
func TestWithRetry_TransientErrors(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), fastRetryConfig(), "bybit", "submit_order", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

// TestWithRetry_NonRetryableAborts tests that credential failures stop
// immediately.
func TestWithRetry_NonRetryableAborts(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), fastRetryConfig(), "bybit", "submit_order", func() error {
		attempts++
		return errors.New("invalid api key")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

// TestWithRetry_Exhaustion tests the retry budget
func TestWithRetry_Exhaustion(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), fastRetryConfig(), "bybit", "sync_order", func() error {
		attempts++
		return errors.New("request timeout")
	})
	assert.Error(t, err)
	assert.Equal(t, 4, attempts) // initial attempt plus three retries
}

// TestWithRetry_ContextCancellation tests early abort on cancellation
func TestWithRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, fastRetryConfig(), "bybit", "get_ticker", func() error {
		return errors.New("connection refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestBackoffDelay tests the exponential cap
func TestBackoffDelay(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 500*time.Millisecond, backoffDelay(0, cfg))
	assert.Equal(t, 1*time.Second, backoffDelay(1, cfg))
	assert.Equal(t, 2*time.Second, backoffDelay(2, cfg))
	assert.Equal(t, cfg.MaxDelay, backoffDelay(10, cfg))
}

// TestNew_Environments tests base URL and category selection
func TestNew_Environments(t *testing.T) {
	demo := New(Config{Demo: true})
	assert.Equal(t, "demo", demo.GetEnvironment())
	assert.Equal(t, "spot", demo.category)

	testnet := New(Config{Testnet: true, Category: "linear"})
	assert.Equal(t, "testnet", testnet.GetEnvironment())
	assert.Equal(t, "linear", testnet.category)

	mainnet := New(Config{})
	assert.Equal(t, "mainnet", mainnet.GetEnvironment())
}
