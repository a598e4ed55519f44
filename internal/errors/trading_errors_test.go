package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestWrap_PreservesUnderlying tests error chain unwrapping
func TestWrap_PreservesUnderlying(t *testing.T) {
	root := stderrors.New("connection refused")
	wrapped := Wrap(root, ErrorCategoryNetwork, "broker", "submit")

	assert.ErrorIs(t, wrapped, root)
	assert.Equal(t, ErrorCategoryNetwork, wrapped.Category)
	assert.True(t, wrapped.IsRetryable())
	assert.Contains(t, wrapped.Error(), "connection refused")

	assert.Nil(t, Wrap(nil, ErrorCategoryNetwork, "broker", "submit"))
}

// TestCategorize_MessageHeuristics tests classification from error text
func TestCategorize_MessageHeuristics(t *testing.T) {
	cases := []struct {
		message   string
		category  ErrorCategory
		retryable bool
	}{
		{"request timeout", ErrorCategoryTimeout, true},
		{"context deadline exceeded", ErrorCategoryTimeout, true},
		{"connection reset by peer", ErrorCategoryNetwork, true},
		{"invalid api key", ErrorCategoryCredentials, false},
		{"rate limit exceeded", ErrorCategoryRateLimit, true},
		{"insufficient balance", ErrorCategoryOrder, false},
		{"invalid order quantity", ErrorCategoryValidation, false},
		{"something odd happened", ErrorCategoryTemporary, true},
	}
	for _, tc := range cases {
		err := Categorize(stderrors.New(tc.message), "engine", "monitor")
		assert.Equal(t, tc.category, err.Category, tc.message)
		assert.Equal(t, tc.retryable, err.IsRetryable(), tc.message)
	}
}

// TestCategorize_PassesThroughTradingErrors tests idempotent categorization
func TestCategorize_PassesThroughTradingErrors(t *testing.T) {
	original := New(ErrorCategoryRisk, "risk", "sizing", "limit breached")
	again := Categorize(original, "engine", "execute")
	assert.Same(t, original, again)
}

// TestIsFatal tests the stop-trading categories
func TestIsFatal(t *testing.T) {
	assert.True(t, New(ErrorCategoryFatal, "c", "o", "m").IsFatal())
	assert.True(t, New(ErrorCategoryCredentials, "c", "o", "m").IsFatal())
	assert.True(t, New(ErrorCategoryConfiguration, "c", "o", "m").IsFatal())
	assert.False(t, New(ErrorCategoryNetwork, "c", "o", "m").IsFatal())
	assert.False(t, New(ErrorCategoryOrder, "c", "o", "m").IsFatal())
}

// TestWithContext tests contextual enrichment
func TestWithContext(t *testing.T) {
	err := New(ErrorCategoryOrder, "engine", "monitor", "fault").
		WithContext("order_id", "abc-123").
		WithContext("symbol", "BTCUSDT")

	assert.Equal(t, "abc-123", err.Context["order_id"])
	assert.Equal(t, "BTCUSDT", err.Context["symbol"])
}

// TestGetRecoveryAction tests the recovery suggestions per category
func TestGetRecoveryAction(t *testing.T) {
	assert.Equal(t, RecoveryActionStop, New(ErrorCategoryFatal, "c", "o", "m").GetRecoveryAction())
	assert.Equal(t, RecoveryActionWait, New(ErrorCategoryRateLimit, "c", "o", "m").GetRecoveryAction())
	assert.Equal(t, RecoveryActionRetry, New(ErrorCategoryNetwork, "c", "o", "m").GetRecoveryAction())
	assert.Equal(t, RecoveryActionSkip, New(ErrorCategoryValidation, "c", "o", "m").GetRecoveryAction())

	nonRetryableOrder := New(ErrorCategoryOrder, "c", "o", "m").WithRetryable(false)
	assert.Equal(t, RecoveryActionSkip, nonRetryableOrder.GetRecoveryAction())
}
