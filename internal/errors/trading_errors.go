package errors

import (
	"fmt"
	"strings"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	// Critical errors that should stop trading
	ErrorCategoryFatal         ErrorCategory = "FATAL"
	ErrorCategoryBroker        ErrorCategory = "BROKER"
	ErrorCategoryCredentials   ErrorCategory = "CREDENTIALS"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// Non-critical errors that can be retried or recovered from
	ErrorCategoryNetwork    ErrorCategory = "NETWORK"
	ErrorCategoryTimeout    ErrorCategory = "TIMEOUT"
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
	ErrorCategoryOrder      ErrorCategory = "ORDER"
	ErrorCategoryPosition   ErrorCategory = "POSITION"
	ErrorCategoryRisk       ErrorCategory = "RISK"

	// Temporary errors
	ErrorCategoryTemporary ErrorCategory = "TEMPORARY"
	ErrorCategoryRateLimit ErrorCategory = "RATE_LIMIT"
)

// TradingError represents a categorized error with context
type TradingError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *TradingError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s in %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s in %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *TradingError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried
func (e *TradingError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop trading
func (e *TradingError) IsFatal() bool {
	return e.Category == ErrorCategoryFatal ||
		e.Category == ErrorCategoryCredentials ||
		e.Category == ErrorCategoryConfiguration
}

// New creates a new categorized trading error
func New(category ErrorCategory, component, operation, message string) *TradingError {
	return &TradingError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: isRetryableCategory(category),
	}
}

// Wrap wraps an existing error with trading error context
func Wrap(err error, category ErrorCategory, component, operation string) *TradingError {
	if err == nil {
		return nil
	}

	return &TradingError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
		Retryable:  isRetryableCategory(category),
	}
}

// WithContext adds context information to the error
func (e *TradingError) WithContext(key string, value interface{}) *TradingError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetryable sets the retryable flag
func (e *TradingError) WithRetryable(retryable bool) *TradingError {
	e.Retryable = retryable
	return e
}

// isRetryableCategory determines if an error category is generally retryable
func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryNetwork, ErrorCategoryTimeout, ErrorCategoryTemporary, ErrorCategoryRateLimit:
		return true
	case ErrorCategoryFatal, ErrorCategoryCredentials, ErrorCategoryConfiguration:
		return false
	default:
		return true // Default to retryable for safety
	}
}

// Categorize attempts to categorize a generic error
func Categorize(err error, component, operation string) *TradingError {
	if err == nil {
		return nil
	}

	// Check if it's already a TradingError
	if tradeErr, ok := err.(*TradingError); ok {
		return tradeErr
	}

	errMsg := strings.ToLower(err.Error())

	// Network-related errors
	if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "context deadline exceeded") {
		return Wrap(err, ErrorCategoryTimeout, component, operation)
	}

	if strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "dns") || strings.Contains(errMsg, "dial") {
		return Wrap(err, ErrorCategoryNetwork, component, operation)
	}

	// Broker-related errors
	if strings.Contains(errMsg, "api key") || strings.Contains(errMsg, "api secret") ||
		strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized") {
		return Wrap(err, ErrorCategoryCredentials, component, operation)
	}

	if strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "too many requests") {
		return Wrap(err, ErrorCategoryRateLimit, component, operation)
	}

	if strings.Contains(errMsg, "insufficient") || strings.Contains(errMsg, "balance") {
		return Wrap(err, ErrorCategoryOrder, component, operation).WithRetryable(false)
	}

	if strings.Contains(errMsg, "invalid") || strings.Contains(errMsg, "constraint") ||
		strings.Contains(errMsg, "minimum") || strings.Contains(errMsg, "maximum") {
		return Wrap(err, ErrorCategoryValidation, component, operation).WithRetryable(false)
	}

	// Default to temporary error for unknown cases
	return Wrap(err, ErrorCategoryTemporary, component, operation)
}

// Common error constructors
func NewNetworkError(component, operation string, err error) *TradingError {
	return Wrap(err, ErrorCategoryNetwork, component, operation)
}

func NewValidationError(component, operation, message string) *TradingError {
	return New(ErrorCategoryValidation, component, operation, message).WithRetryable(false)
}

func NewConfigurationError(component, operation, message string) *TradingError {
	return New(ErrorCategoryConfiguration, component, operation, message).WithRetryable(false)
}

func NewBrokerError(component, operation string, err error) *TradingError {
	return Wrap(err, ErrorCategoryBroker, component, operation)
}

func NewOrderError(component, operation string, err error) *TradingError {
	return Wrap(err, ErrorCategoryOrder, component, operation)
}

func NewPositionError(component, operation string, err error) *TradingError {
	return Wrap(err, ErrorCategoryPosition, component, operation)
}

func NewRiskError(component, operation string, err error) *TradingError {
	return Wrap(err, ErrorCategoryRisk, component, operation)
}

// RecoveryAction suggests how the caller should react to an error
type RecoveryAction string

const (
	RecoveryActionRetry RecoveryAction = "RETRY"
	RecoveryActionSkip  RecoveryAction = "SKIP"
	RecoveryActionStop  RecoveryAction = "STOP"
	RecoveryActionWait  RecoveryAction = "WAIT"
)

// GetRecoveryAction suggests a recovery action based on error category
func (e *TradingError) GetRecoveryAction() RecoveryAction {
	switch e.Category {
	case ErrorCategoryFatal, ErrorCategoryCredentials, ErrorCategoryConfiguration:
		return RecoveryActionStop
	case ErrorCategoryRateLimit:
		return RecoveryActionWait
	case ErrorCategoryNetwork, ErrorCategoryTimeout, ErrorCategoryTemporary:
		return RecoveryActionRetry
	case ErrorCategoryValidation:
		return RecoveryActionSkip
	case ErrorCategoryOrder, ErrorCategoryPosition:
		if e.Retryable {
			return RecoveryActionRetry
		}
		return RecoveryActionSkip
	default:
		return RecoveryActionRetry
	}
}
