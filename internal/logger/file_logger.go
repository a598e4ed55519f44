package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger represents a file logger for trading activities
type Logger struct {
	name    string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logDir  string
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelRisk    LogLevel = "RISK"
)

// NewLogger creates a new file logger scoped to the given component name
func NewLogger(name string) (*Logger, error) {
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", name, timestamp)
	logPath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		name:    name,
		logFile: file,
		logger:  log.New(file, "", 0),
		logDir:  logDir,
	}

	l.writeSessionHeader()

	return l, nil
}

// NewDiscard returns a logger that drops everything. Useful in tests.
func NewDiscard() *Logger {
	return &Logger{
		name:   "discard",
		logger: log.New(discardWriter{}, "", 0),
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// writeSessionHeader writes a session start header to the log
func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
EXECUTION SESSION STARTED
================================================================================
Component: %s
Started: %s
================================================================================
`, l.name, time.Now().Format("2006-01-02 15:04:05"))

	l.logger.Print(header)
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Println(fmt.Sprintf("[%s] [%s] %s", timestamp, level, message))
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs an order or fill event
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Risk logs a risk management event
func (l *Logger) Risk(format string, args ...interface{}) {
	l.Log(LogLevelRisk, format, args...)
}

// LogOrderSubmitted logs order submission details
func (l *Logger) LogOrderSubmitted(orderID, symbol, side string, quantity float64, orderType string) {
	l.Trade("Order submitted - ID: %s, %s %s x%.4f (%s)", orderID, side, symbol, quantity, orderType)
}

// LogOrderFill logs a fill report applied to an order
func (l *Logger) LogOrderFill(orderID string, filled, quantity, avgPrice float64) {
	l.Trade("Fill - ID: %s, filled %.4f/%.4f @ $%.4f", orderID, filled, quantity, avgPrice)
}

// LogOrderFinal logs an order reaching a terminal state
func (l *Logger) LogOrderFinal(orderID, status string, filled, avgPrice float64) {
	l.Trade("Order finalized - ID: %s, status %s, filled %.4f @ $%.4f", orderID, status, filled, avgPrice)
}

// LogPositionOpened logs a new position
func (l *Logger) LogPositionOpened(symbol string, units, entryPrice, riskAmount float64) {
	l.Trade("Position opened - %s x%.4f @ $%.4f (risk $%.2f)", symbol, units, entryPrice, riskAmount)
}

// LogPositionClosed logs a closed position
func (l *Logger) LogPositionClosed(symbol, reason string, realizedPnL float64) {
	l.Trade("Position closed - %s, reason: %s, realized P&L $%.2f", symbol, reason, realizedPnL)
}

// LogRiskWarning logs a risk monitor warning
func (l *Logger) LogRiskWarning(warning string) {
	l.Risk("%s", warning)
}

// LogError logs an error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// Close closes the log file
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile != nil {
		footer := fmt.Sprintf(`
================================================================================
EXECUTION SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, time.Now().Format("2006-01-02 15:04:05"))
		l.logger.Print(footer)

		return l.logFile.Close()
	}
	return nil
}
