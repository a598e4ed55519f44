package reporting

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/quantrade/trading-core/internal/execution"
	"github.com/quantrade/trading-core/internal/order"
	"github.com/quantrade/trading-core/internal/position"
	"github.com/quantrade/trading-core/internal/regime"
	"github.com/quantrade/trading-core/internal/risk"
	"github.com/quantrade/trading-core/internal/signal"
)

func sampleRiskReport() *risk.RiskReport {
	return &risk.RiskReport{
		DailyStats: risk.DailyStats{
			Date:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Drawdown:   0.012,
			Exposure:   0.034,
			Volatility: 0.021,
		},
		RiskEvents: []risk.RiskEvent{
			{Timestamp: time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC), Scope: "position", Symbol: "BTCUSDT", Message: "time stop exceeded"},
		},
		Alerts:          []string{"portfolio exposure above limit"},
		RiskMetrics:     &risk.RiskMetrics{VaR95: 0.018, CVaR95: 0.025, SharpeRatio: 1.4, MaxDrawdown: 0.06},
		Recommendations: []string{"Reduce position sizes"},
	}
}

func samplePerformanceReport() *execution.PerformanceReport {
	return &execution.PerformanceReport{
		OverallMetrics: execution.OverallMetrics{
			Executions:       2,
			FillRate:         0.5,
			AvgSlippage:      0.0004,
			AvgTotalCost:     0.0011,
			AvgExecutionTime: 1.5,
		},
		RecentExecutions: []execution.ExecutionRecord{
			{
				OrderID:   "ord-1",
				Symbol:    "BTCUSDT",
				Side:      order.SideBuy,
				Status:    order.StatusFilled,
				Quantity:  10,
				FillPrice: 100.5,
				Metrics:   execution.ExecutionMetrics{Slippage: 0.0004, TotalCost: 0.0011, ExecutionTime: 1.5},
			},
		},
		CostAnalysis: map[string]float64{
			"avg_market_impact": 0.0002,
			"avg_timing_cost":   0.0005,
			"worst_slippage":    0.0009,
		},
		Recommendations: []string{"Use algorithmic execution for large orders"},
	}
}

func samplePosition() *position.Position {
	return &position.Position{
		Symbol:     "BTCUSDT",
		EntryPrice: 100,
		Size:       &risk.PositionSize{Units: 1200, Value: 120000, RiskAmount: 2000, RiskPercent: 0.02, Classification: risk.PositionFull},
		Stops: &risk.StopLevels{
			InitialStop:  96,
			TrailingStop: 97,
			TimeStop:     time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			ProfitStops:  []float64{106, 108, 112},
		},
		EntryTime:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Signal:        &signal.Signal{Symbol: "BTCUSDT", Side: order.SideBuy, Price: 100, StopLoss: 98, Strength: 0.75, ATR: 1.5},
		Regime:        regime.MarketRegime{Trend: regime.TrendBullish, Volatility: regime.VolatilityNormal},
		Sector:        "crypto",
		CurrentPrice:  103,
		UnrealizedPnL: 3600,
	}
}

// TestPrintRiskReport tests the risk report rendering
func TestPrintRiskReport(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleReporterTo(&buf).PrintRiskReport(sampleRiskReport())

	out := buf.String()
	assert.Contains(t, out, "RISK REPORT")
	assert.Contains(t, out, "2026-03-10")
	assert.Contains(t, out, "portfolio exposure above limit")
	assert.Contains(t, out, "Reduce position sizes")
}

// TestPrintRiskReport_NoMetrics tests rendering without the metrics block
func TestPrintRiskReport_NoMetrics(t *testing.T) {
	report := sampleRiskReport()
	report.RiskMetrics = nil

	var buf bytes.Buffer
	NewConsoleReporterTo(&buf).PrintRiskReport(report)
	assert.Contains(t, buf.String(), "RISK REPORT")
	assert.NotContains(t, buf.String(), "Sharpe")
}

// TestPrintPerformanceReport tests the execution quality rendering
func TestPrintPerformanceReport(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleReporterTo(&buf).PrintPerformanceReport(samplePerformanceReport())

	out := buf.String()
	assert.Contains(t, out, "EXECUTION PERFORMANCE")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "Use algorithmic execution for large orders")
}

// TestPrintPositions tests the open position table and the empty case
func TestPrintPositions(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleReporterTo(&buf).PrintPositions([]*position.Position{samplePosition()})

	out := buf.String()
	assert.Contains(t, out, "OPEN POSITIONS")
	assert.Contains(t, out, "BTCUSDT")
	assert.Contains(t, out, "1200.0000")

	buf.Reset()
	NewConsoleReporterTo(&buf).PrintPositions(nil)
	assert.Contains(t, buf.String(), "No open positions")
}

// TestPrintRiskEvents tests the event list rendering
func TestPrintRiskEvents(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleReporterTo(&buf).PrintRiskEvents(sampleRiskReport().RiskEvents)
	assert.Contains(t, buf.String(), "POSITION")
	assert.Contains(t, buf.String(), "time stop exceeded")

	buf.Reset()
	NewConsoleReporterTo(&buf).PrintRiskEvents(nil)
	assert.Empty(t, buf.String())
}

// TestWriteSessionReport tests the workbook export round trip
func TestWriteSessionReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "session.xlsx")

	err := NewExcelReporter().WriteSessionReport(path, []*position.Position{samplePosition()}, samplePerformanceReport(), sampleRiskReport())
	assert.NoError(t, err)

	fx, err := excelize.OpenFile(path)
	assert.NoError(t, err)
	defer fx.Close()

	assert.ElementsMatch(t, []string{"Positions", "Executions", "Risk"}, fx.GetSheetList())

	symbol, err := fx.GetCellValue("Positions", "A2")
	assert.NoError(t, err)
	assert.Equal(t, "BTCUSDT", symbol)

	orderID, err := fx.GetCellValue("Executions", "A2")
	assert.NoError(t, err)
	assert.Equal(t, "ord-1", orderID)
}

// TestWriteSessionReport_NilReports tests export tolerance of absent data
func TestWriteSessionReport_NilReports(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.xlsx")
	err := NewExcelReporter().WriteSessionReport(path, nil, nil, nil)
	assert.NoError(t, err)
}
