// Package reporting renders risk and execution reports to the console and
// to Excel workbooks.
package reporting

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantrade/trading-core/internal/execution"
	"github.com/quantrade/trading-core/internal/position"
	"github.com/quantrade/trading-core/internal/risk"
)

// ConsoleReporter renders reports as rounded tables on a writer
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a console reporter writing to stdout
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{out: os.Stdout}
}

// NewConsoleReporterTo creates a console reporter writing to w
func NewConsoleReporterTo(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

// PrintRiskReport renders the daily risk report
func (r *ConsoleReporter) PrintRiskReport(report *risk.RiskReport) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("RISK REPORT")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📅 Date", report.DailyStats.Date.Format("2006-01-02")},
		{"📉 Drawdown", fmt.Sprintf("%.2f%%", report.DailyStats.Drawdown*100)},
		{"🎯 Exposure", fmt.Sprintf("%.2f%%", report.DailyStats.Exposure*100)},
		{"📊 Volatility", fmt.Sprintf("%.2f%%", report.DailyStats.Volatility*100)},
	})

	if report.RiskMetrics != nil {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"📊 VaR (95%)", fmt.Sprintf("%.2f%%", report.RiskMetrics.VaR95*100)},
			{"📊 CVaR (95%)", fmt.Sprintf("%.2f%%", report.RiskMetrics.CVaR95*100)},
			{"📊 Sharpe Ratio", fmt.Sprintf("%.2f", report.RiskMetrics.SharpeRatio)},
			{"📊 Sortino Ratio", fmt.Sprintf("%.2f", report.RiskMetrics.SortinoRatio)},
			{"📉 Max Drawdown", fmt.Sprintf("%.2f%%", report.RiskMetrics.MaxDrawdown*100)},
			{"📊 Beta", fmt.Sprintf("%.2f", report.RiskMetrics.Beta)},
			{"📊 Volatility", fmt.Sprintf("%.2f%%", report.RiskMetrics.Volatility*100)},
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, WidthMax: 35, Align: text.AlignLeft},
	})

	t.Render()

	if len(report.Alerts) > 0 {
		fmt.Fprintln(r.out, "\n⚠️  ALERTS")
		for _, a := range report.Alerts {
			fmt.Fprintf(r.out, "  - %s\n", a)
		}
	}
	if len(report.Recommendations) > 0 {
		fmt.Fprintln(r.out, "\n💡 RECOMMENDATIONS")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(r.out, "  - %s\n", rec)
		}
	}
	fmt.Fprintln(r.out)
}

// PrintPerformanceReport renders execution quality metrics
func (r *ConsoleReporter) PrintPerformanceReport(report *execution.PerformanceReport) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("EXECUTION PERFORMANCE")
	t.SetStyle(table.StyleRounded)

	m := report.OverallMetrics
	t.AppendRows([]table.Row{
		{"🔄 Executions", fmt.Sprintf("%d", m.Executions)},
		{"✅ Fill Rate", fmt.Sprintf("%.1f%%", m.FillRate*100)},
		{"📉 Avg Slippage", fmt.Sprintf("%.2f bps", m.AvgSlippage*10000)},
		{"💸 Avg Total Cost", fmt.Sprintf("%.2f bps", m.AvgTotalCost*10000)},
		{"⏱️ Avg Exec Time", fmt.Sprintf("%.2fs", m.AvgExecutionTime)},
	})

	if len(report.CostAnalysis) > 0 {
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"📊 Avg Impact", fmt.Sprintf("%.2f bps", report.CostAnalysis["avg_market_impact"]*10000)},
			{"📊 Avg Timing Cost", fmt.Sprintf("%.2f bps", report.CostAnalysis["avg_timing_cost"]*10000)},
			{"📊 Worst Slippage", fmt.Sprintf("%.2f bps", report.CostAnalysis["worst_slippage"]*10000)},
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, WidthMax: 35, Align: text.AlignLeft},
	})

	t.Render()

	if len(report.Recommendations) > 0 {
		fmt.Fprintln(r.out, "\n💡 RECOMMENDATIONS")
		for _, rec := range report.Recommendations {
			fmt.Fprintf(r.out, "  - %s\n", rec)
		}
	}
	fmt.Fprintln(r.out)
}

// PrintPositions renders the open position table
func (r *ConsoleReporter) PrintPositions(positions []*position.Position) {
	if len(positions) == 0 {
		fmt.Fprintln(r.out, "No open positions")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("OPEN POSITIONS")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"Symbol", "Side", "Units", "Entry", "Current", "Unrealized PnL", "Trailing Stop", "Time Stop"})
	for _, p := range positions {
		t.AppendRow(table.Row{
			p.Symbol,
			string(p.Signal.Side),
			fmt.Sprintf("%.4f", p.Size.Units),
			fmt.Sprintf("%.2f", p.EntryPrice),
			fmt.Sprintf("%.2f", p.CurrentPrice),
			fmt.Sprintf("$%.2f", p.UnrealizedPnL),
			fmt.Sprintf("%.2f", p.Stops.TrailingStop),
			p.Stops.TimeStop.Format("2006-01-02"),
		})
	}

	t.Render()
	fmt.Fprintln(r.out)
}

// PrintStartupInfo renders the run configuration banner
func (r *ConsoleReporter) PrintStartupInfo(broker, environment string, capital float64, params risk.Params) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("TRADING CORE")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🏪 Broker", broker},
		{"🔧 Environment", environment},
		{"💰 Capital", fmt.Sprintf("$%.2f", capital)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"🎯 Max Position", fmt.Sprintf("%.1f%%", params.MaxPositionSize*100)},
		{"📊 Max Portfolio Risk", fmt.Sprintf("%.1f%%", params.MaxPortfolioRisk*100)},
		{"📏 Max Correlation", fmt.Sprintf("%.2f", params.MaxCorrelationRisk)},
		{"🏭 Max Sector Exposure", fmt.Sprintf("%.1f%%", params.MaxSectorExposure*100)},
		{"⏰ Time Stop", fmt.Sprintf("%d days", params.TimeStopDays)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 20, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, WidthMax: 40, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Fprintln(r.out)
}

// PrintRiskEvents renders recent risk events as a bulleted list
func (r *ConsoleReporter) PrintRiskEvents(events []risk.RiskEvent) {
	if len(events) == 0 {
		return
	}
	fmt.Fprintf(r.out, "⚠️  RISK EVENTS (%d)\n", len(events))
	for _, e := range events {
		fmt.Fprintf(r.out, "  %s [%s] %s\n",
			e.Timestamp.Format(time.TimeOnly), strings.ToUpper(e.Scope), e.Message)
	}
	fmt.Fprintln(r.out)
}
