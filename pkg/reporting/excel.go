package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/quantrade/trading-core/internal/execution"
	"github.com/quantrade/trading-core/internal/position"
	"github.com/quantrade/trading-core/internal/risk"
)

// ExcelStyles holds the style ids shared across sheets
type ExcelStyles struct {
	HeaderStyle   int
	CurrencyStyle int
	PercentStyle  int
	NumberStyle   int
}

// ExcelReporter writes trading session reports as Excel workbooks
type ExcelReporter struct{}

// NewExcelReporter creates an Excel reporter
func NewExcelReporter() *ExcelReporter {
	return &ExcelReporter{}
}

// WriteSessionReport writes positions, executions and risk metrics into one
// workbook at path.
func (r *ExcelReporter) WriteSessionReport(path string, positions []*position.Position, perf *execution.PerformanceReport, riskReport *risk.RiskReport) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const positionsSheet = "Positions"
	const executionsSheet = "Executions"
	const riskSheet = "Risk"

	fx.SetSheetName(fx.GetSheetName(0), positionsSheet)
	fx.NewSheet(executionsSheet)
	fx.NewSheet(riskSheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writePositionsSheet(fx, positionsSheet, positions, styles); err != nil {
		return err
	}
	if err := r.writeExecutionsSheet(fx, executionsSheet, perf, styles); err != nil {
		return err
	}
	if err := r.writeRiskSheet(fx, riskSheet, riskReport, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

// createStyles creates the shared workbook styles
func (r *ExcelReporter) createStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 7,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.PercentStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 10,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.NumberStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt: 4,
		Alignment: &excelize.Alignment{
			Horizontal: "right",
		},
	})
	return styles, err
}

// writePositionsSheet writes the position history table
func (r *ExcelReporter) writePositionsSheet(fx *excelize.File, sheet string, positions []*position.Position, styles ExcelStyles) error {
	headers := []string{"Symbol", "Sector", "Entry Time", "Entry Price", "Units", "Notional", "Risk Amount", "Classification", "Current Price", "Unrealized PnL", "Realized PnL", "Exit Reason", "Closed"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle)
	}

	for row, p := range positions {
		values := []interface{}{
			p.Symbol,
			p.Sector,
			p.EntryTime.Format(time.RFC3339),
			p.EntryPrice,
			p.Size.Units,
			p.Size.Value,
			p.Size.RiskAmount,
			string(p.Size.Classification),
			p.CurrentPrice,
			p.UnrealizedPnL,
			p.RealizedPnL,
			p.ExitReason,
			p.Closed,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	fx.SetColWidth(sheet, "A", "M", 16)
	return nil
}

// writeExecutionsSheet writes per-order execution quality rows plus the
// aggregate block.
func (r *ExcelReporter) writeExecutionsSheet(fx *excelize.File, sheet string, perf *execution.PerformanceReport, styles ExcelStyles) error {
	headers := []string{"Order ID", "Symbol", "Side", "Status", "Quantity", "Fill Price", "Slippage", "Market Impact", "Timing Cost", "Total Cost", "Exec Time (s)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle)
	}

	row := 2
	if perf != nil {
		for _, rec := range perf.RecentExecutions {
			values := []interface{}{
				rec.OrderID,
				rec.Symbol,
				string(rec.Side),
				string(rec.Status),
				rec.Quantity,
				rec.FillPrice,
				rec.Metrics.Slippage,
				rec.Metrics.MarketImpact,
				rec.Metrics.TimingCost,
				rec.Metrics.TotalCost,
				rec.Metrics.ExecutionTime,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, row)
				if err := fx.SetCellValue(sheet, cell, v); err != nil {
					return err
				}
			}
			row++
		}

		row++
		summary := [][]interface{}{
			{"Executions", perf.OverallMetrics.Executions},
			{"Fill Rate", perf.OverallMetrics.FillRate},
			{"Avg Slippage", perf.OverallMetrics.AvgSlippage},
			{"Avg Total Cost", perf.OverallMetrics.AvgTotalCost},
			{"Avg Exec Time (s)", perf.OverallMetrics.AvgExecutionTime},
		}
		for _, pair := range summary {
			labelCell, _ := excelize.CoordinatesToCellName(1, row)
			valueCell, _ := excelize.CoordinatesToCellName(2, row)
			if err := fx.SetCellValue(sheet, labelCell, pair[0]); err != nil {
				return err
			}
			if err := fx.SetCellValue(sheet, valueCell, pair[1]); err != nil {
				return err
			}
			row++
		}
	}

	fx.SetColWidth(sheet, "A", "A", 38)
	fx.SetColWidth(sheet, "B", "K", 14)
	return nil
}

// writeRiskSheet writes the risk metrics block and recorded events
func (r *ExcelReporter) writeRiskSheet(fx *excelize.File, sheet string, report *risk.RiskReport, styles ExcelStyles) error {
	if report == nil {
		return nil
	}

	fx.SetCellValue(sheet, "A1", "Metric")
	fx.SetCellValue(sheet, "B1", "Value")
	fx.SetCellStyle(sheet, "A1", "B1", styles.HeaderStyle)

	rows := [][]interface{}{
		{"Date", report.DailyStats.Date.Format("2006-01-02")},
		{"Drawdown", report.DailyStats.Drawdown},
		{"Exposure", report.DailyStats.Exposure},
		{"Volatility", report.DailyStats.Volatility},
	}
	if report.RiskMetrics != nil {
		rows = append(rows,
			[]interface{}{"VaR 95%", report.RiskMetrics.VaR95},
			[]interface{}{"CVaR 95%", report.RiskMetrics.CVaR95},
			[]interface{}{"Sharpe Ratio", report.RiskMetrics.SharpeRatio},
			[]interface{}{"Sortino Ratio", report.RiskMetrics.SortinoRatio},
			[]interface{}{"Max Drawdown", report.RiskMetrics.MaxDrawdown},
			[]interface{}{"Beta", report.RiskMetrics.Beta},
			[]interface{}{"Annualized Volatility", report.RiskMetrics.Volatility},
		)
	}

	row := 2
	for _, pair := range rows {
		labelCell, _ := excelize.CoordinatesToCellName(1, row)
		valueCell, _ := excelize.CoordinatesToCellName(2, row)
		if err := fx.SetCellValue(sheet, labelCell, pair[0]); err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, valueCell, pair[1]); err != nil {
			return err
		}
		row++
	}

	if len(report.RiskEvents) > 0 {
		row++
		fx.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Timestamp")
		fx.SetCellValue(sheet, fmt.Sprintf("B%d", row), "Scope")
		fx.SetCellValue(sheet, fmt.Sprintf("C%d", row), "Symbol")
		fx.SetCellValue(sheet, fmt.Sprintf("D%d", row), "Message")
		headerStart, _ := excelize.CoordinatesToCellName(1, row)
		headerEnd, _ := excelize.CoordinatesToCellName(4, row)
		fx.SetCellStyle(sheet, headerStart, headerEnd, styles.HeaderStyle)
		row++

		for _, e := range report.RiskEvents {
			fx.SetCellValue(sheet, fmt.Sprintf("A%d", row), e.Timestamp.Format(time.RFC3339))
			fx.SetCellValue(sheet, fmt.Sprintf("B%d", row), e.Scope)
			fx.SetCellValue(sheet, fmt.Sprintf("C%d", row), e.Symbol)
			fx.SetCellValue(sheet, fmt.Sprintf("D%d", row), e.Message)
			row++
		}
	}

	fx.SetColWidth(sheet, "A", "A", 24)
	fx.SetColWidth(sheet, "B", "C", 14)
	fx.SetColWidth(sheet, "D", "D", 60)
	return nil
}
