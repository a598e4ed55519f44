package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/quantrade/trading-core/internal/broker"
	bybitbroker "github.com/quantrade/trading-core/internal/broker/bybit"
	"github.com/quantrade/trading-core/internal/config"
	"github.com/quantrade/trading-core/internal/execution"
	"github.com/quantrade/trading-core/internal/logger"
	"github.com/quantrade/trading-core/internal/monitoring"
	"github.com/quantrade/trading-core/internal/order"
	"github.com/quantrade/trading-core/internal/position"
	"github.com/quantrade/trading-core/internal/regime"
	"github.com/quantrade/trading-core/internal/risk"
	tradesignal "github.com/quantrade/trading-core/internal/signal"
	"github.com/quantrade/trading-core/pkg/reporting"
)

func main() {
	var (
		envFile   = flag.String("env", ".env", "Environment file path (default: .env)")
		demoRun   = flag.Bool("demo-run", false, "Run a scripted demo trade against the simulated broker")
		symbol    = flag.String("symbol", "BTCUSDT", "Symbol for the demo trade")
		xlsxPath  = flag.String("xlsx", "", "Write the session report to this Excel file on exit")
		noServers = flag.Bool("no-servers", false, "Skip the metrics and health endpoints")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	fileLog, err := logger.NewLogger("trader")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer fileLog.Close()

	// Risk stack: shared params feed sizing, portfolio bookkeeping and the
	// advisory monitor.
	params, err := loadRiskParams(cfg.RiskParamsFile)
	if err != nil {
		log.Fatalf("Failed to load risk params: %v", err)
	}
	portfolioRisk := risk.NewPortfolioRisk(cfg.Capital, params)
	riskManager := risk.NewManager(cfg.Capital, params, portfolioRisk)
	riskMonitor := risk.NewMonitor(params, portfolioRisk)

	console := reporting.NewConsoleReporter()
	console.PrintStartupInfo(cfg.Broker.Name, brokerEnvironment(cfg), cfg.Capital, *params)

	// Broker and order plumbing. The sim broker pushes fills directly into
	// the order manager; the live broker is polled for venue-side state.
	brk, simBroker, bybitBroker := buildBroker(cfg)
	orders := order.NewManager(brk, fileLog)
	if simBroker != nil {
		simBroker.SetFillHandler(orders)
	}

	healthChecker := monitoring.NewHealthChecker()
	healthChecker.SetConnected(true)

	tracker := execution.NewPerformanceTracker()
	engine := execution.NewEngine(brk, orders, riskManager, tracker, fileLog)
	engine.PollInterval = cfg.PollInterval

	positions := position.NewManager(riskManager, fileLog)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !*noServers {
		startServers(cfg, healthChecker)
	}
	if bybitBroker != nil {
		go syncLoop(ctx, bybitBroker, orders, cfg.PollInterval)
	}

	if *demoRun {
		if simBroker == nil {
			log.Fatal("-demo-run requires BROKER=sim")
		}
		runDemo(ctx, engine, positions, riskMonitor, console, simBroker, *symbol, fileLog, healthChecker)
	} else {
		fmt.Println("Trading core is up. Waiting for shutdown signal...")
	}

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\n🛑 Shutting down...")
	cancel()

	printReports(console, riskMonitor, tracker, positions)
	if *xlsxPath != "" {
		writeExcelReport(cfg, *xlsxPath, positions, tracker, riskMonitor, fileLog)
	}
}

// loadRiskParams reads the JSON params file when configured, defaults
// otherwise.
func loadRiskParams(path string) (*risk.Params, error) {
	if path == "" {
		return risk.DefaultParams(), nil
	}
	return risk.LoadParams(path)
}

// buildBroker constructs the configured broker. Exactly one of the two
// concrete returns is non-nil.
func buildBroker(cfg *config.Config) (broker.Broker, *broker.SimBroker, *bybitbroker.Broker) {
	if strings.EqualFold(cfg.Broker.Name, "bybit") {
		b := bybitbroker.New(bybitbroker.Config{
			APIKey:    cfg.Broker.APIKey,
			APISecret: cfg.Broker.APISecret,
			Category:  cfg.Broker.Category,
			Testnet:   cfg.Broker.Testnet,
			Demo:      cfg.Broker.Demo,
		})
		return b, nil, b
	}
	sim := broker.NewSimBroker()
	return sim, sim, nil
}

func brokerEnvironment(cfg *config.Config) string {
	if strings.EqualFold(cfg.Broker.Name, "bybit") {
		switch {
		case cfg.Broker.Demo:
			return "demo (paper trading)"
		case cfg.Broker.Testnet:
			return "testnet"
		default:
			return "mainnet (live trading)"
		}
	}
	return "simulated"
}

// startServers exposes the metrics and health endpoints
func startServers(cfg *config.Config, health *monitoring.HealthChecker) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", monitoring.NewMetricsHandler())
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/health", health)
		addr := fmt.Sprintf(":%d", cfg.HealthPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Printf("Health server stopped: %v", err)
		}
	}()
}

// syncLoop polls venue-side order state for every in-flight order and feeds
// the reports into the order manager.
func syncLoop(ctx context.Context, b *bybitbroker.Broker, orders *order.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, o := range orders.Orders() {
				if o.Status.Terminal() {
					continue
				}
				if err := b.SyncOrder(ctx, o.ID, orders); err != nil {
					log.Printf("Order sync failed for %s: %v", o.ID, err)
				}
			}
		}
	}
}

// runDemo drives one scripted signal through sizing, execution and position
// management against the simulated broker.
func runDemo(ctx context.Context, engine *execution.Engine, positions *position.Manager, monitor *risk.Monitor, console *reporting.ConsoleReporter, sim *broker.SimBroker, symbol string, fileLog *logger.Logger, health *monitoring.HealthChecker) {
	sim.SetSnapshot(&broker.MarketSnapshot{
		Symbol:        symbol,
		Price:         100.0,
		Spread:        0.02,
		Volume:        50000,
		Volatility:    0.015,
		AverageVolume: 1000000,
	})
	// Two partial steps then completion, exercising the PARTIAL path.
	sim.SetFillPlan([]broker.FillStep{
		{Delay: 20 * time.Millisecond, Ratio: 0.4},
		{Delay: 20 * time.Millisecond, Ratio: 1.0},
	})

	sig := &tradesignal.Signal{
		Symbol:   symbol,
		Side:     order.SideBuy,
		Price:    100.0,
		StopLoss: 98.0,
		Strength: 0.75,
		ATR:      1.5,
	}
	reg := regime.MarketRegime{
		Trend:      regime.TrendBullish,
		Volatility: regime.VolatilityNormal,
		Strength:   0.6,
		Confidence: 0.8,
	}

	pos, err := positions.Open(sig, reg, "crypto")
	if err != nil {
		fileLog.LogError("demo position open", err)
		log.Printf("Demo position open failed: %v", err)
		return
	}

	final, err := engine.Execute(ctx, sig, pos.Size.Units)
	if err != nil {
		fileLog.LogError("demo execution", err)
		log.Printf("Demo execution failed: %v", err)
		return
	}
	health.RecordOrder(final.AvgFillPrice)

	fmt.Printf("✅ Demo order %s finished as %s: %.4f units @ $%.4f\n",
		final.ID, final.Status, final.FilledQuantity, final.AvgFillPrice)

	// Walk the position forward and surface any warnings.
	if _, err := positions.Update(symbol, 101.5, 1.4); err != nil {
		log.Printf("Demo position update failed: %v", err)
	}
	for _, p := range positions.Active() {
		warnings := monitor.PositionWarnings(p.RiskView())
		monitoring.RecordRiskWarnings("position", len(warnings))
		for _, w := range warnings {
			fileLog.LogRiskWarning(w)
		}
	}
	monitoring.UpdateExposure(positions.TotalExposure(), len(positions.Active()))

	console.PrintPositions(positions.Active())
	fmt.Println("Demo complete. Press Ctrl+C to exit.")
}

// printReports renders the final session reports to the console
func printReports(console *reporting.ConsoleReporter, monitor *risk.Monitor, tracker *execution.PerformanceTracker, positions *position.Manager) {
	console.PrintPositions(positions.Active())
	console.PrintPerformanceReport(tracker.Report())
	console.PrintRiskReport(monitor.Report())
}

// writeExcelReport persists the session into an Excel workbook
func writeExcelReport(cfg *config.Config, path string, positions *position.Manager, tracker *execution.PerformanceTracker, monitor *risk.Monitor, fileLog *logger.Logger) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.ReportDir, path)
	}
	reporter := reporting.NewExcelReporter()
	if err := reporter.WriteSessionReport(path, positions.History(), tracker.Report(), monitor.Report()); err != nil {
		fileLog.LogError("excel report", err)
		log.Printf("Failed to write Excel report: %v", err)
		return
	}
	fmt.Printf("📊 Session report written to %s\n", path)
}
