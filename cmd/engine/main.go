// Package main provides the entry point for the mean-reversion trading
// engine: live intraday trading or historical backtest replay,
// selected by configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/harlowquant/meanrev-engine/internal/backtest"
	"github.com/harlowquant/meanrev-engine/internal/broker"
	"github.com/harlowquant/meanrev-engine/internal/config"
	"github.com/harlowquant/meanrev-engine/internal/domainmodel"
	"github.com/harlowquant/meanrev-engine/internal/historicaldata"
	"github.com/harlowquant/meanrev-engine/internal/orderservice"
	"github.com/harlowquant/meanrev-engine/internal/persistence"
	"github.com/harlowquant/meanrev-engine/internal/statusapi"
	"github.com/harlowquant/meanrev-engine/internal/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	var configDir string
	flag.StringVar(&configDir, "config", "config", "Directory containing defaults.yaml/<mode>.yaml/local.yaml")
	flag.Parse()

	cfg, err := config.Load(configDir)
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	logger := log.New(os.Stdout, "[ENGINE] ", log.LstdFlags|log.Lshortfile)
	logger.Printf("starting mean-reversion engine in %s mode", cfg.Environment.Mode)

	statusLogger := logrus.New()
	if cfg.Environment.Mode == "live" {
		statusLogger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		statusLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if lvl, err := logrus.ParseLevel(cfg.Environment.LogLevel); err == nil {
		statusLogger.SetLevel(lvl)
	} else {
		statusLogger.SetLevel(logrus.InfoLevel)
	}

	brokerClient := broker.NewClient(cfg.Broker.BaseURL, cfg.Broker.AccountID, cfg.Broker.AccessToken)
	cbBroker := broker.NewCircuitBreakerClient(brokerClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := persistence.NewMongoStore(ctx, cfg.Storage.URI)
	if err != nil {
		logger.Printf("failed to connect to document store: %v", err)
		return 1
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Printf("error closing document store: %v", err)
		}
	}()

	persist := persistence.Init(ctx, store, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Println("shutdown signal received, stopping engine...")
		cancel()
	}()

	if cfg.Environment.Mode == "live" {
		return runLive(ctx, cfg, cbBroker, persist, store, logger, statusLogger)
	}
	return runBacktest(ctx, cfg, cbBroker, logger)
}

func runLive(ctx context.Context, cfg *config.Config, b *broker.CircuitBreakerClient, persist persistence.Handle, store persistence.Store, logger *log.Logger, statusLogger *logrus.Logger) int {
	orders, err := orderservice.New(ctx, b, persist, store, logger)
	if err != nil {
		logger.Printf("failed to initialize order service: %v", err)
		return 1
	}

	var statusServer *statusapi.Server
	if cfg.StatusAPI.Enabled {
		statusServer = statusapi.NewServer(cfg.StatusAPI.Port, orders, persist, statusLogger)
		go func() {
			if err := statusServer.Start(); err != nil && err != http.ErrServerClosed {
				logger.Printf("status api server error: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := statusServer.Shutdown(shutdownCtx); err != nil {
				logger.Printf("error shutting down status api: %v", err)
			}
		}()
	}

	sup := supervisor.New(cfg, b, persist, store, logger)
	if err := sup.Run(ctx); err != nil {
		logger.Printf("supervisor error: %v", err)
		return 1
	}

	logger.Println("engine stopped successfully")
	return 0
}

func runBacktest(ctx context.Context, cfg *config.Config, b *broker.CircuitBreakerClient, logger *log.Logger) int {
	end := domainmodel.NewCivilDate(time.Now())
	if cfg.Backtest.EndDate != "" {
		parsed, err := domainmodel.ParseCivilDate(cfg.Backtest.EndDate)
		if err != nil {
			logger.Printf("invalid backtest.end_date: %v", err)
			return 1
		}
		end = parsed
	}

	symbols := cfg.AllSymbols()
	fetchRange := cfg.Backtest.RangeDays + cfg.HistData.RangeDays
	provider, err := historicaldata.NewProvider(ctx, historicaldata.BrokerFetcher{Client: b}, symbols, end.Midnight(time.Local), fetchRange)
	if err != nil {
		logger.Printf("failed to fetch backtest history: %v", err)
		return 1
	}

	driver := backtest.New(end, cfg.Backtest.RangeDays, cfg.HistData.RangeDays, cfg.DomainStrategies(), provider.Snapshot(), logger)
	report, err := driver.Run(ctx)
	if err != nil {
		logger.Printf("backtest run failed: %v", err)
		return 1
	}

	logger.Printf("backtest complete: realized P&L %.2f, %d open position(s)", report.RealizedPnL, len(report.OpenPositions))
	for _, p := range report.OpenPositions {
		fmt.Printf("%-6s qty=%-8d cost_basis=%.2f\n", p.Symbol, p.Quantity, p.CostBasis)
	}

	return 0
}
