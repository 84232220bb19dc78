package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bingx-market-analyzer/internal/config"
	"bingx-market-analyzer/internal/infrastructure/exchange"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	symbol := flag.String("symbol", "BTC/USDT", "symbol to probe")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Testing BingX Interaction...\n")
	fmt.Printf("Endpoint: %s (sandbox=%v)\n", cfg.Exchange.RestEndpoint, cfg.Exchange.Sandbox)

	client := exchange.NewBingXClient(
		cfg.Exchange.APIKey,
		cfg.Exchange.APISecret,
		cfg.Exchange.RestEndpoint,
		cfg.Exchange.Sandbox,
		cfg.RequestTimeout(),
		zap.NewNop(),
	)
	ctx := context.Background()

	// 2. Initialize (markets probe + credential check)
	if err := client.Initialize(ctx); err != nil {
		fmt.Printf("❌ Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Initialized\n")

	// 3. Check Public Endpoints
	markets, err := client.FetchMarkets(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to fetch markets: %v\n", err)
	} else {
		fmt.Printf("✅ Markets: %d\n", len(markets))
	}

	ticker, err := client.FetchTicker(ctx, *symbol)
	if err != nil {
		fmt.Printf("❌ Failed to fetch ticker: %v\n", err)
	} else {
		fmt.Printf("✅ Ticker (%s): Last=%s Bid=%s Ask=%s Vol=%s\n",
			ticker.Symbol, ticker.Last, ticker.Bid, ticker.Ask, ticker.Volume)
	}

	candles, err := client.FetchCandles(ctx, *symbol, "1m", 5)
	if err != nil {
		fmt.Printf("❌ Failed to fetch candles: %v\n", err)
	} else {
		fmt.Printf("✅ Candles (1m): %d, latest close=%s\n",
			len(candles), candles[len(candles)-1].Close)
	}

	open, failures := client.BreakerState()
	fmt.Printf("   Circuit breaker: open=%v failures=%d\n", open, failures)

	// 4. Check Private Endpoint (Balance)
	if cfg.Exchange.APIKey == "" {
		fmt.Printf("⚠️  No API key configured, skipping balance check\n")
		return
	}
	balances, err := client.FetchBalance(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to fetch balance: %v\n", err)
	} else {
		fmt.Printf("✅ Balance: %d assets\n", len(balances))
		for asset, b := range balances {
			fmt.Printf("   %s: free=%s used=%s total=%s\n", asset, b.Free, b.Used, b.Total)
		}
	}
}
