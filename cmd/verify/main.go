package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"binance-sweep-bot/internal/balance"
	"binance-sweep-bot/internal/binance/rest"
	"binance-sweep-bot/internal/config"
	"binance-sweep-bot/internal/logging"
	"binance-sweep-bot/internal/market"
	"binance-sweep-bot/internal/rules"
	"binance-sweep-bot/internal/sweep"

	"go.uber.org/zap"
)

const (
	defaultRESTBaseURL = "https://api.binance.com"
	defaultRESTTimeout = 10 * time.Second
	verifyEnvFile      = ".env"
)

// verify performs a read-only account check: it authenticates, lists every
// wallet, and prints the sell/dust/skip classification for the current spot
// holdings. It never places orders, redeems positions, or moves funds.
func main() {
	configPath := flag.String("config", "", "optional config path for sweep settings")
	flag.Parse()

	if err := config.LoadEnv(verifyEnvFile); err != nil {
		fatal(err)
	}

	logCfg := config.LoggingConfig{Level: "info"}
	baseURL := defaultRESTBaseURL
	timeout := defaultRESTTimeout
	sweepCfg := config.SweepConfig{Target: "USDT", MinQuoteNotional: 5}
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		logCfg = cfg.Log
		sweepCfg = cfg.Sweep
		if cfg.REST.BaseURL != "" {
			baseURL = cfg.REST.BaseURL
		}
		if cfg.REST.Timeout > 0 {
			timeout = cfg.REST.Timeout
		}
	}

	log := logging.New(logCfg)
	defer func() { _ = log.Sync() }()

	creds, err := config.CredentialsFromEnv()
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := rest.New(baseURL, creds.APIKey, creds.APISecret, timeout, log)
	inspector := balance.NewInspector(client, log)
	whitelist := sweepCfg.EffectiveWhitelist()

	for _, wallet := range []balance.Wallet{balance.WalletSpot, balance.WalletFlexible, balance.WalletFunding} {
		holdings, err := inspector.List(ctx, wallet)
		if err != nil {
			log.Warn("wallet listing failed", zap.String("wallet", string(wallet)), zap.Error(err))
			continue
		}
		fmt.Printf("%s: %d asset(s) with positive balance\n", wallet, len(holdings))
		for _, holding := range holdings {
			marker := ""
			if _, ok := whitelist[holding.Asset]; ok {
				marker = " (whitelisted)"
			}
			fmt.Printf("  %-10s %s%s\n", holding.Asset, rest.FormatAmount(holding.Free), marker)
		}
	}

	spot, err := inspector.List(ctx, balance.WalletSpot)
	if err != nil {
		fatal(err)
	}
	prices := market.NewPrices(client, nil, log)
	ruleCache := rules.NewCache(client, time.Hour, log)
	planner := sweep.NewPlanner(ruleCache, prices, sweepCfg.Target,
		sweepCfg.MinQuoteNotional, sweepCfg.AutoConvertDust, log)

	decisions := planner.Plan(ctx, spot, whitelist)
	if len(decisions) == 0 {
		fmt.Println("nothing to sweep: all spot holdings are whitelisted or empty")
		return
	}
	fmt.Printf("plan against %s:\n", sweepCfg.Target)
	for _, decision := range decisions {
		switch decision.Action {
		case sweep.ActionSell:
			fmt.Printf("  SELL %s %s via %s (~%.2f %s)\n",
				rest.FormatAmount(decision.Quantity), decision.Asset, decision.Symbol,
				decision.Notional, sweepCfg.Target)
		default:
			fmt.Printf("  %-4s %s: %s\n", decision.Action, decision.Asset, decision.Reason)
		}
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "verify: %v\n", err)
	os.Exit(1)
}
