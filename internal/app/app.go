package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"binance-sweep-bot/internal/alerts"
	"binance-sweep-bot/internal/balance"
	"binance-sweep-bot/internal/binance/rest"
	"binance-sweep-bot/internal/binance/ws"
	"binance-sweep-bot/internal/config"
	"binance-sweep-bot/internal/consolidate"
	"binance-sweep-bot/internal/dust"
	"binance-sweep-bot/internal/exec"
	"binance-sweep-bot/internal/history"
	"binance-sweep-bot/internal/market"
	"binance-sweep-bot/internal/metrics"
	"binance-sweep-bot/internal/rules"
	"binance-sweep-bot/internal/state"
	"binance-sweep-bot/internal/state/sqlite"
	"binance-sweep-bot/internal/sweep"

	"go.uber.org/zap"
)

const rulesRefreshInterval = time.Hour

type balanceLister interface {
	List(ctx context.Context, wallet balance.Wallet) ([]balance.AssetBalance, error)
}

type walletConsolidator interface {
	RedeemFlexibleHoldings(ctx context.Context, whitelist map[string]struct{}) consolidate.Result
	TransferFundingHoldings(ctx context.Context, whitelist map[string]struct{}) consolidate.Result
}

type decisionPlanner interface {
	Plan(ctx context.Context, balances []balance.AssetBalance, whitelist map[string]struct{}) []sweep.Decision
}

type orderExecutor interface {
	Execute(ctx context.Context, decision sweep.Decision, clientOrderID string) (exec.Result, error)
}

type dustConverter interface {
	Convert(ctx context.Context, decisions []sweep.Decision, whitelist map[string]struct{}) (dust.Outcome, error)
}

type alertSender interface {
	SendCycleSummary(ctx context.Context, report state.CycleReport) error
}

// App wires the sweep pipeline together and runs it on the poll interval.
// Cycles never overlap: the next cycle is scheduled only after the current
// one finishes.
type App struct {
	cfg          *config.Config
	log          *zap.Logger
	store        state.Store
	feed         *ws.PriceFeed
	balances     balanceLister
	consolidator walletConsolidator
	planner      decisionPlanner
	executor     orderExecutor
	dust         dustConverter
	metrics      *metrics.Metrics
	metricsHTTP  http.Handler
	alerts       alertSender
	history      *history.Writer
	now          func() time.Time
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	creds, err := config.CredentialsFromEnv()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}
	restClient := rest.New(cfg.REST.BaseURL, creds.APIKey, creds.APISecret, cfg.REST.Timeout, log)

	var feed *ws.PriceFeed
	var streamFeed market.StreamFeed
	if cfg.WS.Enabled {
		feed = ws.NewPriceFeed(cfg.WS.URL, cfg.WS.ReconnectDelay, cfg.WS.MaxPriceAge, log)
		streamFeed = feed
	}
	prices := market.NewPrices(restClient, streamFeed, log)
	ruleCache := rules.NewCache(restClient, rulesRefreshInterval, log)

	dryRun := cfg.Sweep.DryRunValue()
	metricSet := metrics.NewNoop()
	var metricsHTTP http.Handler
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheus()
		metricSet = prom.Metrics
		metricsHTTP = prom.Handler()
	}
	histWriter, err := history.New(cfg.History, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		cfg:          cfg,
		log:          log,
		store:        store,
		feed:         feed,
		balances:     balance.NewInspector(restClient, log),
		consolidator: consolidate.New(restClient, dryRun, log),
		planner: sweep.NewPlanner(ruleCache, prices, cfg.Sweep.Target,
			cfg.Sweep.MinQuoteNotional, cfg.Sweep.AutoConvertDust, log),
		executor:    exec.New(restClient, store, dryRun, log),
		dust:        dust.New(restClient, cfg.Sweep.DustCooldown, dryRun, log),
		metrics:     metricSet,
		metricsHTTP: metricsHTTP,
		alerts:      alerts.NewTelegram(cfg.Telegram, log),
		history:     histWriter,
		now:         time.Now,
	}, nil
}

func (a *App) Close() error {
	if a.history != nil {
		_ = a.history.Close()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Run executes sweep cycles until the context is cancelled. A failed cycle
// is logged and retried on the next interval.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()
	a.start(ctx)
	for {
		if err := a.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Warn("sweep cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.cfg.Sweep.PollInterval):
		}
	}
}

func (a *App) start(ctx context.Context) {
	if a.feed != nil {
		a.feed.Start(ctx)
	}
	a.history.Start(ctx)
	if a.metricsHTTP != nil {
		mux := http.NewServeMux()
		mux.Handle(a.cfg.Metrics.Path, a.metricsHTTP)
		server := &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Warn("metrics server failed", zap.Error(err))
			}
		}()
	}
}

// RunOnce executes a single sweep cycle: consolidate secondary wallets into
// spot, classify the spot holdings, sell what clears the exchange filters,
// and batch the rest into a dust conversion.
func (a *App) RunOnce(ctx context.Context) error {
	start := a.now().UTC()
	whitelist := a.cfg.Sweep.EffectiveWhitelist()
	report := state.CycleReport{
		StartedAtMS: start.UnixMilli(),
		Target:      a.cfg.Sweep.Target,
		DryRun:      a.cfg.Sweep.DryRunValue(),
	}

	var moved consolidate.Result
	if a.cfg.Sweep.AutoRedeemFlexible {
		moved = moved.Add(a.consolidator.RedeemFlexibleHoldings(ctx, whitelist))
	}
	if a.cfg.Sweep.AutoTransferFunding {
		moved = moved.Add(a.consolidator.TransferFundingHoldings(ctx, whitelist))
	}
	report.Consolidated = moved.Moved
	report.Failed += moved.Failed
	for i := 0; i < moved.Moved; i++ {
		a.metrics.AssetsConsolidated.Inc()
	}

	balances, err := a.balances.List(ctx, balance.WalletSpot)
	if err != nil {
		a.metrics.CyclesFailed.Inc()
		return fmt.Errorf("list spot balances: %w", err)
	}

	decisions := a.planner.Plan(ctx, balances, whitelist)
	for _, decision := range decisions {
		switch decision.Action {
		case sweep.ActionSell:
			a.executeSell(ctx, decision, start, &report)
		case sweep.ActionDust:
			report.Dust++
		case sweep.ActionSkip:
			report.Skipped++
		}
	}

	if a.cfg.Sweep.AutoConvertDust {
		a.convertDust(ctx, decisions, whitelist, &report)
	}

	report.FinishedAtMS = a.now().UTC().UnixMilli()
	if err := state.SaveCycleReport(ctx, a.store, report); err != nil {
		a.log.Warn("cycle report save failed", zap.Error(err))
	}
	a.history.EnqueueCycle(history.CycleRecord{
		Time:          start,
		Cycle:         start.Unix(),
		Target:        report.Target,
		DryRun:        report.DryRun,
		Consolidated:  report.Consolidated,
		Sold:          report.Sold,
		Dust:          report.Dust,
		Skipped:       report.Skipped,
		Failed:        report.Failed,
		DustConverted: report.DustConverted,
		DustDeferred:  report.DustDeferred,
		NotionalSold:  report.NotionalSold,
	})
	if a.alerts != nil {
		if err := a.alerts.SendCycleSummary(ctx, report); err != nil {
			a.log.Warn("cycle alert failed", zap.Error(err))
		}
	}
	a.metrics.CyclesCompleted.Inc()
	a.log.Info("sweep cycle complete",
		zap.Int("consolidated", report.Consolidated),
		zap.Int("sold", report.Sold),
		zap.Int("dust", report.Dust),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Float64("notional_sold", report.NotionalSold),
		zap.Bool("dry_run", report.DryRun),
	)
	return nil
}

func (a *App) executeSell(ctx context.Context, decision sweep.Decision, start time.Time, report *state.CycleReport) {
	clientOrderID := fmt.Sprintf("sweep-%s-%d", decision.Symbol, start.Unix())
	result, err := a.executor.Execute(ctx, decision, clientOrderID)
	if err != nil {
		report.Failed++
		a.metrics.OrdersFailed.Inc()
		a.log.Warn("sell failed",
			zap.String("asset", decision.Asset),
			zap.String("symbol", decision.Symbol),
			zap.Error(err),
		)
		return
	}
	report.Sold++
	report.NotionalSold += result.QuoteAmount
	if result.Simulated {
		a.metrics.OrdersSimulated.Inc()
	} else {
		a.metrics.OrdersPlaced.Inc()
	}
	a.history.EnqueueSell(history.SellRecord{
		Time:      a.now().UTC(),
		Cycle:     start.Unix(),
		Asset:     decision.Asset,
		Symbol:    decision.Symbol,
		Quantity:  result.FilledQty,
		Price:     decision.Price,
		Notional:  result.QuoteAmount,
		Status:    result.Status,
		OrderID:   result.OrderID,
		Simulated: result.Simulated,
	})
}

func (a *App) convertDust(ctx context.Context, decisions []sweep.Decision, whitelist map[string]struct{}, report *state.CycleReport) {
	outcome, err := a.dust.Convert(ctx, decisions, whitelist)
	if err != nil {
		report.Failed++
		return
	}
	if outcome.Converted {
		report.DustConverted = len(outcome.Assets)
		a.metrics.DustConversions.Inc()
	}
	if outcome.Deferred {
		report.DustDeferred = len(outcome.Assets)
		a.metrics.DustDeferred.Inc()
	}
}
