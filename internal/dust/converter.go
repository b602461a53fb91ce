package dust

import (
	"context"
	"sync"
	"time"

	"binance-sweep-bot/internal/binance/rest"
	"binance-sweep-bot/internal/sweep"

	"go.uber.org/zap"
)

type State string

const (
	StateReady   State = "READY"
	StateCooling State = "COOLING"
)

// Binance credits dust conversions in BNB, so BNB itself can never be part
// of a batch.
const destinationAsset = "BNB"

type DustClient interface {
	DustTransfer(ctx context.Context, assets []string) (rest.DustResult, error)
}

// Converter batches the cycle's DUST-classified assets into a single dust
// transfer, at most once per cooldown window. The window mirrors the
// exchange-enforced limit; a deferred batch is a policy branch, not a
// failure, since retrying inside the window would only waste a call. The
// last-conversion timestamp lives in memory only: after a restart the
// exchange-side cooldown remains the authority.
type Converter struct {
	client   DustClient
	log      *zap.Logger
	cooldown time.Duration
	dryRun   bool
	now      func() time.Time

	mu             sync.Mutex
	lastConversion time.Time
}

// Outcome describes what the converter did with this cycle's dust.
type Outcome struct {
	Converted     bool
	Deferred      bool
	Simulated     bool
	Assets        []string
	Proceeds      float64
	ServiceCharge float64
}

func New(client DustClient, cooldown time.Duration, dryRun bool, log *zap.Logger) *Converter {
	return &Converter{
		client:   client,
		log:      log,
		cooldown: cooldown,
		dryRun:   dryRun,
		now:      time.Now,
	}
}

func (c *Converter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastConversion.IsZero() || c.now().Sub(c.lastConversion) >= c.cooldown {
		return StateReady
	}
	return StateCooling
}

// Convert batches the DUST decisions into one dust-transfer call. Whitelisted
// assets and the conversion destination are excluded defensively; the planner
// should never emit them as dust in the first place.
func (c *Converter) Convert(ctx context.Context, decisions []sweep.Decision, whitelist map[string]struct{}) (Outcome, error) {
	assets := dustAssets(decisions, whitelist)
	if len(assets) == 0 {
		return Outcome{}, nil
	}
	if c.State() == StateCooling {
		c.log.Info("dust conversion deferred, cooldown active",
			zap.Strings("assets", assets),
			zap.Time("last_conversion", c.lastConversionTime()),
		)
		return Outcome{Deferred: true, Assets: assets}, nil
	}
	if c.dryRun {
		c.log.Info("dry run: would convert dust", zap.Strings("assets", assets))
		return Outcome{Converted: true, Simulated: true, Assets: assets}, nil
	}
	result, err := c.client.DustTransfer(ctx, assets)
	if err != nil {
		// The exchange contract for partial-batch failures is unspecified;
		// log everything we know and stay READY so the next cycle retries.
		c.log.Warn("dust conversion failed", zap.Strings("assets", assets), zap.Error(err))
		return Outcome{Assets: assets}, err
	}
	c.mu.Lock()
	c.lastConversion = c.now()
	c.mu.Unlock()
	converted := make([]string, 0, len(result.Converted))
	for _, entry := range result.Converted {
		converted = append(converted, entry.Asset)
	}
	c.log.Info("converted dust to BNB",
		zap.Strings("assets", converted),
		zap.Float64("proceeds", result.TotalTransferred),
		zap.Float64("service_charge", result.TotalServiceCharge),
	)
	return Outcome{
		Converted:     true,
		Assets:        converted,
		Proceeds:      result.TotalTransferred,
		ServiceCharge: result.TotalServiceCharge,
	}, nil
}

func (c *Converter) lastConversionTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastConversion
}

func dustAssets(decisions []sweep.Decision, whitelist map[string]struct{}) []string {
	assets := make([]string, 0, len(decisions))
	for _, decision := range decisions {
		if decision.Action != sweep.ActionDust {
			continue
		}
		if decision.Asset == destinationAsset {
			continue
		}
		if _, ok := whitelist[decision.Asset]; ok {
			continue
		}
		assets = append(assets, decision.Asset)
	}
	return assets
}
