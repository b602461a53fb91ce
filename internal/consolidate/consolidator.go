package consolidate

import (
	"context"

	"binance-sweep-bot/internal/binance/rest"

	"go.uber.org/zap"
)

const transferFundingToSpot = "FUNDING_MAIN"

type WalletClient interface {
	FlexiblePositions(ctx context.Context) ([]rest.FlexiblePosition, error)
	RedeemFlexible(ctx context.Context, productID string) error
	FundingAssets(ctx context.Context) ([]rest.Balance, error)
	UniversalTransfer(ctx context.Context, transferType, asset string, amount float64) error
}

// Consolidator moves non-whitelisted balances from secondary wallets into
// spot so the planner only ever sizes sells against the spot wallet.
// Flexible savings are handled before funding; each asset is an independent
// unit of work and a failure never aborts the remaining moves.
type Consolidator struct {
	client WalletClient
	log    *zap.Logger
	dryRun bool
}

// Result counts the outcome of one consolidation pass.
type Result struct {
	Moved   int
	Skipped int
	Failed  int
}

func New(client WalletClient, dryRun bool, log *zap.Logger) *Consolidator {
	return &Consolidator{client: client, dryRun: dryRun, log: log}
}

// RedeemFlexibleHoldings redeems every redeemable non-whitelisted flexible
// savings position into spot. Fixed-term products report CanRedeem=false and
// are skipped silently: no early-redemption capability exists for them.
func (c *Consolidator) RedeemFlexibleHoldings(ctx context.Context, whitelist map[string]struct{}) Result {
	var result Result
	positions, err := c.client.FlexiblePositions(ctx)
	if err != nil {
		c.log.Warn("flexible savings listing failed", zap.Error(err))
		result.Failed++
		return result
	}
	for _, pos := range positions {
		if pos.Amount <= 0 {
			continue
		}
		if _, ok := whitelist[pos.Asset]; ok {
			continue
		}
		if !pos.CanRedeem {
			c.log.Info("skipping fixed-term savings position",
				zap.String("asset", pos.Asset),
				zap.String("product_id", pos.ProductID),
			)
			result.Skipped++
			continue
		}
		if c.dryRun {
			c.log.Info("dry run: would redeem flexible savings",
				zap.String("asset", pos.Asset),
				zap.Float64("amount", pos.Amount),
			)
			result.Moved++
			continue
		}
		if err := c.client.RedeemFlexible(ctx, pos.ProductID); err != nil {
			c.log.Warn("flexible redemption failed",
				zap.String("asset", pos.Asset),
				zap.String("product_id", pos.ProductID),
				zap.Error(err),
			)
			result.Failed++
			continue
		}
		c.log.Info("redeemed flexible savings into spot",
			zap.String("asset", pos.Asset),
			zap.Float64("amount", pos.Amount),
		)
		result.Moved++
	}
	return result
}

// TransferFundingHoldings moves every non-whitelisted funding-wallet balance
// into spot via a universal transfer.
func (c *Consolidator) TransferFundingHoldings(ctx context.Context, whitelist map[string]struct{}) Result {
	var result Result
	assets, err := c.client.FundingAssets(ctx)
	if err != nil {
		c.log.Warn("funding wallet listing failed", zap.Error(err))
		result.Failed++
		return result
	}
	for _, entry := range assets {
		if entry.Free <= 0 {
			continue
		}
		if _, ok := whitelist[entry.Asset]; ok {
			continue
		}
		if c.dryRun {
			c.log.Info("dry run: would transfer from funding to spot",
				zap.String("asset", entry.Asset),
				zap.Float64("amount", entry.Free),
			)
			result.Moved++
			continue
		}
		if err := c.client.UniversalTransfer(ctx, transferFundingToSpot, entry.Asset, entry.Free); err != nil {
			c.log.Warn("funding transfer failed",
				zap.String("asset", entry.Asset),
				zap.Float64("amount", entry.Free),
				zap.Error(err),
			)
			result.Failed++
			continue
		}
		c.log.Info("transferred funding balance into spot",
			zap.String("asset", entry.Asset),
			zap.Float64("amount", entry.Free),
		)
		result.Moved++
	}
	return result
}

func (r Result) Add(other Result) Result {
	return Result{
		Moved:   r.Moved + other.Moved,
		Skipped: r.Skipped + other.Skipped,
		Failed:  r.Failed + other.Failed,
	}
}
