package balance

import (
	"context"
	"fmt"

	"binance-sweep-bot/internal/binance/rest"

	"go.uber.org/zap"
)

type Wallet string

const (
	WalletSpot     Wallet = "SPOT"
	WalletFlexible Wallet = "FLEXIBLE_SAVINGS"
	WalletFunding  Wallet = "FUNDING"
)

// AssetBalance is a point-in-time free balance in one wallet. Snapshots are
// produced fresh each cycle and never persisted.
type AssetBalance struct {
	Asset  string
	Wallet Wallet
	Free   float64
}

type AccountClient interface {
	Account(ctx context.Context) ([]rest.Balance, error)
	FlexiblePositions(ctx context.Context) ([]rest.FlexiblePosition, error)
	FundingAssets(ctx context.Context) ([]rest.Balance, error)
}

type Inspector struct {
	client AccountClient
	log    *zap.Logger
}

func NewInspector(client AccountClient, log *zap.Logger) *Inspector {
	return &Inspector{client: client, log: log}
}

// List returns the strictly positive free balances in one wallet. A failure
// is scoped to that wallet; callers inspect other wallets independently.
func (i *Inspector) List(ctx context.Context, wallet Wallet) ([]AssetBalance, error) {
	switch wallet {
	case WalletSpot:
		entries, err := i.client.Account(ctx)
		if err != nil {
			return nil, fmt.Errorf("spot balances: %w", err)
		}
		return fromBalances(entries, WalletSpot), nil
	case WalletFlexible:
		positions, err := i.client.FlexiblePositions(ctx)
		if err != nil {
			return nil, fmt.Errorf("flexible savings balances: %w", err)
		}
		balances := make([]AssetBalance, 0, len(positions))
		for _, pos := range positions {
			if pos.Amount <= 0 {
				continue
			}
			balances = append(balances, AssetBalance{Asset: pos.Asset, Wallet: WalletFlexible, Free: pos.Amount})
		}
		return balances, nil
	case WalletFunding:
		entries, err := i.client.FundingAssets(ctx)
		if err != nil {
			return nil, fmt.Errorf("funding balances: %w", err)
		}
		return fromBalances(entries, WalletFunding), nil
	default:
		return nil, fmt.Errorf("unknown wallet %q", wallet)
	}
}

func fromBalances(entries []rest.Balance, wallet Wallet) []AssetBalance {
	balances := make([]AssetBalance, 0, len(entries))
	for _, entry := range entries {
		if entry.Free <= 0 {
			continue
		}
		balances = append(balances, AssetBalance{Asset: entry.Asset, Wallet: wallet, Free: entry.Free})
	}
	return balances
}
