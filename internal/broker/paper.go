package broker

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"HorizonTrader/internal/fund"
	"HorizonTrader/internal/model"
)

// PriceSource supplies marks for the paper broker.
type PriceSource interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// Paper fills every market order immediately at the last price against a persisted paper account.
type Paper struct {
	account *fund.Manager
	prices  PriceSource
}

func NewPaper(account *fund.Manager, prices PriceSource) *Paper {
	return &Paper{account: account, prices: prices}
}

func (p *Paper) Name() string { return "paper" }

func (p *Paper) AccountBalances(ctx context.Context) (model.Account, error) {
	equity := p.account.Equity(func(symbol string) float64 {
		px, err := p.prices.LastPrice(ctx, symbol)
		if err != nil {
			return 0
		}
		return px
	})
	cash := p.account.Cash()
	return model.Account{Cash: cash, Equity: equity, BuyingPower: cash, PortfolioValue: equity}, nil
}

func (p *Paper) LastPrice(ctx context.Context, symbol string) (float64, error) {
	px, err := p.prices.LastPrice(ctx, symbol)
	if err != nil {
		return 0, wrap("last_price", symbol, fmt.Errorf("%w: %v", ErrNoPrice, err))
	}
	if px <= 0 {
		return 0, wrap("last_price", symbol, ErrNoPrice)
	}
	return px, nil
}

func (p *Paper) MarketBuyQty(ctx context.Context, symbol string, qty float64) (model.Fill, error) {
	px, err := p.LastPrice(ctx, symbol)
	if err != nil {
		return model.Fill{}, err
	}
	if err := p.account.Buy(symbol, qty, px); err != nil {
		return model.Fill{}, wrap("buy", symbol, err)
	}
	return model.Fill{OrderID: "paper-" + uuid.NewString(), Qty: qty, AvgPrice: px}, nil
}

func (p *Paper) ClosePosition(ctx context.Context, symbol string) (string, error) {
	px, err := p.LastPrice(ctx, symbol)
	if err != nil {
		return "", err
	}
	if _, err := p.account.Sell(symbol, 0, px); err != nil {
		return "", wrap("close", symbol, err)
	}
	return "paper-" + uuid.NewString(), nil
}

func (p *Paper) Positions(ctx context.Context) ([]Position, error) {
	held := p.account.Positions()
	out := make([]Position, 0, len(held))
	for _, h := range held {
		px, _ := p.prices.LastPrice(ctx, h.Symbol)
		out = append(out, Position{Symbol: h.Symbol, Qty: h.Qty, AvgPrice: h.AvgPrice, CurrentPrice: px})
	}
	return out, nil
}
