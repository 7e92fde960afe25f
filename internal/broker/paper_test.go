package broker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HorizonTrader/internal/fund"
)

type fixedPrices map[string]float64

func (f fixedPrices) LastPrice(_ context.Context, symbol string) (float64, error) {
	px, ok := f[symbol]
	if !ok {
		return 0, errors.New("unknown symbol")
	}
	return px, nil
}

func newPaper(t *testing.T, prices fixedPrices) *Paper {
	t.Helper()
	m, err := fund.NewManager(filepath.Join(t.TempDir(), "paper.json"), 10000)
	require.NoError(t, err)
	return NewPaper(m, prices)
}

func TestPaper_BuyThenClose(t *testing.T) {
	ctx := context.Background()
	prices := fixedPrices{"AAPL": 100}
	p := newPaper(t, prices)

	fill, err := p.MarketBuyQty(ctx, "AAPL", 10)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fill.OrderID, "paper-"))
	assert.Equal(t, 10.0, fill.Qty)
	assert.Equal(t, 100.0, fill.AvgPrice)

	acct, err := p.AccountBalances(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 9000, acct.Cash, 1e-9)
	assert.InDelta(t, 10000, acct.Equity, 1e-9)

	prices["AAPL"] = 110
	id, err := p.ClosePosition(ctx, "AAPL")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	acct, err = p.AccountBalances(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10100, acct.Cash, 1e-9)

	positions, err := p.Positions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestPaper_NoPrice(t *testing.T) {
	p := newPaper(t, fixedPrices{"ZERO": 0})

	_, err := p.LastPrice(context.Background(), "ZERO")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPrice)

	_, err = p.MarketBuyQty(context.Background(), "MISSING", 1)
	var be *BrokerError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "MISSING", be.Symbol)
}

func TestPaper_CloseWithoutHolding(t *testing.T) {
	p := newPaper(t, fixedPrices{"AAPL": 100})
	_, err := p.ClosePosition(context.Background(), "AAPL")
	var be *BrokerError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "close", be.Op)
}

func TestPaper_InsufficientCash(t *testing.T) {
	p := newPaper(t, fixedPrices{"AAPL": 100})
	_, err := p.MarketBuyQty(context.Background(), "AAPL", 1000)
	require.Error(t, err)
}
