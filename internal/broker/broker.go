// Package broker defines the execution surface and its paper and REST implementations.
package broker

import (
	"context"
	"errors"
	"fmt"

	"HorizonTrader/internal/model"
)

// ErrNoPrice means the broker has no usable last price for a symbol.
var ErrNoPrice = errors.New("no last price")

// Broker executes orders and reports balances. All calls may block on the network.
type Broker interface {
	AccountBalances(ctx context.Context) (model.Account, error)
	// LastPrice returns 0 with ErrNoPrice when no price is available.
	LastPrice(ctx context.Context, symbol string) (float64, error)
	MarketBuyQty(ctx context.Context, symbol string, qty float64) (model.Fill, error)
	// ClosePosition sells the broker's entire holding of symbol and returns the order id.
	ClosePosition(ctx context.Context, symbol string) (string, error)
	Positions(ctx context.Context) ([]Position, error)
	Name() string
}

// Position is the broker's own view of a holding.
type Position struct {
	Symbol       string  `json:"symbol"`
	Qty          float64 `json:"qty"`
	AvgPrice     float64 `json:"avg_entry_price"`
	CurrentPrice float64 `json:"current_price"`
}

// BrokerError wraps any failure coming out of a broker call.
type BrokerError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *BrokerError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("broker %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("broker %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *BrokerError) Unwrap() error { return e.Err }

func wrap(op, symbol string, err error) error {
	if err == nil {
		return nil
	}
	var be *BrokerError
	if errors.As(err, &be) {
		return err
	}
	return &BrokerError{Op: op, Symbol: symbol, Err: err}
}
