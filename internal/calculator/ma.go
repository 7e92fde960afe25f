package calculator

import (
	"errors"

	"HorizonTrader/internal/model"
)

var errNotEnoughData = errors.New("not enough data")

// CalculateSMA computes the simple moving average of the last period prices.
func CalculateSMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(prices) < period {
		return 0, errNotEnoughData
	}
	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	return sum / float64(period), nil
}

// SMAOf is CalculateSMA over bar closes.
func SMAOf(bars []model.OHLCV, period int) (float64, error) {
	return CalculateSMA(Closes(bars), period)
}

// EMASeries returns the exponential moving average for every index from period-1 on,
// seeded with the SMA of the first period values. Earlier indices are 0.
func EMASeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(prices) < period {
		return nil, errNotEnoughData
	}
	out := make([]float64, len(prices))
	seed, _ := CalculateSMA(prices[:period], period)
	out[period-1] = seed
	k := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		out[i] = prices[i]*k + out[i-1]*(1-k)
	}
	return out, nil
}

// Closes extracts closing prices.
func Closes(bars []model.OHLCV) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
