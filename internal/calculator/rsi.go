package calculator

import (
	"errors"

	"HorizonTrader/internal/model"
)

// RSISeries returns Wilder RSI values aligned with bars; the first period entries are 50.
func RSISeries(bars []model.OHLCV, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("period must be positive")
	}
	if len(bars) < period+1 {
		return nil, errNotEnoughData
	}
	closes := Closes(bars)
	out := make([]float64, len(closes))
	for i := 0; i < period; i++ {
		out[i] = 50
	}

	n := float64(period)
	var up, down float64
	for i := 1; i < len(closes); i++ {
		gain, loss := split(closes[i] - closes[i-1])
		switch {
		case i < period:
			up += gain
			down += loss
			continue
		case i == period:
			up = (up + gain) / n
			down = (down + loss) / n
		default:
			up = (up*(n-1) + gain) / n
			down = (down*(n-1) + loss) / n
		}
		out[i] = rsiFrom(up, down)
	}
	return out, nil
}

// CalculateRSI returns the latest RSI. With too few bars it returns the neutral 50 and errNotEnoughData.
func CalculateRSI(bars []model.OHLCV, period int) (float64, error) {
	series, err := RSISeries(bars, period)
	if errors.Is(err, errNotEnoughData) {
		return 50, err
	}
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

func split(change float64) (gain, loss float64) {
	if change > 0 {
		return change, 0
	}
	return 0, -change
}

func rsiFrom(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	return 100 - 100/(1+avgGain/avgLoss)
}
