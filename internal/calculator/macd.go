package calculator

import (
	"math"

	"HorizonTrader/internal/model"
)

// MACD is the latest MACD reading plus the previous histogram for cross detection.
type MACD struct {
	Line     float64
	Signal   float64
	Hist     float64
	PrevHist float64
}

// CalculateMACD uses the usual fast/slow/signal EMAs (12/26/9 by convention).
func CalculateMACD(bars []model.OHLCV, fast, slow, signal int) (MACD, error) {
	closes := Closes(bars)
	if len(closes) < slow+signal {
		return MACD{}, errNotEnoughData
	}
	fastEMA, err := EMASeries(closes, fast)
	if err != nil {
		return MACD{}, err
	}
	slowEMA, err := EMASeries(closes, slow)
	if err != nil {
		return MACD{}, err
	}
	line := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		line = append(line, fastEMA[i]-slowEMA[i])
	}
	sig, err := EMASeries(line, signal)
	if err != nil {
		return MACD{}, err
	}
	n := len(line)
	m := MACD{
		Line:   line[n-1],
		Signal: sig[n-1],
		Hist:   line[n-1] - sig[n-1],
	}
	if n >= signal+1 {
		m.PrevHist = line[n-2] - sig[n-2]
	}
	return m, nil
}

// Bollinger holds the bands and the close's position within them (0 lower, 1 upper).
type Bollinger struct {
	Middle   float64
	Upper    float64
	Lower    float64
	Position float64
}

// CalculateBollinger computes period-SMA bands at k population standard deviations.
func CalculateBollinger(bars []model.OHLCV, period int, k float64) (Bollinger, error) {
	closes := Closes(bars)
	mid, err := CalculateSMA(closes, period)
	if err != nil {
		return Bollinger{}, err
	}
	var ss float64
	for _, c := range closes[len(closes)-period:] {
		ss += (c - mid) * (c - mid)
	}
	sd := math.Sqrt(ss / float64(period))
	b := Bollinger{Middle: mid, Upper: mid + k*sd, Lower: mid - k*sd, Position: 0.5}
	if b.Upper > b.Lower {
		pos, _ := PositionInRange(closes[len(closes)-1], b.Upper, b.Lower)
		b.Position = pos
	}
	return b, nil
}
