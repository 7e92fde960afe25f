package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HorizonTrader/internal/model"
)

func bars(closes ...float64) []model.OHLCV {
	out := make([]model.OHLCV, len(closes))
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = model.OHLCV{Time: t.AddDate(0, 0, i), Open: c, High: c * 1.01, Low: c * 0.99, Close: c}
	}
	return out
}

func ramp(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestCalculateSMA(t *testing.T) {
	v, err := CalculateSMA([]float64{1, 2, 3, 4}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	_, err = CalculateSMA([]float64{1}, 2)
	assert.Error(t, err)
	_, err = CalculateSMA([]float64{1}, 0)
	assert.Error(t, err)
}

func TestEMASeries_ConstantInput(t *testing.T) {
	ema, err := EMASeries([]float64{5, 5, 5, 5, 5}, 3)
	require.NoError(t, err)
	assert.Equal(t, 5.0, ema[4])
	assert.Equal(t, 0.0, ema[0])
}

func TestCalculateRSI(t *testing.T) {
	up, err := CalculateRSI(bars(ramp(100, 1, 30)...), 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, up)

	down, err := CalculateRSI(bars(ramp(100, -1, 30)...), 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, down, 1e-9)

	neutral, err := CalculateRSI(bars(1, 2, 3), 14)
	assert.Error(t, err)
	assert.Equal(t, 50.0, neutral)
}

func TestRSISeries(t *testing.T) {
	flat, err := RSISeries(bars(ramp(10, 0, 20)...), 14)
	require.NoError(t, err)
	require.Len(t, flat, 20)
	for _, v := range flat {
		assert.Equal(t, 50.0, v)
	}

	// a single down move keeps it off 100
	series, err := RSISeries(bars(1, 2, 3, 2, 3, 4, 5), 3)
	require.NoError(t, err)
	assert.Less(t, series[3], 100.0)
	assert.Greater(t, series[6], series[4])
}

func TestCalculateMACD_Uptrend(t *testing.T) {
	m, err := CalculateMACD(bars(ramp(100, 0.5, 60)...), 12, 26, 9)
	require.NoError(t, err)
	assert.Greater(t, m.Line, 0.0)

	_, err = CalculateMACD(bars(ramp(100, 1, 20)...), 12, 26, 9)
	assert.Error(t, err)
}

func TestCalculateBollinger(t *testing.T) {
	b, err := CalculateBollinger(bars(10, 10, 10, 10), 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 10.0, b.Middle)
	assert.Equal(t, 0.5, b.Position)

	b, err = CalculateBollinger(bars(10, 11, 12, 13, 20), 5, 2)
	require.NoError(t, err)
	assert.Greater(t, b.Position, 0.8)
}

func TestRangeAndPosition(t *testing.T) {
	h, l, err := RangeHighLow(bars(10, 20, 30), 2)
	require.NoError(t, err)
	assert.InDelta(t, 30.3, h, 1e-9)
	assert.InDelta(t, 19.8, l, 1e-9)

	pos, err := PositionInRange(25, 30, 20)
	require.NoError(t, err)
	assert.Equal(t, 0.5, pos)

	pos, err = PositionInRange(40, 30, 20)
	require.NoError(t, err)
	assert.Equal(t, 1.0, pos)
}
