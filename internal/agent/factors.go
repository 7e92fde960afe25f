package agent

import (
	"fmt"
	"math"

	"HorizonTrader/internal/model"
)

// scoreRSI rewards oversold and penalises overbought readings.
func scoreRSI(name string, rsi, weight float64) model.FactorScore {
	var score float64
	switch {
	case rsi <= 25:
		score = 2.0
	case rsi <= 30:
		score = 1.5
	case rsi <= 40:
		score = 1.0
	case rsi <= 45:
		score = 0.5
	case rsi <= 55:
		score = 0
	case rsi <= 60:
		score = -0.5
	case rsi <= 70:
		score = -1.0
	case rsi <= 80:
		score = -1.5
	default:
		score = -2.0
	}
	return factor(name, score, weight, fmt.Sprintf("RSI=%.0f", rsi))
}

// scoreMACD favours a histogram that just turned positive and rising momentum.
func scoreMACD(hist, prevHist, weight float64) model.FactorScore {
	var score float64
	var commentary string
	switch {
	case prevHist <= 0 && hist > 0:
		score, commentary = 2.0, "bull cross"
	case prevHist >= 0 && hist < 0:
		score, commentary = -2.0, "bear cross"
	case hist > 0 && hist > prevHist:
		score, commentary = 1.0, "rising"
	case hist < 0 && hist < prevHist:
		score, commentary = -1.0, "falling"
	default:
		score, commentary = 0, "flat"
	}
	return factor("MACD", score, weight, commentary)
}

// scoreBandPosition treats the lower band as cheap and the upper as stretched.
func scoreBandPosition(pos, weight float64) model.FactorScore {
	var score float64
	switch {
	case pos <= 0.05:
		score = 1.5
	case pos <= 0.2:
		score = 1.0
	case pos <= 0.8:
		score = 0
	case pos <= 0.95:
		score = -1.0
	default:
		score = -1.5
	}
	return factor("Bollinger", score, weight, fmt.Sprintf("pos=%.0f%%", pos*100))
}

// scoreMADeviation scores the percent distance of price from a moving average.
func scoreMADeviation(name string, price, ma, weight float64) model.FactorScore {
	if ma == 0 {
		return factor(name, 0, weight, "n/a")
	}
	deviation := (price - ma) / ma * 100

	var score float64
	switch {
	case deviation <= -20:
		score = 2.0
	case deviation <= -10:
		score = 1.5
	case deviation <= -5:
		score = 1.0
	case deviation <= 0:
		score = 0.5
	case deviation <= 5:
		score = 0
	case deviation <= 10:
		score = -0.5
	case deviation <= 15:
		score = -1.0
	case deviation <= 20:
		score = -1.5
	default:
		score = -2.0
	}
	return factor(name, score, weight, fmt.Sprintf("%+.1f%%", deviation))
}

// scoreTrend checks MA alignment and proximity to the recent extremes.
// Bull alignment: price > fast > slow. Bear alignment: price < fast < slow.
func scoreTrend(price, fast, slow, high, low, weight float64) model.FactorScore {
	bullish := price > fast && fast > slow
	bearish := price < fast && fast < slow
	nearHigh := high > 0 && math.Abs(price-high)/high < 0.01
	nearLow := low > 0 && math.Abs(price-low)/low < 0.01

	var score float64
	var commentary string
	switch {
	case bullish && nearHigh:
		score, commentary = 1.5, "bull+new high"
	case bullish:
		score, commentary = 1.0, "bull"
	case bearish && nearLow:
		score, commentary = -1.5, "bear+new low"
	case bearish:
		score, commentary = -1.0, "bear"
	default:
		score, commentary = 0, "range"
	}
	return factor("Trend", score, weight, commentary)
}

// scoreRangePosition scores where price sits inside its long range. Above 95% it only
// scores -2 when the other factors agree (otherAvg < -1), otherwise it caps at -1.
func scoreRangePosition(pos, otherAvg, weight float64) model.FactorScore {
	p := pos * 100

	var score float64
	switch {
	case p <= 10:
		score = 2.0
	case p <= 20:
		score = 1.5
	case p <= 30:
		score = 1.0
	case p <= 40:
		score = 0.5
	case p <= 60:
		score = 0
	case p <= 70:
		score = -0.5
	case p <= 80:
		score = -1.0
	case p <= 95:
		score = -1.5
	default:
		if otherAvg < -1 {
			score = -2.0
		} else {
			score = -1.0
		}
	}
	return factor("52wPosition", score, weight, fmt.Sprintf("%.0f%%", p))
}
