package agent

import (
	"HorizonTrader/internal/calculator"
	"HorizonTrader/internal/model"
)

// NewShort votes on 30 minute bars: RSI, MACD and Bollinger position.
func NewShort() Agent {
	return &scorer{
		name:    "short_term",
		horizon: model.HorizonShort,
		minBars: 40,
		factors: func(bars []model.OHLCV) []model.FactorScore {
			rsi, _ := calculator.CalculateRSI(bars, 14)
			out := []model.FactorScore{scoreRSI("RSI14", rsi, 0.4)}
			if m, err := calculator.CalculateMACD(bars, 12, 26, 9); err == nil {
				out = append(out, scoreMACD(m.Hist, m.PrevHist, 0.35))
			}
			if b, err := calculator.CalculateBollinger(bars, 20, 2); err == nil {
				out = append(out, scoreBandPosition(b.Position, 0.25))
			}
			return out
		},
	}
}

// NewMid votes on daily bars: deviation from the 200-day average, daily RSI, trend and MACD.
func NewMid() Agent {
	return &scorer{
		name:    "mid_term",
		horizon: model.HorizonMid,
		minBars: 60,
		factors: func(bars []model.OHLCV) []model.FactorScore {
			price := bars[len(bars)-1].Close
			ma200, err := calculator.SMAOf(bars, 200)
			if err != nil {
				ma200, _ = calculator.SMAOf(bars, len(bars))
			}
			ma20, _ := calculator.SMAOf(bars, 20)
			ma50, _ := calculator.SMAOf(bars, 50)
			high, low, _ := calculator.RangeHighLow(bars, 22)
			rsi, _ := calculator.CalculateRSI(bars, 14)

			out := []model.FactorScore{
				scoreMADeviation("MA200Dev", price, ma200, 0.35),
				scoreRSI("RSI14d", rsi, 0.25),
				scoreTrend(price, ma20, ma50, high, low, 0.2),
			}
			if m, err := calculator.CalculateMACD(bars, 12, 26, 9); err == nil {
				out = append(out, scoreMACD(m.Hist, m.PrevHist, 0.2))
			}
			return out
		},
	}
}

// NewLong votes on weekly bars: 20/50 week trend, weekly RSI and the 52 week range position.
func NewLong() Agent {
	return &scorer{
		name:    "long_term",
		horizon: model.HorizonLong,
		minBars: 52,
		factors: func(bars []model.OHLCV) []model.FactorScore {
			price := bars[len(bars)-1].Close
			ma20w, _ := calculator.SMAOf(bars, 20)
			ma50w, _ := calculator.SMAOf(bars, 50)
			high, low, _ := calculator.RangeHighLow(bars, 52)
			pos, _ := calculator.PositionInRange(price, high, low)
			rsi, _ := calculator.CalculateRSI(bars, 14)

			trend := scoreTrend(price, ma20w, ma50w, high, low, 0.4)
			weeklyRSI := scoreRSI("RSI14w", rsi, 0.3)
			otherAvg := (trend.RawScore + weeklyRSI.RawScore) / 2
			return []model.FactorScore{trend, weeklyRSI, scoreRangePosition(pos, otherAvg, 0.3)}
		},
	}
}
