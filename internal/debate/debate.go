// Package debate folds the per-horizon agent votes into one decision.
package debate

import (
	"fmt"
	"strings"

	"HorizonTrader/internal/model"
)

// Decide aggregates votes. At most one vote per horizon counts (the first one seen);
// BUY wins when its mean confidence reaches enterThreshold, SELL needs an open
// position and its mean at exitThreshold, anything else is HOLD.
func Decide(votes []model.Vote, hasPosition bool, enterThreshold, exitThreshold float64) model.Decision {
	byHorizon := make(map[model.Horizon]model.Vote, len(model.Horizons))
	for _, v := range votes {
		if !v.Horizon.Valid() {
			continue
		}
		if _, seen := byHorizon[v.Horizon]; !seen {
			byHorizon[v.Horizon] = v
		}
	}
	if len(byHorizon) == 0 {
		return model.Decision{Action: model.SignalHold}
	}

	var (
		buySum, sellSum float64
		buyN, sellN     int
		best            model.Vote
	)
	for _, h := range model.Horizons {
		v, ok := byHorizon[h]
		if !ok {
			continue
		}
		conf := model.ClampUnit(v.Confidence)
		switch v.Decision {
		case model.SignalBuy:
			buySum += conf
			buyN++
			// iterating short -> long, >= hands ties to the longer horizon
			if buyN == 1 || conf >= best.Confidence {
				best = v
				best.Confidence = conf
			}
		case model.SignalSell:
			sellSum += conf
			sellN++
		}
	}

	buyMean := mean(buySum, buyN)
	sellMean := mean(sellSum, sellN)

	if buyN > 0 && buyMean >= enterThreshold {
		return model.Decision{Action: model.SignalBuy, Confidence: buyMean, TargetHorizon: best.Horizon}
	}
	if hasPosition && sellN > 0 && sellMean >= exitThreshold {
		return model.Decision{Action: model.SignalSell, Confidence: sellMean}
	}
	dominant := buyMean
	if sellMean > dominant {
		dominant = sellMean
	}
	return model.Decision{Action: model.SignalHold, Confidence: dominant}
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// Summarize renders the two-line reason stored with every run:
// the individual votes, then the final call.
func Summarize(votes []model.Vote, d model.Decision) string {
	parts := make([]string, 0, len(votes))
	for _, v := range votes {
		parts = append(parts, fmt.Sprintf("%s(%s)=%s@%.2f", v.Agent, v.Horizon, v.Decision, v.Confidence))
	}
	line1 := "votes: none"
	if len(parts) > 0 {
		line1 = "votes: " + strings.Join(parts, ", ")
	}
	target := "-"
	if d.TargetHorizon != model.HorizonNone {
		target = string(d.TargetHorizon)
	}
	line2 := fmt.Sprintf("final: %s conf=%.2f horizon=%s", d.Action, d.Confidence, target)
	return line1 + "\n" + line2
}
