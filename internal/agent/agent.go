// Package agent contains the rule-based voters, one per horizon.
package agent

import (
	"context"
	"fmt"
	"math"
	"strings"

	"HorizonTrader/internal/model"
)

// Agent produces one vote for one horizon from a snapshot.
type Agent interface {
	Name() string
	Horizon() model.Horizon
	Vote(ctx context.Context, snap *model.Snapshot) (model.Vote, error)
}

// Total-score cut-offs for turning a factor sum into a signal.
const (
	buyCut  = 0.5
	sellCut = -0.5
)

// Defaults returns the short, mid and long agents in that order.
func Defaults() []Agent {
	return []Agent{NewShort(), NewMid(), NewLong()}
}

// scorer is the common shape of the three agents: a bar requirement and a factor table.
type scorer struct {
	name    string
	horizon model.Horizon
	minBars int
	factors func(bars []model.OHLCV) []model.FactorScore
}

func (s *scorer) Name() string           { return s.name }
func (s *scorer) Horizon() model.Horizon { return s.horizon }

func (s *scorer) Vote(ctx context.Context, snap *model.Snapshot) (model.Vote, error) {
	if err := ctx.Err(); err != nil {
		return model.Vote{}, err
	}
	if snap == nil {
		return model.NewVote(s.name, s.horizon, model.SignalHold, 0, "no snapshot"), nil
	}
	bars := snap.Bars(s.horizon)
	if len(bars) < s.minBars {
		raw := fmt.Sprintf("insufficient data: %d/%d bars", len(bars), s.minBars)
		return model.NewVote(s.name, s.horizon, model.SignalHold, 0, raw), nil
	}

	factors := s.factors(bars)
	total := 0.0
	parts := make([]string, 0, len(factors))
	for _, f := range factors {
		total += f.Weighted
		parts = append(parts, fmt.Sprintf("%s(%s)=%+.1f", f.Name, f.Commentary, f.RawScore))
	}
	signal, conf := classify(total)
	raw := fmt.Sprintf("score=%+.3f %s", total, strings.Join(parts, " "))
	return model.NewVote(s.name, s.horizon, signal, conf, raw), nil
}

// classify maps a weighted score in [-2,2] to a signal and a confidence.
func classify(total float64) (model.Signal, float64) {
	mag := math.Abs(total)
	switch {
	case total >= buyCut:
		return model.SignalBuy, model.ClampUnit(0.4 + 0.3*mag)
	case total <= sellCut:
		return model.SignalSell, model.ClampUnit(0.4 + 0.3*mag)
	default:
		return model.SignalHold, model.ClampUnit(1 - 2*mag)
	}
}

func factor(name string, raw, weight float64, commentary string) model.FactorScore {
	return model.FactorScore{Name: name, RawScore: raw, Weight: weight, Weighted: raw * weight, Commentary: commentary}
}
