package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Horizon is the investment horizon an agent reasons about.
type Horizon string

const (
	HorizonNone  Horizon = ""
	HorizonShort Horizon = "short"
	HorizonMid   Horizon = "mid"
	HorizonLong  Horizon = "long"
)

// Horizons lists the known horizons from shortest to longest.
var Horizons = []Horizon{HorizonShort, HorizonMid, HorizonLong}

// Rank orders horizons; unknown horizons rank 0.
func (h Horizon) Rank() int {
	switch h {
	case HorizonShort:
		return 1
	case HorizonMid:
		return 2
	case HorizonLong:
		return 3
	default:
		return 0
	}
}

// Valid reports whether h is one of short, mid or long.
func (h Horizon) Valid() bool { return h.Rank() > 0 }

// ParseHorizon accepts short/mid/long case-insensitively.
func ParseHorizon(s string) (Horizon, error) {
	h := Horizon(strings.ToLower(strings.TrimSpace(s)))
	if !h.Valid() {
		return HorizonNone, fmt.Errorf("unknown horizon %q", s)
	}
	return h, nil
}

// MarshalJSON writes the empty horizon as null.
func (h Horizon) MarshalJSON() ([]byte, error) {
	if h == HorizonNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(h))
}

func (h *Horizon) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*h = HorizonNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*h = Horizon(s)
	return nil
}

// Signal is what a single agent (or the debate) recommends.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Vote is one agent's opinion for one run. Never persisted.
type Vote struct {
	Agent      string
	Horizon    Horizon
	Decision   Signal
	Confidence float64
	Raw        string
}

// NewVote clamps confidence into [0,1].
func NewVote(agent string, h Horizon, d Signal, confidence float64, raw string) Vote {
	return Vote{Agent: agent, Horizon: h, Decision: d, Confidence: ClampUnit(confidence), Raw: raw}
}

// Decision is the aggregated outcome of a debate.
type Decision struct {
	Action        Signal  `json:"action"`
	Confidence    float64 `json:"confidence"`
	TargetHorizon Horizon `json:"target_horizon"`
}

// FactorScore is one weighted factor inside an agent's scoring table.
type FactorScore struct {
	Name       string
	RawScore   float64
	Weight     float64
	Weighted   float64
	Commentary string
}

// ClampUnit clamps v into [0,1].
func ClampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
