package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeLayout is the persisted timestamp format: UTC, second precision, Z suffix.
const TimeLayout = "2006-01-02T15:04:05Z"

// Timestamp is a time that (de)serialises with TimeLayout.
type Timestamp struct {
	time.Time
}

// At truncates t to the second in UTC.
func At(t time.Time) Timestamp {
	return Timestamp{t.UTC().Truncate(time.Second)}
}

func (t Timestamp) String() string { return t.UTC().Format(TimeLayout) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(TimeLayout, s)
	if err != nil {
		// tolerate offsets written by other tools
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	*t = At(parsed)
	return nil
}

// Action is the closed set of outcomes a run can record.
type Action string

const (
	ActionBuy            Action = "BUY"
	ActionSell           Action = "SELL"
	ActionHold           Action = "HOLD"
	ActionSellFailed     Action = "SELL_FAILED"
	ActionSellNoPosition Action = "SELL_NO_POSITION"
	ActionSuggestBuy     Action = "SUGGEST_BUY"
	ActionBuyFailed      Action = "BUY_FAILED"
	ActionNoData         Action = "NO_DATA"
	ActionError          Action = "ERROR"
)

// Actions lists every action, used for metrics label pre-registration.
var Actions = []Action{
	ActionBuy, ActionSell, ActionHold, ActionSellFailed, ActionSellNoPosition,
	ActionSuggestBuy, ActionBuyFailed, ActionNoData, ActionError,
}

// Trades reports whether the action moved money or failed trying to.
func (a Action) Trades() bool {
	switch a {
	case ActionBuy, ActionSell, ActionSellFailed, ActionBuyFailed:
		return true
	}
	return false
}

// Triggers used by the dispatcher and CLI.
const (
	TriggerBarClose = "bar_close_30m"
	TriggerTimebox  = "timebox"
	TriggerManual   = "manual"
)

// RunRecord is one line of the run log.
type RunRecord struct {
	When       Timestamp `json:"when"`
	Symbol     string    `json:"symbol"`
	Trigger    string    `json:"trigger"`
	Decision   Decision  `json:"decision"`
	Action     Action    `json:"action"`
	Qty        *float64  `json:"qty,omitempty"`
	EntryPrice *float64  `json:"entry_price,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	Reason     string    `json:"reason"`
}

// Float returns a pointer to v, for the optional record fields.
func Float(v float64) *float64 { return &v }
