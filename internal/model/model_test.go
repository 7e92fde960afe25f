package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionJSON_NullHorizon(t *testing.T) {
	data, err := json.Marshal(Decision{Action: SignalHold})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"HOLD","confidence":0,"target_horizon":null}`, string(data))

	var d Decision
	require.NoError(t, json.Unmarshal([]byte(`{"action":"BUY","confidence":0.7,"target_horizon":"mid"}`), &d))
	assert.Equal(t, HorizonMid, d.TargetHorizon)
	require.NoError(t, json.Unmarshal([]byte(`{"action":"HOLD","confidence":0,"target_horizon":null}`), &d))
	assert.Equal(t, HorizonNone, d.TargetHorizon)
}

func TestTimestampFormat(t *testing.T) {
	ts := At(time.Date(2025, 6, 1, 14, 30, 15, 999, time.FixedZone("IST", 19800)))
	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2025-06-01T09:00:15Z"`, string(data))

	var back Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-06-01T14:30:15+05:30"`), &back))
	assert.True(t, back.Equal(ts.Time))

	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &back))
}

func TestRunRecord_OptionalFieldsOmitted(t *testing.T) {
	rec := RunRecord{When: At(time.Unix(0, 0)), Symbol: "X", Trigger: TriggerManual, Decision: Decision{Action: SignalHold}, Action: ActionHold, Reason: "r"}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"qty", "entry_price", "order_id", "error"} {
		assert.NotContains(t, m, k)
	}
	assert.Equal(t, "1970-01-01T00:00:00Z", m["when"])
}

func TestParseHorizon(t *testing.T) {
	h, err := ParseHorizon(" LONG ")
	require.NoError(t, err)
	assert.Equal(t, HorizonLong, h)
	assert.True(t, HorizonShort.Rank() < HorizonMid.Rank())

	_, err = ParseHorizon("weekly")
	assert.Error(t, err)
}

func TestNewVoteClamps(t *testing.T) {
	assert.Equal(t, 1.0, NewVote("a", HorizonShort, SignalBuy, 3, "").Confidence)
	assert.Equal(t, 0.0, NewVote("a", HorizonShort, SignalBuy, -1, "").Confidence)
}

func TestActionTrades(t *testing.T) {
	assert.True(t, ActionBuy.Trades())
	assert.True(t, ActionSellFailed.Trades())
	assert.False(t, ActionSuggestBuy.Trades())
	assert.False(t, ActionHold.Trades())
}
