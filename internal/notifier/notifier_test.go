package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"HorizonTrader/internal/ledger"
	"HorizonTrader/internal/model"
)

func newTestNotifier(t *testing.T, handler http.HandlerFunc) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTelegramNotifier("123:abc", "42", "", zap.NewNop()).
		WithAPIBase(srv.URL).
		WithBackoff(time.Millisecond)
}

func TestSend(t *testing.T) {
	var got map[string]string
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot123:abc/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	require.True(t, n.Enabled())
	require.NoError(t, n.Send(context.Background(), "hello"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, "HTML", got["parse_mode"])
}

func TestSendWithRetry(t *testing.T) {
	var calls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	require.NoError(t, n.SendWithRetry(context.Background(), "hi", 3))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendWithRetry_GivesUp(t *testing.T) {
	var calls atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := n.SendWithRetry(context.Background(), "hi", 2)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatch_IgnoresOtherChats(t *testing.T) {
	var sent atomic.Int32
	n := newTestNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		sent.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var body updatesResponse
	require.NoError(t, json.Unmarshal([]byte(`{"ok":true,"result":[
		{"update_id":7,"message":{"text":"/positions","chat":{"id":42}}},
		{"update_id":8,"message":{"text":"/positions","chat":{"id":99}}},
		{"update_id":9}
	]}`), &body))

	var handled []string
	next := n.dispatch(context.Background(), body.Result, 0, func(_ context.Context, cmd string) string {
		handled = append(handled, cmd)
		return "ok"
	})
	assert.Equal(t, 10, next)
	assert.Equal(t, []string{"/positions"}, handled)
	assert.Equal(t, int32(1), sent.Load())
}

func TestFormatRun(t *testing.T) {
	rec := &model.RunRecord{
		When:       model.At(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)),
		Symbol:     "AT&T",
		Trigger:    model.TriggerBarClose,
		Decision:   model.Decision{Action: model.SignalBuy, Confidence: 0.75, TargetHorizon: model.HorizonMid},
		Action:     model.ActionBuy,
		Qty:        model.Float(3),
		EntryPrice: model.Float(101.5),
		OrderID:    "o-1",
		Reason:     "votes: a<b",
	}
	out := FormatRun(rec)
	assert.Contains(t, out, "BUY AT&amp;T")
	assert.Contains(t, out, "horizon=mid")
	assert.Contains(t, out, "qty: 3 @ 101.50")
	assert.Contains(t, out, "votes: a&lt;b")
}

func TestFormatPositions(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	until := model.At(now.Add(90 * time.Minute))
	out := FormatPositions(ledger.Ledger{
		"AAPL": {Qty: 2, EntryPrice: 150, Horizon: model.HorizonShort, TimeboxUntil: &until},
	}, now)
	assert.Contains(t, out, "AAPL  2 @ 150.00  (short)")
	assert.Contains(t, out, "1h30m0s left")

	assert.Contains(t, FormatPositions(ledger.Ledger{}, now), "no open positions")
}
