// Package metrics exposes Prometheus counters for runs and broker calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"HorizonTrader/internal/model"
)

var (
	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "horizon_runs_total", Help: "Engine runs by recorded action",
	}, []string{"action"})
	brokerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "horizon_broker_calls_total", Help: "Broker calls by operation and outcome",
	}, []string{"op", "outcome"})
	brokerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "horizon_broker_call_seconds", Help: "Broker call latency", Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	openPositions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "horizon_open_positions", Help: "Symbols currently held in the ledger",
	})
	notifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "horizon_notify_failures_total", Help: "Notifications that could not be delivered",
	})
)

func init() {
	prometheus.MustRegister(runsTotal, brokerCalls, brokerLatency, openPositions, notifyFailures)
	for _, a := range model.Actions {
		runsTotal.WithLabelValues(string(a))
	}
}

// ObserveRun counts one recorded run.
func ObserveRun(action model.Action) {
	runsTotal.WithLabelValues(string(action)).Inc()
}

// ObserveBrokerCall records one broker call.
func ObserveBrokerCall(op string, err error, took time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	brokerCalls.WithLabelValues(op, outcome).Inc()
	brokerLatency.WithLabelValues(op).Observe(took.Seconds())
}

// SetOpenPositions updates the held-symbol gauge.
func SetOpenPositions(n int) {
	openPositions.Set(float64(n))
}

// NotifyFailed counts a dropped notification.
func NotifyFailed() {
	notifyFailures.Inc()
}
