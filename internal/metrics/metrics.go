// Package metrics provides Prometheus metrics for monitoring the dispatch
// core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acd_calls_enqueued_total",
			Help: "Total number of callers that joined a queue",
		},
		[]string{"queue"},
	)
	CallsConnected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acd_calls_connected_total",
			Help: "Total number of callers bridged to a member",
		},
		[]string{"queue"},
	)
	CallsAbandoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acd_calls_abandoned_total",
			Help: "Total number of callers that hung up while waiting",
		},
		[]string{"queue"},
	)
	CallsExited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acd_calls_exited_total",
			Help: "Total number of callers that left without a bridge, by exit reason",
		},
		[]string{"queue", "reason"},
	)
	RingAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acd_ring_attempts_total",
			Help: "Total dial attempts per queue",
		},
		[]string{"queue"},
	)
	RingNoAnswer = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acd_ring_no_answer_total",
			Help: "Total ring-no-answer events per member interface",
		},
		[]string{"queue", "interface"},
	)
	WaitingCalls = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "acd_waiting_calls",
			Help: "Current number of callers waiting per queue",
		},
		[]string{"queue"},
	)
	HoldTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acd_hold_time_seconds",
			Help:    "Time callers waited before being bridged",
			Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 45, 60, 90, 120, 180, 300, 600},
		},
		[]string{"queue"},
	)
	DeviceStateUpdates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "acd_device_state_updates_total",
			Help: "Total device-state updates consumed from the notification bus",
		},
	)
)

// ObserveHold records a bridged caller's wait duration.
func ObserveHold(queue string, wait time.Duration) {
	HoldTime.WithLabelValues(queue).Observe(wait.Seconds())
}
