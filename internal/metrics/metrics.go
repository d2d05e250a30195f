// Package metrics defines the Prometheus collectors and their HTTP exporter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"firestige.xyz/responder/internal/core"
)

var (
	// FramesTotal counts dispositions by worker, verdict and reason
	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_frames_total",
			Help: "Total number of frames polled, by disposition",
		},
		[]string{"worker", "verdict", "reason"},
	)

	// ResponsesTotal counts crafted responses by outcome
	ResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_responses_total",
			Help: "Total number of crafted responses, by result (sent, failed, limited)",
		},
		[]string{"worker", "result"},
	)

	// ReceiveRetriesTotal counts backoff waits after failed receives
	ReceiveRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "responder_receive_retries_total",
			Help: "Total number of receive retries after a failure",
		},
		[]string{"worker"},
	)

	// CraftLatencySeconds measures the time from receive to send of a response
	CraftLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "responder_craft_latency_seconds",
			Help:    "Latency between frame capture and response transmission in seconds",
			Buckets: prometheus.ExponentialBuckets(0.000001, 2, 20), // 1µs to ~1s
		},
		[]string{"worker"},
	)

	// WorkersRunning tracks live capture workers
	WorkersRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "responder_workers_running",
			Help: "Number of capture workers currently running",
		},
	)
)

const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultLimited = "limited"
)

// ObserveDisposition records one polled frame.
func ObserveDisposition(worker string, d core.Disposition) {
	FramesTotal.WithLabelValues(worker, d.Verdict.String(), d.Label()).Inc()
}

// ObserveResponse records the outcome of one crafted response.
func ObserveResponse(worker, result string) {
	ResponsesTotal.WithLabelValues(worker, result).Inc()
}
