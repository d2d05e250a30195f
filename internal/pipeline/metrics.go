package pipeline

import (
	"sync/atomic"
)

// Metrics contains per-pipeline counters. The Prometheus collectors carry
// the same numbers across all workers; these exist for Stats and tests.
type Metrics struct {
	PipelineID int

	Received   atomic.Uint64
	Accepted   atomic.Uint64
	Passed     atomic.Uint64
	Errors     atomic.Uint64
	Sent       atomic.Uint64
	SendFailed atomic.Uint64
	Limited    atomic.Uint64
	Retries    atomic.Uint64
}

// NewMetrics creates a new metrics instance.
func NewMetrics(pipelineID int) *Metrics {
	return &Metrics{PipelineID: pipelineID}
}

// Stats represents pipeline statistics.
type Stats struct {
	Received   uint64
	Accepted   uint64
	Passed     uint64
	Errors     uint64
	Sent       uint64
	SendFailed uint64
	Limited    uint64
	Retries    uint64
}

func (m *Metrics) snapshot() Stats {
	return Stats{
		Received:   m.Received.Load(),
		Accepted:   m.Accepted.Load(),
		Passed:     m.Passed.Load(),
		Errors:     m.Errors.Load(),
		Sent:       m.Sent.Load(),
		SendFailed: m.SendFailed.Load(),
		Limited:    m.Limited.Load(),
		Retries:    m.Retries.Load(),
	}
}
