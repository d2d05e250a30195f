// Package pipeline runs one capture worker: poll a driver, answer accepted
// handshake segments, and account for everything else.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"firestige.xyz/responder/internal/capture"
	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/log"
	"firestige.xyz/responder/internal/metrics"
	"firestige.xyz/responder/internal/responder"
)

// ErrTooManyFailures is returned by Run when consecutive receive failures
// exceed the retry policy.
var ErrTooManyFailures = errors.New("responder: too many consecutive receive failures")

// RetryPolicy bounds how a pipeline rides out receive failures.
type RetryPolicy struct {
	MaxFailures     int // consecutive failures before giving up (0 = unlimited)
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetry is 10 failures, backing off from 10ms to 1s.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{MaxFailures: 10, InitialInterval: 10 * time.Millisecond, MaxInterval: time.Second}
}

// Config contains pipeline configuration.
type Config struct {
	ID           int
	Driver       *capture.Driver
	Respond      bool
	CraftOptions []responder.Option
	Limiter      *responder.Limiter
	Retry        RetryPolicy
}

// Pipeline represents a single-threaded poll/respond loop over one driver.
type Pipeline struct {
	id        int
	worker    string
	driver    *capture.Driver
	respond   bool
	craftOpts []responder.Option
	limiter   *responder.Limiter
	retry     RetryPolicy
	metrics   *Metrics

	closeOnce sync.Once
}

// New creates a new pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Retry.InitialInterval <= 0 {
		cfg.Retry.InitialInterval = DefaultRetry().InitialInterval
	}
	if cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
		cfg.Retry.MaxInterval = cfg.Retry.InitialInterval
	}
	worker := strconv.Itoa(cfg.ID)
	return &Pipeline{
		id:        cfg.ID,
		worker:    worker,
		driver:    cfg.Driver,
		respond:   cfg.Respond,
		craftOpts: cfg.CraftOptions,
		limiter:   cfg.Limiter,
		retry:     cfg.Retry,
		metrics:   NewMetrics(cfg.ID),
	}
}

// ID returns the pipeline ID.
func (p *Pipeline) ID() int { return p.id }

// Run polls until ctx is cancelled, the capture source is exhausted, or
// receive failures exceed the retry policy. Cancelling ctx closes the
// driver, which unblocks a pending receive. The driver is always closed
// when Run returns.
func (p *Pipeline) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { p.close() })
	defer stop()
	defer p.close()

	p.log().Info("pipeline starting")
	metrics.WorkersRunning.Inc()
	defer metrics.WorkersRunning.Dec()

	bo := p.newBackOff()
	failures := 0
	for {
		if ctx.Err() != nil {
			p.log().Info("pipeline stopped")
			return nil
		}

		d := p.driver.Poll()
		p.metrics.Received.Add(1)
		metrics.ObserveDisposition(p.worker, d)

		switch {
		case d.Accepted():
			failures = 0
			bo.Reset()
			p.metrics.Accepted.Add(1)
			if p.respond {
				p.answer(d.Frame)
			}

		case d.Passed():
			failures = 0
			bo.Reset()
			p.metrics.Passed.Add(1)

		default:
			p.metrics.Errors.Add(1)
			if !errors.Is(d.Err, core.ErrReceiveFailed) {
				failures = 0
				p.log().WithError(d.Err).WithField("class", string(core.Classify(d.Err))).Debug("frame dropped")
				continue
			}
			if ctx.Err() != nil || errors.Is(d.Err, core.ErrHandleClosed) {
				p.log().Info("pipeline stopped")
				return nil
			}
			if errors.Is(d.Err, io.EOF) {
				p.log().Info("capture source exhausted")
				return nil
			}

			failures++
			if p.retry.MaxFailures > 0 && failures > p.retry.MaxFailures {
				return fmt.Errorf("worker %d: %w: %w", p.id, ErrTooManyFailures, d.Err)
			}
			wait := bo.NextBackOff()
			p.metrics.Retries.Add(1)
			metrics.ReceiveRetriesTotal.WithLabelValues(p.worker).Inc()
			p.log().WithError(d.Err).WithField("failures", failures).Warnf("receive failed, retrying in %s", wait)

			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
	}
}

// answer crafts and sends the response to one accepted frame.
func (p *Pipeline) answer(f *core.ParsedFrame) {
	start := time.Now()

	if !p.limiter.Allow(f.IP.SrcAddr(), start) {
		p.metrics.Limited.Add(1)
		metrics.ObserveResponse(p.worker, metrics.ResultLimited)
		if logger := p.log(); logger.IsDebugEnabled() {
			logger.WithFields(f.Fields()).Debug("response limited")
		}
		return
	}

	out := responder.Craft(f, p.craftOpts...)
	if err := p.driver.Send(out); err != nil {
		p.metrics.SendFailed.Add(1)
		metrics.ObserveResponse(p.worker, metrics.ResultFailed)
		p.log().WithFields(f.Fields()).WithError(err).Warn("send failed")
		return
	}
	p.metrics.Sent.Add(1)
	metrics.ObserveResponse(p.worker, metrics.ResultSent)
	metrics.CraftLatencySeconds.WithLabelValues(p.worker).Observe(time.Since(start).Seconds())
	if logger := p.log(); logger.IsDebugEnabled() {
		logger.WithFields(f.Fields()).Debug("response sent")
	}
}

// log is looked up on every use so a reloaded process logger reaches running workers.
func (p *Pipeline) log() log.Logger {
	return log.GetLogger().WithField("worker", p.worker)
}

func (p *Pipeline) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.retry.InitialInterval
	bo.MaxInterval = p.retry.MaxInterval
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func (p *Pipeline) close() {
	p.closeOnce.Do(func() {
		if err := p.driver.Close(); err != nil {
			p.log().WithError(err).Warn("close capture handle")
		}
	})
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Stats {
	return p.metrics.snapshot()
}
