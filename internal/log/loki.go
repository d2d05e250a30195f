package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// LokiConfig configures the Loki push appender.
type LokiConfig struct {
	Enabled       bool              `mapstructure:"enabled" yaml:"enabled"`
	Endpoint      string            `mapstructure:"endpoint" yaml:"endpoint"` // push URL, e.g. http://loki:3100/loki/api/v1/push
	Labels        map[string]string `mapstructure:"labels" yaml:"labels"`
	BatchSize     int               `mapstructure:"batch_size" yaml:"batch_size"`
	FlushInterval time.Duration     `mapstructure:"flush_interval" yaml:"flush_interval"`
}

// LokiWriter batches log lines and pushes them to Grafana Loki.
type LokiWriter struct {
	endpoint      string
	labels        map[string]string
	batchSize     int
	flushInterval time.Duration
	httpClient    *http.Client

	mu      sync.Mutex
	batch   [][2]string // unix nanos, line
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

func NewLokiWriter(cfg LokiConfig) (*LokiWriter, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("loki output requires an endpoint")
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	labels := make(map[string]string, len(cfg.Labels)+1)
	for k, v := range cfg.Labels {
		labels[k] = v
	}
	if _, ok := labels["job"]; !ok {
		labels["job"] = "responder"
	}

	lw := &LokiWriter{
		endpoint:      cfg.Endpoint,
		labels:        labels,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		batch:         make([][2]string, 0, cfg.BatchSize),
		closeCh:       make(chan struct{}),
	}
	lw.wg.Add(1)
	go lw.flusher()
	return lw, nil
}

// Write queues one formatted line. Push failures are dropped, never
// surfaced to the logger.
func (lw *LokiWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if lw.closed {
		return 0, errors.New("loki writer is closed")
	}
	ts := strconv.FormatInt(time.Now().UnixNano(), 10)
	lw.batch = append(lw.batch, [2]string{ts, string(bytes.TrimRight(p, "\n"))})
	if len(lw.batch) >= lw.batchSize {
		_ = lw.flushLocked()
	}
	return len(p), nil
}

// Close flushes what is left and stops the background flusher.
func (lw *LokiWriter) Close() error {
	lw.mu.Lock()
	if lw.closed {
		lw.mu.Unlock()
		return nil
	}
	lw.closed = true
	err := lw.flushLocked()
	lw.mu.Unlock()

	close(lw.closeCh)
	lw.wg.Wait()
	return err
}

func (lw *LokiWriter) flusher() {
	defer lw.wg.Done()
	ticker := time.NewTicker(lw.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lw.mu.Lock()
			if !lw.closed {
				_ = lw.flushLocked()
			}
			lw.mu.Unlock()
		case <-lw.closeCh:
			return
		}
	}
}

// flushLocked must be called with lw.mu held. The batch is dropped even
// when the push fails so a dead endpoint cannot grow memory.
func (lw *LokiWriter) flushLocked() error {
	if len(lw.batch) == 0 {
		return nil
	}
	values := make([][2]string, len(lw.batch))
	copy(values, lw.batch)
	lw.batch = lw.batch[:0]

	data, err := json.Marshal(lokiPushRequest{
		Streams: []lokiStream{{Stream: lw.labels, Values: values}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal loki request: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	return backoff.Retry(func() error { return lw.send(data) }, backoff.WithMaxRetries(b, 2))
}

func (lw *LokiWriter) send(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, lw.endpoint, bytes.NewReader(data))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := lw.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err = fmt.Errorf("loki push failed with status %d: %s", resp.StatusCode, body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}
	return nil
}
