package daemon

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"firestige.xyz/responder/internal/capture"
	"firestige.xyz/responder/internal/config"
	"firestige.xyz/responder/internal/core/decoder"
	"firestige.xyz/responder/internal/filter"
	"firestige.xyz/responder/internal/log"
	"firestige.xyz/responder/internal/pipeline"
	"firestige.xyz/responder/internal/responder"
)

// NewDissector builds the dissector for the filter section: the port and
// exclusion selection, plus a flag mask when one is configured.
func NewDissector(cfg *config.GlobalConfig) (*decoder.Dissector, error) {
	excluded, err := cfg.ExcludedAddrs()
	if err != nil {
		return nil, err
	}
	chain := filter.NewChain(filter.NewSelection(uint16(cfg.Filter.Port), excluded))
	if mask := cfg.FilterFlags(); mask != 0 {
		chain.Append(filter.FlagMask(mask))
	}
	return decoder.NewDissector(decoder.Config{Filter: chain}), nil
}

// CraftOptions translates the respond section into crafter options.
func CraftOptions(cfg *config.GlobalConfig) []responder.Option {
	var opts []responder.Option
	if f, ok := cfg.RespondFlags(); ok {
		opts = append(opts, responder.WithFlags(f))
	}
	if cfg.Respond.Sequence == "reply" {
		opts = append(opts, responder.WithReplySequence(rand.Uint32()))
	}
	return opts
}

// CaptureOptions translates the capture section into handle options.
func CaptureOptions(cfg *config.GlobalConfig) capture.Options {
	c := cfg.Capture
	return capture.Options{
		Interface:    c.Interface,
		Promiscuous:  c.Promiscuous,
		MaxFrameSize: c.MaxFrameSize,
		BPFFilter:    c.BPFFilter,
		FanoutID:     c.FanoutID,
		PollTimeout:  c.PollTimeout,
		Extra:        c.Options,
	}
}

// BuildPipelines opens one capture handle per worker and wraps each in a
// pipeline. All workers share the dissector and the per-peer limiter. On
// error every handle opened so far is closed.
func BuildPipelines(cfg *config.GlobalConfig) ([]*pipeline.Pipeline, error) {
	dissector, err := NewDissector(cfg)
	if err != nil {
		return nil, err
	}
	limiter := responder.NewLimiter(responder.LimiterConfig{
		MaxPerPeer: cfg.Respond.MaxPerPeer,
		Window:     cfg.Respond.Window,
	})
	craft := CraftOptions(cfg)
	opts := CaptureOptions(cfg)

	var handles []capture.Handle
	closeAll := func() {
		for _, h := range handles {
			h.Close()
		}
	}

	pipelines := make([]*pipeline.Pipeline, 0, cfg.Capture.Workers)
	for i := 0; i < cfg.Capture.Workers; i++ {
		h, err := capture.Open(cfg.Capture.Engine, opts)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("worker %d: %w", i, err)
		}
		handles = append(handles, h)

		driver := capture.NewDriver(h, dissector, capture.WithMaxFrameSize(cfg.Capture.MaxFrameSize))
		p := pipeline.NewBuilder().
			WithID(i).
			WithDriver(driver).
			WithRespond(cfg.Respond.Enabled).
			WithCraftOptions(craft...).
			WithLimiter(limiter).
			WithRetry(cfg.Retry.MaxFailures, cfg.Retry.InitialInterval, cfg.Retry.MaxInterval).
			Build()
		pipelines = append(pipelines, p)
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"engine":  cfg.Capture.Engine,
		"workers": len(pipelines),
	}).Debug("capture workers opened")
	return pipelines, nil
}

// ErrNotRunning is returned by StopProcess when no live process owns the PID file.
var ErrNotRunning = errors.New("responder: daemon not running")

// StopProcess sends SIGTERM to the process recorded in pidFile and waits up
// to timeout for it to exit.
func StopProcess(pidFile string, timeout time.Duration) error {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("%w: pid %d: %v", ErrNotRunning, pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := process.Signal(syscall.Signal(0)); err != nil {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("pid %d still running after %s", pid, timeout)
}

// ReloadProcess sends SIGHUP to the process recorded in pidFile.
func ReloadProcess(pidFile string) error {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotRunning, err)
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := process.Signal(syscall.SIGHUP); err != nil {
		return fmt.Errorf("%w: pid %d: %v", ErrNotRunning, pid, err)
	}
	return nil
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s", path)
	}
	return pid, nil
}
