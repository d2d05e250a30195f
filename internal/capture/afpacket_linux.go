//go:build linux

package capture

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/log"
)

const AFPacketEngine = "afpacket"

func init() {
	Register(AFPacketEngine, func(opts Options) (Handle, error) {
		return NewAFPacket(opts)
	})
}

// AFPacketConfig holds the afpacket engine keys of capture.options.
type AFPacketConfig struct {
	BufferMB   int    `mapstructure:"buffer_mb"`
	FanoutMode string `mapstructure:"fanout_mode"` // hash | lb | cpu
}

// AFPacket is a TPACKET_V3 memory-mapped ring.
type AFPacket struct {
	mu      sync.RWMutex
	tpacket *afpacket.TPacket
	hwaddr  net.HardwareAddr
	promisc *promiscGuard
	closed  atomic.Bool
	lastTS  time.Time
}

func NewAFPacket(opts Options) (*AFPacket, error) {
	opts.applyDefaults()
	cfg := AFPacketConfig{BufferMB: 8, FanoutMode: "hash"}
	if err := opts.decodeExtra(&cfg); err != nil {
		return nil, fmt.Errorf("afpacket options: %w", err)
	}

	ifi, err := net.InterfaceByName(opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %q: %w", opts.Interface, err)
	}

	frameSize, blockSize, numBlocks, err := ringGeometry(cfg.BufferMB, opts.MaxFrameSize, os.Getpagesize())
	if err != nil {
		return nil, err
	}
	log.GetLogger().WithFields(map[string]interface{}{
		"interface":  ifi.Name,
		"frame_size": frameSize,
		"block_size": blockSize,
		"num_blocks": numBlocks,
	}).Debug("tpacket configuration")

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(ifi.Name),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(opts.PollTimeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create TPacket: %w", err)
	}
	h := &AFPacket{tpacket: tp, hwaddr: ifi.HardwareAddr}

	if err := h.setup(ifi, opts, cfg); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

func (h *AFPacket) setup(ifi *net.Interface, opts Options, cfg AFPacketConfig) error {
	if opts.FanoutID > 0 {
		mode, err := fanoutType(cfg.FanoutMode)
		if err != nil {
			return err
		}
		if err := h.tpacket.SetFanout(mode, opts.FanoutID); err != nil {
			return fmt.Errorf("failed to set fanout: %w", err)
		}
	}
	if opts.BPFFilter != "" {
		prog, err := CompileBPF(opts.BPFFilter, opts.MaxFrameSize)
		if err != nil {
			return err
		}
		if err := h.tpacket.SetBPF(prog); err != nil {
			return fmt.Errorf("failed to set BPF filter: %w", err)
		}
	}
	if opts.Promiscuous {
		g, err := enablePromisc(ifi.Name)
		if err != nil {
			return err
		}
		h.promisc = g
	}
	return nil
}

func fanoutType(mode string) (afpacket.FanoutType, error) {
	switch mode {
	case "", "hash":
		return afpacket.FanoutHashWithDefrag, nil
	case "lb":
		return afpacket.FanoutLoadBalance, nil
	case "cpu":
		return afpacket.FanoutCPU, nil
	}
	return 0, fmt.Errorf("unknown fanout mode %q", mode)
}

// Receive copies the next inbound frame into buf. Frames sent by this host
// (source MAC equal to the interface address) are skipped.
func (h *AFPacket) Receive(buf []byte) (int, error) {
	for {
		if h.closed.Load() {
			return 0, core.ErrHandleClosed
		}
		n, own, err := h.read(buf)
		switch {
		case errors.Is(err, afpacket.ErrTimeout), errors.Is(err, afpacket.ErrPoll):
			continue
		case err != nil:
			if h.closed.Load() {
				return 0, core.ErrHandleClosed
			}
			return 0, err
		case own:
			continue
		}
		return n, nil
	}
}

func (h *AFPacket) read(buf []byte) (n int, own bool, err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.tpacket == nil {
		return 0, false, core.ErrHandleClosed
	}
	data, ci, err := h.tpacket.ZeroCopyReadPacketData()
	if err != nil {
		return 0, false, err
	}
	if len(h.hwaddr) == 6 && len(data) >= 12 && bytes.Equal(data[6:12], h.hwaddr) {
		return 0, true, nil
	}
	copy(buf, data)
	h.lastTS = ci.Timestamp
	n = ci.Length
	if n < ci.CaptureLength {
		n = ci.CaptureLength
	}
	return n, false, nil
}

// Timestamp is the kernel timestamp of the last received frame.
func (h *AFPacket) Timestamp() time.Time { return h.lastTS }

func (h *AFPacket) Send(frame []byte) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.tpacket == nil {
		return 0, core.ErrHandleClosed
	}
	if err := h.tpacket.WritePacketData(frame); err != nil {
		return 0, err
	}
	return len(frame), nil
}

// Close releases the ring and restores the interface flags.
func (h *AFPacket) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tpacket != nil {
		h.tpacket.Close()
		h.tpacket = nil
	}
	if h.promisc != nil {
		return h.promisc.restore()
	}
	return nil
}
