package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/responder/internal/core"
)

const PcapFileEngine = "pcapfile"

func init() {
	Register(PcapFileEngine, func(opts Options) (Handle, error) {
		return NewPcapFile(opts)
	})
}

// PcapFileConfig holds the pcapfile engine keys of capture.options.
type PcapFileConfig struct {
	Path   string `mapstructure:"path"`   // capture file to replay
	Output string `mapstructure:"output"` // optional file receiving sent frames
}

// PcapFile replays an Ethernet capture file. Receive returns io.EOF once
// the file is exhausted; sent frames are appended to the output file, or
// discarded when none is configured.
type PcapFile struct {
	mu     sync.Mutex
	in     *os.File
	reader *pcapgo.Reader
	out    *os.File
	writer *pcapgo.Writer
	lastTS time.Time
	closed bool
}

func NewPcapFile(opts Options) (*PcapFile, error) {
	opts.applyDefaults()
	var cfg PcapFileConfig
	if err := opts.decodeExtra(&cfg); err != nil {
		return nil, fmt.Errorf("pcapfile options: %w", err)
	}
	if cfg.Path == "" {
		return nil, errors.New("pcapfile: path is required")
	}

	in, err := os.Open(cfg.Path)
	if err != nil {
		return nil, err
	}
	r, err := pcapgo.NewReader(in)
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("read pcap header %s: %w", cfg.Path, err)
	}
	if r.LinkType() != layers.LinkTypeEthernet {
		in.Close()
		return nil, fmt.Errorf("%s: link type %s is not ethernet", cfg.Path, r.LinkType())
	}
	h := &PcapFile{in: in, reader: r}

	if cfg.Output != "" {
		out, err := os.Create(cfg.Output)
		if err != nil {
			in.Close()
			return nil, err
		}
		w := pcapgo.NewWriter(out)
		if err := w.WriteFileHeader(uint32(opts.MaxFrameSize), layers.LinkTypeEthernet); err != nil {
			in.Close()
			out.Close()
			return nil, err
		}
		h.out, h.writer = out, w
	}
	return h, nil
}

// Receive returns the original length of the next frame in the file.
func (h *PcapFile) Receive(buf []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, core.ErrHandleClosed
	}
	data, ci, err := h.reader.ReadPacketData()
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, io.EOF
		}
		return 0, err
	}
	copy(buf, data)
	h.lastTS = ci.Timestamp
	n := ci.Length
	if n < len(data) {
		n = len(data)
	}
	return n, nil
}

func (h *PcapFile) Timestamp() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastTS
}

func (h *PcapFile) Send(frame []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, core.ErrHandleClosed
	}
	if h.writer == nil {
		return len(frame), nil
	}
	ts := h.lastTS
	if ts.IsZero() {
		ts = time.Now()
	}
	if err := h.writer.WritePacket(gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(frame), Length: len(frame)}, frame); err != nil {
		return 0, err
	}
	return len(frame), nil
}

func (h *PcapFile) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	err := h.in.Close()
	if h.out != nil {
		if cerr := h.out.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
