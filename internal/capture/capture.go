// Package capture owns the link-layer capture handles and the driver that
// pulls frames from them.
package capture

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	// DefaultMaxFrameSize fits a full 1514-byte Ethernet frame plus one VLAN tag.
	DefaultMaxFrameSize = 1518
	// MaxJumboFrameSize is the largest frame size a handle may be configured for.
	MaxJumboFrameSize = 9216

	DefaultPollTimeout = 500 * time.Millisecond
)

// Handle is a bidirectional link-layer endpoint.
//
// Receive blocks until one frame is available and copies at most len(buf)
// bytes of it into buf. The returned count is the frame's real length,
// which exceeds len(buf) when the frame did not fit. After Close, blocked
// and future calls return core.ErrHandleClosed.
type Handle interface {
	Receive(buf []byte) (int, error)
	Send(frame []byte) (int, error)
	Close() error
}

// Options are the engine-independent handle settings. Extra carries
// engine-specific keys, decoded by each engine into its own struct.
type Options struct {
	Interface    string
	Promiscuous  bool
	MaxFrameSize int
	BPFFilter    string
	FanoutID     uint16
	PollTimeout  time.Duration
	Extra        map[string]interface{}
}

func (o *Options) applyDefaults() {
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = DefaultPollTimeout
	}
}

func (o *Options) validate() error {
	if o.MaxFrameSize > MaxJumboFrameSize {
		return fmt.Errorf("max frame size %d exceeds %d", o.MaxFrameSize, MaxJumboFrameSize)
	}
	return nil
}

// decodeExtra decodes the engine-specific options into out.
func (o *Options) decodeExtra(out interface{}) error {
	if len(o.Extra) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(o.Extra)
}

// OpenFunc opens a handle for one engine.
type OpenFunc func(opts Options) (Handle, error)

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]OpenFunc)
)

// Register makes an engine available to Open. Registering a name twice panics.
func Register(name string, fn OpenFunc) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	if _, dup := engines[name]; dup {
		panic("capture: engine registered twice: " + name)
	}
	engines[name] = fn
}

// Engines lists the registered engine names.
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for n := range engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open creates a handle with the named engine.
func Open(engine string, opts Options) (Handle, error) {
	enginesMu.RLock()
	fn, ok := engines[engine]
	enginesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported capture engine: %q", engine)
	}
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	h, err := fn(opts)
	if err != nil {
		return nil, fmt.Errorf("open %s handle: %w", engine, err)
	}
	return h, nil
}
