package capture

import (
	"fmt"
	"time"

	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/core/decoder"
)

// Observer sees every disposition the driver produces, in order.
type Observer func(core.Disposition)

// timestamper is implemented by handles that know when a frame was captured.
type timestamper interface {
	Timestamp() time.Time
}

// Driver is the only component that touches a Handle. It owns one receive
// buffer, so a Driver must not be polled concurrently; run one per handle.
type Driver struct {
	handle    Handle
	dissector *decoder.Dissector
	buf       []byte
	observer  Observer
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithMaxFrameSize sizes the receive buffer. Values outside
// (0, MaxJumboFrameSize] are ignored.
func WithMaxFrameSize(n int) DriverOption {
	return func(d *Driver) {
		if n > 0 && n <= MaxJumboFrameSize {
			d.buf = make([]byte, n)
		}
	}
}

// WithObserver installs an observer.
func WithObserver(o Observer) DriverOption {
	return func(d *Driver) { d.observer = o }
}

func NewDriver(h Handle, dissector *decoder.Dissector, opts ...DriverOption) *Driver {
	d := &Driver{
		handle:    h,
		dissector: dissector,
		buf:       make([]byte, DefaultMaxFrameSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MaxFrameSize is the size of the receive buffer.
func (d *Driver) MaxFrameSize() int { return len(d.buf) }

// Poll receives exactly one frame and dissects it. It never retries. An
// accepted frame aliases the driver's buffer and is valid until the next Poll.
func (d *Driver) Poll() core.Disposition {
	disp := d.poll()
	if d.observer != nil {
		d.observer(disp)
	}
	return disp
}

func (d *Driver) poll() core.Disposition {
	n, err := d.handle.Receive(d.buf)
	if err != nil {
		return core.Reject(fmt.Errorf("%w: %w", core.ErrReceiveFailed, err))
	}
	if n <= 0 {
		return core.Reject(fmt.Errorf("%w: read returned %d", core.ErrReceiveFailed, n))
	}
	if n > len(d.buf) {
		return core.Reject(fmt.Errorf("%w: %d > %d bytes", core.ErrFrameTooLarge, n, len(d.buf)))
	}

	ts := time.Now()
	if t, ok := d.handle.(timestamper); ok {
		ts = t.Timestamp()
	}
	return d.dissector.Dissect(core.RawFrame{Data: d.buf[:n], CaptureLen: n, Timestamp: ts})
}

// Send transmits a crafted frame.
func (d *Driver) Send(frame core.OwnedFrame) error {
	n, err := d.handle.Send(frame)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrSendFailed, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: short write %d of %d bytes", core.ErrSendFailed, n, len(frame))
	}
	return nil
}

// Close closes the underlying handle, unblocking a pending Poll.
func (d *Driver) Close() error {
	return d.handle.Close()
}
