package capture

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/core/coretest"
	"firestige.xyz/responder/internal/core/decoder"
	"firestige.xyz/responder/internal/filter"
)

type MockHandle struct {
	mock.Mock
}

func (m *MockHandle) Receive(buf []byte) (int, error) {
	args := m.Called(buf)
	if frame, ok := args.Get(0).([]byte); ok {
		copy(buf, frame)
		return len(frame), args.Error(1)
	}
	return args.Int(0), args.Error(1)
}

func (m *MockHandle) Send(frame []byte) (int, error) {
	args := m.Called(frame)
	return args.Int(0), args.Error(1)
}

func (m *MockHandle) Close() error {
	return m.Called().Error(0)
}

func newDriver(h Handle, opts ...DriverOption) *Driver {
	return NewDriver(h, decoder.NewDissector(decoder.Config{Filter: filter.NewSelection(80, nil)}), opts...)
}

func TestPollAccept(t *testing.T) {
	h := new(MockHandle)
	h.On("Receive", mock.Anything).Return(coretest.SYN(), nil).Once()

	d := newDriver(h).Poll()
	require.True(t, d.Accepted(), "got %s %v", d.Verdict, d.Err)
	assert.Equal(t, uint16(80), d.Frame.TCP.DstPort())
	h.AssertExpectations(t)
}

func TestPollReceiveFailures(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		err   error
		cause error
	}{
		{"zero bytes", 0, nil, nil},
		{"negative count", -1, nil, nil},
		{"io error", 0, errors.New("boom"), nil},
		{"closed", 0, core.ErrHandleClosed, core.ErrHandleClosed},
		{"end of file", 0, io.EOF, io.EOF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := new(MockHandle)
			h.On("Receive", mock.Anything).Return(tt.n, tt.err).Once()

			d := newDriver(h).Poll()
			require.True(t, d.Failed())
			assert.ErrorIs(t, d.Err, core.ErrReceiveFailed)
			if tt.cause != nil {
				assert.ErrorIs(t, d.Err, tt.cause)
			}
			assert.Equal(t, core.ClassResource, core.Classify(d.Err))
		})
	}
}

func TestPollFrameTooLarge(t *testing.T) {
	h := new(MockHandle)
	h.On("Receive", mock.Anything).Return(DefaultMaxFrameSize+1, nil).Once()

	d := newDriver(h).Poll()
	require.True(t, d.Failed())
	assert.ErrorIs(t, d.Err, core.ErrFrameTooLarge)
}

func TestPollMaxFrameSize(t *testing.T) {
	drv := newDriver(new(MockHandle), WithMaxFrameSize(9000))
	assert.Equal(t, 9000, drv.MaxFrameSize())

	drv = newDriver(new(MockHandle), WithMaxFrameSize(MaxJumboFrameSize+1))
	assert.Equal(t, DefaultMaxFrameSize, drv.MaxFrameSize())

	h := new(MockHandle)
	h.On("Receive", mock.MatchedBy(func(b []byte) bool { return len(b) == 64 })).Return(100, nil).Once()
	d := newDriver(h, WithMaxFrameSize(64)).Poll()
	assert.ErrorIs(t, d.Err, core.ErrFrameTooLarge)
	h.AssertExpectations(t)
}

func TestPollDissectError(t *testing.T) {
	frame := coretest.SYN()
	frame[24] ^= 0x01

	h := new(MockHandle)
	h.On("Receive", mock.Anything).Return(frame, nil).Once()

	d := newDriver(h).Poll()
	assert.ErrorIs(t, d.Err, core.ErrIPChecksumMismatch)
}

func TestPollObserver(t *testing.T) {
	h := new(MockHandle)
	h.On("Receive", mock.Anything).Return(coretest.SYN(), nil).Once()
	h.On("Receive", mock.Anything).Return(0, core.ErrHandleClosed).Once()

	var seen []core.Verdict
	drv := newDriver(h, WithObserver(func(d core.Disposition) { seen = append(seen, d.Verdict) }))
	drv.Poll()
	drv.Poll()
	assert.Equal(t, []core.Verdict{core.VerdictAccept, core.VerdictError}, seen)
}

func TestSend(t *testing.T) {
	frame := core.OwnedFrame(coretest.SYN())

	h := new(MockHandle)
	h.On("Send", []byte(frame)).Return(len(frame), nil).Once()
	require.NoError(t, newDriver(h).Send(frame))

	h = new(MockHandle)
	h.On("Send", mock.Anything).Return(10, nil).Once()
	assert.ErrorIs(t, newDriver(h).Send(frame), core.ErrSendFailed)

	h = new(MockHandle)
	h.On("Send", mock.Anything).Return(0, errors.New("enobufs")).Once()
	assert.ErrorIs(t, newDriver(h).Send(frame), core.ErrSendFailed)
}

func TestClose(t *testing.T) {
	h := new(MockHandle)
	h.On("Close").Return(nil).Once()
	require.NoError(t, newDriver(h).Close())
	h.AssertExpectations(t)
}
