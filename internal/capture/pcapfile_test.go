package capture

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/core/coretest"
)

func writePcap(t *testing.T, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65535, layers.LinkTypeEthernet))
	ts := time.Unix(1700000000, 0)
	for i, frame := range frames {
		ci := gopacket.CaptureInfo{Timestamp: ts.Add(time.Duration(i) * time.Second), CaptureLength: len(frame), Length: len(frame)}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	return path
}

func readPcap(t *testing.T, path string) [][]byte {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)

	var out [][]byte
	for {
		data, _, err := r.ReadPacketData()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, data)
	}
}

func TestPcapFileReplay(t *testing.T) {
	syn := coretest.SYN()
	path := writePcap(t, syn, coretest.Pad(syn, 60))

	h, err := Open(PcapFileEngine, Options{Extra: map[string]interface{}{"path": path}})
	require.NoError(t, err)
	defer h.Close()

	buf := make([]byte, DefaultMaxFrameSize)
	n, err := h.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, syn, buf[:n])
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), h.(*PcapFile).Timestamp().UTC())

	n, err = h.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, 60, n)

	_, err = h.Receive(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPcapFileOutput(t *testing.T) {
	in := writePcap(t, coretest.SYN())
	out := filepath.Join(t.TempDir(), "out.pcap")

	h, err := NewPcapFile(Options{Extra: map[string]interface{}{"path": in, "output": out}})
	require.NoError(t, err)

	frame := coretest.SYN()
	n, err := h.Send(frame)
	require.NoError(t, err)
	assert.Equal(t, len(frame), n)
	require.NoError(t, h.Close())

	assert.Equal(t, [][]byte{frame}, readPcap(t, out))

	_, err = h.Receive(make([]byte, 64))
	assert.ErrorIs(t, err, core.ErrHandleClosed)
	_, err = h.Send(frame)
	assert.ErrorIs(t, err, core.ErrHandleClosed)
	assert.NoError(t, h.Close(), "second close is a no-op")
}

func TestPcapFileDriver(t *testing.T) {
	other := coretest.DefaultSpec()
	other.DstPort = 443
	path := writePcap(t, coretest.SYN(), coretest.Build(other))

	h, err := NewPcapFile(Options{Extra: map[string]interface{}{"path": path}})
	require.NoError(t, err)
	drv := newDriver(h)
	defer drv.Close()

	d := drv.Poll()
	require.True(t, d.Accepted(), "%s %v", d.Verdict, d.Err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), d.Frame.Timestamp.UTC())

	d = drv.Poll()
	assert.Equal(t, core.PassFiltered, d.Reason)

	d = drv.Poll()
	assert.ErrorIs(t, d.Err, io.EOF)
}

func TestPcapFileOptionErrors(t *testing.T) {
	_, err := NewPcapFile(Options{})
	assert.Error(t, err, "path is required")

	_, err = NewPcapFile(Options{Extra: map[string]interface{}{"path": "x", "bogus": 1}})
	assert.Error(t, err, "unknown keys are rejected")

	_, err = NewPcapFile(Options{Extra: map[string]interface{}{"path": filepath.Join(t.TempDir(), "missing.pcap")}})
	assert.Error(t, err)
}
