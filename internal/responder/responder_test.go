package responder

import (
	"testing"
	"time"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/responder/internal/core"
	"firestige.xyz/responder/internal/core/checksum"
	"firestige.xyz/responder/internal/core/coretest"
	"firestige.xyz/responder/internal/core/decoder"
	"firestige.xyz/responder/internal/filter"
)

func dissect(t *testing.T, frame []byte) *core.ParsedFrame {
	t.Helper()
	d := decoder.NewDissector(decoder.Config{Filter: filter.NewSelection(80, nil)}).
		Dissect(core.RawFrame{Data: frame, CaptureLen: len(frame), Timestamp: time.Now()})
	require.True(t, d.Accepted(), "dissect: %s %v", d.Verdict, d.Err)
	return d.Frame
}

func TestCraftSynAck(t *testing.T) {
	frame := coretest.SYN()
	orig := append([]byte(nil), frame...)
	f := dissect(t, frame)

	out := Craft(f, WithFlags(core.FlagSYN|core.FlagACK))
	assert.Equal(t, orig, frame, "capture buffer must not be modified")
	require.Len(t, out, len(orig))

	reply := dissect(t, out)
	assert.Equal(t, f.Ethernet.SrcMAC(), reply.Ethernet.DstMAC())
	assert.Equal(t, f.Ethernet.DstMAC(), reply.Ethernet.SrcMAC())
	assert.Equal(t, f.IP.SrcIP(), reply.IP.DstIP())
	assert.Equal(t, f.IP.DstIP(), reply.IP.SrcIP())
	assert.Equal(t, f.TCP.SrcPort(), reply.TCP.DstPort())
	assert.Equal(t, f.TCP.DstPort(), reply.TCP.SrcPort())
	assert.Equal(t, byte(core.FlagSYN|core.FlagACK), out[14+20+13], "flags byte is exactly SYN|ACK")

	ip := out[14:34]
	assert.True(t, checksum.VerifyIP(ip))
	assert.True(t, checksum.VerifyTCP([4]byte(ip[12:16]), [4]byte(ip[16:20]), out[34:]))

	gip, gtcp := coretest.Decode(out)
	require.NotNil(t, gip)
	require.NotNil(t, gtcp)
	assert.Equal(t, "10.0.0.2", gip.SrcIP.String())
	assert.True(t, gtcp.SYN && gtcp.ACK && !gtcp.RST)
	assert.Equal(t, uint16(80), uint16(gtcp.SrcPort))
}

func TestCraftKeepsFlagsByDefault(t *testing.T) {
	f := dissect(t, coretest.SYN())
	out := Craft(f)
	assert.Equal(t, byte(core.FlagSYN), out[14+20+13])
	assert.Equal(t, f.TCP.Seq(), dissect(t, out).TCP.Seq())
}

func TestCraftFlagOverrideClearsPriorFlags(t *testing.T) {
	spec := coretest.DefaultSpec()
	spec.SYN, spec.ACK, spec.PSH = true, true, true
	f := dissect(t, coretest.Build(spec))

	out := Craft(f, WithFlags(core.FlagRST))
	assert.Equal(t, core.FlagRST, dissect(t, out).TCP.Flags())
}

func TestCraftTwiceRestoresOriginal(t *testing.T) {
	frames := [][]byte{coretest.SYN()}
	rst := coretest.DefaultSpec()
	rst.SYN, rst.RST, rst.ACK, rst.Ack = false, true, true, 77
	frames = append(frames, coretest.Build(rst))

	for _, frame := range frames {
		once := Craft(dissect(t, frame))
		twice := Craft(dissect(t, once))
		assert.Equal(t, frame, []byte(twice))
	}
}

func TestCraftWithIPOptions(t *testing.T) {
	spec := coretest.DefaultSpec()
	spec.IPOptions = []layers.IPv4Option{coretest.RouterAlert()}
	f := dissect(t, coretest.Build(spec))

	out := Craft(f, WithFlags(core.FlagSYN|core.FlagACK))
	require.Len(t, out, 58)
	assert.Equal(t, f.Frame[14+20:14+24], []byte(out[14+20:14+24]), "ip options are carried over")

	back := decoder.NewDissector(decoder.Config{Filter: filter.NewSelection(80, nil)}).
		Dissect(core.RawFrame{Data: out, CaptureLen: len(out), Timestamp: time.Now()})
	require.True(t, back.Accepted(), "crafted frame: %s %v", back.Verdict, back.Err)
	assert.Equal(t, uint16(80), back.Frame.TCP.SrcPort())
	assert.Equal(t, uint16(40000), back.Frame.TCP.DstPort())
	assert.Equal(t, "10.0.0.2", back.Frame.IP.SrcIP().String())
	assert.Equal(t, core.FlagSYN|core.FlagACK, back.Frame.TCP.Flags())
}

func TestCraftDropsPadding(t *testing.T) {
	frame := coretest.Pad(coretest.SYN(), 60)
	out := Craft(dissect(t, frame))
	assert.Len(t, out, 54)
}

func TestCraftIndependentCopies(t *testing.T) {
	f := dissect(t, coretest.SYN())
	a := Craft(f)
	b := Craft(f)
	a[0] ^= 0xff
	assert.NotEqual(t, a[0], b[0])
}

func TestCraftWithSequence(t *testing.T) {
	f := dissect(t, coretest.SYN())
	reply := dissect(t, Craft(f, WithFlags(core.FlagSYN|core.FlagACK), WithSequence(5000, 1001)))
	assert.Equal(t, uint32(5000), reply.TCP.Seq())
	assert.Equal(t, uint32(1001), reply.TCP.Ack())
}

func TestCraftWithReplySequence(t *testing.T) {
	// SYN seq=1000 without ACK: reply uses the isn and acknowledges seq+1.
	f := dissect(t, coretest.SYN())
	reply := dissect(t, Craft(f, WithFlags(core.FlagSYN|core.FlagACK), WithReplySequence(424242)))
	assert.Equal(t, uint32(424242), reply.TCP.Seq())
	assert.Equal(t, uint32(1001), reply.TCP.Ack())

	// Bare ACK: the reset takes its sequence number from the acknowledgment.
	spec := coretest.DefaultSpec()
	spec.SYN, spec.ACK, spec.Seq, spec.Ack = false, true, 2000, 9000
	f = dissect(t, coretest.Build(spec))
	reply = dissect(t, Craft(f, WithFlags(core.FlagRST), WithReplySequence(1)))
	assert.Equal(t, uint32(9000), reply.TCP.Seq())
	assert.Equal(t, uint32(2000), reply.TCP.Ack())

	// FIN|ACK consumes one sequence number.
	spec.FIN = true
	f = dissect(t, coretest.Build(spec))
	reply = dissect(t, Craft(f, WithFlags(core.FlagACK), WithReplySequence(1)))
	assert.Equal(t, uint32(2001), reply.TCP.Ack())
}

func BenchmarkCraft(b *testing.B) {
	frame := coretest.SYN()
	d := decoder.NewDissector(decoder.Config{}).Dissect(core.RawFrame{Data: frame, CaptureLen: len(frame)})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Craft(d.Frame, WithFlags(core.FlagSYN|core.FlagACK))
	}
}
