package core

import (
	"errors"
	"fmt"
	"testing"
)

// Minimal Ethernet+IPv4+TCP frame, header fields only.
func sampleFrame() []byte {
	return []byte{
		// Ethernet: dst, src, type
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55,
		0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb,
		0x08, 0x00,
		// IPv4: ver/ihl, tos, total=40, id, frag, ttl, proto, csum, src, dst
		0x45, 0x00, 0x00, 0x28, 0x12, 0x34, 0x40, 0x00, 0x40, 0x06, 0x00, 0x00,
		10, 0, 0, 1,
		10, 0, 0, 2,
		// TCP: sport 1234, dport 80, seq, ack, doff, flags SYN, win, csum, urg
		0x04, 0xd2, 0x00, 0x50,
		0x00, 0x00, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x00,
		0x50, 0x02, 0xff, 0xff,
		0x00, 0x00, 0x00, 0x00,
	}
}

func TestParseEthernet(t *testing.T) {
	frame := sampleFrame()
	eth, err := ParseEthernet(frame)
	if err != nil {
		t.Fatalf("ParseEthernet failed: %v", err)
	}
	if eth.EtherType() != EtherTypeIPv4 {
		t.Errorf("expected ethertype 0x0800, got 0x%04x", eth.EtherType())
	}
	if eth.DstMAC().String() != "00:11:22:33:44:55" {
		t.Errorf("unexpected dst mac %s", eth.DstMAC())
	}
	if eth.SrcMAC().String() != "66:77:88:99:aa:bb" {
		t.Errorf("unexpected src mac %s", eth.SrcMAC())
	}

	if _, err := ParseEthernet(frame[:13]); !errors.Is(err, ErrFrameTooShort) {
		t.Errorf("expected ErrFrameTooShort, got %v", err)
	}
}

func TestParseIPv4(t *testing.T) {
	frame := sampleFrame()
	ip, err := ParseIPv4(frame[EthernetHeaderLen:])
	if err != nil {
		t.Fatalf("ParseIPv4 failed: %v", err)
	}
	if len(ip) != ip.HeaderLen() {
		t.Errorf("view length %d != header length %d", len(ip), ip.HeaderLen())
	}
	if ip.Version() != 4 || ip.HeaderLen() != 20 || ip.TotalLen() != 40 {
		t.Errorf("unexpected version/ihl/total: %d/%d/%d", ip.Version(), ip.HeaderLen(), ip.TotalLen())
	}
	if ip.Protocol() != ProtocolTCP || ip.TTL() != 64 || ip.ID() != 0x1234 {
		t.Errorf("unexpected proto/ttl/id: %d/%d/0x%x", ip.Protocol(), ip.TTL(), ip.ID())
	}
	if ip.SrcIP().String() != "10.0.0.1" || ip.DstIP().String() != "10.0.0.2" {
		t.Errorf("unexpected addresses %s -> %s", ip.SrcIP(), ip.DstIP())
	}

	tests := []struct {
		name string
		mod  func([]byte) []byte
		want error
	}{
		{"short fixed header", func(b []byte) []byte { return b[:19] }, ErrTruncated},
		{"ihl below minimum", func(b []byte) []byte { b[0] = 0x44; return b }, ErrHeaderTooShort},
		{"options past capture", func(b []byte) []byte { b[0] = 0x4f; return b[:40] }, ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), frame[EthernetHeaderLen:]...)
			if _, err := ParseIPv4(tt.mod(b)); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseTCP(t *testing.T) {
	frame := sampleFrame()
	tcp, err := ParseTCP(frame[34:])
	if err != nil {
		t.Fatalf("ParseTCP failed: %v", err)
	}
	if tcp.SrcPort() != 1234 || tcp.DstPort() != 80 {
		t.Errorf("unexpected ports %d -> %d", tcp.SrcPort(), tcp.DstPort())
	}
	if tcp.Seq() != 1 || tcp.Ack() != 0 || tcp.HeaderLen() != 20 || tcp.Window() != 0xffff {
		t.Errorf("unexpected seq/ack/hl/win: %d/%d/%d/%d", tcp.Seq(), tcp.Ack(), tcp.HeaderLen(), tcp.Window())
	}
	if tcp.Flags() != FlagSYN {
		t.Errorf("expected SYN, got %s", tcp.Flags())
	}

	if _, err := ParseTCP(frame[34:53]); !errors.Is(err, ErrSegmentTooShort) {
		t.Errorf("expected ErrSegmentTooShort, got %v", err)
	}
	bad := append([]byte(nil), frame[34:]...)
	bad[12] = 0x40
	if _, err := ParseTCP(bad); !errors.Is(err, ErrTCPHeaderTooShort) {
		t.Errorf("expected ErrTCPHeaderTooShort for doff=4, got %v", err)
	}
	bad[12] = 0x60
	if _, err := ParseTCP(bad); !errors.Is(err, ErrTCPHeaderTooShort) {
		t.Errorf("expected ErrTCPHeaderTooShort for options past segment, got %v", err)
	}
}

func TestTCPFlags(t *testing.T) {
	if s := (FlagSYN | FlagACK).String(); s != "SYN|ACK" {
		t.Errorf("expected SYN|ACK, got %s", s)
	}
	if s := TCPFlags(0).String(); s != "NONE" {
		t.Errorf("expected NONE, got %s", s)
	}

	f, err := ParseTCPFlags("syn|ack")
	if err != nil || f != FlagSYN|FlagACK {
		t.Errorf("ParseTCPFlags(syn|ack) = %v, %v", f, err)
	}
	f, err = ParseTCPFlags(" RST , ACK ")
	if err != nil || f != FlagRST|FlagACK {
		t.Errorf("ParseTCPFlags(RST,ACK) = %v, %v", f, err)
	}
	if f, err := ParseTCPFlags(""); err != nil || f != 0 {
		t.Errorf("ParseTCPFlags(\"\") = %v, %v", f, err)
	}
	if _, err := ParseTCPFlags("syn|bogus"); err == nil {
		t.Error("expected error for unknown flag")
	}
	if !(FlagSYN | FlagACK).Has(FlagACK) || FlagSYN.Has(FlagACK) {
		t.Error("Has returned wrong result")
	}
}

func TestDisposition(t *testing.T) {
	f := &ParsedFrame{}
	if d := Accept(f); !d.Accepted() || d.Frame != f || d.Label() != "ok" {
		t.Errorf("unexpected accept disposition %+v", d)
	}
	if d := Pass(PassFiltered); !d.Passed() || d.Frame != nil || d.Label() != "filtered" {
		t.Errorf("unexpected pass disposition %+v", d)
	}
	d := Reject(fmt.Errorf("dissect: %w", ErrTCPChecksumMismatch))
	if !d.Failed() || d.Label() != "checksum" {
		t.Errorf("unexpected reject disposition %+v", d)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorClass
	}{
		{ErrFrameTooShort, ClassStructural},
		{ErrTruncated, ClassStructural},
		{fmt.Errorf("wrap: %w", ErrIPChecksumMismatch), ClassChecksum},
		{ErrFrameTooLarge, ClassResource},
		{ErrReceiveFailed, ClassResource},
		{errors.New("something else"), ClassUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestRawFrameBytes(t *testing.T) {
	r := RawFrame{Data: make([]byte, 10), CaptureLen: 4}
	if len(r.Bytes()) != 4 {
		t.Errorf("expected 4 bytes, got %d", len(r.Bytes()))
	}
	r.CaptureLen = 20
	if len(r.Bytes()) != 10 {
		t.Errorf("expected clamp to 10, got %d", len(r.Bytes()))
	}
}
