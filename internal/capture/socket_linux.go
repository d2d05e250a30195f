//go:build linux

package capture

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"firestige.xyz/responder/internal/core"
)

const SocketEngine = "socket"

// ethAll is htons(ETH_P_ALL).
const ethAll uint16 = unix.ETH_P_ALL<<8 | unix.ETH_P_ALL>>8

func init() {
	Register(SocketEngine, func(opts Options) (Handle, error) {
		return NewSocket(opts)
	})
}

// Socket is a plain AF_PACKET SOCK_RAW socket bound to one interface.
// Frames the host itself transmits are skipped on receive.
type Socket struct {
	mu      sync.RWMutex // held for reading by Receive/Send, for writing by Close
	fd      int
	ifindex int
	closed  atomic.Bool
}

// NewSocket binds a raw socket to opts.Interface. The interface must be
// Ethernet; the socket negotiates TPACKET_V2, optionally joins promiscuous
// mode and attaches opts.BPFFilter, and wakes every opts.PollTimeout to
// notice Close.
func NewSocket(opts Options) (*Socket, error) {
	opts.applyDefaults()
	ifi, err := net.InterfaceByName(opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %q: %w", opts.Interface, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(ethAll))
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	s := &Socket{fd: fd, ifindex: ifi.Index}
	if err := s.setup(ifi, opts); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return s, nil
}

func (s *Socket) setup(ifi *net.Interface, opts Options) error {
	ifr, err := unix.NewIfreq(ifi.Name)
	if err != nil {
		return err
	}
	if err := unix.IoctlIfreq(s.fd, unix.SIOCGIFHWADDR, ifr); err != nil {
		return fmt.Errorf("ioctl SIOCGIFHWADDR: %w", err)
	}
	if family := ifr.Uint16(); family != unix.ARPHRD_ETHER {
		return fmt.Errorf("interface %s is not ethernet (link type %d)", ifi.Name, family)
	}

	if err := unix.Bind(s.fd, &unix.SockaddrLinklayer{Protocol: ethAll, Ifindex: ifi.Index}); err != nil {
		return fmt.Errorf("bind: %w", err)
	}

	if err := unix.SetsockoptInt(s.fd, unix.SOL_PACKET, unix.PACKET_VERSION, unix.TPACKET_V2); err != nil {
		return fmt.Errorf("setsockopt packet_version: %w", err)
	}

	if opts.Promiscuous {
		mreq := unix.PacketMreq{Ifindex: int32(ifi.Index), Type: unix.PACKET_MR_PROMISC}
		if err := unix.SetsockoptPacketMreq(s.fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq); err != nil {
			return fmt.Errorf("setsockopt packet_add_membership: %w", err)
		}
	}

	tv := unix.NsecToTimeval(opts.PollTimeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(s.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return fmt.Errorf("setsockopt so_rcvtimeo: %w", err)
	}

	if opts.BPFFilter != "" {
		prog, err := CompileBPF(opts.BPFFilter, opts.MaxFrameSize)
		if err != nil {
			return err
		}
		filter := make([]unix.SockFilter, len(prog))
		for i, ins := range prog {
			filter[i] = unix.SockFilter{Code: ins.Op, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
		}
		if len(filter) > 0 {
			fprog := &unix.SockFprog{Len: uint16(len(filter)), Filter: &filter[0]}
			if err := unix.SetsockoptSockFprog(s.fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, fprog); err != nil {
				return fmt.Errorf("setsockopt so_attach_filter: %w", err)
			}
		}
	}
	return nil
}

// Receive reads one inbound frame. The count is the kernel-reported frame
// length (MSG_TRUNC), which may exceed len(buf).
func (s *Socket) Receive(buf []byte) (int, error) {
	for {
		if s.closed.Load() {
			return 0, core.ErrHandleClosed
		}
		n, from, err := s.recv(buf)
		switch {
		case errors.Is(err, unix.EAGAIN), errors.Is(err, unix.EINTR):
			continue
		case err != nil:
			if s.closed.Load() {
				return 0, core.ErrHandleClosed
			}
			return 0, err
		}
		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			continue
		}
		return n, nil
	}
}

func (s *Socket) recv(buf []byte) (int, unix.Sockaddr, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fd < 0 {
		return 0, nil, core.ErrHandleClosed
	}
	return unix.Recvfrom(s.fd, buf, unix.MSG_TRUNC)
}

// Send transmits frame out of the bound interface without routing.
func (s *Socket) Send(frame []byte) (int, error) {
	if len(frame) < core.EthernetHeaderLen {
		return 0, core.ErrFrameTooShort
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fd < 0 {
		return 0, core.ErrHandleClosed
	}
	to := &unix.SockaddrLinklayer{
		Protocol: ethAll,
		Ifindex:  s.ifindex,
		Halen:    6,
	}
	copy(to.Addr[:], frame[0:6])
	if err := unix.Sendto(s.fd, frame, unix.MSG_DONTROUTE, to); err != nil {
		return 0, err
	}
	return len(frame), nil
}

// Close waits for an in-flight receive to time out, then closes the socket.
func (s *Socket) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}
