// Package socket implements the netlink session layer.  A Socket owns one
// kernel netlink socket for its whole lifetime: it sends serialized messages,
// resolves generic netlink family and multicast-group names to numeric ids,
// and produces validated, ordered sequences of response messages through two
// drivers over the same protocol state machine - a blocking iterator and a
// runtime-poller-backed stream.
//
// A session assumes a single writer and a single reader at any given time and
// performs no internal locking.  There are no operation-level timeouts and no
// retries: transport errors, bad correlation, and decode failures are all
// surfaced to the caller, and closing the session at any point, including mid
// multipart sequence, releases the socket handle.
package socket

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"

	"github.com/dhl/neli/metrics"
	"github.com/dhl/neli/nlmsg"
	"github.com/dhl/neli/wire"
)

// bufSize is the receive buffer size.  Netlink datagrams are bounded by the
// socket buffer; 32KiB covers the kernel's usual per-dump frame budget.
const bufSize = 32768

// maxGroup is the highest multicast group id representable as a single bit of
// the 32-bit membership mask.
const maxGroup = 31

// Socket is one netlink session.
type Socket struct {
	fd     int
	file   *os.File // non-nil once a Stream has taken over the descriptor
	pid    uint32
	seq    uint32
	groups uint32
}

// Connect opens a netlink socket for the given protocol (e.g.
// unix.NETLINK_GENERIC), binds it to pid - zero lets the kernel assign a
// port id - and joins the multicast groups set in the groups bit mask.
// Failure is fatal to the session; there is no partial state to retry.
func Connect(proto int, pid uint32, groups uint32) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, proto)
	if err != nil {
		return nil, fmt.Errorf("opening netlink socket: %w", err)
	}
	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Pid: pid, Groups: groups}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("binding netlink socket: %w", err)
	}
	s := &Socket{fd: fd, pid: pid, groups: groups}
	// Learn the kernel-assigned port id.
	name, err := unix.Getsockname(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reading bound netlink address: %w", err)
	}
	if nl, ok := name.(*unix.SockaddrNetlink); ok {
		s.pid = nl.Pid
	}
	return s, nil
}

// Pid returns the session's bound port id.
func (s *Socket) Pid() uint32 {
	return s.pid
}

// NextSeq returns a fresh sequence number.  The caller sets one per request
// it expects to correlate.
func (s *Socket) NextSeq() uint32 {
	return atomic.AddUint32(&s.seq, 1)
}

// Multicast reports whether the session has joined any multicast groups.
// Frames delivered on a joined group carry the kernel's own port id, so such
// sessions are exempt from the unicast port check.
func (s *Socket) Multicast() bool {
	return s.groups != 0
}

// Send serializes and writes one message.
func (s *Socket) Send(m *nlmsg.Msg) error {
	b, err := wire.Marshal(m)
	if err != nil {
		return err
	}
	if err := unix.Sendto(s.fd, b, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK}); err != nil {
		metrics.ErrorCount.With(prometheus.Labels{"type": "send"}).Inc()
		return fmt.Errorf("netlink send: %w", err)
	}
	metrics.FrameCount.With(prometheus.Labels{"direction": "tx"}).Inc()
	return nil
}

// Recv blocks on the kernel socket for one datagram and splits it into
// message frames.
func (s *Socket) Recv() ([][]byte, error) {
	buf := make([]byte, bufSize)
	start := time.Now()
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	metrics.ReceiveTimeHistogram.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ErrorCount.With(prometheus.Labels{"type": "recv"}).Inc()
		return nil, fmt.Errorf("netlink receive: %w", err)
	}
	frames, err := nlmsg.SplitFrames(buf[:n])
	if err != nil {
		metrics.ErrorCount.With(prometheus.Labels{"type": "bad framing"}).Inc()
		return nil, err
	}
	metrics.FrameCount.With(prometheus.Labels{"direction": "rx"}).Add(float64(len(frames)))
	return frames, nil
}

// AddMembership joins a multicast group by id.  Group ids index single bits
// of a 32-bit membership mask, so ids outside 0-31 fail before any socket
// call is made.
func (s *Socket) AddMembership(group uint32) error {
	if group > maxGroup {
		return fmt.Errorf("%w: %d", ErrGroupRange, group)
	}
	if err := unix.SetsockoptInt(s.fd, unix.SOL_NETLINK, unix.NETLINK_ADD_MEMBERSHIP, int(group)); err != nil {
		return fmt.Errorf("joining multicast group %d: %w", group, err)
	}
	s.groups |= 1 << group
	return nil
}

// DropMembership leaves a multicast group, with the same bit-range check as
// AddMembership.
func (s *Socket) DropMembership(group uint32) error {
	if group > maxGroup {
		return fmt.Errorf("%w: %d", ErrGroupRange, group)
	}
	if err := unix.SetsockoptInt(s.fd, unix.SOL_NETLINK, unix.NETLINK_DROP_MEMBERSHIP, int(group)); err != nil {
		return fmt.Errorf("leaving multicast group %d: %w", group, err)
	}
	s.groups &^= 1 << group
	return nil
}

// Close releases the socket handle.
func (s *Socket) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return unix.Close(s.fd)
}
