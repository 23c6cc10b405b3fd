package socket

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"

	"github.com/dhl/neli/metrics"
	"github.com/dhl/neli/nlmsg"
	"github.com/dhl/neli/wire"
)

// Stream is the cooperative driver: the descriptor is switched to
// non-blocking mode and registered with the runtime poller, so Next suspends
// the calling goroutine until the socket becomes readable instead of pinning
// a thread.  Protocol behavior is identical to Subscribe; the two drivers
// share the same state machine.
type Stream struct {
	f  *os.File
	ex exchange
}

// NewStream converts the session for cooperative consumption of its joined
// multicast groups.  The stream takes over the descriptor: close the stream
// (or the socket, which defers to it) to release the handle and unblock a
// suspended Next.
func NewStream(s *Socket, newPayload func() wire.Codec) (*Stream, error) {
	if err := unix.SetNonblock(s.fd, true); err != nil {
		return nil, fmt.Errorf("setting netlink socket non-blocking: %w", err)
	}
	f := os.NewFile(uintptr(s.fd), "netlink")
	s.file = f
	st := &Stream{f: f}
	st.ex = exchange{
		src:        &fileSource{f: f},
		pid:        s.pid,
		multicast:  true,
		endless:    true,
		newPayload: newPayload,
	}
	return st, nil
}

// Next returns the next validated message, suspending until one arrives.
func (st *Stream) Next() (*nlmsg.Msg, error) {
	return st.ex.next()
}

// Close releases the socket handle.
func (st *Stream) Close() error {
	return st.f.Close()
}

// fileSource reads datagrams through the runtime poller.
type fileSource struct {
	f *os.File
}

func (fs *fileSource) Recv() ([][]byte, error) {
	buf := make([]byte, bufSize)
	n, err := fs.f.Read(buf)
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
