package socket

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"

	"github.com/dhl/neli/metrics"
	"github.com/dhl/neli/nlmsg"
	"github.com/dhl/neli/wire"
)

// frameSource yields raw message frames.  *Socket satisfies it with a
// blocking kernel read; the stream driver satisfies it with a poller-backed
// read.  Test and replay sources return io.EOF at end of stream.
type frameSource interface {
	Recv() ([][]byte, error)
}

// exchange is the protocol state machine shared by both drivers.  It
// validates sequence and port correlation for each received frame and
// classifies it as payload, acknowledgment, end-of-multipart, or kernel
// error.  One exchange reflects one logical request/response window (or, in
// endless mode, an open-ended subscription).
type exchange struct {
	src        frameSource
	pid        uint32
	multicast  bool
	seq        uint32
	checkSeq   bool
	expectAck  bool
	endless    bool
	newPayload func() wire.Codec

	pending  [][]byte
	gotFrame bool
	acked    bool
	done     bool
}

// next returns the next validated payload message.  It returns io.EOF once
// the exchange has terminated (done frame, non-multipart response, or ack),
// and the exchange is not restartable after that.
func (e *exchange) next() (*nlmsg.Msg, error) {
	for {
		if e.done {
			if e.expectAck && !e.gotFrame {
				metrics.ErrorCount.With(prometheus.Labels{"type": "no ack"}).Inc()
				return nil, ErrNoAck
			}
			return nil, io.EOF
		}
		if len(e.pending) == 0 {
			frames, err := e.src.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					e.done = true
					continue
				}
				return nil, err
			}
			e.pending = frames
			continue
		}
		frame := e.pending[0]
		e.pending = e.pending[1:]
		msg, err := e.classify(frame)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
	}
}

func (e *exchange) classify(frame []byte) (*nlmsg.Msg, error) {
	var h nlmsg.Hdr
	if err := h.UnmarshalWire(wire.NewReader(frame), nlmsg.HeaderLen); err != nil {
		return nil, err
	}
	e.gotFrame = true

	if e.checkSeq && h.Seq != e.seq {
		metrics.ErrorCount.With(prometheus.Labels{"type": "bad seq"}).Inc()
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadSeq, h.Seq, e.seq)
	}
	// Frames from a joined multicast group carry the kernel's own port id and
	// are exempt from the port check.
	if h.Pid != e.pid && !e.multicast {
		metrics.ErrorCount.With(prometheus.Labels{"type": "bad pid"}).Inc()
		return nil, fmt.Errorf("%w: got %d, want %d", ErrBadPid, h.Pid, e.pid)
	}

	switch h.Type {
	case unix.NLMSG_DONE:
		if !e.endless {
			e.done = true
		}
		return nil, nil
	case unix.NLMSG_ERROR:
		em := &nlmsg.ErrMsg{}
		m := &nlmsg.Msg{Payload: em}
		if err := wire.Unmarshal(frame, m); err != nil {
			return nil, err
		}
		if em.Acked() {
			e.acked = true
			if !e.endless {
				e.done = true
			}
			return nil, nil
		}
		metrics.ErrorCount.With(prometheus.Labels{"type": "kernel error"}).Inc()
		return nil, &KernelError{Errno: em.Errno(), Msg: em}
	}

	m := &nlmsg.Msg{Payload: e.newPayload()}
	if err := wire.Unmarshal(frame, m); err != nil {
		return nil, err
	}
	if !e.endless && !m.Hdr.Multi() {
		e.done = true
	}
	return m, nil
}
