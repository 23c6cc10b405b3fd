package nlmsg

import (
	"syscall"

	"github.com/dhl/neli/wire"
)

// ErrMsg is the kernel's error frame: a signed error code followed by the
// echoed header of the request that triggered it.  The kernel echoes only the
// header, not the request body, so the embedded message has an empty payload.
// A zero code is a positive acknowledgment, not a failure; the session layer
// distinguishes the two, since both share this wire shape.
type ErrMsg struct {
	Code    int32
	Request Hdr
}

// Size implements wire.Codec.
func (e *ErrMsg) Size() int { return 4 + HeaderLen }

// MarshalWire implements wire.Codec.
func (e *ErrMsg) MarshalWire(w *wire.Writer) error {
	if err := w.WriteUint32(uint32(e.Code)); err != nil {
		return err
	}
	return e.Request.MarshalWire(w)
}

// UnmarshalWire implements wire.Codec.
func (e *ErrMsg) UnmarshalWire(r *wire.Reader, _ int) error {
	c, err := r.ReadUint32()
	if err != nil {
		return err
	}
	e.Code = int32(c)
	return e.Request.UnmarshalWire(r, HeaderLen)
}

// Acked reports whether this frame is a positive acknowledgment.
func (e *ErrMsg) Acked() bool { return e.Code == 0 }

// Errno converts a failure code to the corresponding system error.  The
// kernel reports errors as negated errno values.
func (e *ErrMsg) Errno() syscall.Errno { return syscall.Errno(-e.Code) }
