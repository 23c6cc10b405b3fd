package socket

import (
	"errors"
	"syscall"

	"github.com/dhl/neli/nlmsg"
)

// Error types.
var (
	// ErrNoAck is returned when a request expected an acknowledgment but the
	// exchange ended without any frame.
	ErrNoAck = errors.New("no ack received")
	// ErrBadSeq is returned when a response's sequence number does not match
	// the originating request.
	ErrBadSeq = errors.New("sequence number does not match the request")
	// ErrBadPid is returned when a unicast response carries a port id other
	// than the session's bound port.
	ErrBadPid = errors.New("port id does not match the socket")
	// ErrNotFound is returned when a family or multicast group name cannot be
	// resolved.  It is distinct from transport failures.
	ErrNotFound = errors.New("name not found")
	// ErrGroupRange is returned when a multicast group id cannot be
	// represented as a single bit of the membership mask.
	ErrGroupRange = errors.New("multicast group id outside membership mask range")
)

// KernelError wraps a nonzero error code reported by the kernel in an error
// frame, together with the decoded frame for diagnostics.
type KernelError struct {
	Errno syscall.Errno
	Msg   *nlmsg.ErrMsg
}

func (e *KernelError) Error() string {
	return "kernel reported error: " + e.Errno.Error()
}

func (e *KernelError) Unwrap() error {
	return e.Errno
}
