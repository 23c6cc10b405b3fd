package socket

import (
	"github.com/dhl/neli/nlmsg"
	"github.com/dhl/neli/wire"
)

// Iter is the blocking driver over one exchange: Next blocks the calling
// thread on the kernel read until the next frame arrives.
type Iter struct {
	ex exchange
}

// Iter produces the validated response sequence for the request sent with
// seq.  newPayload supplies a fresh payload codec per frame (e.g. func()
// wire.Codec { return new(genl.Msg) }).  If expectAck is set, an exchange
// that ends without a single frame fails with ErrNoAck.  The sequence is
// finite: it ends at the terminating done frame, at a non-multipart
// response, or at a positive acknowledgment.
func (s *Socket) Iter(seq uint32, expectAck bool, newPayload func() wire.Codec) *Iter {
	return &Iter{ex: exchange{
		src:        s,
		pid:        s.pid,
		multicast:  s.Multicast(),
		seq:        seq,
		checkSeq:   true,
		expectAck:  expectAck,
		newPayload: newPayload,
	}}
}

// Subscribe produces the unbounded sequence of unsolicited messages arriving
// on the session's joined multicast groups.  Group traffic has no originating
// request, so sequence correlation is disabled; the sequence ends only when
// the caller stops consuming and closes the session.
func (s *Socket) Subscribe(newPayload func() wire.Codec) *Iter {
	return &Iter{ex: exchange{
		src:        s,
		pid:        s.pid,
		multicast:  true,
		endless:    true,
		newPayload: newPayload,
	}}
}

// Next returns the next validated message, or io.EOF when the exchange has
// terminated.
func (it *Iter) Next() (*nlmsg.Msg, error) {
	return it.ex.next()
}
