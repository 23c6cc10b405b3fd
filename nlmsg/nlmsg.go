// Package nlmsg models netlink messages: the fixed top-level header, the
// message envelope with its typed payload, the recursive type-length-value
// attribute lists, and the kernel's error frame.  All types implement the
// wire.Codec contract and compose by delegating to their fields in wire
// order.
package nlmsg

import (
	"encoding/binary"
	"fmt"
	"io"
	"syscall"

	"github.com/dhl/neli/wire"
)

// HeaderLen is the size of the top-level netlink message header, fixed by the
// kernel ABI.
const HeaderLen = 16

// Hdr is the top-level netlink message header.  Len counts the unaligned
// header-plus-payload size; the stream advances by the aligned amount between
// messages.
type Hdr struct {
	Len   uint32
	Type  uint16
	Flags uint16
	Seq   uint32
	Pid   uint32
}

// Size implements wire.Codec.
func (h *Hdr) Size() int { return HeaderLen }

// MarshalWire implements wire.Codec.  Len is written as stored; Msg computes
// it from the payload before delegating here.
func (h *Hdr) MarshalWire(w *wire.Writer) error {
	if err := w.WriteUint32(h.Len); err != nil {
		return err
	}
	if err := w.WriteUint16(h.Type); err != nil {
		return err
	}
	if err := w.WriteUint16(h.Flags); err != nil {
		return err
	}
	if err := w.WriteUint32(h.Seq); err != nil {
		return err
	}
	return w.WriteUint32(h.Pid)
}

// UnmarshalWire implements wire.Codec.
func (h *Hdr) UnmarshalWire(r *wire.Reader, _ int) error {
	var err error
	if h.Len, err = r.ReadUint32(); err != nil {
		return err
	}
	if h.Type, err = r.ReadUint16(); err != nil {
		return err
	}
	if h.Flags, err = r.ReadUint16(); err != nil {
		return err
	}
	if h.Seq, err = r.ReadUint32(); err != nil {
		return err
	}
	h.Pid, err = r.ReadUint32()
	return err
}

// Multi reports whether more messages of this exchange follow.
func (h *Hdr) Multi() bool {
	return h.Flags&syscall.NLM_F_MULTI != 0
}

// Msg is a netlink message envelope: a header and a typed payload.  On decode
// the payload receives exactly Len-HeaderLen bytes as its input hint; a
// payload that does not consume them all fails the decode.
type Msg struct {
	Hdr     Hdr
	Payload wire.Codec
}

func (m *Msg) payload() wire.Codec {
	if m.Payload == nil {
		m.Payload = &wire.Bytes{}
	}
	return m.Payload
}

// Size implements wire.Codec.
func (m *Msg) Size() int { return HeaderLen + m.payload().Size() }

// MarshalWire implements wire.Codec.
func (m *Msg) MarshalWire(w *wire.Writer) error {
	m.Hdr.Len = uint32(m.Size())
	if err := m.Hdr.MarshalWire(w); err != nil {
		return err
	}
	return m.payload().MarshalWire(w)
}

// UnmarshalWire implements wire.Codec.
func (m *Msg) UnmarshalWire(r *wire.Reader, _ int) error {
	if err := m.Hdr.UnmarshalWire(r, HeaderLen); err != nil {
		return err
	}
	if m.Hdr.Len < HeaderLen {
		return fmt.Errorf("%w: declared length %d shorter than header", wire.ErrUnexpectedEOB, m.Hdr.Len)
	}
	n := int(m.Hdr.Len) - HeaderLen
	sub, err := r.Sub(n)
	if err != nil {
		return err
	}
	if err := m.payload().UnmarshalWire(sub, n); err != nil {
		return err
	}
	if left := sub.Remaining(); left != 0 {
		return fmt.Errorf("%w: payload left %d bytes", wire.ErrBufferNotParsed, left)
	}
	return nil
}

// SplitFrames slices a received buffer into individual message frames, using
// each header's length field and advancing by the aligned amount.  A length
// that overruns the delivered buffer, or a trailing fragment too short to hold
// a header, is an error.
func SplitFrames(buf []byte) ([][]byte, error) {
	var frames [][]byte
	for pos := 0; pos < len(buf); {
		if len(buf)-pos < HeaderLen {
			return nil, fmt.Errorf("%w: %d byte trailing fragment", wire.ErrBufferNotParsed, len(buf)-pos)
		}
		l := int(wire.NativeEndian().Uint32(buf[pos:]))
		if l < HeaderLen {
			return nil, fmt.Errorf("%w: declared length %d shorter than header", wire.ErrUnexpectedEOB, l)
		}
		if pos+l > len(buf) {
			return nil, fmt.Errorf("%w: declared length %d overruns buffer", wire.ErrUnexpectedEOB, l)
		}
		frames = append(frames, buf[pos:pos+l])
		pos += wire.Align(l)
	}
	return frames, nil
}

// LoadFrame reads the next raw message frame from a source reader, e.g. a file
// of captured netlink traffic.  The payload is left undecoded.
func LoadFrame(rdr io.Reader) (*Msg, error) {
	var h Hdr
	if err := binary.Read(rdr, wire.NativeEndian(), &h); err != nil {
		// May be io.EOF at a frame boundary.
		return nil, err
	}
	if h.Len < HeaderLen {
		return nil, fmt.Errorf("%w: declared length %d shorter than header", wire.ErrUnexpectedEOB, h.Len)
	}
	data := make(wire.Bytes, h.Len-HeaderLen)
	if err := binary.Read(rdr, wire.NativeEndian(), data); err != nil {
		return nil, err
	}
	return &Msg{Hdr: h, Payload: &data}, nil
}
