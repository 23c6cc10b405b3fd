// Package wire implements the serialization contract shared by every value
// that appears on the netlink wire: a Codec interface, bounds-checked buffer
// cursors, and the fixed-width integer and byte-sequence primitives that
// composite message types are built from.
//
// Netlink encodes fixed-width fields in the host's native byte order and pads
// the stream to 4-byte boundaries between sibling values.  Size always reports
// the unaligned length, because header length fields on the wire count
// unpadded bytes; the cursor advances by the aligned amount.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/vishvananda/netlink/nl"
)

// AlignTo is the netlink alignment unit.
const AlignTo = 4

// native is the host byte order, as expected by the kernel ABI.
var native = nl.NativeEndian()

// Error types.
var (
	// ErrUnexpectedEOB means the buffer ended before the operation finished.
	ErrUnexpectedEOB = errors.New("unexpected end of buffer")
	// ErrBufferNotFilled means a value wrote fewer bytes than its declared size.
	// This is a codec bug, not bad input.
	ErrBufferNotFilled = errors.New("encoded bytes did not fill the declared size")
	// ErrBufferNotParsed means semantic bytes were left over after a value that
	// should have consumed the whole region.
	ErrBufferNotParsed = errors.New("unparsed bytes left in buffer")
	// ErrNullByte means a null byte appeared before the end of a string payload.
	ErrNullByte = errors.New("null byte before end of string")
	// ErrNoNullByte means a string payload had no terminating null byte.
	ErrNoNullByte = errors.New("no terminating null byte in string")
)

// NativeEndian returns the host byte order used for all fixed-width fields.
func NativeEndian() binary.ByteOrder {
	return native
}

// Align rounds n up to the next multiple of the netlink alignment unit.
func Align(n int) int {
	return (n + AlignTo - 1) &^ (AlignTo - 1)
}

// Codec is implemented by every value that can be encoded to or decoded from
// the netlink wire.
type Codec interface {
	// Size returns the exact encoded length in bytes, before alignment.
	Size() int
	// MarshalWire writes exactly Size() bytes at the writer's position.
	MarshalWire(w *Writer) error
	// UnmarshalWire reconstructs the value from the reader's position.  hint
	// carries externally known length information for variable-length types;
	// fixed-width types ignore it.  The enclosing structure always knows the
	// hint from its own header fields.
	UnmarshalWire(r *Reader, hint int) error
}

// AlignedSize returns c's size rounded up to the alignment unit.  This is the
// amount the stream cursor advances between sibling values.
func AlignedSize(c Codec) int {
	return Align(c.Size())
}

// Marshal encodes c into a fresh buffer of exactly c.Size() bytes.
func Marshal(c Codec) ([]byte, error) {
	w := NewWriter(make([]byte, c.Size()))
	if err := c.MarshalWire(w); err != nil {
		return nil, err
	}
	if w.Len() != c.Size() {
		return nil, fmt.Errorf("%w: wrote %d of %d bytes", ErrBufferNotFilled, w.Len(), c.Size())
	}
	return w.Bytes(), nil
}

// Unmarshal decodes c from data and requires the whole buffer to be consumed.
// Trailing semantic bytes indicate a framing bug and are an error.
func Unmarshal(data []byte, c Codec) error {
	r := NewReader(data)
	if err := c.UnmarshalWire(r, len(data)); err != nil {
		return err
	}
	if n := r.Remaining(); n != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrBufferNotParsed, n)
	}
	return nil
}
