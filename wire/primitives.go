package wire

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

var errInvalidUTF8 = errors.New("invalid UTF-8")

// U8 is the 8-bit unsigned integer primitive.
type U8 uint8

// Size implements Codec.
func (v *U8) Size() int { return 1 }

// MarshalWire implements Codec.
func (v *U8) MarshalWire(w *Writer) error { return w.WriteUint8(uint8(*v)) }

// UnmarshalWire implements Codec.
func (v *U8) UnmarshalWire(r *Reader, _ int) error {
	b, err := r.ReadUint8()
	if err != nil {
		return err
	}
	*v = U8(b)
	return nil
}

// U16 is the 16-bit unsigned integer primitive, native byte order.
type U16 uint16

// Size implements Codec.
func (v *U16) Size() int { return 2 }

// MarshalWire implements Codec.
func (v *U16) MarshalWire(w *Writer) error { return w.WriteUint16(uint16(*v)) }

// UnmarshalWire implements Codec.
func (v *U16) UnmarshalWire(r *Reader, _ int) error {
	b, err := r.ReadUint16()
	if err != nil {
		return err
	}
	*v = U16(b)
	return nil
}

// U32 is the 32-bit unsigned integer primitive, native byte order.
type U32 uint32

// Size implements Codec.
func (v *U32) Size() int { return 4 }

// MarshalWire implements Codec.
func (v *U32) MarshalWire(w *Writer) error { return w.WriteUint32(uint32(*v)) }

// UnmarshalWire implements Codec.
func (v *U32) UnmarshalWire(r *Reader, _ int) error {
	b, err := r.ReadUint32()
	if err != nil {
		return err
	}
	*v = U32(b)
	return nil
}

// I32 is the 32-bit signed integer primitive.  The kernel's error code field
// is a C int, which is 32 bits on every netlink-bearing ABI.
type I32 int32

// Size implements Codec.
func (v *I32) Size() int { return 4 }

// MarshalWire implements Codec.
func (v *I32) MarshalWire(w *Writer) error { return w.WriteUint32(uint32(*v)) }

// UnmarshalWire implements Codec.
func (v *I32) UnmarshalWire(r *Reader, _ int) error {
	b, err := r.ReadUint32()
	if err != nil {
		return err
	}
	*v = I32(b)
	return nil
}

// Bytes is a raw byte sequence.  Its encoded length is its own length; on
// decode the hint states how many bytes to consume, since netlink byte
// payloads carry no terminator and are sized by the enclosing header.
type Bytes []byte

// Size implements Codec.
func (v *Bytes) Size() int { return len(*v) }

// MarshalWire implements Codec.
func (v *Bytes) MarshalWire(w *Writer) error { return w.WriteBytes(*v) }

// UnmarshalWire implements Codec.
func (v *Bytes) UnmarshalWire(r *Reader, hint int) error {
	b, err := r.ReadBytes(hint)
	if err != nil {
		return err
	}
	*v = append((*v)[:0], b...)
	return nil
}

// CString is a null-terminated string, the encoding netlink uses for name
// attributes.  The terminator is included in Size.
type CString string

// Size implements Codec.
func (v *CString) Size() int { return len(*v) + 1 }

// MarshalWire implements Codec.
func (v *CString) MarshalWire(w *Writer) error {
	if err := w.WriteBytes([]byte(*v)); err != nil {
		return err
	}
	return w.WriteUint8(0)
}

// UnmarshalWire implements Codec.  hint is the full payload length including
// the terminator.  A missing terminator, an interior null, or invalid UTF-8
// all fail the decode.
func (v *CString) UnmarshalWire(r *Reader, hint int) error {
	b, err := r.ReadBytes(hint)
	if err != nil {
		return err
	}
	if len(b) == 0 || b[len(b)-1] != 0 {
		return ErrNoNullByte
	}
	s := b[:len(b)-1]
	for _, c := range s {
		if c == 0 {
			return ErrNullByte
		}
	}
	if !utf8.Valid(s) {
		return fmt.Errorf("decoding string attribute: %w", errInvalidUTF8)
	}
	*v = CString(s)
	return nil
}

// Empty is a zero-length payload.  The kernel's error frame echoes only the
// header of the offending request, so its embedded message carries Empty.
type Empty struct{}

// Size implements Codec.
func (Empty) Size() int { return 0 }

// MarshalWire implements Codec.
func (Empty) MarshalWire(*Writer) error { return nil }

// UnmarshalWire implements Codec.
func (Empty) UnmarshalWire(r *Reader, hint int) error {
	if hint != 0 {
		return fmt.Errorf("%w: %d bytes for empty payload", ErrBufferNotParsed, hint)
	}
	return nil
}
