package nlmsg

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/dhl/neli/wire"
)

// AttrHeaderLen is the size of the TLV attribute header (length + type).
const AttrHeaderLen = 4

// TypeMask extracts the semantic attribute type; the top two bits of the type
// field are the nested and network-byte-order markers.
const TypeMask = 0x3fff

// Attr is one type-length-value attribute.  Value is opaque to this package;
// whether it holds raw bytes or a nested attribute list depends on the
// attribute's semantics, which only the caller knows, so nested decoding is
// opted into via Nested.
type Attr struct {
	Type  uint16
	Value []byte
}

// Size implements wire.Codec.  The length field on the wire counts the
// 4-byte TLV header plus the unpadded value.
func (a *Attr) Size() int { return AttrHeaderLen + len(a.Value) }

// MarshalWire implements wire.Codec.  The list, not the attribute, writes the
// alignment padding that follows.
func (a *Attr) MarshalWire(w *wire.Writer) error {
	if err := w.WriteUint16(uint16(a.Size())); err != nil {
		return err
	}
	if err := w.WriteUint16(a.Type); err != nil {
		return err
	}
	return w.WriteBytes(a.Value)
}

// UnmarshalWire implements wire.Codec.  The returned Value aliases the source
// buffer; callers that keep attributes past the frame's lifetime must copy.
func (a *Attr) UnmarshalWire(r *wire.Reader, _ int) error {
	l, err := r.ReadUint16()
	if err != nil {
		return err
	}
	if a.Type, err = r.ReadUint16(); err != nil {
		return err
	}
	if l < AttrHeaderLen {
		return fmt.Errorf("%w: attribute length %d shorter than header", wire.ErrUnexpectedEOB, l)
	}
	a.Value, err = r.ReadBytes(int(l) - AttrHeaderLen)
	return err
}

// ID returns the semantic attribute type with the marker bits cleared.
func (a *Attr) ID() uint16 { return a.Type & TypeMask }

// IsNested reports whether the payload is marked as a nested attribute list.
func (a *Attr) IsNested() bool { return a.Type&unix.NLA_F_NESTED != 0 }

// IsNetByteOrder reports whether the payload is marked as network byte order.
func (a *Attr) IsNetByteOrder() bool { return a.Type&unix.NLA_F_NET_BYTEORDER != 0 }

// Uint16 decodes the value as a native-order 16-bit integer.
func (a *Attr) Uint16() (uint16, error) {
	var v wire.U16
	if err := wire.Unmarshal(a.Value, &v); err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// Uint32 decodes the value as a native-order 32-bit integer.
func (a *Attr) Uint32() (uint32, error) {
	var v wire.U32
	if err := wire.Unmarshal(a.Value, &v); err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// String decodes the value as a null-terminated string.
func (a *Attr) String() (string, error) {
	var v wire.CString
	if err := wire.Unmarshal(a.Value, &v); err != nil {
		return "", err
	}
	return string(v), nil
}

// Nested decodes the value as a nested attribute list.
func (a *Attr) Nested() (AttrList, error) {
	var l AttrList
	if err := wire.Unmarshal(a.Value, &l); err != nil {
		return nil, err
	}
	return l, nil
}

// NewAttr builds an attribute whose value is the encoding of c.
func NewAttr(typ uint16, c wire.Codec) (Attr, error) {
	b, err := wire.Marshal(c)
	if err != nil {
		return Attr{}, err
	}
	return Attr{Type: typ, Value: b}, nil
}

// NewStringAttr builds a null-terminated string attribute.
func NewStringAttr(typ uint16, s string) (Attr, error) {
	cs := wire.CString(s)
	return NewAttr(typ, &cs)
}

// NewNested builds an attribute containing a nested list, with the nested
// marker bit set.
func NewNested(typ uint16, list AttrList) (Attr, error) {
	b, err := wire.Marshal(&list)
	if err != nil {
		return Attr{}, err
	}
	return Attr{Type: typ | unix.NLA_F_NESTED, Value: b}, nil
}

// AttrList is a flat ordered sequence of attributes at one nesting level.
// Each attribute is individually padded to the alignment boundary in the
// stream; its length field reports the unpadded size.
type AttrList []Attr

// Size implements wire.Codec.
func (l *AttrList) Size() int {
	n := 0
	for i := range *l {
		n += wire.Align((*l)[i].Size())
	}
	return n
}

// MarshalWire implements wire.Codec.
func (l *AttrList) MarshalWire(w *wire.Writer) error {
	for i := range *l {
		if err := (*l)[i].MarshalWire(w); err != nil {
			return err
		}
		if err := w.Pad(); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalWire implements wire.Codec.  hint bounds the list region; decoding
// stops when it is exhausted.  A tail too short to hold an attribute header,
// or an attribute whose declared length overruns the region, is an error.
func (l *AttrList) UnmarshalWire(r *wire.Reader, hint int) error {
	sub, err := r.Sub(hint)
	if err != nil {
		return err
	}
	out := (*l)[:0]
	for sub.Remaining() > 0 {
		if sub.Remaining() < AttrHeaderLen {
			return fmt.Errorf("%w: %d byte attribute fragment", wire.ErrUnexpectedEOB, sub.Remaining())
		}
		var a Attr
		if err := a.UnmarshalWire(sub, 0); err != nil {
			return err
		}
		out = append(out, a)
		sub.Discard()
	}
	*l = out
	return nil
}

// Get returns the first attribute with the given semantic type.
func (l AttrList) Get(id uint16) (Attr, bool) {
	for i := range l {
		if l[i].ID() == id {
			return l[i], true
		}
	}
	return Attr{}, false
}
