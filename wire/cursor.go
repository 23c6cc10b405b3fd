package wire

import "fmt"

// Writer is a bounds-checked cursor over a caller-supplied destination buffer.
// Every write fails with ErrUnexpectedEOB, reporting the shortfall, rather
// than writing past the end.
type Writer struct {
	buf []byte
	pos int
}

// NewWriter returns a writer positioned at the start of buf.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

func (w *Writer) need(n int) error {
	if w.pos+n > len(w.buf) {
		return fmt.Errorf("%w: need %d bytes, %d available", ErrUnexpectedEOB, n, len(w.buf)-w.pos)
	}
	return nil
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.pos
}

// Bytes returns the written prefix of the underlying buffer.
func (w *Writer) Bytes() []byte {
	return w.buf[:w.pos]
}

// WriteUint8 writes one byte.
func (w *Writer) WriteUint8(v uint8) error {
	if err := w.need(1); err != nil {
		return err
	}
	w.buf[w.pos] = v
	w.pos++
	return nil
}

// WriteUint16 writes a native-order 16-bit field.
func (w *Writer) WriteUint16(v uint16) error {
	if err := w.need(2); err != nil {
		return err
	}
	native.PutUint16(w.buf[w.pos:], v)
	w.pos += 2
	return nil
}

// WriteUint32 writes a native-order 32-bit field.
func (w *Writer) WriteUint32(v uint32) error {
	if err := w.need(4); err != nil {
		return err
	}
	native.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
	return nil
}

// WriteBytes writes b verbatim.
func (w *Writer) WriteBytes(b []byte) error {
	if err := w.need(len(b)); err != nil {
		return err
	}
	copy(w.buf[w.pos:], b)
	w.pos += len(b)
	return nil
}

// Pad writes zero bytes up to the next alignment boundary.
func (w *Writer) Pad() error {
	n := Align(w.pos) - w.pos
	if err := w.need(n); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		w.buf[w.pos+i] = 0
	}
	w.pos += n
	return nil
}

// SetUint32 backfills a 32-bit field at an earlier offset.  Headers reserve
// their length field and fill it once the payload size is known.
func (w *Writer) SetUint32(off int, v uint32) error {
	if off+4 > len(w.buf) {
		return fmt.Errorf("%w: backfill at %d past end", ErrUnexpectedEOB, off)
	}
	native.PutUint32(w.buf[off:], v)
	return nil
}

// Reader is a bounds-checked cursor over a source buffer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.buf) {
		return fmt.Errorf("%w: need %d bytes, %d remain", ErrUnexpectedEOB, n, len(r.buf)-r.pos)
	}
	return nil
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// ReadUint8 reads one byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// ReadUint16 reads a native-order 16-bit field.
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := native.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadUint32 reads a native-order 32-bit field.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := native.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadBytes reads exactly n bytes.  The returned slice aliases the source
// buffer; callers that outlive the frame must copy.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Discard skips up to the next alignment boundary.  Pad bytes carry no
// semantic value; if the buffer ends inside the padding the cursor stops at
// the end without error.
func (r *Reader) Discard() {
	n := Align(r.pos) - r.pos
	if n > r.Remaining() {
		n = r.Remaining()
	}
	r.pos += n
}

// Sub returns a reader over the next n bytes and advances past them.  It is
// used to hand a payload region, sized by an enclosing header field, to a
// nested decoder.
func (r *Reader) Sub(n int) (*Reader, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}
