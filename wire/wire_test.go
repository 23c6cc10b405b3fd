package wire_test

import (
	"errors"
	"log"
	"testing"

	"github.com/go-test/deep"
	"github.com/m-lab/go/rtx"

	"github.com/dhl/neli/wire"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

func TestPrimitiveRoundTrips(t *testing.T) {
	u8 := wire.U8(5)
	u16 := wire.U16(6000)
	u32 := wire.U32(600000)
	i32 := wire.I32(-2)
	bs := wire.Bytes{1, 2, 3, 4, 5, 6, 7, 8, 9}
	cs := wire.CString("nl80211")

	for _, c := range []wire.Codec{&u8, &u16, &u32, &i32, &bs, &cs} {
		b, err := wire.Marshal(c)
		rtx.Must(err, "Could not marshal %#v", c)
		if len(b) != c.Size() {
			t.Errorf("Marshal wrote %d bytes, Size is %d", len(b), c.Size())
		}
	}

	var b []byte
	var err error

	b, err = wire.Marshal(&u16)
	rtx.Must(err, "")
	var u16back wire.U16
	rtx.Must(wire.Unmarshal(b, &u16back), "")
	if u16back != u16 {
		t.Error("u16 did not round trip:", u16back)
	}

	b, err = wire.Marshal(&i32)
	rtx.Must(err, "")
	var i32back wire.I32
	rtx.Must(wire.Unmarshal(b, &i32back), "")
	if i32back != i32 {
		t.Error("i32 did not round trip:", i32back)
	}

	b, err = wire.Marshal(&bs)
	rtx.Must(err, "")
	var bsback wire.Bytes
	rtx.Must(wire.Unmarshal(b, &bsback), "")
	if diff := deep.Equal(bs, bsback); diff != nil {
		t.Error(diff)
	}

	b, err = wire.Marshal(&cs)
	rtx.Must(err, "")
	if b[len(b)-1] != 0 {
		t.Error("string encoding should be null terminated")
	}
	var csback wire.CString
	rtx.Must(wire.Unmarshal(b, &csback), "")
	if csback != cs {
		t.Error("string did not round trip:", csback)
	}
}

func TestNativeByteOrder(t *testing.T) {
	v := wire.U32(0x01020304)
	b, err := wire.Marshal(&v)
	rtx.Must(err, "")
	want := make([]byte, 4)
	wire.NativeEndian().PutUint32(want, 0x01020304)
	if diff := deep.Equal(b, want); diff != nil {
		t.Error(diff)
	}
}

func TestAlignedSize(t *testing.T) {
	u8 := wire.U8(1)
	if wire.AlignedSize(&u8) != 4 {
		t.Error("one byte should align to 4")
	}
	u32 := wire.U32(1)
	if wire.AlignedSize(&u32) != 4 {
		t.Error("four bytes should align to 4")
	}
	cs := wire.CString("abcd") // 5 bytes with terminator
	if cs.Size() != 5 || wire.AlignedSize(&cs) != 8 {
		t.Errorf("five bytes should align to 8, got %d", wire.AlignedSize(&cs))
	}
	empty := wire.Bytes{}
	if wire.AlignedSize(&empty) != 0 {
		t.Error("zero bytes should align to 0")
	}
}

func TestWriterBounds(t *testing.T) {
	w := wire.NewWriter(make([]byte, 2))
	err := w.WriteUint32(1)
	if !errors.Is(err, wire.ErrUnexpectedEOB) {
		t.Error("expected end-of-buffer error, got", err)
	}
}

// shortCodec declares a larger size than it writes, which Marshal must
// surface rather than tolerate.
type shortCodec struct{}

func (shortCodec) Size() int                             { return 4 }
func (shortCodec) MarshalWire(w *wire.Writer) error      { return w.WriteUint16(7) }
func (shortCodec) UnmarshalWire(*wire.Reader, int) error { return nil }

func TestMarshalSizeMismatch(t *testing.T) {
	_, err := wire.Marshal(shortCodec{})
	if !errors.Is(err, wire.ErrBufferNotFilled) {
		t.Error("expected buffer-not-filled error, got", err)
	}
}

func TestUnmarshalTrailingBytes(t *testing.T) {
	var v wire.U32
	err := wire.Unmarshal(make([]byte, 6), &v)
	if !errors.Is(err, wire.ErrBufferNotParsed) {
		t.Error("expected buffer-not-parsed error, got", err)
	}
}

func TestUnmarshalTooShort(t *testing.T) {
	var v wire.U32
	err := wire.Unmarshal(make([]byte, 3), &v)
	if !errors.Is(err, wire.ErrUnexpectedEOB) {
		t.Error("expected end-of-buffer error, got", err)
	}
}

func TestCStringTermination(t *testing.T) {
	var cs wire.CString
	if err := wire.Unmarshal([]byte("ab"), &cs); !errors.Is(err, wire.ErrNoNullByte) {
		t.Error("missing terminator should fail, got", err)
	}
	if err := wire.Unmarshal([]byte("a\x00b\x00"), &cs); !errors.Is(err, wire.ErrNullByte) {
		t.Error("interior null should fail, got", err)
	}
	if err := wire.Unmarshal([]byte{0xff, 0xfe, 0x00}, &cs); err == nil {
		t.Error("invalid UTF-8 should fail")
	}
	if err := wire.Unmarshal([]byte{0x00}, &cs); err != nil || cs != "" {
		t.Error("empty string should decode:", err)
	}
}
