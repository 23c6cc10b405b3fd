package socket

import (
	"errors"
	"io"
	"log"
	"syscall"
	"testing"

	"github.com/m-lab/go/rtx"
	"golang.org/x/sys/unix"

	"github.com/dhl/neli/genl"
	"github.com/dhl/neli/nlmsg"
	"github.com/dhl/neli/wire"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// stubSource replays canned frame batches and then reports end of stream.
type stubSource struct {
	batches [][][]byte
}

func (s *stubSource) Recv() ([][]byte, error) {
	if len(s.batches) == 0 {
		return nil, io.EOF
	}
	b := s.batches[0]
	s.batches = s.batches[1:]
	return b, nil
}

func rawPayload() wire.Codec { return &wire.Bytes{} }

func frame(t *testing.T, m *nlmsg.Msg) []byte {
	t.Helper()
	b, err := wire.Marshal(m)
	rtx.Must(err, "Could not marshal frame")
	return b
}

func payloadFrame(t *testing.T, seq, pid uint32, flags uint16, data []byte) []byte {
	t.Helper()
	p := wire.Bytes(data)
	return frame(t, &nlmsg.Msg{
		Hdr:     nlmsg.Hdr{Type: 16, Flags: flags, Seq: seq, Pid: pid},
		Payload: &p,
	})
}

func doneFrame(t *testing.T, seq, pid uint32) []byte {
	t.Helper()
	return frame(t, &nlmsg.Msg{Hdr: nlmsg.Hdr{Type: unix.NLMSG_DONE, Seq: seq, Pid: pid}})
}

func errFrame(t *testing.T, seq, pid uint32, code int32) []byte {
	t.Helper()
	return frame(t, &nlmsg.Msg{
		Hdr:     nlmsg.Hdr{Type: unix.NLMSG_ERROR, Seq: seq, Pid: pid},
		Payload: &nlmsg.ErrMsg{Code: code, Request: nlmsg.Hdr{Len: 32, Type: 16, Seq: seq, Pid: pid}},
	})
}

func TestMultipartTermination(t *testing.T) {
	src := &stubSource{batches: [][][]byte{
		{
			payloadFrame(t, 5, 100, unix.NLM_F_MULTI, []byte{1}),
			payloadFrame(t, 5, 100, unix.NLM_F_MULTI, []byte{2}),
		},
		{
			payloadFrame(t, 5, 100, unix.NLM_F_MULTI, []byte{3}),
			doneFrame(t, 5, 100),
		},
	}}
	ex := exchange{src: src, pid: 100, seq: 5, checkSeq: true, newPayload: rawPayload}

	for i := 1; i <= 3; i++ {
		m, err := ex.next()
		rtx.Must(err, "Could not read message %d", i)
		raw := m.Payload.(*wire.Bytes)
		if len(*raw) != 1 || (*raw)[0] != byte(i) {
			t.Errorf("message %d out of order: %v", i, *raw)
		}
	}
	if _, err := ex.next(); err != io.EOF {
		t.Error("expected EOF after done frame, got", err)
	}
	// The sequence is finite: consuming again yields nothing further.
	if _, err := ex.next(); err != io.EOF {
		t.Error("expected EOF on repeated consumption, got", err)
	}
}

func TestSingleResponseEndsExchange(t *testing.T) {
	src := &stubSource{batches: [][][]byte{{payloadFrame(t, 2, 100, 0, []byte{9})}}}
	ex := exchange{src: src, pid: 100, seq: 2, checkSeq: true, newPayload: rawPayload}

	_, err := ex.next()
	rtx.Must(err, "Could not read response")
	if _, err := ex.next(); err != io.EOF {
		t.Error("non-multipart response should end the exchange, got", err)
	}
}

func TestBadSeq(t *testing.T) {
	src := &stubSource{batches: [][][]byte{{payloadFrame(t, 6, 100, 0, nil)}}}
	ex := exchange{src: src, pid: 100, seq: 5, checkSeq: true, newPayload: rawPayload}

	if _, err := ex.next(); !errors.Is(err, ErrBadSeq) {
		t.Error("expected sequence mismatch, got", err)
	}
}

func TestBadPid(t *testing.T) {
	src := &stubSource{batches: [][][]byte{{payloadFrame(t, 5, 200, 0, nil)}}}
	ex := exchange{src: src, pid: 100, seq: 5, checkSeq: true, newPayload: rawPayload}

	if _, err := ex.next(); !errors.Is(err, ErrBadPid) {
		t.Error("expected port mismatch, got", err)
	}
}

func TestMulticastPidExemption(t *testing.T) {
	// The kernel multicasts with its own port id; a subscribed session must
	// accept such frames.
	src := &stubSource{batches: [][][]byte{{payloadFrame(t, 0, 0, 0, []byte{1})}}}
	ex := exchange{src: src, pid: 100, multicast: true, endless: true, newPayload: rawPayload}

	m, err := ex.next()
	rtx.Must(err, "Could not read multicast frame")
	if m.Hdr.Pid != 0 {
		t.Error("expected the kernel's port id, got", m.Hdr.Pid)
	}
}

func TestKernelError(t *testing.T) {
	src := &stubSource{batches: [][][]byte{{errFrame(t, 5, 100, -int32(syscall.EPERM))}}}
	ex := exchange{src: src, pid: 100, seq: 5, checkSeq: true, newPayload: rawPayload}

	_, err := ex.next()
	var ke *KernelError
	if !errors.As(err, &ke) {
		t.Fatal("expected a kernel error, got", err)
	}
	if ke.Errno != syscall.EPERM {
		t.Error("wrong errno:", ke.Errno)
	}
	if ke.Msg.Request.Seq != 5 {
		t.Error("echoed request header not preserved:", ke.Msg.Request)
	}
}

func TestAckIsNotAnError(t *testing.T) {
	src := &stubSource{batches: [][][]byte{{errFrame(t, 5, 100, 0)}}}
	ex := exchange{src: src, pid: 100, seq: 5, checkSeq: true, expectAck: true, newPayload: rawPayload}

	if _, err := ex.next(); err != io.EOF {
		t.Error("a zero-code frame is an ack, expected EOF, got", err)
	}
	if !ex.acked {
		t.Error("exchange should record the ack")
	}
}

func TestNoAck(t *testing.T) {
	ex := exchange{src: &stubSource{}, pid: 100, seq: 5, checkSeq: true, expectAck: true, newPayload: rawPayload}

	if _, err := ex.next(); !errors.Is(err, ErrNoAck) {
		t.Error("stream end without any frame should be NoAck, got", err)
	}
}

func TestOversizedGroupID(t *testing.T) {
	// The range check runs before any socket call; an invalid descriptor
	// proves no syscall was attempted.
	s := &Socket{fd: -1}
	if err := s.AddMembership(33); !errors.Is(err, ErrGroupRange) {
		t.Error("expected group range error, got", err)
	}
	if err := s.DropMembership(33); !errors.Is(err, ErrGroupRange) {
		t.Error("expected group range error, got", err)
	}
}

func ctrlResponse(t *testing.T) nlmsg.AttrList {
	t.Helper()
	fid := wire.U16(22)
	idAttr, err := nlmsg.NewAttr(genl.CtrlAttrFamilyID, &fid)
	rtx.Must(err, "Could not build family id attribute")

	entry := func(name string, id uint32) nlmsg.Attr {
		na, err := nlmsg.NewStringAttr(genl.CtrlAttrMcastGrpName, name)
		rtx.Must(err, "Could not build group name attribute")
		gid := wire.U32(id)
		ia, err := nlmsg.NewAttr(genl.CtrlAttrMcastGrpID, &gid)
		rtx.Must(err, "Could not build group id attribute")
		e, err := nlmsg.NewNested(1, nlmsg.AttrList{na, ia})
		rtx.Must(err, "Could not build group entry")
		return e
	}
	groups, err := nlmsg.NewNested(genl.CtrlAttrMcastGroups,
		nlmsg.AttrList{entry("rtnl", 0), entry("mcast", 7)})
	rtx.Must(err, "Could not build group list")

	return nlmsg.AttrList{idAttr, groups}
}

func TestFindGroup(t *testing.T) {
	attrs := ctrlResponse(t)

	id, err := findGroup(attrs, "mcast")
	rtx.Must(err, "Could not resolve group")
	if id != 7 {
		t.Error("wrong group id:", id)
	}

	id, err = findGroup(attrs, "rtnl")
	rtx.Must(err, "Could not resolve group")
	if id != 0 {
		t.Error("wrong group id:", id)
	}

	if _, err := findGroup(attrs, "missing"); !errors.Is(err, ErrNotFound) {
		t.Error("expected not-found error, got", err)
	}
}

func TestFamilyID(t *testing.T) {
	attrs := ctrlResponse(t)
	id, err := familyID(attrs)
	rtx.Must(err, "Could not resolve family id")
	if id != 22 {
		t.Error("wrong family id:", id)
	}

	if _, err := familyID(nlmsg.AttrList{}); !errors.Is(err, ErrNotFound) {
		t.Error("expected not-found error, got", err)
	}
}
