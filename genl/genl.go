// Package genl models the generic netlink sub-header and the control family
// used to resolve family and multicast-group names to runtime ids.
package genl

import (
	"fmt"

	"github.com/dhl/neli/nlmsg"
	"github.com/dhl/neli/wire"
)

// HeaderLen is the size of the generic netlink sub-header, fixed by the
// kernel ABI.
const HeaderLen = 4

// Control family constants, from linux/genetlink.h.
const (
	IDCtrl      = 0x10 // message type of the generic netlink controller
	CtrlVersion = 1

	CtrlCmdNewFamily = 1
	CtrlCmdGetFamily = 3

	CtrlAttrFamilyID    = 1
	CtrlAttrFamilyName  = 2
	CtrlAttrMcastGroups = 7

	CtrlAttrMcastGrpName = 1
	CtrlAttrMcastGrpID   = 2
)

// Msg is a generic netlink message payload: the 4-byte sub-header followed by
// an attribute list filling the rest of the enclosing frame.
type Msg struct {
	Cmd     uint8
	Version uint8
	Attrs   nlmsg.AttrList
}

// Size implements wire.Codec.
func (m *Msg) Size() int { return HeaderLen + m.Attrs.Size() }

// MarshalWire implements wire.Codec.
func (m *Msg) MarshalWire(w *wire.Writer) error {
	if err := w.WriteUint8(m.Cmd); err != nil {
		return err
	}
	if err := w.WriteUint8(m.Version); err != nil {
		return err
	}
	// Reserved.
	if err := w.WriteUint16(0); err != nil {
		return err
	}
	return m.Attrs.MarshalWire(w)
}

// UnmarshalWire implements wire.Codec.  hint is the full payload length as
// reported by the enclosing message header; everything after the sub-header
// is the attribute list.
func (m *Msg) UnmarshalWire(r *wire.Reader, hint int) error {
	if hint < HeaderLen {
		return fmt.Errorf("%w: %d bytes for generic header", wire.ErrUnexpectedEOB, hint)
	}
	var err error
	if m.Cmd, err = r.ReadUint8(); err != nil {
		return err
	}
	if m.Version, err = r.ReadUint8(); err != nil {
		return err
	}
	if _, err = r.ReadUint16(); err != nil {
		return err
	}
	return m.Attrs.UnmarshalWire(r, hint-HeaderLen)
}
