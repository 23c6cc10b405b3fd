package socket

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"

	"github.com/dhl/neli/genl"
	"github.com/dhl/neli/nlmsg"
	"github.com/dhl/neli/wire"
)

// getFamily performs the generic netlink control exchange for a family name
// and returns the decoded response payload.
func (s *Socket) getFamily(name string) (*genl.Msg, error) {
	attr, err := nlmsg.NewStringAttr(genl.CtrlAttrFamilyName, name)
	if err != nil {
		return nil, err
	}
	req := &nlmsg.Msg{
		Hdr: nlmsg.Hdr{
			Type:  genl.IDCtrl,
			Flags: unix.NLM_F_REQUEST,
			Seq:   s.NextSeq(),
		},
		Payload: &genl.Msg{
			Cmd:     genl.CtrlCmdGetFamily,
			Version: genl.CtrlVersion,
			Attrs:   nlmsg.AttrList{attr},
		},
	}
	if err := s.Send(req); err != nil {
		return nil, err
	}

	it := s.Iter(req.Hdr.Seq, false, func() wire.Codec { return new(genl.Msg) })
	var resp *genl.Msg
	for {
		m, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The controller answers an unknown family with ENOENT.
			var ke *KernelError
			if errors.As(err, &ke) && ke.Errno == unix.ENOENT {
				return nil, fmt.Errorf("%w: family %q", ErrNotFound, name)
			}
			return nil, err
		}
		if g, ok := m.Payload.(*genl.Msg); ok && resp == nil {
			resp = g
		}
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: family %q", ErrNotFound, name)
	}
	return resp, nil
}

// ResolveFamily resolves a generic netlink family name to its numeric id.
func (s *Socket) ResolveFamily(name string) (uint16, error) {
	g, err := s.getFamily(name)
	if err != nil {
		return 0, err
	}
	return familyID(g.Attrs)
}

// ResolveGroup resolves a multicast group name within a generic netlink
// family to its numeric group id.
func (s *Socket) ResolveGroup(family, group string) (uint32, error) {
	g, err := s.getFamily(family)
	if err != nil {
		return 0, err
	}
	return findGroup(g.Attrs, group)
}

func familyID(attrs nlmsg.AttrList) (uint16, error) {
	a, ok := attrs.Get(genl.CtrlAttrFamilyID)
	if !ok {
		return 0, fmt.Errorf("%w: family id attribute missing", ErrNotFound)
	}
	return a.Uint16()
}

// findGroup scans the nested multicast-group entries of a control response
// for the named group.
func findGroup(attrs nlmsg.AttrList, name string) (uint32, error) {
	groups, ok := attrs.Get(genl.CtrlAttrMcastGroups)
	if !ok {
		return 0, fmt.Errorf("%w: multicast group %q", ErrNotFound, name)
	}
	entries, err := groups.Nested()
	if err != nil {
		return 0, err
	}
	for i := range entries {
		entry, err := entries[i].Nested()
		if err != nil {
			return 0, err
		}
		na, ok := entry.Get(genl.CtrlAttrMcastGrpName)
		if !ok {
			continue
		}
		n, err := na.String()
		if err != nil {
			return 0, err
		}
		if n != name {
			continue
		}
		ida, ok := entry.Get(genl.CtrlAttrMcastGrpID)
		if !ok {
			continue
		}
		return ida.Uint32()
	}
	return 0, fmt.Errorf("%w: multicast group %q", ErrNotFound, name)
}
