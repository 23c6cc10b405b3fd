// Command genlstream monitors a generic netlink multicast group by name: it
// resolves the family and group ids, joins the group, and prints every
// message delivered on it until interrupted.
package main

import (
	"errors"
	"flag"
	"io"
	"log"

	"github.com/m-lab/go/rtx"
	"golang.org/x/sys/unix"

	"github.com/dhl/neli/genl"
	"github.com/dhl/neli/metrics"
	"github.com/dhl/neli/socket"
	"github.com/dhl/neli/wire"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

var (
	family   = flag.String("family", "", "Generic netlink family name")
	group    = flag.String("group", "", "Multicast group name within the family")
	blocking = flag.Bool("blocking", false, "Use the blocking iterator instead of the poller-backed stream")
	promPort = flag.Int("prom", 9090, "Prometheus metrics export port")
)

func main() {
	flag.Parse()
	if *family == "" || *group == "" {
		log.Fatal("Usage: genlstream -family FAMILY -group GROUP")
	}

	metrics.SetupPrometheus(*promPort)

	s, err := socket.Connect(unix.NETLINK_GENERIC, 0, 0)
	rtx.Must(err, "Could not connect netlink socket")
	defer s.Close()

	id, err := s.ResolveGroup(*family, *group)
	rtx.Must(err, "Could not resolve group %q in family %q", *group, *family)
	rtx.Must(s.AddMembership(id), "Could not join multicast group %d", id)
	log.Printf("Listening on %s/%s (group %d)", *family, *group, id)

	newPayload := func() wire.Codec { return new(genl.Msg) }

	if *blocking {
		it := s.Subscribe(newPayload)
		for {
			m, err := it.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			rtx.Must(err, "Could not read next message")
			log.Printf("%+v %+v", m.Hdr, m.Payload)
		}
	}

	st, err := socket.NewStream(s, newPayload)
	rtx.Must(err, "Could not start stream")
	for {
		m, err := st.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		rtx.Must(err, "Could not read next message")
		log.Printf("%+v %+v", m.Hdr, m.Payload)
	}
}
