// Command nlcsv converts a capture of raw netlink frames, optionally
// zstd-compressed, to CSV on stdout: one row per frame with the header
// fields and, where the payload decodes as generic netlink, the sub-header
// fields and attribute count.
package main

import (
	"errors"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/m-lab/go/rtx"

	"github.com/dhl/neli/genl"
	"github.com/dhl/neli/nlmsg"
	"github.com/dhl/neli/wire"
	"github.com/dhl/neli/zstd"
)

func init() {
	// Always prepend the filename and line number.
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// A variable to enable mocking for testing.
var logFatal = log.Fatal

// row is one CSV line.  Cmd, Version and Attrs are empty for frames whose
// payload is not a generic netlink message.
type row struct {
	Len     uint32 `csv:"len"`
	Type    uint16 `csv:"type"`
	Flags   uint16 `csv:"flags"`
	Seq     uint32 `csv:"seq"`
	Pid     uint32 `csv:"pid"`
	Cmd     string `csv:"genl_cmd"`
	Version string `csv:"genl_version"`
	Attrs   string `csv:"genl_attrs"`
}

// openFile either opens a file, or opens and unzips a file that ends with .zst
func openFile(fn string) (io.ReadCloser, error) {
	if strings.HasSuffix(fn, ".zst") {
		return zstd.NewReader(fn)
	}
	return os.Open(fn)
}

func toRows(rdr io.Reader) ([]*row, error) {
	var rows []*row
	for {
		m, err := nlmsg.LoadFrame(rdr)
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		r := &row{
			Len:   m.Hdr.Len,
			Type:  m.Hdr.Type,
			Flags: m.Hdr.Flags,
			Seq:   m.Hdr.Seq,
			Pid:   m.Hdr.Pid,
		}
		if raw, ok := m.Payload.(*wire.Bytes); ok {
			g := new(genl.Msg)
			if err := wire.Unmarshal(*raw, g); err == nil {
				r.Cmd = strconv.Itoa(int(g.Cmd))
				r.Version = strconv.Itoa(int(g.Version))
				r.Attrs = strconv.Itoa(len(g.Attrs))
			}
		}
		rows = append(rows, r)
	}
}

func main() {
	args := os.Args[1:]

	var source io.ReadCloser
	var err error
	source = os.Stdin
	if len(args) == 1 {
		source, err = openFile(args[0])
		rtx.Must(err, "Could not open file %q", args[0])
	} else if len(args) > 1 {
		logFatal("Too many command-line arguments.")
	}
	defer source.Close()

	rows, err := toRows(source)
	rtx.Must(err, "Could not parse capture")
	rtx.Must(gocsv.Marshal(&rows, os.Stdout), "Could not convert capture to CSV")
}
