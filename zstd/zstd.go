// Package zstd provides reader and writer pipes to external zstd processes,
// for storing and replaying compressed netlink frame captures.
package zstd

import (
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
)

// NewReader pipes the decompressed content of filename through the returned
// reader.  Close the reader when done.
func NewReader(filename string) (io.ReadCloser, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}
	pipeR, pipeW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	cmd := exec.Command("zstd", "-d", "-c", filename)
	cmd.Stdout = pipeW

	go func() {
		if err := cmd.Run(); err != nil {
			log.Println("zstd decompress error", filename, err)
		}
		pipeW.Close()
	}()

	return pipeR, nil
}

// waitingWriteCloser defers Close until the compressing process has flushed
// its output file.
type waitingWriteCloser struct {
	io.WriteCloser
	wg *sync.WaitGroup
}

func (w waitingWriteCloser) Close() error {
	if err := w.WriteCloser.Close(); err != nil {
		return err
	}
	w.wg.Wait()
	return nil
}

// NewWriter pipes everything written to the returned writer through an
// external zstd process into filename.  Close the writer when done; Close
// returns after the compressed file is complete.
func NewWriter(filename string) (io.WriteCloser, error) {
	pipeR, pipeW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		pipeR.Close()
		pipeW.Close()
		return nil, err
	}
	cmd := exec.Command("zstd")
	cmd.Stdin = pipeR
	cmd.Stdout = f

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		if err := cmd.Run(); err != nil {
			log.Println("zstd compress error", filename, err)
		}
		pipeR.Close()
		f.Close()
		wg.Done()
	}()

	return waitingWriteCloser{pipeW, &wg}, nil
}
