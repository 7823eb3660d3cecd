package main

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/pdp8go/pdp8core/pdp8"
)

// terminalHost reads raw stdin and feeds bytes into a Console's keyboard
// queue, and drains the Console's teleprinter queue to stdout each time
// printOutput is called. Only instantiated by the "run" and "step" subcommands — never
// by the pdp8 package's tests.
type terminalHost struct {
	console      *pdp8.Console
	stopCh       chan struct{}
	done         chan struct{}
	stopped      sync.Once
	fd           int
	nonblockSet  bool
	oldTermState *term.State
}

// newTerminalHost creates a host adapter that reads stdin into console.
func newTerminalHost(console *pdp8.Console) *terminalHost {
	return &terminalHost{
		console: console,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start puts stdin in raw mode and begins reading keystrokes in a
// goroutine. Call stop to restore stdin before the process exits.
func (h *terminalHost) start() {
	h.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "terminal_host: failed to set raw mode: %v\n", err)
		close(h.done)
		return
	}
	h.oldTermState = oldState

	if err := syscall.SetNonblock(h.fd, true); err != nil {
		fmt.Fprintf(os.Stderr, "terminal_host: failed to set nonblocking stdin: %v\n", err)
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
		close(h.done)
		return
	}
	h.nonblockSet = true

	go func() {
		defer close(h.done)
		buf := make([]byte, 1)

		for {
			select {
			case <-h.stopCh:
				return
			default:
			}

			n, err := syscall.Read(h.fd, buf)
			if n > 0 {
				b := buf[0]
				if b == '\r' {
					b = '\n'
				}
				if b == 0x7F {
					b = 0x08
				}
				h.console.QueueInput(int(b))
			}
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if err != nil {
				return
			}
			if n == 0 {
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()
}

// stop terminates the stdin-reading goroutine and restores stdin.
func (h *terminalHost) stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	<-h.done
	if h.nonblockSet {
		_ = syscall.SetNonblock(h.fd, false)
		h.nonblockSet = false
	}
	if h.oldTermState != nil {
		_ = term.Restore(h.fd, h.oldTermState)
		h.oldTermState = nil
	}
}

// printOutput drains the console's teleprinter queue to stdout.
func (h *terminalHost) printOutput() {
	h.console.Flush(stdoutByteWriter{})
}

// stdoutByteWriter adapts os.Stdout to pdp8.ByteWriter.
type stdoutByteWriter struct{}

func (stdoutByteWriter) WriteByte(b byte) error {
	_, err := os.Stdout.Write([]byte{b})
	return err
}
