// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/creack/pty"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
	"gvisor.dev/mpboard/pkg/log"
)

// hostPort is the host end of the board's USB CDC-ACM serial port.
type hostPort interface {
	io.ReadWriteCloser
}

// cdcHost is the part of the USB device the host side talks to.
type cdcHost interface {
	SetHost(w io.Writer)
	HostWrite(p []byte) int
	HostSetLineCoding(baud uint32)
}

// ptyPort exposes the serial port as a pseudo-terminal. Programs such as
// screen or tockloader open the returned tty path.
type ptyPort struct {
	ptmx  *os.File
	tty   *os.File
	state *term.State
}

// openPTY allocates a pseudo-terminal and puts its slave end in raw mode so
// that bytes pass through unmodified.
func openPTY() (*ptyPort, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("error allocating pty: %w", err)
	}
	state, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		ptmx.Close()
		tty.Close()
		return nil, fmt.Errorf("error setting %s to raw mode: %w", tty.Name(), err)
	}
	return &ptyPort{ptmx: ptmx, tty: tty, state: state}, nil
}

// Name returns the path of the terminal to attach to.
func (p *ptyPort) Name() string { return p.tty.Name() }

// Read implements io.Reader.Read.
func (p *ptyPort) Read(b []byte) (int, error) { return p.ptmx.Read(b) }

// Write implements io.Writer.Write.
func (p *ptyPort) Write(b []byte) (int, error) { return p.ptmx.Write(b) }

// Close implements io.Closer.Close.
func (p *ptyPort) Close() error {
	if err := term.Restore(int(p.tty.Fd()), p.state); err != nil {
		log.Warningf("Restoring %s: %v", p.tty.Name(), err)
	}
	return errors.Join(p.ptmx.Close(), p.tty.Close())
}

// openConsole opens an existing host serial device, retrying until it
// appears or timeout passes. Missing devices are retried; any other error
// is permanent.
func openConsole(ctx context.Context, path string, timeout time.Duration) (*os.File, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = timeout

	var f *os.File
	op := func() error {
		var err error
		f, err = os.OpenFile(path, os.O_RDWR, 0)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, os.ErrNotExist):
			log.Debugf("Console %q not present yet", path)
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("error opening console %q: %w", path, err)
	}
	return f, nil
}

// pumpInput copies host input into the USB device until r fails or ctx is
// done. Bytes the device cannot take yet are retried.
func pumpInput(ctx context.Context, r io.Reader, dev cdcHost) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		for p := buf[:n]; len(p) > 0; {
			w := dev.HostWrite(p)
			p = p[w:]
			if w == 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(time.Millisecond):
				}
			}
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("error reading console input: %w", err)
		}
	}
}

var baudRates = map[uint32]uint32{
	unix.B1200:   1200,
	unix.B2400:   2400,
	unix.B4800:   4800,
	unix.B9600:   9600,
	unix.B19200:  19200,
	unix.B38400:  38400,
	unix.B57600:  57600,
	unix.B115200: 115200,
	unix.B230400: 230400,
}

// termiosBaud returns the baud rate the terminal behind f is set to.
func termiosBaud(f *os.File) (uint32, error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return 0, err
	}
	var (
		tio  *unix.Termios
		ierr error
	)
	if err := rc.Control(func(fd uintptr) {
		tio, ierr = unix.IoctlGetTermios(int(fd), unix.TCGETS)
	}); err != nil {
		return 0, err
	}
	if ierr != nil {
		return 0, ierr
	}
	return baudRates[tio.Cflag&unix.CBAUD], nil
}

// watchLineCoding polls the terminal settings of f and forwards baud rate
// changes to the device as line coding requests. The rate found on the
// first poll is the initial state and is not forwarded.
func watchLineCoding(ctx context.Context, f *os.File, dev cdcHost, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()
	var last uint32
	for first := true; ; first = false {
		baud, err := termiosBaud(f)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return fmt.Errorf("error reading line coding: %w", err)
		}
		if baud != 0 && baud != last {
			if !first {
				log.Infof("Host set line coding to %d baud", baud)
				dev.HostSetLineCoding(baud)
			}
			last = baud
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
