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
	"flag"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"gvisor.dev/mpboard/mpboard/apps"
	"gvisor.dev/mpboard/mpboard/boot"
	"gvisor.dev/mpboard/mpboard/config"
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/log"
)

var (
	errReset = errors.New("system reset")
	errHalt  = errors.New("system halted")
)

// Boot implements subcommands.Command for the "boot" command.
type Boot struct {
	// apps is a comma separated list of demo applications to load.
	apps string

	// pty exposes the USB serial port as a host pseudo-terminal.
	pty bool

	// console is a host serial device to attach the USB serial port to.
	console string

	// attachTimeout bounds how long to wait for console to appear.
	attachTimeout time.Duration
}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string {
	return "boot the board and run applications"
}

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string {
	return `boot [flags] - boot the board, load the demo applications and run
the kernel main loop until interrupted or --iterations is reached.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Boot) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.apps, "apps", "", "comma separated applications to load (default all).")
	f.BoolVar(&b.pty, "pty", false, "expose the USB serial port as a pseudo-terminal.")
	f.StringVar(&b.console, "console", "", "host serial device to attach the USB serial port to.")
	f.DurationVar(&b.attachTimeout, "attach-timeout", 10*time.Second, "how long to wait for --console to appear.")
}

// Execute implements subcommands.Command.Execute.
func (b *Boot) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	if b.pty && b.console != "" {
		return Errorf("--pty and --console are mutually exclusive")
	}
	conf := args[0].(*config.Config)

	list := apps.All()
	if b.apps != "" {
		var ok bool
		if list, ok = apps.ByName(strings.Split(b.apps, ",")...); !ok {
			return Errorf("unknown application in %q", b.apps)
		}
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	board, err := boot.Start(conf, boot.NewSlots(), boot.Options{
		Apps:  list,
		Reset: func() { cancel(errReset) },
		Halt:  func() { cancel(errHalt) },
	})
	if err != nil {
		return Errorf("error booting board: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	usb := board.Peripherals.Usbd
	switch {
	case b.pty:
		p, err := openPTY()
		if err != nil {
			return Errorf("%v", err)
		}
		Infof("USB serial port at %s", p.Name())
		b.attach(gctx, g, p, usb)
		g.Go(func() error { return watchLineCoding(gctx, p.ptmx, usb, 100*time.Millisecond) })
	case b.console != "":
		c, err := openConsole(gctx, b.console, b.attachTimeout)
		if err != nil {
			return Errorf("%v", err)
		}
		b.attach(gctx, g, c, usb)
	default:
		usb.SetHost(os.Stdout)
	}
	board.Peripherals.Power.SetUSBSupply(true)

	g.Go(func() error {
		err := board.Run(gctx)
		cancel(nil)
		return err
	})
	g.Go(func() error { return watchSignals(gctx, cancel) })

	err = g.Wait()
	switch cause := context.Cause(ctx); {
	case errors.Is(cause, errReset) && board.Peripherals.Power.GPRegRet() == boot.BootloaderMagic:
		Infof("Board reset into the bootloader")
		return subcommands.ExitSuccess
	case errors.Is(cause, errReset):
		Infof("Board reset")
		return subcommands.ExitSuccess
	case errors.Is(err, kernel.ErrHalted) || errors.Is(cause, errHalt):
		return Errorf("board halted: %v", err)
	case err != nil && !errors.Is(err, context.Canceled):
		return Errorf("%v", err)
	}
	log.Infof("Main loop finished after %d iterations with %d processes loaded", board.Kernel.Iterations(), board.Loaded)
	return subcommands.ExitSuccess
}

// attach connects port to the USB serial device and closes it when ctx is
// done.
func (*Boot) attach(ctx context.Context, g *errgroup.Group, port hostPort, usb cdcHost) {
	usb.SetHost(port)
	g.Go(func() error { return pumpInput(ctx, port, usb) })
	g.Go(func() error {
		<-ctx.Done()
		usb.SetHost(nil)
		return port.Close()
	})
}

// watchSignals cancels the board on SIGINT or SIGTERM.
func watchSignals(ctx context.Context, cancel context.CancelCauseFunc) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)
	defer signal.Stop(ch)
	select {
	case s := <-ch:
		log.Infof("Received %v, stopping", s)
		cancel(context.Canceled)
	case <-ctx.Done():
	}
	return nil
}
