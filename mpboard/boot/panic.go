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

package boot

import (
	"fmt"
	"io"
	"sync/atomic"

	"gvisor.dev/mpboard/pkg/hal"
	"gvisor.dev/mpboard/pkg/kernel/process"
	"gvisor.dev/mpboard/pkg/log"
)

// PanicState is the state of a PanicHook.
type PanicState int32

const (
	// Normal is the state before any panic.
	Normal PanicState = iota

	// Faulted is terminal.
	Faulted
)

// String implements fmt.Stringer.
func (s PanicState) String() string {
	switch s {
	case Normal:
		return "Normal"
	case Faulted:
		return "Faulted"
	default:
		return fmt.Sprintf("PanicState(%d)", int32(s))
	}
}

// PanicHook reports an unrecoverable kernel panic using only the boot
// slots, then halts. It runs at most once.
type PanicHook struct {
	slots *Slots
	halt  func()
	state atomic.Int32
}

// NewPanicHook returns a hook reading slots. halt is called last and
// normally does not return; it may be nil.
func NewPanicHook(slots *Slots, halt func()) *PanicHook {
	return &PanicHook{slots: slots, halt: halt}
}

// State returns the current state.
func (h *PanicHook) State() PanicState {
	return PanicState(h.state.Load())
}

// Handle is a kernel.PanicHandler.
func (h *PanicHook) Handle(v any) {
	if !h.state.CompareAndSwap(int32(Normal), int32(Faulted)) {
		// Panic while reporting a panic.
		return
	}
	log.Warningf("Kernel panic: %v", v)

	if cdc, ok := h.slots.CDC.Get(); ok {
		h.report(uartWriter{cdc}, v)
	}
	if h.halt != nil {
		h.halt()
	}
}

func (h *PanicHook) report(w io.Writer, v any) {
	fmt.Fprintf(w, "\r\n\r\npanicked at %v\r\n", v)
	if dw, ok := h.slots.DebugWriter.Get(); ok {
		if err := dw.Flush(); err != nil {
			fmt.Fprintf(w, "debug buffer lost: %v\r\n", err)
		}
	}
	if chip, ok := h.slots.Chip.Get(); ok {
		chip.WriteState(w)
	} else if power, ok := h.slots.Power.Get(); ok {
		fmt.Fprintf(w, "GPREGRET: %#02x\r\n", power.GPRegRet())
	}
	procs, ok := h.slots.Processes.Get()
	if !ok {
		return
	}
	printer, _ := h.slots.ProcessPrinter.Get()
	printer.PrintSummary(w, procs)
	procs.Each(func(p *process.Process) { printer.Print(w, p) })
}

// uartWriter writes to a UART, ignoring short writes.
type uartWriter struct {
	uart hal.UART
}

func (w uartWriter) Write(p []byte) (int, error) {
	if _, err := w.uart.Transmit(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
