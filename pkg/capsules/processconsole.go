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

package capsules

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gvisor.dev/mpboard/pkg/hal"
	"gvisor.dev/mpboard/pkg/kernel/capabilities"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// CommandBufferLen is the longest command line the process console
// accepts.
const CommandBufferLen = 64

const consolePrompt = "tock$ "

// ErrFaultRequested is the fault recorded when a fault is injected from the
// process console.
var ErrFaultRequested = errors.New("fault requested from the process console")

// StateWriter writes a description of some kernel object.
type StateWriter interface {
	WriteState(w io.Writer)
}

// ProcessConsoleConfig is what the process console operates on.
type ProcessConsoleConfig struct {
	Processes *process.Array
	Printer   process.TextPrinter
	Fault     process.FaultPolicy

	// Chip is described by the kernel command.
	Chip StateWriter

	// Reset, if set, is offered as the reset command.
	Reset func()

	// Bootloader, if set, is offered as the bootloader command.
	Bootloader func()
}

// ProcessConsole is an interactive kernel shell on a UART for inspecting
// and controlling processes.
type ProcessConsole struct {
	uart    hal.UART
	conf    ProcessConsoleConfig
	manage  capabilities.ProcessManagement
	line    [CommandBufferLen]byte
	n       int
	running bool
}

// NewProcessConsole returns a console on uart. It is silent until Start.
func NewProcessConsole(uart hal.UART, conf ProcessConsoleConfig, c capabilities.ProcessManagement) *ProcessConsole {
	capabilities.Check(c, capabilities.KindProcessManagement)
	pc := &ProcessConsole{uart: uart, conf: conf, manage: c}
	uart.SetReceiveClient(pc.receive)
	return pc
}

// Write implements io.Writer. Output the UART does not accept is dropped.
func (pc *ProcessConsole) Write(p []byte) (int, error) {
	_, err := pc.uart.Transmit(p)
	return len(p), err
}

// Start prints the banner and the first prompt.
func (pc *ProcessConsole) Start() {
	if pc.running {
		return
	}
	pc.running = true
	fmt.Fprintf(pc, "Starting process console\n%s", consolePrompt)
}

// Running returns true after Start.
func (pc *ProcessConsole) Running() bool { return pc.running }

func (pc *ProcessConsole) receive(p []byte) {
	if !pc.running {
		return
	}
	for _, b := range p {
		switch b {
		case '\r', '\n':
			io.WriteString(pc, "\n")
			line := string(pc.line[:pc.n])
			pc.n = 0
			pc.Execute(line)
			io.WriteString(pc, consolePrompt)
		case 0x08, 0x7f:
			if pc.n > 0 {
				pc.n--
				io.WriteString(pc, "\b \b")
			}
		default:
			if b < ' ' || pc.n == len(pc.line) {
				continue
			}
			pc.line[pc.n] = b
			pc.n++
			pc.Write([]byte{b})
		}
	}
}

// Execute runs one command line.
func (pc *ProcessConsole) Execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "help":
		cmds := "help status list stop start fault boot terminate process kernel panic"
		if pc.conf.Reset != nil {
			cmds += " reset"
		}
		if pc.conf.Bootloader != nil {
			cmds += " bootloader"
		}
		fmt.Fprintf(pc, "Welcome to the process console.\nValid commands are: %s\n", cmds)
	case "status":
		pc.status()
	case "list":
		pc.conf.Printer.PrintSummary(pc, pc.conf.Processes)
	case "stop", "start", "fault", "boot", "terminate", "process":
		if len(args) != 1 {
			fmt.Fprintf(pc, "usage: %s <process name>\n", cmd)
			return
		}
		pc.control(cmd, args[0])
	case "kernel":
		fmt.Fprintf(pc, "Kernel: %d/%d process slots in use\n", pc.conf.Processes.Len(), pc.conf.Processes.Cap())
		if pc.conf.Chip != nil {
			pc.conf.Chip.WriteState(pc)
		}
	case "panic":
		panic("process console requested a kernel panic")
	case "reset":
		if pc.conf.Reset == nil {
			pc.unknown(cmd)
			return
		}
		io.WriteString(pc, "Resetting\n")
		pc.conf.Reset()
	case "bootloader":
		if pc.conf.Bootloader == nil {
			pc.unknown(cmd)
			return
		}
		io.WriteString(pc, "Entering bootloader\n")
		pc.conf.Bootloader()
	default:
		pc.unknown(cmd)
	}
}

func (pc *ProcessConsole) unknown(cmd string) {
	fmt.Fprintf(pc, "Valid commands are: help status list stop start fault boot terminate process kernel panic (got %q)\n", cmd)
}

func (pc *ProcessConsole) status() {
	var active, expirations int
	pc.conf.Processes.Each(func(p *process.Process) {
		if p.Alive() {
			active++
		}
		expirations += p.Stats().TimesliceExpirations
	})
	fmt.Fprintf(pc, "Total processes: %d\n", pc.conf.Processes.Len())
	fmt.Fprintf(pc, "Active processes: %d\n", active)
	fmt.Fprintf(pc, "Timeslice expirations: %d\n", expirations)
}

func (pc *ProcessConsole) control(cmd, name string) {
	p := pc.conf.Processes.ByName(name)
	if p == nil {
		fmt.Fprintf(pc, "Process %s not found\n", name)
		return
	}
	switch cmd {
	case "stop":
		p.Stop(pc.manage)
		fmt.Fprintf(pc, "Process %s stopped\n", name)
	case "start":
		p.Resume(pc.manage)
		fmt.Fprintf(pc, "Process %s resumed\n", name)
	case "fault":
		if !p.Alive() && p.State() != process.Stopped {
			fmt.Fprintf(pc, "Process %s is %v\n", name, p.State())
			return
		}
		if process.ApplyFault(pc.conf.Fault, p, ErrFaultRequested) == process.ActionPanic {
			panic(fmt.Sprintf("process %q had a fault: %v", name, ErrFaultRequested))
		}
		fmt.Fprintf(pc, "Process %s faulted\n", name)
	case "boot":
		if p.State() != process.Terminated && p.State() != process.Faulted {
			fmt.Fprintf(pc, "Process %s is %v\n", name, p.State())
			return
		}
		p.Restart(pc.manage)
		fmt.Fprintf(pc, "Process %s booted\n", name)
	case "terminate":
		p.Terminate(pc.manage)
		fmt.Fprintf(pc, "Process %s terminated\n", name)
	case "process":
		pc.conf.Printer.Print(pc, p)
	}
}
