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

package kernel

import (
	"io"
	"time"

	"gvisor.dev/mpboard/pkg/kernel/process"
)

// SyscallFilter decides whether a process may make a system call. A
// non-nil error denies the call; if it is a tock.ErrorCode it is returned
// to the process, otherwise FAIL is.
type SyscallFilter interface {
	Filter(p *process.Process, sc process.Syscall) error
}

// Scheduler chooses which process runs next.
type Scheduler interface {
	// Next returns the next process to run and its timeslice, or false if
	// no process is ready.
	Next() (*process.Process, time.Duration, bool)

	// Result reports how the process returned by Next stopped.
	Result(p *process.Process, reason process.StopReason, remaining time.Duration)
}

// SchedulerTimer bounds the time a process runs.
type SchedulerTimer interface {
	Start(d time.Duration)
	Reset()
	Arm()
	Disarm()

	// Remaining returns the time left, and false once expired.
	Remaining() (time.Duration, bool)

	// Elapse accounts d of execution against the timer and returns true
	// if it expired with the interrupt armed.
	Elapse(d time.Duration) bool
}

// Watchdog is tickled once per loop iteration.
type Watchdog interface {
	Setup()
	Tickle()
	Suspend()
	Resume()
}

// ContextSwitchCallback is notified before a process runs.
type ContextSwitchCallback interface {
	ContextSwitch(p *process.Process)
}

// Resources is the set of policy objects a board lends to the kernel. Every
// accessor returns the same object for the lifetime of the board.
type Resources interface {
	SyscallDriverLookup() DriverLookup
	SyscallFilter() SyscallFilter
	ProcessFault() process.FaultPolicy
	Scheduler() Scheduler
	SchedulerTimer() SchedulerTimer
	Watchdog() Watchdog
	ContextSwitchCallback() ContextSwitchCallback
}

// Chip owns the interrupt controller and the core's sleep state.
type Chip interface {
	// ServicePendingInterrupts runs the handlers of every pending
	// interrupt.
	ServicePendingInterrupts()

	// HasPendingInterrupts returns true if any interrupt is pending.
	HasPendingInterrupts() bool

	// Sleep idles the core until an interrupt is pending.
	Sleep()

	// WriteState writes a description of the chip state for debugging.
	WriteState(w io.Writer)
}

// AllowAllSyscalls permits every system call.
type AllowAllSyscalls struct{}

// Filter implements SyscallFilter.Filter.
func (AllowAllSyscalls) Filter(*process.Process, process.Syscall) error { return nil }

// NoWatchdog is a Watchdog that does nothing.
type NoWatchdog struct{}

// Setup implements Watchdog.Setup.
func (NoWatchdog) Setup() {}

// Tickle implements Watchdog.Tickle.
func (NoWatchdog) Tickle() {}

// Suspend implements Watchdog.Suspend.
func (NoWatchdog) Suspend() {}

// Resume implements Watchdog.Resume.
func (NoWatchdog) Resume() {}

// NoContextSwitch ignores context switches.
type NoContextSwitch struct{}

// ContextSwitch implements ContextSwitchCallback.ContextSwitch.
func (NoContextSwitch) ContextSwitch(*process.Process) {}

// NoProcessFault stops a faulted process without diagnostics.
type NoProcessFault struct{}

// Action implements process.FaultPolicy.Action.
func (NoProcessFault) Action(*process.Process) process.FaultAction { return process.ActionStop }
