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

// Package process contains the process abstraction run by the kernel: the
// fixed-capacity process array, per-process upcall queues, fault policies,
// the sequential loader and the round-robin scheduler.
package process

import (
	"errors"
	"fmt"

	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/checksum"
	"gvisor.dev/mpboard/pkg/kernel/capabilities"
)

const (
	// TaskQueueLen is the number of upcalls that may be pending for a
	// single process. Further upcalls are dropped and counted.
	TaskQueueLen = 10

	// MaxSubscriptions is the number of (driver, upcall) pairs a single
	// process may subscribe to.
	MaxSubscriptions = 16
)

// ShortID is a compact, non-zero application identity derived from the
// application name.
type ShortID uint32

// FixedFromName derives the ShortID of an application name. It returns false
// if the name hashes to zero, which is not a valid identity.
func FixedFromName(name string) (ShortID, bool) {
	id := ShortID(checksum.String(name))
	return id, id != 0
}

// String implements fmt.Stringer.
func (s ShortID) String() string {
	return fmt.Sprintf("0x%08x", uint32(s))
}

// ID identifies a process slot. Index is the slot in the process array and
// Unique distinguishes successive occupants of the same slot.
type ID struct {
	Index  int
	Unique uint32
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return fmt.Sprintf("%d.%d", id.Index, id.Unique)
}

// State is the scheduling state of a process.
type State int

// Process states.
const (
	Running State = iota
	Yielded
	Stopped
	Faulted
	Terminated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Running:
		return "Running"
	case Yielded:
		return "Yielded"
	case Stopped:
		return "Stopped"
	case Faulted:
		return "Faulted"
	case Terminated:
		return "Terminated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Action is what a program asks of the kernel after one step.
type Action int

// Program actions.
const (
	// Continue means the program has more work and should keep running.
	Continue Action = iota

	// Yield means the program waits for an upcall.
	Yield

	// Exit means the program has finished.
	Exit
)

// Upcall is a function registered by a process and invoked by the kernel
// when a driver schedules the corresponding event.
type Upcall func(a, b, c uint32)

// Syscalls is the system call interface the kernel presents to a running
// program.
type Syscalls interface {
	// Command invokes a driver command.
	Command(driver tock.DriverNum, cmd, arg1, arg2 uint32) tock.CommandReturn

	// AllowReadOnly shares buf with a driver for reading.
	AllowReadOnly(driver tock.DriverNum, num uint32, buf []byte) tock.CommandReturn

	// AllowReadWrite shares buf with a driver for reading and writing.
	AllowReadWrite(driver tock.DriverNum, num uint32, buf []byte) tock.CommandReturn

	// Subscribe registers fn for the driver's upcall num. A nil fn
	// unsubscribes.
	Subscribe(driver tock.DriverNum, num uint32, fn Upcall) tock.CommandReturn
}

// Program is the code of an application. Step runs the program until it
// yields, exits or has done one unit of work. A non-nil error is a process
// fault.
type Program interface {
	Step(sys Syscalls) (Action, error)
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(sys Syscalls) (Action, error)

// Step implements Program.Step.
func (f ProgramFunc) Step(sys Syscalls) (Action, error) {
	return f(sys)
}

// SyscallKind identifies a class of system call.
type SyscallKind int

// System call classes.
const (
	SyscallNone SyscallKind = iota
	SyscallCommand
	SyscallAllowReadOnly
	SyscallAllowReadWrite
	SyscallSubscribe
	SyscallYield
	SyscallExit
)

var syscallNames = [...]string{"none", "command", "allow-ro", "allow-rw", "subscribe", "yield", "exit"}

// String implements fmt.Stringer.
func (k SyscallKind) String() string {
	if int(k) < len(syscallNames) {
		return syscallNames[k]
	}
	return fmt.Sprintf("SyscallKind(%d)", int(k))
}

// Syscall records a system call for debugging.
type Syscall struct {
	Kind   SyscallKind
	Driver tock.DriverNum
	Num    uint32
}

// String implements fmt.Stringer.
func (s Syscall) String() string {
	if s.Kind == SyscallNone {
		return "none"
	}
	if s.Kind == SyscallYield || s.Kind == SyscallExit {
		return s.Kind.String()
	}
	return fmt.Sprintf("%v { driver: %v, num: %d }", s.Kind, s.Driver, s.Num)
}

type pendingUpcall struct {
	driver  tock.DriverNum
	num     uint32
	a, b, c uint32
}

type subscription struct {
	used   bool
	driver tock.DriverNum
	num    uint32
	fn     Upcall
}

// ErrUpcallQueueFull is returned when a process's upcall queue is full.
var ErrUpcallQueueFull = errors.New("upcall queue full")

// Region is a contiguous range of board memory given to a process.
type Region struct {
	// Start is the address of the first byte.
	Start uint32

	// Data is the backing storage.
	Data []byte
}

// End returns the address one past the last byte.
func (r Region) End() uint32 {
	return r.Start + uint32(len(r.Data))
}

// Process is one loaded application.
type Process struct {
	id      ID
	name    string
	shortID ShortID
	newProg func() Program
	program Program
	state   State

	flash  Region
	memory Region

	queue    [TaskQueueLen]pendingUpcall
	qhead    int
	qlen     int
	subs     [MaxSubscriptions]subscription
	lastCall Syscall
	lastErr  error

	syscallCount   int
	droppedUpcalls int
	restartCount   int
	timesliceExp   int
	faultCount     int
}

// New returns a process occupying the given slot. newProg is called now and
// again on every restart.
func New(id ID, name string, shortID ShortID, newProg func() Program, flash, memory Region) *Process {
	return &Process{
		id:      id,
		name:    name,
		shortID: shortID,
		newProg: newProg,
		program: newProg(),
		flash:   flash,
		memory:  memory,
	}
}

// ID returns the process identifier.
func (p *Process) ID() ID { return p.id }

// Name returns the application name.
func (p *Process) Name() string { return p.name }

// ShortID returns the application identity.
func (p *Process) ShortID() ShortID { return p.shortID }

// State returns the scheduling state.
func (p *Process) State() State { return p.state }

// Flash returns the process flash region.
func (p *Process) Flash() Region { return p.flash }

// Memory returns the process RAM region.
func (p *Process) Memory() Region { return p.memory }

// LastFault returns the error that caused the most recent fault.
func (p *Process) LastFault() error { return p.lastErr }

// Alive returns true if the process can still be scheduled or woken.
func (p *Process) Alive() bool {
	return p.state == Running || p.state == Yielded
}

// Ready returns true if the scheduler may run the process now.
func (p *Process) Ready() bool {
	return p.state == Running || (p.state == Yielded && p.qlen > 0)
}

// Step runs one step of the program. Pending upcalls are delivered first if
// the process was waiting for them.
func (p *Process) Step(sys Syscalls) (Action, error) {
	if p.state == Yielded {
		p.deliverUpcalls()
		p.state = Running
	}
	return p.program.Step(sys)
}

// Yield marks the process as waiting for an upcall.
func (p *Process) Yield() {
	p.RecordSyscall(Syscall{Kind: SyscallYield})
	if p.state == Running {
		p.state = Yielded
	}
}

// Exit terminates the process.
func (p *Process) Exit() {
	p.RecordSyscall(Syscall{Kind: SyscallExit})
	p.terminate()
}

// Fault records err and moves the process to the Faulted state.
func (p *Process) Fault(err error) {
	p.lastErr = err
	p.faultCount++
	p.state = Faulted
}

// TimesliceExpired records a preemption.
func (p *Process) TimesliceExpired() {
	p.timesliceExp++
}

// RecordSyscall records the most recent system call.
func (p *Process) RecordSyscall(s Syscall) {
	p.syscallCount++
	p.lastCall = s
}

// Subscribe registers fn for (driver, num). It returns false if the
// subscription table is full.
func (p *Process) Subscribe(driver tock.DriverNum, num uint32, fn Upcall) bool {
	free := -1
	for i := range p.subs {
		s := &p.subs[i]
		if s.used && s.driver == driver && s.num == num {
			if fn == nil {
				*s = subscription{}
			} else {
				s.fn = fn
			}
			return true
		}
		if !s.used && free < 0 {
			free = i
		}
	}
	if fn == nil {
		return true
	}
	if free < 0 {
		return false
	}
	p.subs[free] = subscription{used: true, driver: driver, num: num, fn: fn}
	return true
}

// EnqueueUpcall queues an upcall for delivery on the next yield.
func (p *Process) EnqueueUpcall(driver tock.DriverNum, num uint32, a, b, c uint32) error {
	if !p.Alive() {
		return fmt.Errorf("process %q is %v", p.name, p.state)
	}
	if p.qlen == len(p.queue) {
		p.droppedUpcalls++
		return ErrUpcallQueueFull
	}
	p.queue[(p.qhead+p.qlen)%len(p.queue)] = pendingUpcall{driver: driver, num: num, a: a, b: b, c: c}
	p.qlen++
	return nil
}

// PendingUpcalls returns the number of queued upcalls.
func (p *Process) PendingUpcalls() int { return p.qlen }

func (p *Process) deliverUpcalls() {
	for p.qlen > 0 {
		u := p.queue[p.qhead]
		p.qhead = (p.qhead + 1) % len(p.queue)
		p.qlen--
		for i := range p.subs {
			s := &p.subs[i]
			if s.used && s.driver == u.driver && s.num == u.num {
				s.fn(u.a, u.b, u.c)
				break
			}
		}
	}
}

func (p *Process) clearQueues() {
	p.qhead, p.qlen = 0, 0
	p.subs = [MaxSubscriptions]subscription{}
}

func (p *Process) terminate() {
	p.clearQueues()
	p.state = Terminated
}

// restart replaces the program with a fresh instance.
func (p *Process) restart() {
	p.clearQueues()
	p.id.Unique++
	p.program = p.newProg()
	p.restartCount++
	p.state = Running
}

// Stop suspends a running process.
func (p *Process) Stop(c capabilities.ProcessManagement) {
	capabilities.Check(c, capabilities.KindProcessManagement)
	if p.Alive() {
		p.state = Stopped
	}
}

// Resume makes a stopped process runnable again.
func (p *Process) Resume(c capabilities.ProcessManagement) {
	capabilities.Check(c, capabilities.KindProcessManagement)
	if p.state == Stopped {
		p.state = Running
	}
}

// Terminate ends the process without restarting it.
func (p *Process) Terminate(c capabilities.ProcessManagement) {
	capabilities.Check(c, capabilities.KindProcessManagement)
	p.terminate()
}

// Restart starts a fresh instance of the program in the same slot.
func (p *Process) Restart(c capabilities.ProcessManagement) {
	capabilities.Check(c, capabilities.KindProcessManagement)
	p.restart()
}

// Stats are process counters for debugging output.
type Stats struct {
	Syscalls             int
	DroppedUpcalls       int
	Restarts             int
	TimesliceExpirations int
	Faults               int
	PendingUpcalls       int
	LastSyscall          Syscall
}

// Stats returns a snapshot of the process counters.
func (p *Process) Stats() Stats {
	return Stats{
		Syscalls:             p.syscallCount,
		DroppedUpcalls:       p.droppedUpcalls,
		Restarts:             p.restartCount,
		TimesliceExpirations: p.timesliceExp,
		Faults:               p.faultCount,
		PendingUpcalls:       p.qlen,
		LastSyscall:          p.lastCall,
	}
}
