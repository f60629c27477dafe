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

package process

import (
	"fmt"
	"io"
	"time"

	"gvisor.dev/mpboard/pkg/log"
)

// FaultAction is the kernel's response to a process fault.
type FaultAction int

// Fault actions.
const (
	// ActionStop leaves the process in the Faulted state.
	ActionStop FaultAction = iota

	// ActionRestart starts a fresh instance of the program.
	ActionRestart

	// ActionPanic panics the kernel.
	ActionPanic
)

// String implements fmt.Stringer.
func (a FaultAction) String() string {
	switch a {
	case ActionStop:
		return "stop"
	case ActionRestart:
		return "restart"
	case ActionPanic:
		return "panic"
	default:
		return fmt.Sprintf("FaultAction(%d)", int(a))
	}
}

// FaultPolicy decides what happens to a faulted process.
type FaultPolicy interface {
	Action(p *Process) FaultAction
}

// PanicFaultPolicy panics the kernel on any process fault.
type PanicFaultPolicy struct{}

// Action implements FaultPolicy.Action.
func (PanicFaultPolicy) Action(*Process) FaultAction { return ActionPanic }

// faultLog limits fault diagnostics so that a crash-looping application
// cannot flood the log.
var faultLog = log.BasicRateLimitedLogger(time.Second)

// StopWithDebugFaultPolicy stops the faulted process and writes its
// description to Out.
type StopWithDebugFaultPolicy struct {
	Printer TextPrinter
	Out     io.Writer
}

// Action implements FaultPolicy.Action.
func (s *StopWithDebugFaultPolicy) Action(p *Process) FaultAction {
	faultLog.Warningf("Process %q faulted: %v", p.name, p.lastErr)
	if s.Out != nil {
		s.Printer.Print(s.Out, p)
	}
	return ActionStop
}

// RestartFaultPolicy restarts a faulted process until it has been restarted
// Threshold times, after which the process is stopped.
type RestartFaultPolicy struct {
	Threshold int
}

// Action implements FaultPolicy.Action.
func (r RestartFaultPolicy) Action(p *Process) FaultAction {
	if p.restartCount >= r.Threshold {
		faultLog.Warningf("Process %q exceeded %d restarts, stopping", p.name, r.Threshold)
		return ActionStop
	}
	return ActionRestart
}

// ApplyFault runs policy for a process that has just faulted with err and
// carries out the decision. ActionPanic is returned to the caller, which
// owns the panic.
func ApplyFault(policy FaultPolicy, p *Process, err error) FaultAction {
	p.Fault(err)
	a := policy.Action(p)
	if a == ActionRestart {
		p.restart()
	}
	return a
}
