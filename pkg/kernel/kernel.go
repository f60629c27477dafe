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
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gvisor.dev/mpboard/pkg/kernel/capabilities"
	"gvisor.dev/mpboard/pkg/kernel/process"
	"gvisor.dev/mpboard/pkg/log"
)

// DefaultStepCost is the virtual time charged to a process for one program
// step.
const DefaultStepCost = time.Millisecond

// ErrHalted is returned by Loop after the panic handler returns.
var ErrHalted = errors.New("kernel halted")

// PanicHandler is called with the recovered value when the kernel panics.
// It normally does not return.
type PanicHandler func(v any)

// Options configures a Kernel.
type Options struct {
	// StepCost is the virtual time charged per program step. Zero means
	// DefaultStepCost.
	StepCost time.Duration

	// MaxIterations stops Loop after this many iterations. Zero means no
	// limit.
	MaxIterations uint64
}

// Kernel runs processes.
type Kernel struct {
	procs    *process.Array
	stepCost time.Duration
	maxIter  uint64

	panicHandler atomic.Pointer[PanicHandler]
	iterations   atomic.Uint64
	grants       []*Grant
}

// New returns a kernel that runs the processes in procs.
func New(procs *process.Array, opts Options) *Kernel {
	k := &Kernel{
		procs:    procs,
		stepCost: opts.StepCost,
		maxIter:  opts.MaxIterations,
	}
	if k.stepCost == 0 {
		k.stepCost = DefaultStepCost
	}
	return k
}

// Processes returns the process array.
func (k *Kernel) Processes() *process.Array { return k.procs }

// Iterations returns the number of loop iterations run so far.
func (k *Kernel) Iterations() uint64 { return k.iterations.Load() }

// SetPanicHandler installs h as the panic handler.
func (k *Kernel) SetPanicHandler(h PanicHandler) {
	k.panicHandler.Store(&h)
}

// driverPanic wraps a panic raised by a driver so that it is not mistaken
// for a program fault.
type driverPanic struct {
	v any
}

// Loop runs the kernel main loop until ctx is cancelled or the iteration
// limit is reached. A panic anywhere in the loop is passed to the panic
// handler; if the handler returns, Loop returns ErrHalted.
func (k *Kernel) Loop(ctx context.Context, res Resources, chip Chip, ipc *IPC, c capabilities.MainLoop) (err error) {
	capabilities.Check(c, capabilities.KindMainLoop)
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		h := k.panicHandler.Load()
		if h == nil {
			panic(r)
		}
		(*h)(r)
		err = fmt.Errorf("%w: %v", ErrHalted, r)
	}()

	wd := res.Watchdog()
	wd.Setup()
	for k.maxIter == 0 || k.iterations.Load() < k.maxIter {
		if err := ctx.Err(); err != nil {
			return err
		}
		k.iterations.Add(1)
		if chip.HasPendingInterrupts() {
			chip.ServicePendingInterrupts()
		}
		p, slice, ok := res.Scheduler().Next()
		if !ok {
			if !chip.HasPendingInterrupts() {
				wd.Suspend()
				chip.Sleep()
				wd.Resume()
			}
			continue
		}
		k.run(res, chip, ipc, p, slice)
		wd.Tickle()
	}
	return nil
}

// run executes p until it yields, exits, faults, is preempted or is
// interrupted by a pending interrupt.
func (k *Kernel) run(res Resources, chip Chip, ipc *IPC, p *process.Process, slice time.Duration) {
	timer := res.SchedulerTimer()
	timer.Reset()
	timer.Start(slice)
	timer.Arm()
	res.ContextSwitchCallback().ContextSwitch(p)

	sys := &syscalls{res: res, p: p}
	reason := process.StopYielded
loop:
	for {
		if chip.HasPendingInterrupts() {
			reason = process.StopInterrupted
			break
		}
		action, err := k.step(p, sys)
		expired := timer.Elapse(k.stepCost)
		if err != nil {
			k.fault(res, ipc, p, err)
			break
		}
		switch action {
		case process.Yield:
			p.Yield()
			break loop
		case process.Exit:
			log.Debugf("Process %q exited", p.Name())
			p.Exit()
			if ipc != nil {
				ipc.release(p.ID())
			}
			break loop
		}
		if !p.Ready() {
			break
		}
		if expired {
			reason = process.StopTimesliceExpired
			break
		}
	}
	remaining, _ := timer.Remaining()
	timer.Disarm()
	timer.Reset()
	res.Scheduler().Result(p, reason, remaining)
}

// step runs one program step. A panic raised by the program itself is a
// process fault; a panic raised by a driver is a kernel panic.
func (k *Kernel) step(p *process.Process, sys *syscalls) (a process.Action, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if dp, ok := r.(driverPanic); ok {
			panic(dp.v)
		}
		err = fmt.Errorf("program panic: %v", r)
	}()
	return p.Step(sys)
}

func (k *Kernel) fault(res Resources, ipc *IPC, p *process.Process, err error) {
	switch process.ApplyFault(res.ProcessFault(), p, err) {
	case process.ActionPanic:
		panic(fmt.Sprintf("process %q had a fault: %v", p.Name(), err))
	case process.ActionStop:
		if ipc != nil {
			ipc.release(p.ID())
		}
	case process.ActionRestart:
		log.Infof("Restarted process %q after fault: %v", p.Name(), err)
	}
}
