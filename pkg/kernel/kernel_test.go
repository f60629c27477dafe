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
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/physic"

	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/arch/cortexm4"
	"gvisor.dev/mpboard/pkg/kernel/capabilities"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// fakeChip has no interrupts unless pending is set.
type fakeChip struct {
	pending  int
	serviced int
	sleeps   int
	onIRQ    func()
}

func (c *fakeChip) ServicePendingInterrupts() {
	c.serviced++
	c.pending = 0
	if c.onIRQ != nil {
		c.onIRQ()
	}
}

func (c *fakeChip) HasPendingInterrupts() bool { return c.pending > 0 }
func (c *fakeChip) Sleep()                     { c.sleeps++ }
func (c *fakeChip) WriteState(w io.Writer)     { io.WriteString(w, "fake chip\n") }

// lookupTable is a map-backed DriverLookup.
type lookupTable map[tock.DriverNum]Driver

func (l lookupTable) Lookup(num tock.DriverNum) (Driver, bool) {
	d, ok := l[num]
	return d, ok
}

// denyFilter denies commands to one driver.
type denyFilter struct {
	driver tock.DriverNum
}

func (f denyFilter) Filter(_ *process.Process, sc process.Syscall) error {
	if sc.Driver == f.driver {
		return tock.RESERVE
	}
	return nil
}

type testResources struct {
	lookup DriverLookup
	filter SyscallFilter
	fault  process.FaultPolicy
	sched  Scheduler
	timer  SchedulerTimer
}

func (r *testResources) SyscallDriverLookup() DriverLookup            { return r.lookup }
func (r *testResources) SyscallFilter() SyscallFilter                 { return r.filter }
func (r *testResources) ProcessFault() process.FaultPolicy            { return r.fault }
func (r *testResources) Scheduler() Scheduler                         { return r.sched }
func (r *testResources) SchedulerTimer() SchedulerTimer               { return r.timer }
func (r *testResources) Watchdog() Watchdog                           { return NoWatchdog{} }
func (r *testResources) ContextSwitchCallback() ContextSwitchCallback { return NoContextSwitch{} }

// echoDriver returns its first argument and panics on command 99.
type echoDriver struct {
	calls int
}

func (d *echoDriver) Command(cmd, arg1, _ uint32, _ process.ID) tock.CommandReturn {
	d.calls++
	if cmd == 99 {
		panic("driver bug")
	}
	return tock.SuccessU32(arg1)
}

const echoNum tock.DriverNum = 0x7000

type harness struct {
	k    *Kernel
	res  *testResources
	chip *fakeChip
	ipc  *IPC
}

func newHarness(t *testing.T, iterations uint64, apps ...process.App) *harness {
	t.Helper()
	procs := process.NewArray(4)
	if _, err := process.LoadSequential(procs,
		process.Region{Start: 0x40000, Data: make([]byte, 4096)},
		process.Region{Start: 0x20000000, Data: make([]byte, 4096)}, apps); err != nil {
		t.Fatalf("LoadSequential: %v", err)
	}
	k := New(procs, Options{MaxIterations: iterations})
	ipc := NewIPC(k, capabilities.NewMemoryAllocation())
	return &harness{
		k: k,
		res: &testResources{
			lookup: lookupTable{echoNum: &echoDriver{}, tock.DriverIPC: ipc},
			filter: AllowAllSyscalls{},
			fault:  NoProcessFault{},
			sched:  process.NewRoundRobin(procs),
			timer:  cortexm4.NewWithCalibration(64 * physic.MegaHertz),
		},
		chip: &fakeChip{},
		ipc:  ipc,
	}
}

func (h *harness) loop(t *testing.T) error {
	t.Helper()
	return h.k.Loop(context.Background(), h.res, h.chip, h.ipc, capabilities.NewMainLoop())
}

func app(name string, fn func(sys process.Syscalls) (process.Action, error)) process.App {
	return process.App{Name: name, New: func() process.Program { return process.ProgramFunc(fn) }}
}

func TestLoopRequiresCapability(t *testing.T) {
	h := newHarness(t, 1)
	defer func() {
		if recover() == nil {
			t.Errorf("Loop with nil capability did not panic")
		}
	}()
	h.k.Loop(context.Background(), h.res, h.chip, h.ipc, nil)
}

func TestCommandDispatch(t *testing.T) {
	var got []tock.CommandReturn
	h := newHarness(t, 1, app("caller", func(sys process.Syscalls) (process.Action, error) {
		got = append(got,
			sys.Command(echoNum, 1, 42, 0),
			sys.Command(0x7001, 1, 42, 0),
			sys.Command(tock.DriverIPC, tock.CommandExists, 0, 0),
			sys.AllowReadOnly(echoNum, 0, nil),
			sys.Subscribe(0x7001, 0, func(a, b, c uint32) {}),
		)
		return process.Exit, nil
	}))
	if err := h.loop(t); err != nil {
		t.Fatalf("Loop: %v", err)
	}
	want := []tock.CommandReturn{
		tock.SuccessU32(42),
		tock.Failure(tock.NODEVICE),
		tock.Success(),
		tock.Failure(tock.NOSUPPORT),
		tock.Failure(tock.NODEVICE),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("syscall results mismatch (-want +got):\n%s", diff)
	}
	if p := h.k.Processes().Get(0); p.State() != process.Terminated {
		t.Errorf("state after exit = %v, want %v", p.State(), process.Terminated)
	}
}

func TestSyscallFilter(t *testing.T) {
	var got tock.CommandReturn
	h := newHarness(t, 1, app("caller", func(sys process.Syscalls) (process.Action, error) {
		got = sys.Command(echoNum, 1, 42, 0)
		return process.Exit, nil
	}))
	h.res.filter = denyFilter{driver: echoNum}
	if err := h.loop(t); err != nil {
		t.Fatalf("Loop: %v", err)
	}
	if diff := cmp.Diff(tock.Failure(tock.RESERVE), got); diff != "" {
		t.Errorf("filtered command mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessFaultStopsProcess(t *testing.T) {
	steps := 0
	h := newHarness(t, 5,
		app("crashy", func(process.Syscalls) (process.Action, error) {
			return process.Continue, errors.New("bus fault")
		}),
		app("steady", func(process.Syscalls) (process.Action, error) {
			steps++
			return process.Continue, nil
		}))
	if err := h.loop(t); err != nil {
		t.Fatalf("Loop: %v", err)
	}
	crashy := h.k.Processes().ByName("crashy")
	if crashy.State() != process.Faulted {
		t.Errorf("crashy state = %v, want %v", crashy.State(), process.Faulted)
	}
	if steps == 0 {
		t.Errorf("steady process never ran after the fault")
	}
}

func TestProgramPanicIsFault(t *testing.T) {
	h := newHarness(t, 1, app("crashy", func(process.Syscalls) (process.Action, error) {
		var m map[string]int
		m["x"] = 1
		return process.Continue, nil
	}))
	if err := h.loop(t); err != nil {
		t.Fatalf("Loop: %v", err)
	}
	p := h.k.Processes().ByName("crashy")
	if p.State() != process.Faulted || !strings.Contains(p.LastFault().Error(), "program panic") {
		t.Errorf("state %v fault %v, want Faulted by program panic", p.State(), p.LastFault())
	}
}

func TestKernelPanicRunsHandler(t *testing.T) {
	for _, tc := range []struct {
		name  string
		app   process.App
		fault process.FaultPolicy
	}{
		{
			name: "driver panic",
			app: app("a", func(sys process.Syscalls) (process.Action, error) {
				sys.Command(echoNum, 99, 0, 0)
				return process.Exit, nil
			}),
			fault: NoProcessFault{},
		},
		{
			name: "panic fault policy",
			app: app("a", func(process.Syscalls) (process.Action, error) {
				return process.Continue, errors.New("fault")
			}),
			fault: process.PanicFaultPolicy{},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 3, tc.app)
			h.res.fault = tc.fault
			var got any
			h.k.SetPanicHandler(func(v any) { got = v })
			if err := h.loop(t); !errors.Is(err, ErrHalted) {
				t.Errorf("Loop = %v, want %v", err, ErrHalted)
			}
			if got == nil {
				t.Errorf("panic handler not called")
			}
		})
	}
}

func TestTimeslicePreemption(t *testing.T) {
	h := newHarness(t, 2, app("spinner", func(process.Syscalls) (process.Action, error) {
		return process.Continue, nil
	}))
	if err := h.loop(t); err != nil {
		t.Fatalf("Loop: %v", err)
	}
	st := h.k.Processes().Get(0).Stats()
	if st.TimesliceExpirations != 2 {
		t.Errorf("TimesliceExpirations = %d, want 2", st.TimesliceExpirations)
	}
}

func TestUpcallWakesProcess(t *testing.T) {
	var upcalls []uint32
	subscribed := false
	h := newHarness(t, 10, app("waiter", func(sys process.Syscalls) (process.Action, error) {
		if !subscribed {
			sys.Subscribe(echoNum, 0, func(a, _, _ uint32) { upcalls = append(upcalls, a) })
			subscribed = true
		}
		return process.Yield, nil
	}))
	g := h.k.CreateGrant(echoNum, capabilities.NewMemoryAllocation())
	fired := false
	h.chip.onIRQ = func() {
		if !fired {
			fired = true
			g.Schedule(process.ID{Index: 0, Unique: 1}, 0, 7, 0, 0)
		}
	}
	h.chip.pending = 1
	if err := h.loop(t); err != nil {
		t.Fatalf("Loop: %v", err)
	}
	if diff := cmp.Diff([]uint32{7}, upcalls); diff != "" {
		t.Errorf("upcalls mismatch (-want +got):\n%s", diff)
	}
	if h.chip.sleeps == 0 {
		t.Errorf("kernel never slept while all processes waited")
	}
	if diff := cmp.Diff([]tock.DriverNum{tock.DriverIPC, echoNum}, h.k.Grants()); diff != "" {
		t.Errorf("grants mismatch (-want +got):\n%s", diff)
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	h := newHarness(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.k.Loop(ctx, h.res, h.chip, h.ipc, capabilities.NewMainLoop()); !errors.Is(err, context.Canceled) {
		t.Errorf("Loop = %v, want %v", err, context.Canceled)
	}
}

func TestIPC(t *testing.T) {
	var serviceCalls [][2]uint32
	clientDone := false
	h := newHarness(t, 20,
		app("svc", func(sys process.Syscalls) (process.Action, error) {
			sys.Subscribe(tock.DriverIPC, 0, func(from, n, _ uint32) {
				serviceCalls = append(serviceCalls, [2]uint32{from, n})
			})
			return process.Yield, nil
		}),
		app("client", func(sys process.Syscalls) (process.Action, error) {
			if clientDone {
				return process.Yield, nil
			}
			clientDone = true
			if r := sys.AllowReadOnly(tock.DriverIPC, 0, []byte("svc")); !r.IsSuccess() {
				return process.Exit, errors.New("allow name failed")
			}
			r := sys.Command(tock.DriverIPC, 1, 0, 0)
			if !r.IsSuccess() {
				return process.Exit, errors.New("discover failed")
			}
			sys.AllowReadWrite(tock.DriverIPC, r.R1+1, make([]byte, 16))
			sys.Command(tock.DriverIPC, 2, r.R1, 0)
			return process.Yield, nil
		}))
	if err := h.loop(t); err != nil {
		t.Fatalf("Loop: %v", err)
	}
	if diff := cmp.Diff([][2]uint32{{1, 16}}, serviceCalls); diff != "" {
		t.Errorf("service notifications mismatch (-want +got):\n%s", diff)
	}
	if got := len(h.ipc.Shared(h.k.Processes().Get(0).ID(), 1)); got != 16 {
		t.Errorf("shared buffer length = %d, want 16", got)
	}
}
