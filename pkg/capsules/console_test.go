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
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/kernel/capabilities"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

func TestUartMux(t *testing.T) {
	uart := &fakeUART{}
	m := NewUartMux(uart, 115200)
	a, b, c := m.NewDevice("a"), m.NewDevice("b"), m.NewDevice("c")
	var gotA, gotB []byte
	a.SetReceiveClient(func(p []byte) { gotA = append(gotA, p...) })
	b.SetReceiveClient(func(p []byte) { gotB = append(gotB, p...) })

	a.Transmit([]byte("one "))
	c.Transmit([]byte("two"))
	if got := uart.tx.String(); got != "one two" {
		t.Errorf("uart output = %q", got)
	}
	if a.Written() != 4 || c.Written() != 3 || b.Written() != 0 {
		t.Errorf("written = %d, %d, %d", a.Written(), b.Written(), c.Written())
	}
	uart.rx([]byte("hi"))
	if string(gotA) != "hi" || string(gotB) != "hi" {
		t.Errorf("received %q and %q, want both %q", gotA, gotB, "hi")
	}
	if m.Baud() != 115200 {
		t.Errorf("baud = %d", m.Baud())
	}
}

func TestConsoleWrite(t *testing.T) {
	k, ps := newTestKernel(t, "a")
	uart := &fakeUART{}
	c := NewConsole(uart, grant(k, tock.DriverConsole))
	pid := ps[0].ID()
	rec := recordUpcalls(t, ps[0], tock.DriverConsole, consoleWriteDone)

	if got := c.Command(consolePutStr, 5, 0, pid); got != tock.Failure(tock.SIZE) {
		t.Errorf("putstr without buffer = %v", got)
	}
	c.AllowReadOnly(pid, 1, []byte("hello world"))
	if got := c.Command(consolePutStr, 5, 0, pid); got != tock.Success() {
		t.Errorf("putstr = %v", got)
	}
	if got := c.Command(consolePutStr, 100, 0, pid); got != tock.Success() {
		t.Errorf("long putstr = %v", got)
	}
	if got := uart.tx.String(); got != "hellohello world" {
		t.Errorf("output = %q", got)
	}
	want := []upcall{{Num: consoleWriteDone, A: 5}, {Num: consoleWriteDone, A: 11}}
	if diff := cmp.Diff(want, rec.deliver(t)); diff != "" {
		t.Errorf("upcalls mismatch (-want +got):\n%s", diff)
	}
}

func TestConsoleRead(t *testing.T) {
	k, ps := newTestKernel(t, "a", "b")
	uart := &fakeUART{}
	c := NewConsole(uart, grant(k, tock.DriverConsole))
	a, b := ps[0].ID(), ps[1].ID()
	recA := recordUpcalls(t, ps[0], tock.DriverConsole, consoleReadDone)
	recB := recordUpcalls(t, ps[1], tock.DriverConsole, consoleReadDone)

	bufA, bufB := make([]byte, 4), make([]byte, 4)
	c.AllowReadWrite(a, 1, bufA)
	c.AllowReadWrite(b, 1, bufB)
	if got := c.Command(consoleGetStr, 3, 0, a); got != tock.Success() {
		t.Fatalf("getnstr = %v", got)
	}
	if got := c.Command(consoleGetStr, 3, 0, a); got != tock.Failure(tock.BUSY) {
		t.Errorf("second getnstr = %v", got)
	}
	if got := c.Command(consoleGetStr, 8, 0, b); got != tock.Failure(tock.SIZE) {
		t.Errorf("oversized getnstr = %v", got)
	}
	c.Command(consoleGetStr, 4, 0, b)

	uart.rx([]byte("ab"))
	uart.rx([]byte("cdef"))
	if diff := cmp.Diff([]upcall{{Num: consoleReadDone, A: 0, B: 3}}, recA.deliver(t)); diff != "" {
		t.Errorf("a upcalls mismatch (-want +got):\n%s", diff)
	}
	if string(bufA[:3]) != "abc" {
		t.Errorf("a read %q", bufA[:3])
	}
	if got := c.Command(consoleAbort, 0, 0, b); got != tock.Success() {
		t.Errorf("abort = %v", got)
	}
	want := []upcall{{Num: consoleReadDone, A: uint32(tock.CANCEL), B: 3}}
	if diff := cmp.Diff(want, recB.deliver(t)); diff != "" {
		t.Errorf("b upcalls mismatch (-want +got):\n%s", diff)
	}
	if string(bufB[:3]) != "def" {
		t.Errorf("b read %q", bufB[:3])
	}
	if got := c.Command(consoleAbort, 0, 0, b); got != tock.Failure(tock.ALREADY) {
		t.Errorf("second abort = %v", got)
	}
}

type fakeChipState struct{}

func (fakeChipState) WriteState(w io.Writer) { io.WriteString(w, "chip state\n") }

type processConsoleTest struct {
	uart       *fakeUART
	pc         *ProcessConsole
	procs      []*process.Process
	resets     int
	bootloader int
}

func newProcessConsoleTest(t *testing.T, policy process.FaultPolicy) *processConsoleTest {
	t.Helper()
	k, ps := newTestKernel(t, "blink", "sensors")
	pt := &processConsoleTest{uart: &fakeUART{}, procs: ps}
	pt.pc = NewProcessConsole(pt.uart, ProcessConsoleConfig{
		Processes:  k.Processes(),
		Fault:      policy,
		Chip:       fakeChipState{},
		Reset:      func() { pt.resets++ },
		Bootloader: func() { pt.bootloader++ },
	}, capabilities.NewProcessManagement())
	return pt
}

// run types line and returns the console output it produced.
func (pt *processConsoleTest) run(line string) string {
	pt.uart.tx.Reset()
	pt.uart.rx([]byte(line + "\r"))
	return pt.uart.tx.String()
}

func TestProcessConsoleSilentUntilStart(t *testing.T) {
	pt := newProcessConsoleTest(t, process.PanicFaultPolicy{})
	if out := pt.run("help"); out != "" {
		t.Errorf("output before Start: %q", out)
	}
	pt.pc.Start()
	if !strings.Contains(pt.uart.tx.String(), consolePrompt) {
		t.Errorf("no prompt after Start: %q", pt.uart.tx.String())
	}
}

func TestProcessConsoleCommands(t *testing.T) {
	pt := newProcessConsoleTest(t, &process.StopWithDebugFaultPolicy{})
	pt.pc.Start()
	blink := pt.procs[0]

	for _, tc := range []struct {
		line  string
		want  []string
		state process.State
	}{
		{"help", []string{"Valid commands are:", "reset", "bootloader"}, process.Running},
		{"list", []string{"blink", "sensors", "Quanta"}, process.Running},
		{"status", []string{"Total processes: 2", "Active processes: 2"}, process.Running},
		{"stop blink", []string{"Process blink stopped"}, process.Stopped},
		{"start blink", []string{"Process blink resumed"}, process.Running},
		{"process blink", []string{"App: blink"}, process.Running},
		{"fault blink", []string{"Process blink faulted"}, process.Faulted},
		{"boot blink", []string{"Process blink booted"}, process.Running},
		{"terminate blink", []string{"Process blink terminated"}, process.Terminated},
		{"stop nosuch", []string{"Process nosuch not found"}, process.Terminated},
		{"stop", []string{"usage: stop"}, process.Terminated},
		{"kernel", []string{"2/4 process slots", "chip state"}, process.Terminated},
		{"frobnicate", []string{"Valid commands are:", `"frobnicate"`}, process.Terminated},
	} {
		out := pt.run(tc.line)
		for _, w := range tc.want {
			if !strings.Contains(out, w) {
				t.Errorf("%q output %q missing %q", tc.line, out, w)
			}
		}
		if !strings.HasSuffix(out, consolePrompt) {
			t.Errorf("%q output %q does not end with the prompt", tc.line, out)
		}
		if got := blink.State(); got != tc.state {
			t.Errorf("after %q state = %v, want %v", tc.line, got, tc.state)
		}
	}
	if !errors.Is(blink.LastFault(), ErrFaultRequested) {
		t.Errorf("last fault = %v, want %v", blink.LastFault(), ErrFaultRequested)
	}

	pt.run("reset")
	pt.run("bootloader")
	if pt.resets != 1 || pt.bootloader != 1 {
		t.Errorf("resets = %d, bootloader entries = %d; want 1, 1", pt.resets, pt.bootloader)
	}
}

func TestProcessConsoleLineEditing(t *testing.T) {
	pt := newProcessConsoleTest(t, &process.StopWithDebugFaultPolicy{})
	pt.pc.Start()
	out := pt.run("stap\x7f\x7fop sensors")
	if !strings.Contains(out, "Process sensors stopped") {
		t.Errorf("edited line output = %q", out)
	}
	long := strings.Repeat("x", CommandBufferLen+10)
	out = pt.run(long)
	if strings.Contains(out, strings.Repeat("x", CommandBufferLen+1)) {
		t.Errorf("line longer than the command buffer was echoed")
	}
}

func TestProcessConsolePanic(t *testing.T) {
	pt := newProcessConsoleTest(t, process.PanicFaultPolicy{})
	pt.pc.Start()
	for _, line := range []string{"panic", "fault blink"} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%q did not panic", line)
				}
			}()
			pt.run(line)
		}()
	}
}
