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

package debug

import (
	"bytes"
	"strings"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"gvisor.dev/mpboard/pkg/kernel/capabilities"
)

// fakeUART accepts at most limit bytes per Transmit.
type fakeUART struct {
	limit int
	out   bytes.Buffer
}

func (u *fakeUART) Transmit(p []byte) (int, error) {
	if u.limit > 0 && len(p) > u.limit {
		p = p[:u.limit]
	}
	u.out.Write(p)
	return len(p), nil
}

func (u *fakeUART) SetReceiveClient(func([]byte)) {}

func TestWriterFlush(t *testing.T) {
	u := &fakeUART{limit: 3}
	w := NewWriter(u)
	if _, err := w.Write([]byte("hello, world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got, want := u.out.String(), "hello, world"; got != want {
		t.Errorf("flushed %q, want %q", got, want)
	}
	if w.Buffered() != 0 {
		t.Errorf("Buffered = %d after flush", w.Buffered())
	}
}

func TestWriterWraps(t *testing.T) {
	u := &fakeUART{}
	w := NewWriter(u)
	chunk := strings.Repeat("a", BufferSize-10)
	w.Write([]byte(chunk))
	w.Flush()
	w.Write([]byte("0123456789abcdefghij"))
	w.Flush()
	if got, want := u.out.String(), chunk+"0123456789abcdefghij"; got != want {
		t.Errorf("flushed %d bytes, want %d", len(got), len(want))
	}
}

func TestWriterDropsWhenFull(t *testing.T) {
	u := &fakeUART{}
	w := NewWriter(u)
	n, _ := w.Write(bytes.Repeat([]byte{'x'}, BufferSize+5))
	if n != BufferSize {
		t.Errorf("Write accepted %d bytes, want %d", n, BufferSize)
	}
	if w.Dropped() != 5 {
		t.Errorf("Dropped = %d, want 5", w.Dropped())
	}
	w.Flush()
	w.Write([]byte("next"))
	w.Flush()
	if !strings.Contains(u.out.String(), "5 bytes dropped") {
		t.Errorf("drop report missing from output tail %q", u.out.String()[BufferSize:])
	}
	if w.Dropped() != 0 {
		t.Errorf("Dropped = %d after report, want 0", w.Dropped())
	}
}

func TestSetWriterRequiresCapability(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("SetWriter with nil capability did not panic")
		}
	}()
	SetWriter(NewWriter(&fakeUART{}), nil)
}

func TestPrintf(t *testing.T) {
	u := &fakeUART{}
	SetWriter(NewWriter(u), capabilities.NewSetDebugWriter())
	defer writer.Store(nil)
	Printf("kernel %s", "up")
	if err := Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got, want := u.out.String(), "kernel up"; got != want {
		t.Errorf("output %q, want %q", got, want)
	}
}

func TestGPIOs(t *testing.T) {
	a := &gpiotest.Pin{N: "P1.11"}
	AssignGPIOs(a, nil)
	defer AssignGPIOs()
	ToggleGPIO(0)
	if a.Read() != gpio.High {
		t.Errorf("after toggle: %v, want High", a.Read())
	}
	ToggleGPIO(0)
	if a.Read() != gpio.Low {
		t.Errorf("after second toggle: %v, want Low", a.Read())
	}
	SetGPIO(0, gpio.High)
	if a.Read() != gpio.High {
		t.Errorf("after SetGPIO: %v, want High", a.Read())
	}
	// Unassigned and out of range GPIOs are ignored.
	ToggleGPIO(1)
	ToggleGPIO(MaxGPIOs)
}
