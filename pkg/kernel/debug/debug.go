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

// Package debug provides the kernel's diagnostic output channel and debug
// GPIOs.
//
// Output is formatted into a fixed ring buffer and flushed to a UART. The
// buffer never grows: bytes that do not fit are dropped and counted, and the
// count is reported the next time the buffer has room.
package debug

import (
	"fmt"
	"sync"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"

	"gvisor.dev/mpboard/pkg/hal"
	"gvisor.dev/mpboard/pkg/kernel/capabilities"
)

// BufferSize is the capacity of the debug ring buffer.
const BufferSize = 1024

// Writer buffers debug output for a UART.
type Writer struct {
	out hal.UART

	mu      sync.Mutex
	buf     [BufferSize]byte
	head    int
	n       int
	dropped int
	total   int
}

// NewWriter returns a Writer flushing to out.
func NewWriter(out hal.UART) *Writer {
	return &Writer{out: out}
}

// Write implements io.Writer. It never fails; bytes that do not fit are
// dropped.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dropped > 0 {
		msg := fmt.Sprintf("\n*** DEBUG BUFFER FULL: %d bytes dropped ***\n", w.dropped)
		if BufferSize-w.n >= len(msg)+len(p) {
			w.dropped = 0
			w.put([]byte(msg))
		}
	}
	free := BufferSize - w.n
	if len(p) > free {
		w.dropped += len(p) - free
		p = p[:free]
	}
	w.put(p)
	return len(p), nil
}

func (w *Writer) put(p []byte) {
	for _, b := range p {
		w.buf[(w.head+w.n)%BufferSize] = b
		w.n++
	}
}

// Flush transmits as much buffered output as the UART accepts.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.n > 0 {
		end := w.head + w.n
		if end > BufferSize {
			end = BufferSize
		}
		sent, err := w.out.Transmit(w.buf[w.head:end])
		w.head = (w.head + sent) % BufferSize
		w.n -= sent
		w.total += sent
		if err != nil {
			return err
		}
		if sent == 0 {
			return nil
		}
	}
	return nil
}

// Buffered returns the number of bytes waiting to be flushed.
func (w *Writer) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Dropped returns the number of bytes dropped since the last report.
func (w *Writer) Dropped() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

var writer atomic.Pointer[Writer]

// SetWriter installs w as the kernel debug writer.
func SetWriter(w *Writer, c capabilities.SetDebugWriter) {
	capabilities.Check(c, capabilities.KindSetDebugWriter)
	writer.Store(w)
}

// Installed returns the kernel debug writer, or nil.
func Installed() *Writer {
	return writer.Load()
}

// Printf formats to the debug writer. Output is discarded if no writer is
// installed.
func Printf(format string, v ...any) {
	if w := writer.Load(); w != nil {
		fmt.Fprintf(w, format, v...)
	}
}

// Flush flushes the installed debug writer.
func Flush() error {
	if w := writer.Load(); w != nil {
		return w.Flush()
	}
	return nil
}

// MaxGPIOs is the number of debug GPIOs.
const MaxGPIOs = 3

var (
	gpioMu sync.Mutex
	gpios  [MaxGPIOs]gpio.PinOut
)

// AssignGPIOs sets the debug GPIOs. Nil pins are left unassigned.
func AssignGPIOs(pins ...gpio.PinOut) {
	gpioMu.Lock()
	defer gpioMu.Unlock()
	gpios = [MaxGPIOs]gpio.PinOut{}
	for i, p := range pins {
		if i == MaxGPIOs {
			break
		}
		gpios[i] = p
	}
}

// SetGPIO drives debug GPIO i to level l. Unassigned GPIOs are ignored.
func SetGPIO(i int, l gpio.Level) {
	gpioMu.Lock()
	defer gpioMu.Unlock()
	if i < 0 || i >= MaxGPIOs || gpios[i] == nil {
		return
	}
	_ = gpios[i].Out(l)
}

// ToggleGPIO inverts debug GPIO i.
func ToggleGPIO(i int) {
	gpioMu.Lock()
	defer gpioMu.Unlock()
	if i < 0 || i >= MaxGPIOs || gpios[i] == nil {
		return
	}
	p := gpios[i]
	if in, ok := p.(gpio.PinIn); ok {
		_ = p.Out(!in.Read())
		return
	}
	_ = p.Out(gpio.High)
}
