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

// Package apps contains the demo applications loaded by the simulator.
// Each is a process.Program driven entirely through system calls.
package apps

import (
	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// Alarm driver commands and upcalls used by the apps.
const (
	alarmFrequency   = 1
	alarmSetRelative = 5
	alarmFired       = 0
)

// Screen driver commands.
const (
	screenResolution = 1
	screenSetFrame   = 100
	screenWrite      = 200
)

// All returns every demo application.
func All() []process.App {
	return []process.App{
		{Name: "hello", New: func() process.Program { return &hello{} }},
		{Name: "blink", New: func() process.Program { return &blink{} }},
		{Name: "circle", New: func() process.Program { return &circle{} }},
		{Name: "count", New: func() process.Program { return &count{} }},
		{Name: "tock-scroll", New: func() process.Program { return &scroll{} }},
	}
}

// ByName returns the named applications.
func ByName(names ...string) ([]process.App, bool) {
	var out []process.App
	for _, n := range names {
		found := false
		for _, a := range All() {
			if a.Name == n {
				out = append(out, a)
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return out, true
}

func check(r tock.CommandReturn) error {
	if !r.IsSuccess() {
		return r.Err
	}
	return nil
}

// sleeper waits for the alarm driver.
type sleeper struct {
	subscribed bool
	waiting    bool
}

// start arms the alarm ms milliseconds from now.
func (s *sleeper) start(sys process.Syscalls, ms uint32) error {
	if !s.subscribed {
		if err := check(sys.Subscribe(tock.DriverAlarm, alarmFired, func(_, _, _ uint32) { s.waiting = false })); err != nil {
			return err
		}
		s.subscribed = true
	}
	freq := sys.Command(tock.DriverAlarm, alarmFrequency, 0, 0)
	if err := check(freq); err != nil {
		return err
	}
	ticks := uint64(freq.R1) * uint64(ms) / 1000
	if err := check(sys.Command(tock.DriverAlarm, alarmSetRelative, uint32(ticks), 0)); err != nil {
		return err
	}
	s.waiting = true
	return nil
}

// hello writes a greeting to the console and exits.
type hello struct {
	msg  []byte
	sent bool
}

func (h *hello) Step(sys process.Syscalls) (process.Action, error) {
	if h.sent {
		return process.Exit, nil
	}
	h.msg = []byte("Hello World!\r\n")
	if err := check(sys.AllowReadOnly(tock.DriverConsole, 1, h.msg)); err != nil {
		return process.Exit, err
	}
	if err := check(sys.Subscribe(tock.DriverConsole, 1, func(_, _, _ uint32) { h.sent = true })); err != nil {
		return process.Exit, err
	}
	if err := check(sys.Command(tock.DriverConsole, 1, uint32(len(h.msg)), 0)); err != nil {
		return process.Exit, err
	}
	return process.Yield, nil
}

// blink toggles the first LED every half second.
type blink struct {
	sleeper
}

func (b *blink) Step(sys process.Syscalls) (process.Action, error) {
	if b.waiting {
		return process.Yield, nil
	}
	if err := check(sys.Command(tock.DriverLED, 3, 0, 0)); err != nil {
		return process.Exit, err
	}
	if err := b.start(sys, 500); err != nil {
		return process.Exit, err
	}
	return process.Yield, nil
}

// canvas is a 1 bit per pixel image in the layout the screen driver takes:
// rows top to bottom, most significant bit first.
type canvas struct {
	w, h int
	buf  []byte
}

func newCanvas(w, h int) *canvas {
	return &canvas{w: w, h: h, buf: make([]byte, (w*h+7)/8)}
}

func (c *canvas) set(x, y int) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	i := y*c.w + x
	c.buf[i/8] |= 0x80 >> (i % 8)
}

func (c *canvas) clear() {
	clear(c.buf)
}

// screen draws canvases into the process's region.
type screen struct {
	canvas  *canvas
	pending bool
}

// open sizes the canvas to the region.
func (s *screen) open(sys process.Syscalls) error {
	r := sys.Command(tock.DriverScreen, screenResolution, 0, 0)
	if err := check(r); err != nil {
		return err
	}
	s.canvas = newCanvas(int(r.R1), int(r.R2))
	if err := check(sys.Subscribe(tock.DriverScreen, 0, func(_, _, _ uint32) { s.pending = false })); err != nil {
		return err
	}
	return check(sys.AllowReadOnly(tock.DriverScreen, 0, s.canvas.buf))
}

func (s *screen) flush(sys process.Syscalls) error {
	c := s.canvas
	if err := check(sys.Command(tock.DriverScreen, screenSetFrame, 0, uint32(c.w)<<16|uint32(c.h))); err != nil {
		return err
	}
	if err := check(sys.Command(tock.DriverScreen, screenWrite, uint32(len(c.buf)), 0)); err != nil {
		return err
	}
	s.pending = true
	return nil
}

// circle draws a filled circle once.
type circle struct {
	screen
	drawn bool
}

func (c *circle) Step(sys process.Syscalls) (process.Action, error) {
	if c.drawn {
		return process.Yield, nil
	}
	if err := c.open(sys); err != nil {
		return process.Exit, err
	}
	cv := c.canvas
	r := min(cv.w, cv.h)/2 - 2
	cx, cy := cv.w/2, cv.h/2
	for y := 0; y < cv.h; y++ {
		for x := 0; x < cv.w; x++ {
			if dx, dy := x-cx, y-cy; dx*dx+dy*dy <= r*r {
				cv.set(x, y)
			}
		}
	}
	if err := c.flush(sys); err != nil {
		return process.Exit, err
	}
	c.drawn = true
	return process.Yield, nil
}

// count shows a counter as a bar growing once a second.
type count struct {
	screen
	sleeper
	n int
}

func (c *count) Step(sys process.Syscalls) (process.Action, error) {
	if c.canvas == nil {
		if err := c.open(sys); err != nil {
			return process.Exit, err
		}
	}
	if c.sleeper.waiting || c.screen.pending {
		return process.Yield, nil
	}
	cv := c.canvas
	cv.clear()
	for x := 0; x < c.n%(cv.w+1); x++ {
		for y := cv.h / 4; y < 3*cv.h/4; y++ {
			cv.set(x, y)
		}
	}
	c.n++
	if err := c.flush(sys); err != nil {
		return process.Exit, err
	}
	if err := c.start(sys, 1000); err != nil {
		return process.Exit, err
	}
	return process.Yield, nil
}

// scroll moves diagonal stripes across its region.
type scroll struct {
	screen
	sleeper
	offset int
}

func (s *scroll) Step(sys process.Syscalls) (process.Action, error) {
	if s.canvas == nil {
		if err := s.open(sys); err != nil {
			return process.Exit, err
		}
	}
	if s.sleeper.waiting || s.screen.pending {
		return process.Yield, nil
	}
	cv := s.canvas
	cv.clear()
	for y := 0; y < cv.h; y++ {
		for x := 0; x < cv.w; x++ {
			if (x+y+s.offset)%8 < 2 {
				cv.set(x, y)
			}
		}
	}
	s.offset++
	if err := s.flush(sys); err != nil {
		return process.Exit, err
	}
	if err := s.start(sys, 100); err != nil {
		return process.Exit, err
	}
	return process.Yield, nil
}
