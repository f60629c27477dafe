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

package nrf52840

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"

	"gvisor.dev/mpboard/pkg/hal"
)

// RTCFrequency is the frequency of the RTC counter.
const RTCFrequency = 32768 * physic.Hertz

// RTC is the real time counter used as the kernel's alarm source. The
// counter is modelled as 32 bits wide and advances only when Advance is
// called.
type RTC struct {
	nvic *NVIC

	mu      sync.Mutex
	running bool
	counter uint32
	cc      uint32
	armed   bool
	client  func()
}

var _ hal.Alarm = (*RTC)(nil)

// Start starts the counter.
func (r *RTC) Start() {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
}

// Running returns true once Start has been called.
func (r *RTC) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Now implements hal.Alarm.Now.
func (r *RTC) Now() hal.Ticks {
	r.mu.Lock()
	defer r.mu.Unlock()
	return hal.Ticks(r.counter)
}

// Frequency implements hal.Alarm.Frequency.
func (r *RTC) Frequency() physic.Frequency {
	return RTCFrequency
}

// SetAlarm implements hal.Alarm.SetAlarm. An alarm whose time has already
// passed fires immediately.
func (r *RTC) SetAlarm(reference, dt hal.Ticks) {
	r.mu.Lock()
	r.cc = uint32(reference + dt)
	r.armed = true
	passed := r.counter-uint32(reference) >= uint32(dt)
	if passed {
		r.armed = false
	}
	r.mu.Unlock()
	if passed {
		r.nvic.Raise(IRQRTC1)
	}
}

// Disarm implements hal.Alarm.Disarm.
func (r *RTC) Disarm() {
	r.mu.Lock()
	r.armed = false
	r.mu.Unlock()
}

// IsArmed implements hal.Alarm.IsArmed.
func (r *RTC) IsArmed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

// SetAlarmClient implements hal.Alarm.SetAlarmClient.
func (r *RTC) SetAlarmClient(fn func()) {
	r.mu.Lock()
	r.client = fn
	r.mu.Unlock()
}

// Advance moves the counter forward by ticks, firing the alarm if it is
// crossed. A stopped counter does not move.
func (r *RTC) Advance(ticks uint32) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	fire := r.armed && r.cc-r.counter <= ticks
	r.counter += ticks
	if fire {
		r.armed = false
	}
	r.mu.Unlock()
	if fire {
		r.nvic.Raise(IRQRTC1)
	}
}

// untilAlarm returns the ticks until the armed alarm fires.
func (r *RTC) untilAlarm() (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed || !r.running {
		return 0, false
	}
	return r.cc - r.counter, true
}

// TicksToDuration converts RTC ticks to time.
func TicksToDuration(ticks uint32) time.Duration {
	return time.Duration(uint64(ticks) * uint64(time.Second) / 32768)
}

// DurationToTicks converts time to RTC ticks, rounding down.
func DurationToTicks(d time.Duration) uint32 {
	return uint32(uint64(d) * 32768 / uint64(time.Second))
}

func (r *RTC) handleInterrupt() {
	r.mu.Lock()
	fn := r.client
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Timer is a TIMER instance. The radio uses TIMER0 to time out
// acknowledgements. Elapsed time is not modelled: a started timer expires
// at the next interrupt service.
type Timer struct {
	nvic *NVIC
	irq  IRQ

	mu     sync.Mutex
	armed  bool
	starts int
	client func()
}

// Start arms the timer to expire after us microseconds.
func (t *Timer) Start(us uint32) {
	t.mu.Lock()
	t.armed = true
	t.starts++
	t.mu.Unlock()
	t.nvic.Raise(t.irq)
}

// Stop disarms the timer.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.armed = false
	t.mu.Unlock()
}

// SetClient registers fn to be called on expiry.
func (t *Timer) SetClient(fn func()) {
	t.mu.Lock()
	t.client = fn
	t.mu.Unlock()
}

func (t *Timer) handleInterrupt() {
	t.mu.Lock()
	fire := t.armed
	t.armed = false
	fn := t.client
	t.mu.Unlock()
	if fire && fn != nil {
		fn()
	}
}
