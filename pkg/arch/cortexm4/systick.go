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

// Package cortexm4 models the Cortex-M4 core peripherals the kernel uses:
// the SysTick timer that bounds process timeslices and the System Control
// Block that resets the core.
package cortexm4

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/physic"
)

// maxReload is the largest value of the 24-bit SysTick reload register.
const maxReload = 1<<24 - 1

// SysTick is a down-counting timer clocked by the core. Time is virtual: it
// advances only when Elapse is called.
type SysTick struct {
	hz uint64

	mu      sync.Mutex
	reload  uint64
	current uint64
	enabled bool
	armed   bool
}

// NewWithCalibration returns a SysTick clocked at freq.
func NewWithCalibration(freq physic.Frequency) *SysTick {
	hz := uint64(freq / physic.Hertz)
	if hz == 0 {
		panic("cortexm4: SysTick frequency below 1Hz")
	}
	return &SysTick{hz: hz}
}

func (s *SysTick) ticks(d time.Duration) uint64 {
	t := uint64(d) * s.hz / uint64(time.Second)
	if t > maxReload {
		t = maxReload
	}
	return t
}

func (s *SysTick) duration(ticks uint64) time.Duration {
	return time.Duration(ticks * uint64(time.Second) / s.hz)
}

// Start loads the counter with d and starts counting down. Durations beyond
// the 24-bit range are clamped.
func (s *SysTick) Start(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload = s.ticks(d)
	s.current = s.reload
	s.enabled = true
}

// Reset stops the counter.
func (s *SysTick) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload, s.current = 0, 0
	s.enabled, s.armed = false, false
}

// Arm enables the expiry interrupt.
func (s *SysTick) Arm() {
	s.mu.Lock()
	s.armed = true
	s.mu.Unlock()
}

// Disarm disables the expiry interrupt. The counter keeps running.
func (s *SysTick) Disarm() {
	s.mu.Lock()
	s.armed = false
	s.mu.Unlock()
}

// Remaining returns the time left, and false if the counter has expired.
func (s *SysTick) Remaining() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.current == 0 {
		return 0, false
	}
	return s.duration(s.current), true
}

// Elapse advances virtual time by d. It returns true if the counter reached
// zero while the expiry interrupt was armed.
func (s *SysTick) Elapse(d time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled || s.current == 0 {
		return false
	}
	t := uint64(d) * s.hz / uint64(time.Second)
	if t >= s.current {
		s.current = 0
		return s.armed
	}
	s.current -= t
	return false
}
