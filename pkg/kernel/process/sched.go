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

import "time"

// DefaultTimeslice is the round-robin timeslice.
const DefaultTimeslice = 10 * time.Millisecond

// StopReason is why a process stopped running.
type StopReason int

// Stop reasons.
const (
	// StopYielded means the process yielded, exited or faulted.
	StopYielded StopReason = iota

	// StopTimesliceExpired means the process was preempted.
	StopTimesliceExpired

	// StopInterrupted means kernel work preempted the process before its
	// timeslice ran out.
	StopInterrupted
)

// RoundRobin schedules ready processes in slot order, giving each a fixed
// timeslice. A process interrupted by kernel work keeps its place and the
// rest of its timeslice.
type RoundRobin struct {
	procs     *Array
	timeslice time.Duration

	next      int
	remaining time.Duration
}

// NewRoundRobin returns a scheduler over procs.
func NewRoundRobin(procs *Array) *RoundRobin {
	return &RoundRobin{procs: procs, timeslice: DefaultTimeslice}
}

// Next returns the next ready process and its timeslice.
func (r *RoundRobin) Next() (*Process, time.Duration, bool) {
	n := r.procs.Cap()
	for i := 0; i < n; i++ {
		idx := (r.next + i) % n
		p := r.procs.Get(idx)
		if p == nil || !p.Ready() {
			continue
		}
		slice := r.timeslice
		if i == 0 && r.remaining > 0 {
			slice = r.remaining
		}
		r.next = idx
		r.remaining = 0
		return p, slice, true
	}
	return nil, 0, false
}

// Result records how the last process returned from Next stopped.
func (r *RoundRobin) Result(p *Process, reason StopReason, remaining time.Duration) {
	if reason == StopInterrupted && remaining > 0 {
		r.remaining = remaining
		return
	}
	if reason == StopTimesliceExpired {
		p.TimesliceExpired()
	}
	r.next = (p.id.Index + 1) % r.procs.Cap()
	r.remaining = 0
}
