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
	"errors"
	"fmt"
)

// ErrArrayFull is returned when every slot of an Array is occupied.
var ErrArrayFull = errors.New("process array full")

// Array is a fixed-capacity table of processes. The capacity is chosen at
// construction and never changes.
type Array struct {
	procs []*Process
}

// NewArray returns an empty array with room for capacity processes.
func NewArray(capacity int) *Array {
	if capacity <= 0 {
		panic(fmt.Sprintf("invalid process array capacity %d", capacity))
	}
	return &Array{procs: make([]*Process, capacity)}
}

// Cap returns the number of slots.
func (a *Array) Cap() int { return len(a.procs) }

// Len returns the number of occupied slots.
func (a *Array) Len() int {
	n := 0
	for _, p := range a.procs {
		if p != nil {
			n++
		}
	}
	return n
}

// Get returns the process in slot i, or nil.
func (a *Array) Get(i int) *Process {
	if i < 0 || i >= len(a.procs) {
		return nil
	}
	return a.procs[i]
}

// Lookup returns the process identified by id. It returns nil if the slot
// is now occupied by a different incarnation.
func (a *Array) Lookup(id ID) *Process {
	p := a.Get(id.Index)
	if p == nil || p.id != id {
		return nil
	}
	return p
}

// FreeSlot returns the index of the first empty slot.
func (a *Array) FreeSlot() (int, error) {
	for i, p := range a.procs {
		if p == nil {
			return i, nil
		}
	}
	return 0, ErrArrayFull
}

// Put installs p in its slot.
func (a *Array) Put(p *Process) error {
	i := p.id.Index
	if i < 0 || i >= len(a.procs) {
		return fmt.Errorf("slot %d out of range [0, %d)", i, len(a.procs))
	}
	if a.procs[i] != nil {
		return fmt.Errorf("slot %d already holds %q", i, a.procs[i].name)
	}
	a.procs[i] = p
	return nil
}

// Each calls fn for every occupied slot in index order.
func (a *Array) Each(fn func(p *Process)) {
	for _, p := range a.procs {
		if p != nil {
			fn(p)
		}
	}
}

// ByName returns the first process with the given application name.
func (a *Array) ByName(name string) *Process {
	for _, p := range a.procs {
		if p != nil && p.name == name {
			return p
		}
	}
	return nil
}

// ByShortID returns the process with the given identity.
func (a *Array) ByShortID(id ShortID) *Process {
	for _, p := range a.procs {
		if p != nil && p.shortID == id {
			return p
		}
	}
	return nil
}
