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

// Package capsules contains the syscall drivers of the board.
//
// Capsules are thin: each one adapts a narrow hardware interface from
// package hal to the system call interface. Per-process state lives in
// fixed tables with one entry per process slot, created from the capsule's
// kernel.Grant. All methods run on the kernel loop, either from a system
// call or from interrupt servicing, so capsules do no locking of their own.
package capsules

import (
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// grantTable holds one T per process slot. An entry is reset to its zero
// value when its slot gets a new occupant.
type grantTable[T any] struct {
	grant   *kernel.Grant
	uniques []uint32
	valid   []bool
	data    []T
}

func newGrantTable[T any](g *kernel.Grant) *grantTable[T] {
	n := g.Capacity()
	return &grantTable[T]{
		grant:   g,
		uniques: make([]uint32, n),
		valid:   make([]bool, n),
		data:    make([]T, n),
	}
}

// get returns the entry for pid, or nil if pid does not name a live
// process.
func (t *grantTable[T]) get(pid process.ID) *T {
	if pid.Index < 0 || pid.Index >= len(t.data) || t.grant.Process(pid) == nil {
		return nil
	}
	if !t.valid[pid.Index] || t.uniques[pid.Index] != pid.Unique {
		var zero T
		t.data[pid.Index] = zero
		t.uniques[pid.Index] = pid.Unique
		t.valid[pid.Index] = true
	}
	return &t.data[pid.Index]
}

// each calls fn for every live process that has an entry.
func (t *grantTable[T]) each(fn func(pid process.ID, v *T)) {
	t.grant.Each(func(p *process.Process) {
		id := p.ID()
		if t.valid[id.Index] && t.uniques[id.Index] == id.Unique {
			fn(id, &t.data[id.Index])
		}
	})
}

// schedule queues upcall num for pid. Failures mean the process is gone or
// its queue is full; either way the upcall is dropped.
func (t *grantTable[T]) schedule(pid process.ID, num uint32, a, b, c uint32) bool {
	return t.grant.Schedule(pid, num, a, b, c) == nil
}
