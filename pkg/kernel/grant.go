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
	"errors"

	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/kernel/capabilities"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// ErrNoProcess is returned when a process identifier is stale.
var ErrNoProcess = errors.New("no such process")

// Grant is a driver's handle on per-process kernel state: it can schedule
// upcalls and identify processes. Capsules keep their own per-process state
// in fixed tables of Capacity() entries indexed by process.ID.Index.
type Grant struct {
	k      *Kernel
	driver tock.DriverNum
}

// CreateGrant returns the grant for driver.
func (k *Kernel) CreateGrant(driver tock.DriverNum, c capabilities.MemoryAllocation) *Grant {
	capabilities.Check(c, capabilities.KindMemoryAllocation)
	g := &Grant{k: k, driver: driver}
	k.grants = append(k.grants, g)
	return g
}

// Grants returns the driver numbers for which grants were created.
func (k *Kernel) Grants() []tock.DriverNum {
	out := make([]tock.DriverNum, 0, len(k.grants))
	for _, g := range k.grants {
		out = append(out, g.driver)
	}
	return out
}

// Driver returns the driver number the grant belongs to.
func (g *Grant) Driver() tock.DriverNum { return g.driver }

// Capacity returns the number of process slots.
func (g *Grant) Capacity() int { return g.k.procs.Cap() }

// Process returns the live process identified by pid, or nil.
func (g *Grant) Process(pid process.ID) *process.Process {
	return g.k.procs.Lookup(pid)
}

// Schedule queues upcall num for pid.
func (g *Grant) Schedule(pid process.ID, num uint32, a, b, c uint32) error {
	p := g.k.procs.Lookup(pid)
	if p == nil {
		return ErrNoProcess
	}
	return p.EnqueueUpcall(g.driver, num, a, b, c)
}

// Each calls fn for every live process.
func (g *Grant) Each(fn func(p *process.Process)) {
	g.k.procs.Each(func(p *process.Process) {
		if p.Alive() {
			fn(p)
		}
	})
}
