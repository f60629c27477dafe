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

// Package kernel contains the contracts between a board and the kernel, and
// a reference kernel main loop that drives them.
//
// A board supplies three things: a DriverLookup mapping syscall driver
// numbers to capsules, a Resources bundle of scheduling and policy objects,
// and a Chip that owns interrupts. The kernel loop consults them on every
// iteration and never changes them.
package kernel

import (
	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// Driver is a capsule reachable through system calls.
type Driver interface {
	// Command handles a command system call from process pid.
	Command(cmd, arg1, arg2 uint32, pid process.ID) tock.CommandReturn
}

// ReadOnlyAllower is implemented by drivers that accept read-only buffers.
type ReadOnlyAllower interface {
	AllowReadOnly(pid process.ID, num uint32, buf []byte) tock.CommandReturn
}

// ReadWriteAllower is implemented by drivers that accept writable buffers.
type ReadWriteAllower interface {
	AllowReadWrite(pid process.ID, num uint32, buf []byte) tock.CommandReturn
}

// DriverLookup maps driver numbers to drivers.
type DriverLookup interface {
	// Lookup returns the driver registered under num. It must be total,
	// must not block, and must return the same answer for the lifetime of
	// the board.
	Lookup(num tock.DriverNum) (Driver, bool)
}
