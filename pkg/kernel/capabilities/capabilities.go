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

// Package capabilities defines the tokens that gate privileged kernel
// operations.
//
// A capability is a value of an interface type whose only method is
// unexported. Code outside this package cannot implement the interface, so
// the only way to hold a capability is to be handed one by whoever called
// the factory. The factories are meant to be called exactly once, by the
// board's composition root.
package capabilities

import "fmt"

// Kind names a capability.
type Kind int

// Capability kinds.
const (
	KindMainLoop Kind = iota
	KindMemoryAllocation
	KindSetDebugWriter
	KindProcessManagement
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindMainLoop:
		return "main-loop"
	case KindMemoryAllocation:
		return "memory-allocation"
	case KindSetDebugWriter:
		return "set-debug-writer"
	case KindProcessManagement:
		return "process-management"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Kinds returns all capability kinds.
func Kinds() []Kind {
	return []Kind{KindMainLoop, KindMemoryAllocation, KindSetDebugWriter, KindProcessManagement}
}

// Token is satisfied by every capability.
type Token interface {
	Kind() Kind
}

// MainLoop permits running the kernel's main loop.
type MainLoop interface {
	Token
	mainLoop()
}

// MemoryAllocation permits creating per-process grant storage.
type MemoryAllocation interface {
	Token
	memoryAllocation()
}

// SetDebugWriter permits installing the kernel debug writer.
type SetDebugWriter interface {
	Token
	setDebugWriter()
}

// ProcessManagement permits starting, stopping and faulting processes.
type ProcessManagement interface {
	Token
	processManagement()
}
