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

package capabilities

import "fmt"

type mainLoop struct{}

func (mainLoop) Kind() Kind { return KindMainLoop }
func (mainLoop) mainLoop()  {}

type memoryAllocation struct{}

func (memoryAllocation) Kind() Kind        { return KindMemoryAllocation }
func (memoryAllocation) memoryAllocation() {}

type setDebugWriter struct{}

func (setDebugWriter) Kind() Kind      { return KindSetDebugWriter }
func (setDebugWriter) setDebugWriter() {}

type processManagement struct{}

func (processManagement) Kind() Kind         { return KindProcessManagement }
func (processManagement) processManagement() {}

// NewMainLoop returns a MainLoop capability.
func NewMainLoop() MainLoop { return &mainLoop{} }

// NewMemoryAllocation returns a MemoryAllocation capability.
func NewMemoryAllocation() MemoryAllocation { return &memoryAllocation{} }

// NewSetDebugWriter returns a SetDebugWriter capability.
func NewSetDebugWriter() SetDebugWriter { return &setDebugWriter{} }

// NewProcessManagement returns a ProcessManagement capability.
func NewProcessManagement() ProcessManagement { return &processManagement{} }

// Issue returns the capability of the given kind.
func Issue(k Kind) Token {
	switch k {
	case KindMainLoop:
		return NewMainLoop()
	case KindMemoryAllocation:
		return NewMemoryAllocation()
	case KindSetDebugWriter:
		return NewSetDebugWriter()
	case KindProcessManagement:
		return NewProcessManagement()
	default:
		panic(fmt.Sprintf("unknown capability kind %d", int(k)))
	}
}

// Check panics if t is nil. Protected operations call it on entry: a nil
// capability is a programming error, never a runtime condition.
func Check(t Token, k Kind) {
	if t == nil {
		panic(fmt.Sprintf("missing %v capability", k))
	}
	if t.Kind() != k {
		panic(fmt.Sprintf("capability %v used where %v is required", t.Kind(), k))
	}
}
