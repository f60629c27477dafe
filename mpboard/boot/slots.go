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

package boot

import (
	"errors"
	"sync/atomic"

	"gvisor.dev/mpboard/pkg/chip/nrf52840"
	"gvisor.dev/mpboard/pkg/kernel/debug"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// Slot errors.
var (
	ErrSlotWritten = errors.New("slot already written")
	ErrSlotsSealed = errors.New("slots sealed")
)

// Slot holds one value written at most once during boot. Reads never block
// and are safe from the panic path.
type Slot[T any] struct {
	v      atomic.Pointer[T]
	sealed *atomic.Bool
}

// Set writes v. It fails if the slot was written before or its Slots were
// sealed.
func (s *Slot[T]) Set(v T) error {
	if s.sealed != nil && s.sealed.Load() {
		return ErrSlotsSealed
	}
	if !s.v.CompareAndSwap(nil, &v) {
		return ErrSlotWritten
	}
	return nil
}

// Get returns the value and whether it was written.
func (s *Slot[T]) Get() (T, bool) {
	if p := s.v.Load(); p != nil {
		return *p, true
	}
	var zero T
	return zero, false
}

// Slots is the state the panic path may read. It is filled in by Start and
// sealed before the kernel loop runs.
type Slots struct {
	Processes      Slot[*process.Array]
	Chip           Slot[*nrf52840.Chip]
	ProcessPrinter Slot[process.TextPrinter]
	CDC            Slot[*nrf52840.Usbd]
	Power          Slot[*nrf52840.Power]
	DebugWriter    Slot[*debug.Writer]

	sealed atomic.Bool
}

// NewSlots returns empty slots.
func NewSlots() *Slots {
	s := &Slots{}
	s.Processes.sealed = &s.sealed
	s.Chip.sealed = &s.sealed
	s.ProcessPrinter.sealed = &s.sealed
	s.CDC.sealed = &s.sealed
	s.Power.sealed = &s.sealed
	s.DebugWriter.sealed = &s.sealed
	return s
}

// Seal makes every slot read-only, written or not.
func (s *Slots) Seal() {
	s.sealed.Store(true)
}

// Sealed returns true after Seal.
func (s *Slots) Sealed() bool {
	return s.sealed.Load()
}
