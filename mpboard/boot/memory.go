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
	"fmt"

	"gvisor.dev/mpboard/mpboard/config"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// StackSize is the kernel stack reservation.
const StackSize = 0x1000

// MemoryLayout is where application flash and RAM live. Contents are
// handed to the loader as raw byte ranges.
type MemoryLayout struct {
	AppFlashStart uint32
	AppFlashEnd   uint32
	AppMemStart   uint32
	AppMemEnd     uint32
}

// LayoutFrom returns the layout described by m.
func LayoutFrom(m config.Memory) MemoryLayout {
	return MemoryLayout{
		AppFlashStart: m.AppFlashStart,
		AppFlashEnd:   m.AppFlashEnd,
		AppMemStart:   m.AppMemStart,
		AppMemEnd:     m.AppMemEnd,
	}
}

// Validate checks that both ranges are non-empty.
func (l MemoryLayout) Validate() error {
	if l.AppFlashEnd <= l.AppFlashStart {
		return fmt.Errorf("empty application flash [%#x, %#x)", l.AppFlashStart, l.AppFlashEnd)
	}
	if l.AppMemEnd <= l.AppMemStart {
		return fmt.Errorf("empty application memory [%#x, %#x)", l.AppMemStart, l.AppMemEnd)
	}
	return nil
}

// FlashSize returns the size of application flash.
func (l MemoryLayout) FlashSize() uint32 { return l.AppFlashEnd - l.AppFlashStart }

// MemSize returns the size of application memory.
func (l MemoryLayout) MemSize() uint32 { return l.AppMemEnd - l.AppMemStart }

// Regions allocates the backing storage for both ranges.
func (l MemoryLayout) Regions() (flash, mem process.Region) {
	flash = process.Region{Start: l.AppFlashStart, Data: make([]byte, l.FlashSize())}
	mem = process.Region{Start: l.AppMemStart, Data: make([]byte, l.MemSize())}
	return flash, mem
}

// String implements fmt.Stringer.
func (l MemoryLayout) String() string {
	return fmt.Sprintf("flash [%#08x, %#08x) %d KiB, ram [%#08x, %#08x) %d KiB",
		l.AppFlashStart, l.AppFlashEnd, l.FlashSize()/1024, l.AppMemStart, l.AppMemEnd, l.MemSize()/1024)
}
