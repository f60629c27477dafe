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
	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/kernel/capabilities"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// IPC commands.
const (
	ipcDiscover     = 1
	ipcNotifyServe  = 2
	ipcNotifyClient = 3
)

// ipcSlot is the IPC state of one process slot.
type ipcSlot struct {
	unique uint32
	name   []byte
	// shared[i] is the buffer this process shares with slot i.
	shared [][]byte
}

// IPC lets processes find each other by name and exchange notifications.
//
// A process shares a read-only buffer (allow 0) holding the name of the
// service it looks for and calls discover, which returns the service's slot
// index. It may then share a writable buffer with the service (allow number
// index+1) and notify it. Services receive upcall 0; clients receive upcall
// index+1 where index is the service's slot.
type IPC struct {
	grant *Grant
	slots []ipcSlot
}

// NewIPC returns the IPC driver for k.
func NewIPC(k *Kernel, c capabilities.MemoryAllocation) *IPC {
	g := k.CreateGrant(tock.DriverIPC, c)
	ipc := &IPC{grant: g, slots: make([]ipcSlot, g.Capacity())}
	for i := range ipc.slots {
		ipc.slots[i].shared = make([][]byte, g.Capacity())
	}
	return ipc
}

// slot returns the state for pid, resetting it if the slot has a new
// occupant.
func (ipc *IPC) slot(pid process.ID) *ipcSlot {
	s := &ipc.slots[pid.Index]
	if s.unique != pid.Unique {
		ipc.reset(s)
		s.unique = pid.Unique
	}
	return s
}

func (ipc *IPC) reset(s *ipcSlot) {
	s.name = nil
	for i := range s.shared {
		s.shared[i] = nil
	}
}

// release drops everything held on behalf of pid.
func (ipc *IPC) release(pid process.ID) {
	if pid.Index < 0 || pid.Index >= len(ipc.slots) {
		return
	}
	ipc.reset(&ipc.slots[pid.Index])
	for i := range ipc.slots {
		ipc.slots[i].shared[pid.Index] = nil
	}
}

// Command implements Driver.Command.
func (ipc *IPC) Command(cmd, arg1, _ uint32, pid process.ID) tock.CommandReturn {
	s := ipc.slot(pid)
	switch cmd {
	case tock.CommandExists:
		return tock.Success()
	case ipcDiscover:
		if len(s.name) == 0 {
			return tock.Failure(tock.INVAL)
		}
		var found *process.Process
		ipc.grant.Each(func(p *process.Process) {
			if found == nil && p.Name() == string(s.name) {
				found = p
			}
		})
		if found == nil {
			return tock.Failure(tock.NODEVICE)
		}
		return tock.SuccessU32(uint32(found.ID().Index))
	case ipcNotifyServe, ipcNotifyClient:
		target := int(arg1)
		if target < 0 || target >= len(ipc.slots) {
			return tock.Failure(tock.INVAL)
		}
		p := ipc.grant.k.procs.Get(target)
		if p == nil || !p.Alive() {
			return tock.Failure(tock.INVAL)
		}
		num := uint32(0)
		if cmd == ipcNotifyClient {
			num = uint32(pid.Index) + 1
		}
		n := len(s.shared[target])
		if err := ipc.grant.Schedule(p.ID(), num, uint32(pid.Index), uint32(n), 0); err != nil {
			return tock.Failure(tock.BUSY)
		}
		return tock.Success()
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
}

// AllowReadOnly implements ReadOnlyAllower.AllowReadOnly. Buffer 0 is the
// name of the service to discover.
func (ipc *IPC) AllowReadOnly(pid process.ID, num uint32, buf []byte) tock.CommandReturn {
	if num != 0 {
		return tock.Failure(tock.INVAL)
	}
	ipc.slot(pid).name = buf
	return tock.Success()
}

// AllowReadWrite implements ReadWriteAllower.AllowReadWrite. Buffer i+1 is
// shared with the process in slot i.
func (ipc *IPC) AllowReadWrite(pid process.ID, num uint32, buf []byte) tock.CommandReturn {
	target := int(num) - 1
	if target < 0 || target >= len(ipc.slots) {
		return tock.Failure(tock.INVAL)
	}
	ipc.slot(pid).shared[target] = buf
	return tock.Success()
}

// Shared returns the buffer the process in slot from shares with pid.
func (ipc *IPC) Shared(pid process.ID, from int) []byte {
	if from < 0 || from >= len(ipc.slots) || ipc.grant.Process(pid) == nil {
		return nil
	}
	return ipc.slots[from].shared[pid.Index]
}
