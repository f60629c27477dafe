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
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// syscalls dispatches the system calls of one process.
type syscalls struct {
	res Resources
	p   *process.Process
}

// Command implements process.Syscalls.Command.
func (s *syscalls) Command(driver tock.DriverNum, cmd, arg1, arg2 uint32) tock.CommandReturn {
	d, ret, ok := s.lookup(process.Syscall{Kind: process.SyscallCommand, Driver: driver, Num: cmd})
	if !ok {
		return ret
	}
	return guard(func() tock.CommandReturn { return d.Command(cmd, arg1, arg2, s.p.ID()) })
}

// AllowReadOnly implements process.Syscalls.AllowReadOnly.
func (s *syscalls) AllowReadOnly(driver tock.DriverNum, num uint32, buf []byte) tock.CommandReturn {
	d, ret, ok := s.lookup(process.Syscall{Kind: process.SyscallAllowReadOnly, Driver: driver, Num: num})
	if !ok {
		return ret
	}
	a, ok := d.(ReadOnlyAllower)
	if !ok {
		return tock.Failure(tock.NOSUPPORT)
	}
	return guard(func() tock.CommandReturn { return a.AllowReadOnly(s.p.ID(), num, buf) })
}

// AllowReadWrite implements process.Syscalls.AllowReadWrite.
func (s *syscalls) AllowReadWrite(driver tock.DriverNum, num uint32, buf []byte) tock.CommandReturn {
	d, ret, ok := s.lookup(process.Syscall{Kind: process.SyscallAllowReadWrite, Driver: driver, Num: num})
	if !ok {
		return ret
	}
	a, ok := d.(ReadWriteAllower)
	if !ok {
		return tock.Failure(tock.NOSUPPORT)
	}
	return guard(func() tock.CommandReturn { return a.AllowReadWrite(s.p.ID(), num, buf) })
}

// Subscribe implements process.Syscalls.Subscribe.
func (s *syscalls) Subscribe(driver tock.DriverNum, num uint32, fn process.Upcall) tock.CommandReturn {
	if _, ret, ok := s.lookup(process.Syscall{Kind: process.SyscallSubscribe, Driver: driver, Num: num}); !ok {
		return ret
	}
	if !s.p.Subscribe(driver, num, fn) {
		return tock.Failure(tock.NOMEM)
	}
	return tock.Success()
}

// lookup records sc, applies the syscall filter and finds the driver. On
// failure it returns the value to hand back to the process.
func (s *syscalls) lookup(sc process.Syscall) (Driver, tock.CommandReturn, bool) {
	s.p.RecordSyscall(sc)
	if err := s.res.SyscallFilter().Filter(s.p, sc); err != nil {
		var ec tock.ErrorCode
		if !errors.As(err, &ec) {
			ec = tock.FAIL
		}
		return nil, tock.Failure(ec), false
	}
	d, ok := s.res.SyscallDriverLookup().Lookup(sc.Driver)
	if !ok {
		return nil, tock.Failure(tock.NODEVICE), false
	}
	return d, tock.CommandReturn{}, true
}

// guard marks panics raised by fn as driver panics.
func guard(fn func() tock.CommandReturn) tock.CommandReturn {
	defer func() {
		if r := recover(); r != nil {
			panic(driverPanic{v: r})
		}
	}()
	return fn()
}
