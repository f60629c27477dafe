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

package capsules

import (
	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/hal"
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

const rngGet = 1

type rngApp struct {
	buf []byte
}

// RNG fills a process buffer (read-write allow 0) with random bytes. The
// upcall 0 carries (0, bytes filled).
type RNG struct {
	src  hal.Entropy
	apps *grantTable[rngApp]
}

var (
	_ kernel.Driver           = (*RNG)(nil)
	_ kernel.ReadWriteAllower = (*RNG)(nil)
)

// NewRNG returns a driver reading from src.
func NewRNG(src hal.Entropy, g *kernel.Grant) *RNG {
	return &RNG{src: src, apps: newGrantTable[rngApp](g)}
}

// AllowReadWrite implements kernel.ReadWriteAllower.AllowReadWrite.
func (r *RNG) AllowReadWrite(pid process.ID, num uint32, buf []byte) tock.CommandReturn {
	app := r.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	if num != 0 {
		return tock.Failure(tock.NOSUPPORT)
	}
	app.buf = buf
	return tock.Success()
}

// Command implements kernel.Driver.Command.
func (r *RNG) Command(cmd, arg1, _ uint32, pid process.ID) tock.CommandReturn {
	switch cmd {
	case tock.CommandExists:
		return tock.Success()
	case rngGet:
		app := r.apps.get(pid)
		if app == nil {
			return tock.Failure(tock.FAIL)
		}
		n := min(int(arg1), len(app.buf))
		if n == 0 {
			return tock.Failure(tock.SIZE)
		}
		got, err := r.src.Read(app.buf[:n])
		if err != nil {
			return tock.Failure(tock.FAIL)
		}
		r.apps.schedule(pid, 0, 0, uint32(got), 0)
		return tock.Success()
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
}
