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

// Console commands.
const (
	consolePutStr = 1
	consoleGetStr = 2
	consoleAbort  = 3
)

// Console upcalls.
const (
	consoleWriteDone = 1
	consoleReadDone  = 2
)

type consoleApp struct {
	writeBuf []byte
	readBuf  []byte
	readLen  int
	readPos  int
	reading  bool
}

// Console is the text console driver. Processes share a buffer with
// read-only allow 1 and call putstr; the write-done upcall carries the
// number of bytes written. Reads share a buffer with read-write allow 1 and
// call getnstr; the read-done upcall carries (status, length).
type Console struct {
	uart hal.UART
	apps *grantTable[consoleApp]
}

var (
	_ kernel.Driver           = (*Console)(nil)
	_ kernel.ReadOnlyAllower  = (*Console)(nil)
	_ kernel.ReadWriteAllower = (*Console)(nil)
)

// NewConsole returns a console writing to uart.
func NewConsole(uart hal.UART, g *kernel.Grant) *Console {
	c := &Console{uart: uart, apps: newGrantTable[consoleApp](g)}
	uart.SetReceiveClient(c.receive)
	return c
}

// AllowReadOnly implements kernel.ReadOnlyAllower.AllowReadOnly.
func (c *Console) AllowReadOnly(pid process.ID, num uint32, buf []byte) tock.CommandReturn {
	app := c.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	if num != 1 {
		return tock.Failure(tock.NOSUPPORT)
	}
	app.writeBuf = buf
	return tock.Success()
}

// AllowReadWrite implements kernel.ReadWriteAllower.AllowReadWrite.
func (c *Console) AllowReadWrite(pid process.ID, num uint32, buf []byte) tock.CommandReturn {
	app := c.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	if num != 1 {
		return tock.Failure(tock.NOSUPPORT)
	}
	app.readBuf = buf
	return tock.Success()
}

// Command implements kernel.Driver.Command.
func (c *Console) Command(cmd, arg1, _ uint32, pid process.ID) tock.CommandReturn {
	if cmd == tock.CommandExists {
		return tock.Success()
	}
	app := c.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	switch cmd {
	case consolePutStr:
		n := int(arg1)
		if n > len(app.writeBuf) {
			n = len(app.writeBuf)
		}
		if n == 0 {
			return tock.Failure(tock.SIZE)
		}
		if _, err := c.uart.Transmit(app.writeBuf[:n]); err != nil {
			return tock.Failure(tock.FAIL)
		}
		c.apps.schedule(pid, consoleWriteDone, uint32(n), 0, 0)
		return tock.Success()
	case consoleGetStr:
		if app.reading {
			return tock.Failure(tock.BUSY)
		}
		n := int(arg1)
		if n == 0 || n > len(app.readBuf) {
			return tock.Failure(tock.SIZE)
		}
		app.reading, app.readLen, app.readPos = true, n, 0
		return tock.Success()
	case consoleAbort:
		if !app.reading {
			return tock.Failure(tock.ALREADY)
		}
		app.reading = false
		c.apps.schedule(pid, consoleReadDone, uint32(tock.CANCEL), uint32(app.readPos), 0)
		return tock.Success()
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
}

// receive hands input to the first process with a read outstanding.
func (c *Console) receive(p []byte) {
	c.apps.each(func(pid process.ID, app *consoleApp) {
		if len(p) == 0 || !app.reading {
			return
		}
		if app.readLen > len(app.readBuf) {
			// The buffer was swapped for a smaller one mid-read.
			app.reading = false
			c.apps.schedule(pid, consoleReadDone, uint32(tock.SIZE), uint32(app.readPos), 0)
			return
		}
		n := copy(app.readBuf[app.readPos:app.readLen], p)
		app.readPos += n
		p = p[n:]
		if app.readPos == app.readLen {
			app.reading = false
			c.apps.schedule(pid, consoleReadDone, 0, uint32(app.readPos), 0)
		}
	})
}
