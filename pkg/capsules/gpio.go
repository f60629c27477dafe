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
	"periph.io/x/conn/v3/gpio"

	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/hal"
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// GPIO commands.
const (
	gpioOutput     = 1
	gpioSet        = 2
	gpioClear      = 3
	gpioToggle     = 4
	gpioInput      = 5
	gpioRead       = 6
	gpioIRQEnable  = 7
	gpioIRQDisable = 8
	gpioDisable    = 9
	gpioCount      = 10
)

var gpioPulls = [...]gpio.Pull{gpio.Float, gpio.PullUp, gpio.PullDown}

var gpioEdges = [...]gpio.Edge{gpio.BothEdges, gpio.RisingEdge, gpio.FallingEdge}

type gpioPin struct {
	pin  hal.InterruptPin
	pull gpio.Pull
	edge gpio.Edge
}

// GPIO exposes general purpose pins to processes. Pin events are delivered
// as upcall 0 with (pin, level) to every process that has used the driver.
type GPIO struct {
	pins []gpioPin
	apps *grantTable[struct{}]
}

var _ kernel.Driver = (*GPIO)(nil)

// NewGPIO returns a driver for pins. Pin i of the driver is pins[i].
func NewGPIO(g *kernel.Grant, pins ...hal.InterruptPin) *GPIO {
	d := &GPIO{pins: make([]gpioPin, len(pins)), apps: newGrantTable[struct{}](g)}
	for i, p := range pins {
		d.pins[i] = gpioPin{pin: p, pull: gpio.Float, edge: gpio.NoEdge}
		p.SetEdgeClient(func() { d.event(i) })
	}
	return d
}

// Command implements kernel.Driver.Command.
func (d *GPIO) Command(cmd, arg1, arg2 uint32, pid process.ID) tock.CommandReturn {
	d.apps.get(pid)
	switch cmd {
	case tock.CommandExists:
		return tock.Success()
	case gpioCount:
		return tock.SuccessU32(uint32(len(d.pins)))
	}
	if int(arg1) >= len(d.pins) {
		return tock.Failure(tock.INVAL)
	}
	p := &d.pins[arg1]
	switch cmd {
	case gpioOutput:
		return d.drive(p, p.pin.Read())
	case gpioSet:
		return d.drive(p, gpio.High)
	case gpioClear:
		return d.drive(p, gpio.Low)
	case gpioToggle:
		return d.drive(p, !p.pin.Read())
	case gpioInput:
		if int(arg2) >= len(gpioPulls) {
			return tock.Failure(tock.INVAL)
		}
		p.pull = gpioPulls[arg2]
		return d.configure(p)
	case gpioRead:
		if p.pin.Read() {
			return tock.SuccessU32(1)
		}
		return tock.SuccessU32(0)
	case gpioIRQEnable:
		if int(arg2) >= len(gpioEdges) {
			return tock.Failure(tock.INVAL)
		}
		p.edge = gpioEdges[arg2]
		return d.configure(p)
	case gpioIRQDisable:
		p.edge = gpio.NoEdge
		return d.configure(p)
	case gpioDisable:
		p.pull, p.edge = gpio.Float, gpio.NoEdge
		return d.configure(p)
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
}

func (d *GPIO) drive(p *gpioPin, l gpio.Level) tock.CommandReturn {
	if err := p.pin.Out(l); err != nil {
		return tock.Failure(tock.FAIL)
	}
	return tock.Success()
}

func (d *GPIO) configure(p *gpioPin) tock.CommandReturn {
	if err := p.pin.In(p.pull, p.edge); err != nil {
		return tock.Failure(tock.FAIL)
	}
	return tock.Success()
}

func (d *GPIO) event(i int) {
	level := uint32(0)
	if d.pins[i].pin.Read() {
		level = 1
	}
	d.apps.each(func(pid process.ID, _ *struct{}) {
		d.apps.schedule(pid, 0, uint32(i), level, 0)
	})
}
