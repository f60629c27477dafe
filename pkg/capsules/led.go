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

// LED commands.
const (
	ledCount  = 0
	ledOn     = 1
	ledOff    = 2
	ledToggle = 3
)

// LED drives the board LEDs. Command 0 returns the number of LEDs.
type LED struct {
	pins      []hal.Pin
	activeLow bool
}

var _ kernel.Driver = (*LED)(nil)

// NewLED returns a driver for pins, all of which start off. With activeLow
// set an LED is lit by driving its pin low.
func NewLED(activeLow bool, pins ...hal.Pin) *LED {
	l := &LED{pins: pins, activeLow: activeLow}
	for i := range pins {
		l.set(i, false)
	}
	return l
}

func (l *LED) set(i int, on bool) {
	level := gpio.Level(on != l.activeLow)
	_ = l.pins[i].Out(level)
}

// IsOn returns true if LED i is lit.
func (l *LED) IsOn(i int) bool {
	return bool(l.pins[i].Read()) != l.activeLow
}

// Command implements kernel.Driver.Command.
func (l *LED) Command(cmd, arg1, _ uint32, _ process.ID) tock.CommandReturn {
	if cmd == ledCount {
		return tock.SuccessU32(uint32(len(l.pins)))
	}
	i := int(arg1)
	if i >= len(l.pins) {
		return tock.Failure(tock.INVAL)
	}
	switch cmd {
	case ledOn:
		l.set(i, true)
	case ledOff:
		l.set(i, false)
	case ledToggle:
		l.set(i, !l.IsOn(i))
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
	return tock.Success()
}
