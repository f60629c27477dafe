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
	"fmt"

	"periph.io/x/conn/v3/gpio"

	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/hal"
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// Button commands.
const (
	buttonCount   = 0
	buttonEnable  = 1
	buttonDisable = 2
	buttonRead    = 3
)

// ButtonPin describes one button.
type ButtonPin struct {
	Pin       hal.InterruptPin
	ActiveLow bool
	Pull      gpio.Pull
}

type buttonApp struct {
	enabled uint32
}

// Button reports button presses. Processes enable interrupts per button and
// receive upcall 0 with (button, pressed).
type Button struct {
	buttons []ButtonPin
	apps    *grantTable[buttonApp]
}

var _ kernel.Driver = (*Button)(nil)

// NewButton returns a driver for buttons and configures their pins as
// inputs reporting both edges.
func NewButton(g *kernel.Grant, buttons ...ButtonPin) (*Button, error) {
	if len(buttons) > 32 {
		return nil, fmt.Errorf("%d buttons, at most 32 supported", len(buttons))
	}
	b := &Button{buttons: buttons, apps: newGrantTable[buttonApp](g)}
	for i, bp := range buttons {
		if err := bp.Pin.In(bp.Pull, gpio.BothEdges); err != nil {
			return nil, fmt.Errorf("configuring button %d on %s: %w", i, bp.Pin, err)
		}
		bp.Pin.SetEdgeClient(func() { b.event(i) })
	}
	return b, nil
}

// Pressed returns true if button i is pressed.
func (b *Button) Pressed(i int) bool {
	bp := b.buttons[i]
	return bool(bp.Pin.Read()) != bp.ActiveLow
}

// Command implements kernel.Driver.Command.
func (b *Button) Command(cmd, arg1, _ uint32, pid process.ID) tock.CommandReturn {
	if cmd == buttonCount {
		return tock.SuccessU32(uint32(len(b.buttons)))
	}
	app := b.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	i := int(arg1)
	if i >= len(b.buttons) {
		return tock.Failure(tock.INVAL)
	}
	switch cmd {
	case buttonEnable:
		app.enabled |= 1 << i
	case buttonDisable:
		app.enabled &^= 1 << i
	case buttonRead:
		if b.Pressed(i) {
			return tock.SuccessU32(1)
		}
		return tock.SuccessU32(0)
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
	return tock.Success()
}

func (b *Button) event(i int) {
	pressed := uint32(0)
	if b.Pressed(i) {
		pressed = 1
	}
	b.apps.each(func(pid process.ID, app *buttonApp) {
		if app.enabled&(1<<i) != 0 {
			b.apps.schedule(pid, 0, uint32(i), pressed, 0)
		}
	})
}
