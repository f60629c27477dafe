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
	"periph.io/x/conn/v3/physic"

	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/hal"
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// BLE commands.
const (
	bleStart = 1
	bleStop  = 2
)

// Advertising parameters.
const (
	// MaxAdvertisingData is the largest advertising payload.
	MaxAdvertisingData = 31

	// MinAdvertisingIntervalMs is the shortest advertising interval.
	MinAdvertisingIntervalMs = 20
)

var advertisingChannels = [...]int{37, 38, 39}

type bleApp struct {
	data        []byte
	advertising bool
	intervalMs  uint32
	due         hal.Ticks
	dueSet      bool
}

// BLE advertises process data on the three advertising channels.
//
// A process shares its advertising data with read-only allow 0 and starts
// advertising with command 1 (arg1 is the interval in milliseconds), or
// stops with command 2. Starting again while advertising changes the
// interval.
type BLE struct {
	radio hal.BLERadio
	alarm hal.Alarm
	apps  *grantTable[bleApp]
	sent  int
}

var (
	_ kernel.Driver          = (*BLE)(nil)
	_ kernel.ReadOnlyAllower = (*BLE)(nil)
)

// NewBLE returns a driver transmitting on radio and timed by alarm.
func NewBLE(radio hal.BLERadio, alarm hal.Alarm, g *kernel.Grant) *BLE {
	b := &BLE{radio: radio, alarm: alarm, apps: newGrantTable[bleApp](g)}
	alarm.SetAlarmClient(b.fired)
	return b
}

// Sent returns the number of advertising events.
func (b *BLE) Sent() int { return b.sent }

// AllowReadOnly implements kernel.ReadOnlyAllower.AllowReadOnly.
func (b *BLE) AllowReadOnly(pid process.ID, num uint32, buf []byte) tock.CommandReturn {
	app := b.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	if num != 0 {
		return tock.Failure(tock.NOSUPPORT)
	}
	if len(buf) > MaxAdvertisingData {
		return tock.Failure(tock.SIZE)
	}
	app.data = buf
	return tock.Success()
}

// Command implements kernel.Driver.Command.
func (b *BLE) Command(cmd, arg1, _ uint32, pid process.ID) tock.CommandReturn {
	if cmd == tock.CommandExists {
		return tock.Success()
	}
	app := b.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	switch cmd {
	case bleStart:
		if arg1 < MinAdvertisingIntervalMs {
			return tock.Failure(tock.INVAL)
		}
		if len(app.data) == 0 {
			return tock.Failure(tock.RESERVE)
		}
		app.advertising, app.intervalMs, app.dueSet = true, arg1, false
		b.advertise(app)
	case bleStop:
		app.advertising = false
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
	b.rearm()
	return tock.Success()
}

func (b *BLE) ticks(ms uint32) hal.Ticks {
	hz := uint64(b.alarm.Frequency() / physic.Hertz)
	return hal.Ticks(uint64(ms) * hz / 1000)
}

// advertise transmits one advertising event for app and schedules the
// next.
func (b *BLE) advertise(app *bleApp) {
	for _, ch := range advertisingChannels {
		_ = b.radio.Advertise(ch, app.data)
	}
	b.sent++
	app.due, app.dueSet = b.alarm.Now()+b.ticks(app.intervalMs), true
}

func (b *BLE) rearm() {
	now := b.alarm.Now()
	var (
		next  hal.Ticks
		armed bool
	)
	b.apps.each(func(_ process.ID, app *bleApp) {
		if !app.advertising || !app.dueSet {
			return
		}
		r := app.due - now
		if int32(r) < 0 {
			r = 0
		}
		if !armed || r < next {
			next, armed = r, true
		}
	})
	if !armed {
		b.alarm.Disarm()
		return
	}
	b.alarm.SetAlarm(now, next)
}

func (b *BLE) fired() {
	now := b.alarm.Now()
	b.apps.each(func(_ process.ID, app *bleApp) {
		if app.advertising && app.dueSet && int32(now-app.due) >= 0 {
			b.advertise(app)
		}
	})
	b.rearm()
}
