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

// expired returns true if the alarm (reference, dt) has fired at now.
func expired(now, reference, dt hal.Ticks) bool {
	return now-reference >= dt
}

// remaining returns the ticks until (reference, dt) fires at now.
func remaining(now, reference, dt hal.Ticks) hal.Ticks {
	if expired(now, reference, dt) {
		return 0
	}
	return reference + dt - now
}

// AlarmMux shares one hardware alarm between any number of virtual alarms.
// The hardware compare register always holds the earliest virtual alarm.
type AlarmMux struct {
	alarm    hal.Alarm
	virtuals []*VirtualAlarm
	firing   bool
}

// NewAlarmMux returns a mux over alarm.
func NewAlarmMux(alarm hal.Alarm) *AlarmMux {
	m := &AlarmMux{alarm: alarm}
	alarm.SetAlarmClient(m.fired)
	return m
}

// NewVirtualAlarm returns a new virtual alarm. Virtual alarms are created at
// boot and never freed.
func (m *AlarmMux) NewVirtualAlarm() *VirtualAlarm {
	v := &VirtualAlarm{mux: m}
	m.virtuals = append(m.virtuals, v)
	return v
}

func (m *AlarmMux) rearm() {
	if m.firing {
		return
	}
	now := m.alarm.Now()
	var (
		next  hal.Ticks
		armed bool
	)
	for _, v := range m.virtuals {
		if !v.armed {
			continue
		}
		r := remaining(now, v.reference, v.dt)
		if !armed || r < next {
			next, armed = r, true
		}
	}
	if !armed {
		m.alarm.Disarm()
		return
	}
	m.alarm.SetAlarm(now, next)
}

func (m *AlarmMux) fired() {
	now := m.alarm.Now()
	m.firing = true
	for _, v := range m.virtuals {
		if v.armed && expired(now, v.reference, v.dt) {
			v.armed = false
			if v.client != nil {
				v.client()
			}
		}
	}
	m.firing = false
	m.rearm()
}

// VirtualAlarm is one user of an AlarmMux.
type VirtualAlarm struct {
	mux       *AlarmMux
	armed     bool
	reference hal.Ticks
	dt        hal.Ticks
	client    func()
}

var _ hal.Alarm = (*VirtualAlarm)(nil)

// Now implements hal.Alarm.Now.
func (v *VirtualAlarm) Now() hal.Ticks { return v.mux.alarm.Now() }

// Frequency implements hal.Alarm.Frequency.
func (v *VirtualAlarm) Frequency() physic.Frequency { return v.mux.alarm.Frequency() }

// SetAlarm implements hal.Alarm.SetAlarm.
func (v *VirtualAlarm) SetAlarm(reference, dt hal.Ticks) {
	v.reference, v.dt, v.armed = reference, dt, true
	v.mux.rearm()
}

// Disarm implements hal.Alarm.Disarm.
func (v *VirtualAlarm) Disarm() {
	v.armed = false
	v.mux.rearm()
}

// IsArmed implements hal.Alarm.IsArmed.
func (v *VirtualAlarm) IsArmed() bool { return v.armed }

// SetAlarmClient implements hal.Alarm.SetAlarmClient.
func (v *VirtualAlarm) SetAlarmClient(fn func()) { v.client = fn }

// Alarm commands.
const (
	alarmFrequency   = 1
	alarmNow         = 2
	alarmStop        = 3
	alarmSetRelative = 5
	alarmSetAbsolute = 6
)

type alarmApp struct {
	armed     bool
	reference hal.Ticks
	dt        hal.Ticks
}

// AlarmDriver gives every process its own alarm on top of one virtual
// alarm. Expiry is delivered as upcall 0 with (now, expiration).
type AlarmDriver struct {
	alarm hal.Alarm
	apps  *grantTable[alarmApp]
}

var _ kernel.Driver = (*AlarmDriver)(nil)

// NewAlarmDriver returns a driver using alarm.
func NewAlarmDriver(alarm hal.Alarm, g *kernel.Grant) *AlarmDriver {
	d := &AlarmDriver{alarm: alarm, apps: newGrantTable[alarmApp](g)}
	alarm.SetAlarmClient(d.fired)
	return d
}

// Command implements kernel.Driver.Command.
func (d *AlarmDriver) Command(cmd, arg1, arg2 uint32, pid process.ID) tock.CommandReturn {
	switch cmd {
	case tock.CommandExists:
		return tock.Success()
	case alarmFrequency:
		return tock.SuccessU32(uint32(d.alarm.Frequency() / physic.Hertz))
	case alarmNow:
		return tock.SuccessU32(uint32(d.alarm.Now()))
	}
	app := d.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	switch cmd {
	case alarmStop:
		if !app.armed {
			return tock.Failure(tock.ALREADY)
		}
		app.armed = false
	case alarmSetRelative:
		app.reference, app.dt, app.armed = d.alarm.Now(), hal.Ticks(arg1), true
	case alarmSetAbsolute:
		app.reference, app.dt, app.armed = hal.Ticks(arg1), hal.Ticks(arg2), true
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
	d.rearm()
	if cmd == alarmStop {
		return tock.Success()
	}
	return tock.SuccessU32(uint32(app.reference + app.dt))
}

func (d *AlarmDriver) rearm() {
	now := d.alarm.Now()
	var (
		next  hal.Ticks
		armed bool
	)
	d.apps.each(func(_ process.ID, app *alarmApp) {
		if !app.armed {
			return
		}
		r := remaining(now, app.reference, app.dt)
		if !armed || r < next {
			next, armed = r, true
		}
	})
	if !armed {
		d.alarm.Disarm()
		return
	}
	d.alarm.SetAlarm(now, next)
}

func (d *AlarmDriver) fired() {
	now := d.alarm.Now()
	d.apps.each(func(pid process.ID, app *alarmApp) {
		if app.armed && expired(now, app.reference, app.dt) {
			app.armed = false
			d.apps.schedule(pid, 0, uint32(now), uint32(app.reference+app.dt), 0)
		}
	})
	d.rearm()
}
