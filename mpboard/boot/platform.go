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
	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/arch/cortexm4"
	"gvisor.dev/mpboard/pkg/capsules"
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// Platform owns every syscall driver of the board and the policies lent to
// the kernel. It is immutable once Start returns it.
type Platform struct {
	console    *capsules.Console
	gpio       *capsules.GPIO
	alarm      *capsules.AlarmDriver
	led        *capsules.LED
	button     *capsules.Button
	adc        *capsules.ADC
	rng        *capsules.RNG
	screen     *capsules.SharedScreen
	ble        *capsules.BLE
	ieee802154 *capsules.IEEE802154
	udp        *capsules.UDPDriver
	ipc        *kernel.IPC

	scheduler *process.RoundRobin
	systick   *cortexm4.SysTick
	fault     process.FaultPolicy
}

var (
	_ kernel.DriverLookup = (*Platform)(nil)
	_ kernel.Resources    = (*Platform)(nil)
)

// Lookup implements kernel.DriverLookup.Lookup. Numbers without a driver
// are absent.
func (p *Platform) Lookup(num tock.DriverNum) (kernel.Driver, bool) {
	switch num {
	case tock.DriverConsole:
		return p.console, true
	case tock.DriverGPIO:
		return p.gpio, true
	case tock.DriverAlarm:
		return p.alarm, true
	case tock.DriverLED:
		return p.led, true
	case tock.DriverButton:
		return p.button, true
	case tock.DriverADC:
		return p.adc, true
	case tock.DriverRNG:
		return p.rng, true
	case tock.DriverScreen:
		return p.screen, true
	case tock.DriverBLEAdvertising:
		return p.ble, true
	case tock.DriverIEEE802154:
		return p.ieee802154, true
	case tock.DriverUDP:
		return p.udp, true
	case tock.DriverIPC:
		return p.ipc, true
	default:
		return nil, false
	}
}

// Drivers returns the numbers Lookup resolves, in increasing order.
func (p *Platform) Drivers() []tock.DriverNum {
	var nums []tock.DriverNum
	for _, d := range tock.AllDrivers() {
		if _, ok := p.Lookup(d); ok {
			nums = append(nums, d)
		}
	}
	return nums
}

// IPC returns the IPC driver.
func (p *Platform) IPC() *kernel.IPC { return p.ipc }

// Screen returns the shared screen.
func (p *Platform) Screen() *capsules.SharedScreen { return p.screen }

// LED returns the LED driver.
func (p *Platform) LED() *capsules.LED { return p.led }

// UDP returns the UDP driver.
func (p *Platform) UDP() *capsules.UDPDriver { return p.udp }

// SyscallDriverLookup implements kernel.Resources.SyscallDriverLookup.
func (p *Platform) SyscallDriverLookup() kernel.DriverLookup { return p }

// SyscallFilter implements kernel.Resources.SyscallFilter.
func (p *Platform) SyscallFilter() kernel.SyscallFilter { return kernel.AllowAllSyscalls{} }

// ProcessFault implements kernel.Resources.ProcessFault.
func (p *Platform) ProcessFault() process.FaultPolicy { return p.fault }

// Scheduler implements kernel.Resources.Scheduler.
func (p *Platform) Scheduler() kernel.Scheduler { return p.scheduler }

// SchedulerTimer implements kernel.Resources.SchedulerTimer.
func (p *Platform) SchedulerTimer() kernel.SchedulerTimer { return p.systick }

// Watchdog implements kernel.Resources.Watchdog.
func (p *Platform) Watchdog() kernel.Watchdog { return kernel.NoWatchdog{} }

// ContextSwitchCallback implements kernel.Resources.ContextSwitchCallback.
func (p *Platform) ContextSwitchCallback() kernel.ContextSwitchCallback {
	return kernel.NoContextSwitch{}
}
