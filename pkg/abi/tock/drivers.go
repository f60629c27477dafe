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

// Package tock contains the constants and types of the userspace system call
// interface: driver numbers, error codes and command return values.
package tock

import (
	"fmt"
	"sort"
)

// DriverNum is the number a process uses to address a syscall driver.
type DriverNum uint32

// Syscall driver numbers. These values are the userspace ABI and must never
// change.
const (
	// DriverAlarm is the virtualized alarm/timer driver.
	DriverAlarm DriverNum = 0x00000

	// DriverConsole is the text console.
	DriverConsole DriverNum = 0x00001

	// DriverLED controls the board LEDs.
	DriverLED DriverNum = 0x00002

	// DriverButton reports button presses.
	DriverButton DriverNum = 0x00003

	// DriverGPIO exposes general purpose pins.
	DriverGPIO DriverNum = 0x00004

	// DriverADC samples analog inputs.
	DriverADC DriverNum = 0x00005

	// DriverIPC is inter-process communication.
	DriverIPC DriverNum = 0x10000

	// DriverBLEAdvertising is the Bluetooth Low Energy advertising radio.
	DriverBLEAdvertising DriverNum = 0x30000

	// DriverIEEE802154 is the low-power wireless radio.
	DriverIEEE802154 DriverNum = 0x30001

	// DriverUDP is datagram networking over 6LoWPAN.
	DriverUDP DriverNum = 0x30002

	// DriverRNG is the random number generator.
	DriverRNG DriverNum = 0x40001

	// DriverScreen is the (shared) display.
	DriverScreen DriverNum = 0x90001
)

var driverNames = map[DriverNum]string{
	DriverAlarm:          "alarm",
	DriverConsole:        "console",
	DriverLED:            "led",
	DriverButton:         "button",
	DriverGPIO:           "gpio",
	DriverADC:            "adc",
	DriverIPC:            "ipc",
	DriverBLEAdvertising: "ble_advertising",
	DriverIEEE802154:     "ieee802154",
	DriverUDP:            "udp",
	DriverRNG:            "rng",
	DriverScreen:         "screen",
}

// String implements fmt.Stringer.
func (d DriverNum) String() string {
	if name, ok := driverNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DriverNum(%#x)", uint32(d))
}

// Known returns true if d is one of the numbers above.
func (d DriverNum) Known() bool {
	_, ok := driverNames[d]
	return ok
}

// AllDrivers returns every known driver number in increasing order.
func AllDrivers() []DriverNum {
	all := make([]DriverNum, 0, len(driverNames))
	for d := range driverNames {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	return all
}

// DriverByName returns the driver number with the given name.
func DriverByName(name string) (DriverNum, bool) {
	for d, n := range driverNames {
		if n == name {
			return d, true
		}
	}
	return 0, false
}
