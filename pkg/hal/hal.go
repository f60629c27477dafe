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

// Package hal defines the narrow hardware interfaces that capsules consume.
//
// Pins and I2C buses use the periph.io connection types directly. The
// remaining interfaces are deliberately small: capsules only need the
// operations listed here, and chips implement them however they like.
//
// All client callbacks registered through this package are invoked from
// interrupt servicing on the kernel loop, never concurrently with it.
package hal

import (
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Pin is a general purpose I/O pin.
type Pin = gpio.PinIO

// InterruptPin is a pin that reports edges. Which edges are reported is
// chosen by the edge argument of In.
type InterruptPin interface {
	Pin

	// SetEdgeClient registers fn to be called on every reported edge.
	SetEdgeClient(fn func())
}

// Ticks is a count of hardware timer ticks. Arithmetic wraps.
type Ticks uint32

// Alarm is a free running counter with a single compare register.
type Alarm interface {
	// Now returns the current counter value.
	Now() Ticks

	// Frequency returns the counter frequency.
	Frequency() physic.Frequency

	// SetAlarm arms the compare register to fire at reference+dt.
	SetAlarm(reference, dt Ticks)

	// Disarm cancels a pending alarm.
	Disarm()

	// IsArmed returns true if an alarm is pending.
	IsArmed() bool

	// SetAlarmClient registers fn to be called when the alarm fires.
	SetAlarmClient(fn func())
}

// UART is a byte transport. Transmit never blocks: bytes that cannot be
// accepted are reported through the returned count.
type UART interface {
	// Transmit queues p for transmission and returns the number of bytes
	// accepted.
	Transmit(p []byte) (int, error)

	// SetReceiveClient registers fn to be called with received bytes.
	SetReceiveClient(fn func(p []byte))
}

// Entropy is a source of random bytes.
type Entropy interface {
	// Read fills p with random bytes.
	Read(p []byte) (int, error)
}

// ADC samples analog channels.
type ADC interface {
	// Channels returns the number of configured channels.
	Channels() int

	// Sample returns a single reading of channel ch.
	Sample(ch int) (uint16, error)
}

// BLERadio transmits advertisement packets.
type BLERadio interface {
	// Advertise transmits payload on the given advertising channel (37-39).
	Advertise(channel int, payload []byte) error
}

// Radio802154 is an IEEE 802.15.4 transceiver.
type Radio802154 interface {
	// Configure sets the PAN and addresses used for address filtering.
	Configure(pan uint16, short uint16, long [8]byte)

	// Transmit sends a frame.
	Transmit(frame []byte) error

	// SetTransmitClient registers fn to be called when a transmission
	// completes. acked is false if an acknowledgement was requested and
	// none arrived.
	SetTransmitClient(fn func(acked bool))

	// SetReceiveClient registers fn to be called with received frames.
	SetReceiveClient(fn func(frame []byte))
}

// AES128 is a block cipher engine.
type AES128 interface {
	// SetKey installs a 16 byte key.
	SetKey(key []byte) error

	// Encrypt encrypts one block from src into dst.
	Encrypt(dst, src []byte) error
}

// RetainedRegister is a register that survives a system reset.
type RetainedRegister interface {
	// SetGPRegRet writes the retained register.
	SetGPRegRet(v uint8)

	// GPRegRet reads the retained register.
	GPRegRet() uint8
}

// Resetter triggers a system reset.
type Resetter interface {
	Reset()
}
