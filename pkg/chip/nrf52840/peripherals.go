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

// Package nrf52840 simulates the nRF52840 SoC peripherals that the
// MakePython board uses.
//
// Construction is two-phase. NewPeripherals allocates every peripheral with
// no references between them; Init then wires the references that form
// cycles (the 802.15.4 radio and TIMER0, USBD and POWER, the AES engine and
// the radio). No peripheral may be used before Init.
package nrf52840

import (
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio/gpiotest"

	"gvisor.dev/mpboard/pkg/log"
)

// Peripherals owns every peripheral of the chip.
type Peripherals struct {
	NVIC       *NVIC
	GPIO       Port
	GPIOTE     *GPIOTE
	RTC        *RTC
	Timer0     *Timer
	Power      *Power
	Clock      *Clock
	TRNG       *TRNG
	SAADC      *SAADC
	TWI1       *TWI
	Usbd       *Usbd
	BLERadio   *BLERadio
	IEEE802154 *IEEE802154Radio
	ECB        *AESECB
	NVMC       *NVMC
	FICR       FICR
	Air        *Air

	initialized atomic.Bool
}

// NewPeripherals allocates the peripherals. ackBuf holds received
// IEEE 802.15.4 acknowledgements and must be ACKBufSize bytes.
func NewPeripherals(ackBuf []byte) *Peripherals {
	if len(ackBuf) != ACKBufSize {
		panic(fmt.Sprintf("ack buffer is %d bytes, want %d", len(ackBuf), ACKBufSize))
	}
	nvic := newNVIC()
	air := &Air{}
	p := &Peripherals{
		NVIC:       nvic,
		GPIOTE:     &GPIOTE{nvic: nvic},
		RTC:        &RTC{nvic: nvic},
		Timer0:     &Timer{nvic: nvic, irq: IRQTimer0},
		Power:      &Power{nvic: nvic},
		Clock:      &Clock{},
		TRNG:       &TRNG{},
		SAADC:      &SAADC{},
		Usbd:       &Usbd{nvic: nvic},
		BLERadio:   &BLERadio{air: air},
		IEEE802154: &IEEE802154Radio{nvic: nvic, air: air, ackBuf: ackBuf, channel: 26},
		ECB:        &AESECB{nvic: nvic},
		NVMC:       newNVMC(),
		FICR:       DefaultFICR,
		Air:        air,
	}
	for i := range p.GPIO {
		pin := Pin(i)
		p.GPIO[i] = &GPIOPin{
			Pin:    &gpiotest.Pin{N: pin.String(), Num: i},
			pin:    pin,
			gpiote: p.GPIOTE,
		}
	}
	p.TWI1 = &TWI{name: "TWI1", port: &p.GPIO}
	return p
}

// Init wires the circular references between peripherals.
func (p *Peripherals) Init() {
	if !p.initialized.CompareAndSwap(false, true) {
		panic("nrf52840 peripherals initialized twice")
	}
	p.IEEE802154.timer = p.Timer0
	p.Timer0.SetClient(p.IEEE802154.ackTimeout)

	p.Usbd.power = p.Power
	p.Power.usbd = p.Usbd

	p.IEEE802154.aes = p.ECB
	p.ECB.SetClient(p.IEEE802154.cryptComplete)
	log.Debugf("nrf52840: peripheral references resolved")
}

// Initialized returns true after Init.
func (p *Peripherals) Initialized() bool {
	return p.initialized.Load()
}
