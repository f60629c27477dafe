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

package nrf52840

import (
	"fmt"
	"sync/atomic"
)

// IRQ is an interrupt number.
type IRQ uint

// Interrupt numbers of the peripherals this package models.
const (
	IRQPowerClock IRQ = 0
	IRQRadio      IRQ = 1
	IRQTWI1       IRQ = 4
	IRQGPIOTE     IRQ = 6
	IRQSAADC      IRQ = 7
	IRQTimer0     IRQ = 8
	IRQRNG        IRQ = 13
	IRQECB        IRQ = 14
	IRQRTC1       IRQ = 17
	IRQUSBD       IRQ = 39
)

var irqNames = map[IRQ]string{
	IRQPowerClock: "POWER_CLOCK",
	IRQRadio:      "RADIO",
	IRQTWI1:       "SPI1_TWI1",
	IRQGPIOTE:     "GPIOTE",
	IRQSAADC:      "SAADC",
	IRQTimer0:     "TIMER0",
	IRQRNG:        "RNG",
	IRQECB:        "ECB",
	IRQRTC1:       "RTC1",
	IRQUSBD:       "USBD",
}

// String implements fmt.Stringer.
func (i IRQ) String() string {
	if s, ok := irqNames[i]; ok {
		return s
	}
	return fmt.Sprintf("IRQ(%d)", uint(i))
}

// NVIC holds pending interrupts. Raise may be called from any goroutine;
// Take is called only by the kernel loop.
type NVIC struct {
	pending atomic.Uint64
	wake    chan struct{}
}

func newNVIC() *NVIC {
	return &NVIC{wake: make(chan struct{}, 1)}
}

// Raise marks irq pending and wakes a sleeping core.
func (n *NVIC) Raise(irq IRQ) {
	n.pending.Or(1 << irq)
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

// Pending returns true if any interrupt is pending.
func (n *NVIC) Pending() bool {
	return n.pending.Load() != 0
}

// Take clears and returns the pending set.
func (n *NVIC) Take() uint64 {
	return n.pending.Swap(0)
}
