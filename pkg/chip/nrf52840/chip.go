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
	"io"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"gvisor.dev/mpboard/pkg/log"
)

// DefaultIdleTimeout bounds how long Sleep blocks with no alarm armed.
const DefaultIdleTimeout = 10 * time.Millisecond

var socInit sync.Once

// Init performs SoC-level initialization: errata workarounds and enabling
// the instruction cache. It is idempotent.
func Init() {
	socInit.Do(func() {
		log.Debugf("nrf52840: applied errata workarounds, instruction cache enabled")
	})
}

// Chip is the nRF52840 chip as seen by the kernel.
type Chip struct {
	p        *Peripherals
	handlers [64]func()
	counts   [64]atomic.Uint64

	// IdleTimeout bounds how long Sleep waits for an interrupt when no
	// alarm is armed. Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration

	// Pace makes Sleep wait in real time for armed alarms instead of
	// fast-forwarding the RTC to them.
	Pace bool
}

// NewChip returns the chip for initialized peripherals.
func NewChip(p *Peripherals) *Chip {
	if !p.Initialized() {
		panic("nrf52840: NewChip before Peripherals.Init")
	}
	c := &Chip{p: p}
	c.handlers[IRQPowerClock] = p.Power.handleInterrupt
	c.handlers[IRQRadio] = p.IEEE802154.handleInterrupt
	c.handlers[IRQGPIOTE] = p.GPIOTE.handleInterrupt
	c.handlers[IRQTimer0] = p.Timer0.handleInterrupt
	c.handlers[IRQECB] = p.ECB.handleInterrupt
	c.handlers[IRQRTC1] = p.RTC.handleInterrupt
	c.handlers[IRQUSBD] = p.Usbd.handleInterrupt
	return c
}

// Peripherals returns the chip's peripherals.
func (c *Chip) Peripherals() *Peripherals { return c.p }

// HasPendingInterrupts implements kernel.Chip.HasPendingInterrupts.
func (c *Chip) HasPendingInterrupts() bool {
	return c.p.NVIC.Pending()
}

// ServicePendingInterrupts implements kernel.Chip.ServicePendingInterrupts.
func (c *Chip) ServicePendingInterrupts() {
	for {
		pending := c.p.NVIC.Take()
		if pending == 0 {
			return
		}
		for pending != 0 {
			irq := bits.TrailingZeros64(pending)
			pending &^= 1 << irq
			c.counts[irq].Add(1)
			if h := c.handlers[irq]; h != nil {
				h()
			}
		}
	}
}

// Sleep implements kernel.Chip.Sleep. Virtual RTC time advances by the time
// slept; with Pace unset an armed alarm is reached immediately.
func (c *Chip) Sleep() {
	if c.p.NVIC.Pending() {
		return
	}
	idle := c.IdleTimeout
	if idle == 0 {
		idle = DefaultIdleTimeout
	}
	ticks, armed := c.p.RTC.untilAlarm()
	if armed && !c.Pace {
		c.p.RTC.Advance(ticks)
		return
	}
	wait := idle
	if armed && TicksToDuration(ticks) < wait {
		wait = TicksToDuration(ticks)
	}
	start := time.Now()
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-c.p.NVIC.wake:
		c.p.RTC.Advance(DurationToTicks(time.Since(start)))
	case <-t.C:
		if armed && wait < idle {
			c.p.RTC.Advance(ticks)
		} else {
			c.p.RTC.Advance(DurationToTicks(wait))
		}
	}
}

// WriteState implements kernel.Chip.WriteState.
func (c *Chip) WriteState(w io.Writer) {
	fmt.Fprintf(w, "nRF52840 state:\n")
	fmt.Fprintf(w, " RTC1 counter: %d   alarm armed: %t\n", c.p.RTC.Now(), c.p.RTC.IsArmed())
	fmt.Fprintf(w, " GPREGRET: 0x%02x\n", c.p.Power.GPRegRet())
	fmt.Fprintf(w, " USB attached: %t\n", c.p.Usbd.Attached())
	fmt.Fprintf(w, " Radio packets: %d\n", c.p.Air.Count())
	fmt.Fprintf(w, " Interrupts serviced:")
	for i := range c.counts {
		if n := c.counts[i].Load(); n > 0 {
			fmt.Fprintf(w, " %v=%d", IRQ(i), n)
		}
	}
	fmt.Fprintf(w, "\n")
}
