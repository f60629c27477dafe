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
	"sync"

	"gvisor.dev/mpboard/pkg/hal"
)

// Power is the POWER peripheral. GPREGRET is retained across system resets
// and is read by the bootloader.
type Power struct {
	nvic *NVIC
	usbd *Usbd

	mu          sync.Mutex
	gpregret    uint8
	usbDetected bool
	usbReady    bool
}

var _ hal.RetainedRegister = (*Power)(nil)

// SetGPRegRet implements hal.RetainedRegister.SetGPRegRet.
func (p *Power) SetGPRegRet(v uint8) {
	p.mu.Lock()
	p.gpregret = v
	p.mu.Unlock()
}

// GPRegRet implements hal.RetainedRegister.GPRegRet.
func (p *Power) GPRegRet() uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gpregret
}

// SetUSBSupply models VBUS appearing or disappearing.
func (p *Power) SetUSBSupply(present bool) {
	p.mu.Lock()
	p.usbDetected = present
	p.usbReady = present
	p.mu.Unlock()
	p.nvic.Raise(IRQPowerClock)
}

// USBPowerReady returns true when the USB regulator is up.
func (p *Power) USBPowerReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usbReady
}

func (p *Power) handleInterrupt() {
	if p.usbd != nil {
		p.usbd.powerEvent(p.USBPowerReady())
	}
}

// Clock is the CLOCK peripheral.
type Clock struct {
	mu        sync.Mutex
	hfStarted bool
	lfStarted bool
}

// StartHigh starts the high frequency crystal oscillator.
func (c *Clock) StartHigh() {
	c.mu.Lock()
	c.hfStarted = true
	c.mu.Unlock()
}

// StartLow starts the low frequency clock.
func (c *Clock) StartLow() {
	c.mu.Lock()
	c.lfStarted = true
	c.mu.Unlock()
}

// Running reports whether the high and low frequency clocks are running.
func (c *Clock) Running() (hf, lf bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hfStarted, c.lfStarted
}
