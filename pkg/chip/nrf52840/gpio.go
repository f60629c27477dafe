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
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"gvisor.dev/mpboard/pkg/hal"
)

// NumPins is the number of GPIO pins across both ports.
const NumPins = 48

// Pin numbers a GPIO pin as port*32 + index.
type Pin uint8

// Pins used by boards. The full space is reachable through PinAt.
const (
	P0_06 Pin = 6
	P0_07 Pin = 7
	P0_08 Pin = 8
	P0_09 Pin = 9
	P0_12 Pin = 12
	P0_18 Pin = 18
	P0_23 Pin = 23
	P0_26 Pin = 26
	P0_27 Pin = 27
	P1_10 Pin = 32 + 10
	P1_11 Pin = 32 + 11
	P1_15 Pin = 32 + 15
)

// PinAt returns pin n of port.
func PinAt(port, n int) Pin {
	if port < 0 || port > 1 || n < 0 || n > 31 || (port == 1 && n > 15) {
		panic(fmt.Sprintf("no pin P%d.%02d", port, n))
	}
	return Pin(port*32 + n)
}

// String implements fmt.Stringer.
func (p Pin) String() string {
	return fmt.Sprintf("P%d.%02d", p/32, p%32)
}

// GPIOPin is one pin of the GPIO port. Its electrical state is modelled by
// an embedded gpiotest.Pin; edge detection is routed to GPIOTE.
type GPIOPin struct {
	*gpiotest.Pin

	pin    Pin
	gpiote *GPIOTE

	mu   sync.Mutex
	edge gpio.Edge
}

var _ hal.InterruptPin = (*GPIOPin)(nil)

// In implements gpio.PinIn. Edge detection is handled by GPIOTE rather
// than by the embedded pin.
func (p *GPIOPin) In(pull gpio.Pull, edge gpio.Edge) error {
	p.mu.Lock()
	p.edge = edge
	p.mu.Unlock()
	return p.Pin.In(pull, gpio.NoEdge)
}

// Drive sets the pin level from outside the chip, as a button or a wire
// would, and raises a GPIOTE event if the change matches the configured
// edge.
func (p *GPIOPin) Drive(l gpio.Level) {
	prev := p.Pin.Read()
	_ = p.Pin.Out(l)
	if prev == l {
		return
	}
	p.mu.Lock()
	edge := p.edge
	p.mu.Unlock()
	if edge == gpio.BothEdges || (edge == gpio.RisingEdge && l == gpio.High) || (edge == gpio.FallingEdge && l == gpio.Low) {
		p.gpiote.event(p.pin)
	}
}

// SetEdgeClient implements hal.InterruptPin.SetEdgeClient.
func (p *GPIOPin) SetEdgeClient(fn func()) {
	p.gpiote.SetClient(p.pin, fn)
}

// Port is the GPIO port.
type Port [NumPins]*GPIOPin

// At returns the pin p.
func (port *Port) At(p Pin) *GPIOPin {
	return port[p]
}

// GPIOTE delivers pin events as interrupts.
type GPIOTE struct {
	nvic *NVIC

	mu      sync.Mutex
	pending uint64
	clients [NumPins]func()
}

// SetClient registers fn to be called on events from pin p.
func (g *GPIOTE) SetClient(p Pin, fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.clients[p] = fn
}

func (g *GPIOTE) event(p Pin) {
	g.mu.Lock()
	g.pending |= 1 << p
	g.mu.Unlock()
	g.nvic.Raise(IRQGPIOTE)
}

func (g *GPIOTE) handleInterrupt() {
	g.mu.Lock()
	pending := g.pending
	g.pending = 0
	clients := g.clients
	g.mu.Unlock()
	for p := 0; p < NumPins; p++ {
		if pending&(1<<p) != 0 && clients[p] != nil {
			clients[p]()
		}
	}
}
