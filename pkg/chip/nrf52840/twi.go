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
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// ErrNACK is returned for transfers that no device acknowledges.
var ErrNACK = errors.New("twi: address not acknowledged")

// TWI is an I2C master. Transfers are forwarded to Backend; without a
// backend writes are accepted and discarded and reads are not acknowledged.
type TWI struct {
	name string
	port *Port

	mu      sync.Mutex
	Backend i2c.Bus
	scl     Pin
	sda     Pin
	speed   physic.Frequency
	written int
}

var (
	_ i2c.Bus  = (*TWI)(nil)
	_ i2c.Pins = (*TWI)(nil)
)

// Configure selects the SCL and SDA pins.
func (t *TWI) Configure(scl, sda Pin) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scl, t.sda = scl, sda
}

// String implements i2c.Bus.
func (t *TWI) String() string {
	return fmt.Sprintf("%s(scl=%v, sda=%v)", t.name, t.scl, t.sda)
}

// Tx implements i2c.Bus.
func (t *TWI) Tx(addr uint16, w, r []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written += len(w)
	if t.Backend != nil {
		return t.Backend.Tx(addr, w, r)
	}
	if len(r) != 0 {
		return ErrNACK
	}
	return nil
}

// SetSpeed implements i2c.Bus.
func (t *TWI) SetSpeed(f physic.Frequency) error {
	if f != 100*physic.KiloHertz && f != 250*physic.KiloHertz && f != 400*physic.KiloHertz {
		return fmt.Errorf("twi: unsupported speed %v", f)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.speed = f
	return nil
}

// SCL implements i2c.Pins.
func (t *TWI) SCL() gpio.PinIO {
	return t.port.At(t.scl)
}

// SDA implements i2c.Pins.
func (t *TWI) SDA() gpio.PinIO {
	return t.port.At(t.sda)
}

// BytesWritten returns the number of bytes written on the bus.
func (t *TWI) BytesWritten() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written
}
