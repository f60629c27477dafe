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
	"gvisor.dev/mpboard/pkg/hal"
)

// UartMux shares one UART between several users. Output from each device is
// passed through in call order; received bytes go to every device that has
// a receive client.
type UartMux struct {
	uart    hal.UART
	baud    uint32
	devices []*MuxDevice
}

// NewUartMux returns a mux over uart, which runs at baud.
func NewUartMux(uart hal.UART, baud uint32) *UartMux {
	m := &UartMux{uart: uart, baud: baud}
	uart.SetReceiveClient(m.receive)
	return m
}

// Baud returns the configured line rate.
func (m *UartMux) Baud() uint32 { return m.baud }

// NewDevice returns a new user of the mux.
func (m *UartMux) NewDevice(name string) *MuxDevice {
	d := &MuxDevice{mux: m, name: name}
	m.devices = append(m.devices, d)
	return d
}

// Devices returns the devices in creation order.
func (m *UartMux) Devices() []*MuxDevice {
	return append([]*MuxDevice(nil), m.devices...)
}

func (m *UartMux) receive(p []byte) {
	for _, d := range m.devices {
		if d.rx != nil {
			d.rx(p)
		}
	}
}

// MuxDevice is one user of a UartMux.
type MuxDevice struct {
	mux     *UartMux
	name    string
	rx      func([]byte)
	written int
}

var _ hal.UART = (*MuxDevice)(nil)

// Name returns the name the device was created with.
func (d *MuxDevice) Name() string { return d.name }

// Transmit implements hal.UART.Transmit.
func (d *MuxDevice) Transmit(p []byte) (int, error) {
	n, err := d.mux.uart.Transmit(p)
	d.written += n
	return n, err
}

// SetReceiveClient implements hal.UART.SetReceiveClient.
func (d *MuxDevice) SetReceiveClient(fn func([]byte)) {
	d.rx = fn
}

// Written returns the number of bytes the UART accepted from d.
func (d *MuxDevice) Written() int { return d.written }
