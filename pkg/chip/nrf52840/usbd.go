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
	"io"
	"sync"

	"gvisor.dev/mpboard/pkg/hal"
)

// usbRxBufferSize is the capacity of the receive FIFO.
const usbRxBufferSize = 256

// DeviceDescriptor describes the USB device to the host.
type DeviceDescriptor struct {
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	SerialNumber string
}

// Usbd is the USB device controller running a CDC-ACM serial function. The
// host side is an io.Writer for device-to-host traffic plus HostWrite and
// HostSetLineCoding for host-to-device traffic.
type Usbd struct {
	nvic  *NVIC
	power *Power

	mu            sync.Mutex
	desc          DeviceDescriptor
	enabled       bool
	attachPending bool
	attached      bool
	host          io.Writer
	rx            [usbRxBufferSize]byte
	rxHead, rxLen int
	rxDropped     int
	baud          uint32
	baudChanged   bool
	txDropped     int
	rxClient      func([]byte)
	baudClient    func(baud uint32)
}

var _ hal.UART = (*Usbd)(nil)

// SetDescriptor sets the device descriptor reported to the host.
func (u *Usbd) SetDescriptor(d DeviceDescriptor) {
	u.mu.Lock()
	u.desc = d
	u.mu.Unlock()
}

// Descriptor returns the device descriptor.
func (u *Usbd) Descriptor() DeviceDescriptor {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.desc
}

// Enable powers up the controller.
func (u *Usbd) Enable() {
	u.mu.Lock()
	u.enabled = true
	u.mu.Unlock()
}

// Attach pulls up D+ so the host enumerates the device. If USB power is not
// yet ready, attachment completes on the POWER event.
func (u *Usbd) Attach() {
	ready := u.power.USBPowerReady()
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.enabled {
		return
	}
	if ready {
		u.attached = true
	} else {
		u.attachPending = true
	}
}

// Attached returns true once the device is visible to the host.
func (u *Usbd) Attached() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.attached
}

func (u *Usbd) powerEvent(ready bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if ready && u.attachPending {
		u.attachPending = false
		u.attached = true
	}
	if !ready {
		u.attached = false
		u.attachPending = u.enabled
	}
}

// SetHost connects the host side of the serial function.
func (u *Usbd) SetHost(w io.Writer) {
	u.mu.Lock()
	u.host = w
	u.mu.Unlock()
}

// Transmit implements hal.UART.Transmit. Nothing is accepted until the
// device is attached and a host is connected.
func (u *Usbd) Transmit(p []byte) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.attached || u.host == nil {
		return 0, nil
	}
	n, err := u.host.Write(p)
	if err != nil {
		u.txDropped += len(p) - n
	}
	return n, err
}

// SetReceiveClient implements hal.UART.SetReceiveClient.
func (u *Usbd) SetReceiveClient(fn func([]byte)) {
	u.mu.Lock()
	u.rxClient = fn
	u.mu.Unlock()
}

// SetBaudRateClient registers fn to be called when the host changes the
// line coding.
func (u *Usbd) SetBaudRateClient(fn func(baud uint32)) {
	u.mu.Lock()
	u.baudClient = fn
	u.mu.Unlock()
}

// HostWrite delivers bytes from the host. Bytes beyond the receive FIFO
// are dropped. It may be called from any goroutine.
func (u *Usbd) HostWrite(p []byte) int {
	u.mu.Lock()
	n := 0
	for _, b := range p {
		if u.rxLen == len(u.rx) {
			u.rxDropped += len(p) - n
			break
		}
		u.rx[(u.rxHead+u.rxLen)%len(u.rx)] = b
		u.rxLen++
		n++
	}
	u.mu.Unlock()
	if n > 0 {
		u.nvic.Raise(IRQUSBD)
	}
	return n
}

// HostSetLineCoding models the host's SET_LINE_CODING request.
func (u *Usbd) HostSetLineCoding(baud uint32) {
	u.mu.Lock()
	u.baud = baud
	u.baudChanged = true
	u.mu.Unlock()
	u.nvic.Raise(IRQUSBD)
}

func (u *Usbd) handleInterrupt() {
	var buf [usbRxBufferSize]byte
	u.mu.Lock()
	n := 0
	for u.rxLen > 0 {
		buf[n] = u.rx[u.rxHead]
		u.rxHead = (u.rxHead + 1) % len(u.rx)
		u.rxLen--
		n++
	}
	baud, changed := u.baud, u.baudChanged
	u.baudChanged = false
	rx, bc := u.rxClient, u.baudClient
	u.mu.Unlock()

	if n > 0 && rx != nil {
		rx(buf[:n])
	}
	if changed && bc != nil {
		bc(baud)
	}
}
