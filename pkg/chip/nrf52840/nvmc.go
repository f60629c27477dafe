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
)

// Regulator0Output is the REG0 output voltage stored in UICR.
type Regulator0Output uint8

// REG0 output voltages.
const (
	Regulator0Default Regulator0Output = 7
	Regulator0V18     Regulator0Output = 0
	Regulator0V21     Regulator0Output = 1
	Regulator0V24     Regulator0Output = 2
	Regulator0V27     Regulator0Output = 3
	Regulator0V30     Regulator0Output = 4
	Regulator0V33     Regulator0Output = 5
)

// UICR is the user information configuration register block. Changes take
// effect after a reset.
type UICR struct {
	PSELReset   [2]int32
	NFCPinsProt bool
	Regulator0  Regulator0Output
	APProtect   bool
}

// NVMC is the non-volatile memory controller.
type NVMC struct {
	mu      sync.Mutex
	uicr    UICR
	writes  int
	writeEn bool
}

func newNVMC() *NVMC {
	return &NVMC{uicr: UICR{PSELReset: [2]int32{-1, -1}, Regulator0: Regulator0Default, NFCPinsProt: false}}
}

// UICR returns a copy of the UICR block.
func (n *NVMC) UICR() UICR {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.uicr
}

// UpdateUICR applies fn to the UICR block and reports whether anything
// changed. Each change costs one flash write.
func (n *NVMC) UpdateUICR(fn func(u *UICR)) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	next := n.uicr
	fn(&next)
	if next == n.uicr {
		return false, nil
	}
	if next.PSELReset[0] != next.PSELReset[1] {
		return false, fmt.Errorf("uicr: PSELRESET registers disagree: %d != %d", next.PSELReset[0], next.PSELReset[1])
	}
	n.writeEn = true
	n.uicr = next
	n.writes++
	n.writeEn = false
	return true, nil
}

// Writes returns the number of flash writes performed.
func (n *NVMC) Writes() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.writes
}

// FICR is the factory information configuration register block.
type FICR struct {
	deviceID   [8]byte
	deviceAddr [6]byte
}

// DefaultFICR is the FICR of the simulated part.
var DefaultFICR = FICR{
	deviceID:   [8]byte{0x3f, 0xa1, 0x52, 0x84, 0x0e, 0x7c, 0x91, 0xd2},
	deviceAddr: [6]byte{0xc3, 0x1e, 0x2a, 0x9b, 0x40, 0xf7},
}

// NewFICR returns a FICR with the given device ID and address.
func NewFICR(id [8]byte, addr [6]byte) FICR {
	return FICR{deviceID: id, deviceAddr: addr}
}

// ID returns the 64 bit device identifier.
func (f FICR) ID() [8]byte { return f.deviceID }

// AddressString returns the device address as colon separated hex, most
// significant byte first.
func (f FICR) AddressString() string {
	a := f.deviceAddr
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[5], a[4], a[3], a[2], a[1], a[0])
}
