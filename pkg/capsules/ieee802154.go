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
	"encoding/binary"
	"errors"

	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/hal"
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// BroadcastAddr is the short address every node accepts.
const BroadcastAddr = 0xffff

// MAC header layout: frame control, sequence number, destination PAN,
// destination short address, source short address.
const (
	macHeaderLen = 9

	fcDataFrame     = 0x01
	fcAckRequest    = 0x20
	fcPANCompress   = 0x40
	fcShortAddrs    = 0x88
	macMaxFrameSize = 127
)

// MaxMACPayload is the largest payload a MacDevice can send.
const MaxMACPayload = macMaxFrameSize - macHeaderLen

// ErrMACBusy is returned when a transmission is already in flight.
var ErrMACBusy = errors.New("mac busy")

// MacMux shares the 802.15.4 radio between users. It owns the node's PAN
// and addresses and frames every payload with a data frame header.
type MacMux struct {
	radio   hal.Radio802154
	pan     uint16
	short   uint16
	long    [8]byte
	channel int
	seq     uint8
	users   []*MacDevice
	sender  *MacDevice
}

// NewMacMux returns a mux over radio.
func NewMacMux(radio hal.Radio802154, channel int) *MacMux {
	m := &MacMux{radio: radio, channel: channel}
	radio.SetTransmitClient(m.transmitDone)
	radio.SetReceiveClient(m.receive)
	return m
}

// Configure sets the PAN and node addresses.
func (m *MacMux) Configure(pan, short uint16, long [8]byte) {
	m.pan, m.short, m.long = pan, short, long
	m.radio.Configure(pan, short, long)
}

// PAN returns the PAN identifier.
func (m *MacMux) PAN() uint16 { return m.pan }

// ShortAddr returns the node's short address.
func (m *MacMux) ShortAddr() uint16 { return m.short }

// LongAddr returns the node's extended address.
func (m *MacMux) LongAddr() [8]byte { return m.long }

// Channel returns the radio channel.
func (m *MacMux) Channel() int { return m.channel }

// NewDevice returns a new user of the mux.
func (m *MacMux) NewDevice() *MacDevice {
	d := &MacDevice{mux: m}
	m.users = append(m.users, d)
	return d
}

func (m *MacMux) transmit(d *MacDevice, dst uint16, payload []byte) error {
	if m.sender != nil {
		return ErrMACBusy
	}
	if len(payload) > MaxMACPayload {
		return errors.New("payload too large")
	}
	frame := make([]byte, macHeaderLen, macHeaderLen+len(payload))
	frame[0] = fcDataFrame | fcPANCompress
	if dst != BroadcastAddr {
		frame[0] |= fcAckRequest
	}
	frame[1] = fcShortAddrs
	frame[2] = m.seq
	binary.LittleEndian.PutUint16(frame[3:], m.pan)
	binary.LittleEndian.PutUint16(frame[5:], dst)
	binary.LittleEndian.PutUint16(frame[7:], m.short)
	frame = append(frame, payload...)
	m.seq++
	m.sender = d
	if err := m.radio.Transmit(frame); err != nil {
		m.sender = nil
		return err
	}
	return nil
}

func (m *MacMux) transmitDone(acked bool) {
	d := m.sender
	m.sender = nil
	if d != nil && d.txClient != nil {
		d.txClient(acked)
	}
}

func (m *MacMux) receive(frame []byte) {
	if len(frame) < macHeaderLen || frame[0]&0x07 != fcDataFrame {
		return
	}
	pan := binary.LittleEndian.Uint16(frame[3:])
	dst := binary.LittleEndian.Uint16(frame[5:])
	src := binary.LittleEndian.Uint16(frame[7:])
	if (pan != m.pan && pan != BroadcastAddr) || (dst != m.short && dst != BroadcastAddr) {
		return
	}
	for _, d := range m.users {
		if d.rxClient != nil {
			d.rxClient(src, frame[macHeaderLen:])
		}
	}
}

// MacDevice is one user of a MacMux.
type MacDevice struct {
	mux      *MacMux
	txClient func(acked bool)
	rxClient func(src uint16, payload []byte)
}

// Transmit sends payload to dst. Unicast frames request an
// acknowledgement.
func (d *MacDevice) Transmit(dst uint16, payload []byte) error {
	return d.mux.transmit(d, dst, payload)
}

// SetTransmitClient registers fn to be called when a transmission by d
// completes.
func (d *MacDevice) SetTransmitClient(fn func(acked bool)) { d.txClient = fn }

// SetReceiveClient registers fn to be called with every accepted frame.
func (d *MacDevice) SetReceiveClient(fn func(src uint16, payload []byte)) { d.rxClient = fn }

// IEEE 802.15.4 commands.
const (
	radioStatus   = 1
	radioSetShort = 2
	radioSetPAN   = 4
	radioCommit   = 7
	radioGetShort = 8
	radioGetPAN   = 10
	radioGetChan  = 11
	radioTransmit = 26
)

// IEEE 802.15.4 upcalls.
const (
	radioTxDone   = 0
	radioReceived = 1
)

type radioApp struct {
	txBuf []byte
	rxBuf []byte
}

// IEEE802154 gives processes raw access to 802.15.4 data frames.
//
// Address and PAN changes are staged with commands 2 and 4 and take effect
// on commit (command 7). Command 26 sends arg2 bytes of read-only allow 0
// to short address arg1; upcall 0 reports (status, acked). Received frames
// are copied into read-write allow 0 and reported as upcall 1 with
// (length, source).
type IEEE802154 struct {
	mac          *MacDevice
	apps         *grantTable[radioApp]
	pendingShort uint16
	pendingPAN   uint16
	sender       process.ID
	sending      bool
}

var (
	_ kernel.Driver           = (*IEEE802154)(nil)
	_ kernel.ReadOnlyAllower  = (*IEEE802154)(nil)
	_ kernel.ReadWriteAllower = (*IEEE802154)(nil)
)

// NewIEEE802154 returns a driver using mac.
func NewIEEE802154(mac *MacDevice, g *kernel.Grant) *IEEE802154 {
	d := &IEEE802154{
		mac:          mac,
		apps:         newGrantTable[radioApp](g),
		pendingShort: mac.mux.ShortAddr(),
		pendingPAN:   mac.mux.PAN(),
	}
	mac.SetTransmitClient(d.transmitDone)
	mac.SetReceiveClient(d.receive)
	return d
}

// AllowReadOnly implements kernel.ReadOnlyAllower.AllowReadOnly.
func (d *IEEE802154) AllowReadOnly(pid process.ID, num uint32, buf []byte) tock.CommandReturn {
	app := d.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	if num != 0 {
		return tock.Failure(tock.NOSUPPORT)
	}
	app.txBuf = buf
	return tock.Success()
}

// AllowReadWrite implements kernel.ReadWriteAllower.AllowReadWrite.
func (d *IEEE802154) AllowReadWrite(pid process.ID, num uint32, buf []byte) tock.CommandReturn {
	app := d.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	if num != 0 {
		return tock.Failure(tock.NOSUPPORT)
	}
	app.rxBuf = buf
	return tock.Success()
}

// Command implements kernel.Driver.Command.
func (d *IEEE802154) Command(cmd, arg1, arg2 uint32, pid process.ID) tock.CommandReturn {
	mux := d.mac.mux
	switch cmd {
	case tock.CommandExists, radioStatus:
		return tock.Success()
	case radioSetShort:
		d.pendingShort = uint16(arg1)
		return tock.Success()
	case radioSetPAN:
		d.pendingPAN = uint16(arg1)
		return tock.Success()
	case radioCommit:
		mux.Configure(d.pendingPAN, d.pendingShort, mux.LongAddr())
		return tock.Success()
	case radioGetShort:
		return tock.SuccessU32(uint32(mux.ShortAddr()))
	case radioGetPAN:
		return tock.SuccessU32(uint32(mux.PAN()))
	case radioGetChan:
		return tock.SuccessU32(uint32(mux.Channel()))
	case radioTransmit:
		app := d.apps.get(pid)
		if app == nil {
			return tock.Failure(tock.FAIL)
		}
		if d.sending {
			return tock.Failure(tock.BUSY)
		}
		n := int(arg2)
		if n > len(app.txBuf) {
			return tock.Failure(tock.SIZE)
		}
		if err := d.mac.Transmit(uint16(arg1), app.txBuf[:n]); err != nil {
			if errors.Is(err, ErrMACBusy) {
				return tock.Failure(tock.BUSY)
			}
			return tock.Failure(tock.SIZE)
		}
		d.sending, d.sender = true, pid
		return tock.Success()
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
}

func (d *IEEE802154) transmitDone(acked bool) {
	if !d.sending {
		return
	}
	d.sending = false
	status := uint32(0)
	if !acked {
		status = uint32(tock.NOACK)
	}
	d.apps.schedule(d.sender, radioTxDone, status, boolToU32(acked), 0)
}

func (d *IEEE802154) receive(src uint16, payload []byte) {
	d.apps.each(func(pid process.ID, app *radioApp) {
		if len(app.rxBuf) == 0 {
			return
		}
		n := copy(app.rxBuf, payload)
		d.apps.schedule(pid, radioReceived, uint32(n), uint32(src), 0)
	})
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
