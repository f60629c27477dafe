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
	"net/netip"

	"gvisor.dev/mpboard/pkg/abi/tock"
	"gvisor.dev/mpboard/pkg/kernel"
	"gvisor.dev/mpboard/pkg/kernel/process"
)

// MaxBoundPorts is the capacity of a PortTable.
const MaxBoundPorts = 16

// Port table errors.
var (
	ErrPortInUse     = errors.New("port in use")
	ErrPortTableFull = errors.New("port table full")
)

type portBinding struct {
	used  bool
	port  uint16
	owner process.ID
}

// PortTable records which process owns each bound UDP port. Bindings held
// by processes that no longer exist are reclaimed on the next Bind.
type PortTable struct {
	bindings [MaxBoundPorts]portBinding
	alive    func(process.ID) bool
}

// NewPortTable returns an empty table. alive reports whether a process
// still exists.
func NewPortTable(alive func(process.ID) bool) *PortTable {
	return &PortTable{alive: alive}
}

// Bind binds port to owner, replacing any port owner held before.
func (t *PortTable) Bind(port uint16, owner process.ID) error {
	free := -1
	for i := range t.bindings {
		b := &t.bindings[i]
		if b.used && !t.alive(b.owner) {
			*b = portBinding{}
		}
		if b.used && b.port == port && b.owner != owner {
			return ErrPortInUse
		}
	}
	t.Unbind(owner)
	for i := range t.bindings {
		if !t.bindings[i].used {
			free = i
			break
		}
	}
	if free < 0 {
		return ErrPortTableFull
	}
	t.bindings[free] = portBinding{used: true, port: port, owner: owner}
	return nil
}

// Unbind releases the port held by owner.
func (t *PortTable) Unbind(owner process.ID) {
	for i := range t.bindings {
		if t.bindings[i].used && t.bindings[i].owner == owner {
			t.bindings[i] = portBinding{}
		}
	}
}

// Owner returns the process bound to port.
func (t *PortTable) Owner(port uint16) (process.ID, bool) {
	for _, b := range t.bindings {
		if b.used && b.port == port && t.alive(b.owner) {
			return b.owner, true
		}
	}
	return process.ID{}, false
}

// Port returns the port bound by owner.
func (t *PortTable) Port(owner process.ID) (uint16, bool) {
	for _, b := range t.bindings {
		if b.used && b.owner == owner {
			return b.port, true
		}
	}
	return 0, false
}

// UDP commands.
const (
	udpInterfaces = 1
	udpSend       = 2
	udpBind       = 3
	udpMaxPayload = 4
)

// UDP upcalls.
const (
	udpReceived = 0
	udpSent     = 1
)

const (
	udpHeaderLen = 8
	sockaddrLen  = 18

	// MaxUDPPayload is the largest datagram payload.
	MaxUDPPayload = MaxMACPayload - udpHeaderLen
)

type udpApp struct {
	payload []byte
	rx      []byte
	cfg     []byte
}

// UDPDriver sends and receives datagrams over the 802.15.4 MAC.
//
// The configuration buffer (read-write allow 1) holds two socket addresses
// of 16 address bytes and a big-endian port each: the local address used by
// bind and the remote address used by send. Command 1 writes the interface
// addresses into the same buffer. Outgoing payloads come from read-only
// allow 0; received payloads land in read-write allow 0 and are reported as
// upcall 0 with (length, source port). Send completion is upcall 1.
type UDPDriver struct {
	mac     *MacDevice
	dstMAC  uint16
	ifaces  []netip.Addr
	ports   *PortTable
	apps    *grantTable[udpApp]
	sending bool
	sender  process.ID
}

var (
	_ kernel.Driver           = (*UDPDriver)(nil)
	_ kernel.ReadOnlyAllower  = (*UDPDriver)(nil)
	_ kernel.ReadWriteAllower = (*UDPDriver)(nil)
)

// NewUDPDriver returns a driver sending through mac to the node with short
// address dstMAC. ifaces are the node's interface addresses.
func NewUDPDriver(mac *MacDevice, dstMAC uint16, ifaces []netip.Addr, g *kernel.Grant) *UDPDriver {
	d := &UDPDriver{
		mac:    mac,
		dstMAC: dstMAC,
		ifaces: append([]netip.Addr(nil), ifaces...),
		apps:   newGrantTable[udpApp](g),
	}
	d.ports = NewPortTable(func(pid process.ID) bool { return g.Process(pid) != nil })
	mac.SetTransmitClient(d.sent)
	mac.SetReceiveClient(d.receive)
	return d
}

// Ports returns the port table.
func (d *UDPDriver) Ports() *PortTable { return d.ports }

// Interfaces returns the interface addresses.
func (d *UDPDriver) Interfaces() []netip.Addr {
	return append([]netip.Addr(nil), d.ifaces...)
}

// AllowReadOnly implements kernel.ReadOnlyAllower.AllowReadOnly.
func (d *UDPDriver) AllowReadOnly(pid process.ID, num uint32, buf []byte) tock.CommandReturn {
	app := d.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	if num != 0 {
		return tock.Failure(tock.NOSUPPORT)
	}
	app.payload = buf
	return tock.Success()
}

// AllowReadWrite implements kernel.ReadWriteAllower.AllowReadWrite.
func (d *UDPDriver) AllowReadWrite(pid process.ID, num uint32, buf []byte) tock.CommandReturn {
	app := d.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	switch num {
	case 0:
		app.rx = buf
	case 1:
		app.cfg = buf
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
	return tock.Success()
}

// Command implements kernel.Driver.Command.
func (d *UDPDriver) Command(cmd, _, _ uint32, pid process.ID) tock.CommandReturn {
	switch cmd {
	case tock.CommandExists:
		return tock.Success()
	case udpMaxPayload:
		return tock.SuccessU32(MaxUDPPayload)
	}
	app := d.apps.get(pid)
	if app == nil {
		return tock.Failure(tock.FAIL)
	}
	switch cmd {
	case udpInterfaces:
		for i, a := range d.ifaces {
			b := a.As16()
			if (i+1)*16 > len(app.cfg) {
				break
			}
			copy(app.cfg[i*16:], b[:])
		}
		return tock.SuccessU32(uint32(len(d.ifaces)))
	case udpBind:
		if len(app.cfg) < sockaddrLen {
			return tock.Failure(tock.INVAL)
		}
		addr, port := parseSockaddr(app.cfg[:sockaddrLen])
		if port == 0 || !d.local(addr) {
			return tock.Failure(tock.INVAL)
		}
		switch err := d.ports.Bind(port, pid); {
		case errors.Is(err, ErrPortInUse):
			return tock.Failure(tock.BUSY)
		case err != nil:
			return tock.Failure(tock.NOMEM)
		}
		return tock.Success()
	case udpSend:
		src, ok := d.ports.Port(pid)
		if !ok {
			return tock.Failure(tock.RESERVE)
		}
		if len(app.cfg) < 2*sockaddrLen {
			return tock.Failure(tock.INVAL)
		}
		if len(app.payload) > MaxUDPPayload {
			return tock.Failure(tock.SIZE)
		}
		if d.sending {
			return tock.Failure(tock.BUSY)
		}
		_, dst := parseSockaddr(app.cfg[sockaddrLen : 2*sockaddrLen])
		dgram := make([]byte, udpHeaderLen+len(app.payload))
		binary.BigEndian.PutUint16(dgram[0:], src)
		binary.BigEndian.PutUint16(dgram[2:], dst)
		binary.BigEndian.PutUint16(dgram[4:], uint16(len(dgram)))
		copy(dgram[udpHeaderLen:], app.payload)
		if err := d.mac.Transmit(d.dstMAC, dgram); err != nil {
			return tock.Failure(tock.BUSY)
		}
		d.sending, d.sender = true, pid
		return tock.Success()
	default:
		return tock.Failure(tock.NOSUPPORT)
	}
}

// local returns true if addr is unspecified or one of the interfaces.
func (d *UDPDriver) local(addr netip.Addr) bool {
	if addr.IsUnspecified() {
		return true
	}
	for _, a := range d.ifaces {
		if a == addr {
			return true
		}
	}
	return false
}

func (d *UDPDriver) sent(acked bool) {
	if !d.sending {
		return
	}
	d.sending = false
	status := uint32(0)
	if !acked {
		status = uint32(tock.NOACK)
	}
	d.apps.schedule(d.sender, udpSent, status, 0, 0)
}

func (d *UDPDriver) receive(src uint16, payload []byte) {
	if len(payload) < udpHeaderLen {
		return
	}
	srcPort := binary.BigEndian.Uint16(payload[0:])
	dstPort := binary.BigEndian.Uint16(payload[2:])
	n := int(binary.BigEndian.Uint16(payload[4:]))
	if n < udpHeaderLen || n > len(payload) {
		return
	}
	owner, ok := d.ports.Owner(dstPort)
	if !ok {
		return
	}
	app := d.apps.get(owner)
	if app == nil || len(app.rx) == 0 {
		return
	}
	copied := copy(app.rx, payload[udpHeaderLen:n])
	d.apps.schedule(owner, udpReceived, uint32(copied), uint32(srcPort), uint32(src))
}

func parseSockaddr(b []byte) (netip.Addr, uint16) {
	return netip.AddrFrom16([16]byte(b[:16])), binary.BigEndian.Uint16(b[16:])
}
